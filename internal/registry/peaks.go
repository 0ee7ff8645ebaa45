// Package registry implements the peak finder and the bin-keyed pass
// registry: local-maximum scanning over a
// frequency vector, dispatch of discovered peaks to new or existing pass
// hypotheses, and the age/failure-based eviction policy.
package registry

import (
	"math"

	"github.com/pvachon/zepassd/internal/fft"
)

// PeakThreshold is the fixed amplitude floor a local maximum must clear to
// be considered a peak.
const PeakThreshold = 500.0

// Peak is one local maximum found in a frequency vector.
type Peak struct {
	PhysicalBin int
	FreqHz      float64
	Value       complex128
}

// FindPeaks scans freqVec (length n, raw FFT bin order, bin 0 = DC) for
// strict local maxima above PeakThreshold and returns them tagged with
// their DC-centered physical bin and frequency offset. No interpolation or
// sub-bin refinement is performed; ties are impossible since the
// comparison is strict on both sides.
func FindPeaks(freqVec []complex128, sampleRate int64) []Peak {
	n := len(freqVec)
	var peaks []Peak

	for i := 1; i < n-1; i++ {
		mag := cmplxAbs(freqVec[i])
		if mag <= cmplxAbs(freqVec[i-1]) || mag <= cmplxAbs(freqVec[i+1]) || mag <= PeakThreshold {
			continue
		}

		physicalBin := fft.PhysicalBin(i, n)
		peaks = append(peaks, Peak{
			PhysicalBin: physicalBin,
			FreqHz:      fft.BinFrequency(physicalBin, n, sampleRate),
			Value:       freqVec[i],
		})
	}

	return peaks
}

func cmplxAbs(v complex128) float64 {
	return math.Hypot(real(v), imag(v))
}
