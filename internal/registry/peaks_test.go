package registry

import "testing"

func TestFindPeaksStrictLocalMaximumAboveThreshold(t *testing.T) {
	const n = 16
	freqVec := make([]complex128, n)
	// Peak at raw index 4, well above threshold.
	freqVec[4] = complex(600, 0)
	// A "peak" that fails the threshold: still a local max, but too small.
	freqVec[10] = complex(10, 0)
	// A shoulder, not a strict local max (tied with a neighbor).
	freqVec[7] = complex(501, 0)
	freqVec[8] = complex(501, 0)

	peaks := FindPeaks(freqVec, 3_000_000)
	if len(peaks) != 1 {
		t.Fatalf("FindPeaks returned %d peaks, want 1: %+v", len(peaks), peaks)
	}

	p := peaks[0]
	wantBin := (4 + n/2) % n
	if p.PhysicalBin != wantBin {
		t.Errorf("PhysicalBin = %d, want %d", p.PhysicalBin, wantBin)
	}
	if cmplxAbs(p.Value) <= PeakThreshold {
		t.Errorf("peak value %v does not clear threshold %v", p.Value, PeakThreshold)
	}
}

func TestFindPeaksEmptyOnAllZero(t *testing.T) {
	freqVec := make([]complex128, 32)
	if peaks := FindPeaks(freqVec, 3_000_000); len(peaks) != 0 {
		t.Errorf("FindPeaks on all-zero vector returned %d peaks, want 0", len(peaks))
	}
}

func TestFindPeaksEndpointsNeverReported(t *testing.T) {
	n := 8
	freqVec := make([]complex128, n)
	freqVec[0] = complex(10_000, 0)
	freqVec[n-1] = complex(10_000, 0)

	if peaks := FindPeaks(freqVec, 3_000_000); len(peaks) != 0 {
		t.Errorf("FindPeaks reported endpoint bins as peaks: %+v", peaks)
	}
}
