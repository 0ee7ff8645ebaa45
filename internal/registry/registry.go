package registry

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pvachon/zepassd/internal/pass"
)

const (
	// maxAccumulations is the hard upper bound on accumulations for an
	// undecoded hypothesis before it is evicted as noise.
	maxAccumulations = 32

	// decodeAttemptThreshold is the accumulation count an undecoded
	// hypothesis must exceed before a decode attempt is made.
	decodeAttemptThreshold = 16
)

// Sink receives one serialized record line per successful decode
// transition. internal/sink provides the concrete implementations; this
// local interface exists only to avoid a registry->sink import cycle.
type Sink interface {
	Append(line string) error
}

// DecodeHook is invoked once per hypothesis, on the capture where it
// transitions to decoded, after the sink has been appended to. It exists
// so callers can run optional diagnostics (e.g. a debug waterfall dump)
// without ProcessPeak needing to know about them.
type DecodeHook func(physicalBin int, h *pass.Hypothesis)

// Registry maps FFT physical bin index to in-progress pass hypotheses. It
// is owned exclusively by the decoder's single driver-loop goroutine; no
// internal locking is used.
type Registry struct {
	m          int // M, the interval buffer length, shared by every hypothesis
	sampleRate int64
	intervalUS int64
	maxAgeUS   int64

	passes     map[int]*pass.Hypothesis
	logger     *slog.Logger
	decodeHook DecodeHook
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithLogger attaches a structured logger used for peak-discovery and
// eviction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithDecodeHook registers a DecodeHook, run synchronously once per fresh
// decode transition.
func WithDecodeHook(hook DecodeHook) Option {
	return func(r *Registry) {
		r.decodeHook = hook
	}
}

// New creates an empty pass registry. m is the interval buffer length (M),
// sampleRate and intervalUS parameterize every hypothesis's baseband
// mixer, and maxAgeUS is the staleness threshold applied during Reap.
func New(m int, sampleRate, intervalUS, maxAgeUS int64, opts ...Option) *Registry {
	r := &Registry{
		m:          m,
		sampleRate: sampleRate,
		intervalUS: intervalUS,
		maxAgeUS:   maxAgeUS,
		passes:     make(map[int]*pass.Hypothesis),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Len returns the number of hypotheses currently tracked.
func (r *Registry) Len() int {
	return len(r.passes)
}

// Lookup returns the hypothesis tracked at physicalBin, if any.
func (r *Registry) Lookup(physicalBin int) (*pass.Hypothesis, bool) {
	h, ok := r.passes[physicalBin]
	return h, ok
}

// ProcessPeak dispatches one discovered peak to its hypothesis (creating it
// on first sighting), accumulates the current capture into it, and applies
// the decode/eviction policy. sink receives exactly one
// serialized line, on the capture where the hypothesis transitions to
// decoded.
func (r *Registry) ProcessPeak(p Peak, signal []complex128, atUS int64, seenAt time.Time, sink Sink) error {
	h, ok := r.passes[p.PhysicalBin]
	if !ok {
		var err error
		h, err = pass.New(p.FreqHz, r.m, r.sampleRate, r.intervalUS)
		if err != nil {
			return fmt.Errorf("registry: creating hypothesis at bin %d: %w", p.PhysicalBin, err)
		}
		r.passes[p.PhysicalBin] = h
		r.logger.Debug("found peak",
			slog.Int("bin", p.PhysicalBin),
			slog.Float64("freqOffsetHz", p.FreqHz))
	}

	wasDecoded := h.Decoded()
	if err := h.Accumulate(signal, p.Value, atUS); err != nil {
		return fmt.Errorf("registry: accumulating bin %d: %w", p.PhysicalBin, err)
	}

	switch {
	case h.SampleCount() > maxAccumulations && !h.Decoded():
		r.logger.Debug("evicting undecoded hypothesis, likely noise",
			slog.Int("bin", p.PhysicalBin),
			slog.Int("sampleCount", h.SampleCount()))
		delete(r.passes, p.PhysicalBin)

	case h.SampleCount() > decodeAttemptThreshold && !h.Decoded():
		if h.Decode() && !wasDecoded {
			if sink != nil {
				if err := sink.Append(h.Serialize(seenAt)); err != nil {
					return fmt.Errorf("registry: appending decoded pass at bin %d: %w", p.PhysicalBin, err)
				}
			}
			if r.decodeHook != nil {
				r.decodeHook(p.PhysicalBin, h)
			}
		}
	}

	return nil
}

// Reap removes every hypothesis whose last accumulation is older than
// maxAgeUS relative to atUS.
func (r *Registry) Reap(atUS int64) {
	for bin, h := range r.passes {
		if atUS-h.LastSeenUS() > r.maxAgeUS {
			r.logger.Debug("reaping stale hypothesis",
				slog.Int("bin", bin),
				slog.Int64("lastSeenUS", h.LastSeenUS()),
				slog.Int64("atUS", atUS))
			delete(r.passes, bin)
		}
	}
}
