// Package decoder drives the arm-and-fire/FFT/registry/sink pipeline: one
// goroutine, repeatedly firing the radio, transforming the capture, and
// dispatching any peaks found to the pass registry.
package decoder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pvachon/zepassd/internal/dsp"
	"github.com/pvachon/zepassd/internal/fft"
	"github.com/pvachon/zepassd/internal/pass"
	"github.com/pvachon/zepassd/internal/radio"
	"github.com/pvachon/zepassd/internal/registry"
	"github.com/pvachon/zepassd/internal/sink"
)

// Config parameterizes one Decoder instance.
type Config struct {
	CenterHz       int64
	SampleRate     int64
	IntervalUS     int64
	MaxAgeUS       int64
	PulseSpacingUS int64
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return NewConfigError(fmt.Sprintf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.CenterHz <= 0 {
		return NewConfigError(fmt.Sprintf("center frequency must be positive, got %d", c.CenterHz))
	}
	if c.IntervalUS <= 0 {
		return NewConfigError(fmt.Sprintf("interval must be positive, got %d", c.IntervalUS))
	}
	if c.MaxAgeUS <= 0 {
		return NewConfigError(fmt.Sprintf("max age must be positive, got %d", c.MaxAgeUS))
	}
	if c.PulseSpacingUS <= 0 {
		return NewConfigError(fmt.Sprintf("pulse spacing must be positive, got %d", c.PulseSpacingUS))
	}
	return nil
}

// Decoder owns the capture buffer, FFT plan, and pass registry for one
// radio/sink pair. It must only ever be driven from a single goroutine.
type Decoder struct {
	cfg Config

	radio radio.Radio
	sink  registry.Sink

	plan *fft.Plan
	reg  *registry.Registry

	target  []complex128
	freqVec []complex128

	logger   *slog.Logger
	debugDir string
}

// Option configures a Decoder at construction time.
type Option func(*Decoder)

// WithLogger attaches a structured logger used for startup diagnostics and
// threaded into the registry for its own peak/eviction events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// WithDebugPlotDir enables a waterfall PNG dump of a hypothesis's
// accumulated waveform, written to dir once per fresh decode.
func WithDebugPlotDir(dir string) Option {
	return func(d *Decoder) {
		d.debugDir = dir
	}
}

// New validates cfg, sizes the interval buffer and FFT plan, and builds an
// empty pass registry. r must already be Configure()d by the caller.
func New(r radio.Radio, sk registry.Sink, cfg Config, opts ...Option) (*Decoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	d := &Decoder{
		cfg:    cfg,
		radio:  r,
		sink:   sk,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}

	m := dsp.IntervalSamples(cfg.SampleRate, cfg.IntervalUS)
	if m < 2 {
		return nil, NewConfigError(fmt.Sprintf("interval %dus at %d samples/sec yields only %d samples", cfg.IntervalUS, cfg.SampleRate, m))
	}
	n := int(dsp.NextPowerOfTwo(uint64(m)))

	d.logger.Info("interval samples",
		slog.String("samples", humanize.Comma(int64(m))),
		slog.String("fftLength", humanize.Comma(int64(n))))

	plan, err := fft.NewPlan(n)
	if err != nil {
		return nil, NewPlanError(fmt.Sprintf("planning FFT: %v", err))
	}
	d.logger.Info("FFT planning is done, we are ready to roll")

	d.plan = plan
	d.target = make([]complex128, m)
	d.freqVec = make([]complex128, n)

	regOpts := []registry.Option{registry.WithLogger(d.logger)}
	if d.debugDir != "" {
		regOpts = append(regOpts, registry.WithDecodeHook(d.dumpDebugPlot))
	}
	d.reg = registry.New(m, cfg.SampleRate, cfg.IntervalUS, cfg.MaxAgeUS, regOpts...)

	return d, nil
}

// dumpDebugPlot writes one waterfall PNG per fresh decode to debugDir,
// named after the hypothesis's physical FFT bin.
func (d *Decoder) dumpDebugPlot(physicalBin int, h *pass.Hypothesis) {
	path := filepath.Join(d.debugDir, fmt.Sprintf("pass-%d.png", physicalBin))
	f, err := os.Create(path)
	if err != nil {
		d.logger.Error("creating debug plot", slog.String("path", path), slog.String("err", err.Error()))
		return
	}
	defer f.Close()

	if err := sink.DumpWaterfallPNG(f, h.Accumulator(), h.FreqOffsetHz(), nil); err != nil {
		d.logger.Error("dumping debug plot", slog.String("path", path), slog.String("err", err.Error()))
	}
}

// Registry exposes the underlying pass registry, mainly for tests and
// diagnostics that need to inspect in-flight hypotheses.
func (d *Decoder) Registry() *registry.Registry {
	return d.reg
}

// Step runs one arm-and-fire/FFT/dispatch/reap cycle and returns the
// wall-clock time, in microseconds, the capture began.
func (d *Decoder) Step(ctx context.Context) (int64, error) {
	atUS, err := d.radio.ArmAndFire(ctx, d.target, d.cfg.PulseSpacingUS)
	if err != nil {
		return 0, NewRadioFaultError(fmt.Sprintf("arm_and_fire: %v", err))
	}

	if err := d.plan.Transform(d.target, d.freqVec); err != nil {
		return 0, fmt.Errorf("decoder: transforming capture: %w", err)
	}

	peaks := registry.FindPeaks(d.freqVec, d.cfg.SampleRate)
	now := time.Now()
	for _, p := range peaks {
		if err := d.reg.ProcessPeak(p, d.target, atUS, now, d.sink); err != nil {
			d.logger.Error("processing peak", slog.Int("bin", p.PhysicalBin), slog.String("err", err.Error()))
		}
	}

	d.reg.Reap(atUS)
	return atUS, nil
}

// Run repeats Step until ctx is canceled or a capture fails. A canceled
// context is not reported as an error; any other failure is.
func (d *Decoder) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := d.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
