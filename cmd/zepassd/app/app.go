package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/pvachon/zepassd/internal/decoder"
	"github.com/pvachon/zepassd/internal/radio"
	"github.com/pvachon/zepassd/internal/registry"
	"github.com/pvachon/zepassd/internal/sink"
)

// Run builds the radio, sink and decoder described by cfg and drives the
// decode loop until ctx is canceled.
func Run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	logger.Info("writing to output file", slog.String("path", cfg.OutputFile))
	logger.Info("activation pulse length", slog.String("us", humanize.Comma(cfg.PulseLenUS)))
	logger.Info("maximum pass age", slog.String("seconds", humanize.Comma(cfg.MaxAgeS)))
	logger.Info("center frequency", slog.String("hz", humanize.Comma(cfg.CenterHz)))
	logger.Info("rx/tx port", slog.String("tx", cfg.TXPort), slog.String("rx", cfg.RXPort))

	r, err := buildRadio(cfg, logger)
	if err != nil {
		return err
	}

	radioCfg := radio.Config{
		Device:         cfg.Device,
		CenterHz:       cfg.CenterHz,
		TXGain:         cfg.TXGainDB,
		RXGain:         cfg.RXGainDB,
		TXPort:         cfg.TXPort,
		RXPort:         cfg.RXPort,
		TXAnt:          cfg.TXAnt,
		RXAnt:          cfg.RXAnt,
		PulseLenUS:     cfg.PulseLenUS,
		PulseSpacingMS: cfg.PulseSpacingMS,
		MaxAgeS:        cfg.MaxAgeS,
		SampleRate:     cfg.SampleRate,
		IntervalUS:     cfg.IntervalUS,
		GPSPPS:         cfg.GPSPPS,
	}
	if err := r.Configure(radioCfg); err != nil {
		return fmt.Errorf("configuring radio: %w", err)
	}

	sk, closeSink, err := buildSink(cfg)
	if err != nil {
		return err
	}

	decoderOpts := []decoder.Option{decoder.WithLogger(logger)}
	if cfg.DebugPlotDir != "" {
		decoderOpts = append(decoderOpts, decoder.WithDebugPlotDir(cfg.DebugPlotDir))
	}

	d, err := decoder.New(r, sk, decoder.Config{
		CenterHz:       cfg.CenterHz,
		SampleRate:     cfg.SampleRate,
		IntervalUS:     cfg.IntervalUS,
		MaxAgeUS:       cfg.MaxAgeS * 1_000_000,
		PulseSpacingUS: cfg.PulseSpacingMS * 1_000,
	}, decoderOpts...)
	if err != nil {
		closeErr := closeSink()
		return errors.Join(fmt.Errorf("building decoder: %w", err), closeErr)
	}

	runErr := d.Run(ctx)
	closeErr := closeSink()
	return errors.Join(runErr, closeErr)
}

// buildRadio constructs either the in-process simulated radio or errors out
// on a real-hardware request: no hardware backend is wired in this build.
func buildRadio(cfg *Config, logger *slog.Logger) (radio.Radio, error) {
	if !cfg.Simulate {
		return nil, fmt.Errorf("no hardware radio backend is wired into this build; pass --simulate")
	}

	opts := []radio.SimulatedOption{radio.WithSimulatedLogger(logger)}
	if cfg.FixturesPath != "" {
		f, err := os.Open(cfg.FixturesPath)
		if err != nil {
			return nil, fmt.Errorf("opening fixtures file: %w", err)
		}
		defer f.Close()

		fs, err := radio.LoadFixtures(f)
		if err != nil {
			return nil, err
		}
		opts = append(opts, radio.WithFixtures(fs.Tags))
	}

	return radio.NewSimulated(opts...), nil
}

// buildSink opens the line-delimited output file and, if requested, a
// SQLite mirror, fanning decoded lines out to both. The returned close
// function joins every underlying Close error instead of swallowing them,
// so a flush failure on shutdown is reported rather than lost.
func buildSink(cfg *Config) (registry.Sink, func() error, error) {
	fileSink, err := sink.NewFileSink(cfg.OutputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening output file: %w", err)
	}

	if cfg.SqlitePath == "" {
		return fileSink, fileSink.Close, nil
	}

	sqliteSink := sink.NewSqliteSink(cfg.SqlitePath)
	fanout := &fanoutSink{sinks: []registry.Sink{fileSink, sqliteSink}}
	return fanout, func() error {
		return errors.Join(fileSink.Close(), sqliteSink.Close())
	}, nil
}

// fanoutSink appends every line to each of its sinks, failing on the first
// error and skipping the rest; the file sink is listed first so a SQLite
// failure never costs the durable text log.
type fanoutSink struct {
	sinks []registry.Sink
}

func (f *fanoutSink) Append(line string) error {
	for _, s := range f.sinks {
		if err := s.Append(line); err != nil {
			return err
		}
	}
	return nil
}
