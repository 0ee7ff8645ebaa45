// Package app wires command-line configuration to a running Decoder,
// with a NewConfigFromCLI + Run split.
package app

import (
	"errors"
	"flag"
	"fmt"
)

// Config is the fully parsed, validated command line for zepassd. Field
// names and defaults follow the interrogator's field deployment defaults,
// with --sample-rate, --interval and --simulate added.
type Config struct {
	Device string

	CenterHz int64
	TXGainDB float64
	RXGainDB float64
	TXPort   string
	RXPort   string
	TXAnt    string
	RXAnt    string

	PulseLenUS     int64
	PulseSpacingMS int64
	MaxAgeS        int64
	GPSPPS         bool

	SampleRate int64
	IntervalUS int64

	Simulate     bool
	FixturesPath string

	OutputFile   string
	SqlitePath   string
	DebugPlotDir string
	Verbose      bool
}

// NewConfig returns a Config with the interrogator's field deployment defaults.
func NewConfig() *Config {
	return &Config{
		CenterHz:       915_750_000,
		TXGainDB:       75.0,
		RXGainDB:       75.0,
		TXPort:         "A:A",
		RXPort:         "A:A",
		TXAnt:          "TX/RX",
		RXAnt:          "RX2",
		PulseLenUS:     20,
		PulseSpacingMS: 25,
		MaxAgeS:        30,
		SampleRate:     3_000_000,
		IntervalUS:     580,
	}
}

// NewConfigFromCLI parses os.Args via the flag package and validates the
// result before returning it.
func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	flag.StringVar(&c.Device, "device", "", "Radio device address or args string (empty selects the default device)")
	flag.Int64Var(&c.CenterHz, "center", c.CenterHz, "Center frequency, in Hz")
	flag.Float64Var(&c.TXGainDB, "tx-gain", c.TXGainDB, "Transmit gain, in dB")
	flag.Float64Var(&c.RXGainDB, "rx-gain", c.RXGainDB, "Receive gain, in dB")
	flag.StringVar(&c.TXPort, "tx-port", c.TXPort, "Transmit daughterboard:port spec")
	flag.StringVar(&c.RXPort, "rx-port", c.RXPort, "Receive daughterboard:port spec")
	flag.StringVar(&c.TXAnt, "tx-ant", c.TXAnt, "Transmit antenna port")
	flag.StringVar(&c.RXAnt, "rx-ant", c.RXAnt, "Receive antenna port")
	flag.Int64Var(&c.PulseLenUS, "pulse-len", c.PulseLenUS, "Activation pulse length, in microseconds")
	flag.Int64Var(&c.PulseSpacingMS, "pulse-spacing", c.PulseSpacingMS, "Interrogation cadence, in milliseconds")
	flag.Int64Var(&c.MaxAgeS, "max-age", c.MaxAgeS, "Maximum time since a hypothesis's last accumulation before it is reaped, in seconds")
	flag.BoolVar(&c.GPSPPS, "gps-pps", false, "Discipline the radio clock from a GPS PPS input")
	flag.Int64Var(&c.SampleRate, "sample-rate", c.SampleRate, "Receive sample rate, in samples/sec")
	flag.Int64Var(&c.IntervalUS, "interval", c.IntervalUS, "Receive capture window length, in microseconds")
	flag.BoolVar(&c.Simulate, "simulate", false, "Run against an in-process simulated radio instead of real hardware")
	flag.StringVar(&c.FixturesPath, "fixtures", "", "YAML file of simulated transponder replies (requires --simulate)")
	flag.StringVar(&c.SqlitePath, "sqlite", "", "Also record decoded passes to this SQLite database")
	flag.StringVar(&c.DebugPlotDir, "debug-plot", "", "Write a waterfall PNG per decoded pass to this directory")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable debug-level logging")
	flag.Parse()

	c.OutputFile = flag.Arg(0)

	var err error
	switch {
	case c.OutputFile == "":
		err = errors.New("output file is required")
	case c.CenterHz <= 0:
		err = errors.New("center frequency must be positive")
	case c.PulseLenUS <= 0:
		err = errors.New("pulse length must be positive")
	case c.PulseSpacingMS <= 0:
		err = errors.New("pulse spacing must be positive")
	case c.PulseLenUS >= c.PulseSpacingMS*1000:
		err = fmt.Errorf("pulse length %dus does not fit inside pulse spacing %dms", c.PulseLenUS, c.PulseSpacingMS)
	case c.MaxAgeS <= 0:
		err = errors.New("max age must be positive")
	case c.SampleRate <= 0:
		err = errors.New("sample rate must be positive")
	case c.IntervalUS <= 0:
		err = errors.New("interval must be positive")
	case !c.Simulate && c.FixturesPath != "":
		err = errors.New("fixtures file only applies with --simulate")
	}
	if err != nil {
		flag.Usage()
		return nil, err
	}

	return c, nil
}
