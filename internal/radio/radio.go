// Package radio defines the Radio interface that drives one arm-and-fire
// cycle of the transponder interrogator: transmit a short activation pulse,
// then receive a fixed-length capture window, returning the wall-clock time
// of the capture. internal/decoder owns the only goroutine that calls it.
package radio

import (
	"context"
	"fmt"
)

const (
	// PulseLeadUS is subtracted from the requested inter-pulse spacing when
	// scheduling the activation pulse: the pulse fires spacing-PulseLeadUS
	// after the arm call (never earlier than the arm call itself).
	PulseLeadUS int64 = 15_000

	// RXSettleUS is the additional settle time after the activation pulse
	// ends before the receive window starts.
	RXSettleUS int64 = 105

	// TXFreqOffsetHz shifts the transmit center frequency away from the
	// receive center frequency to keep the transmitter's spurs clear of the
	// received signal band.
	TXFreqOffsetHz float64 = 200_000

	// TXAmplitude is the constant I/Q amplitude of the activation pulse.
	TXAmplitude complex128 = complex(0.9, 0.9)
)

// Config parameterizes a Radio's front-end tuning and pulse timing.
type Config struct {
	Device string

	CenterHz int64
	TXGain   float64
	RXGain   float64
	TXPort   string
	RXPort   string
	TXAnt    string
	RXAnt    string

	PulseLenUS     int64
	PulseSpacingMS int64
	MaxAgeS        int64

	SampleRate int64
	IntervalUS int64

	GPSPPS bool
}

// Validate checks that Config describes a physically sane capture: positive
// rates, a pulse short enough to fit inside one pulse spacing, and a
// positive interrogation cadence.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("radio: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.IntervalUS <= 0 {
		return fmt.Errorf("radio: interval must be positive, got %d", c.IntervalUS)
	}
	if c.PulseLenUS <= 0 {
		return fmt.Errorf("radio: pulse length must be positive, got %d", c.PulseLenUS)
	}
	if c.PulseSpacingMS <= 0 {
		return fmt.Errorf("radio: pulse spacing must be positive, got %d", c.PulseSpacingMS)
	}
	if c.PulseLenUS >= c.PulseSpacingMS*1000 {
		return fmt.Errorf("radio: pulse length %dus does not fit inside pulse spacing %dms", c.PulseLenUS, c.PulseSpacingMS)
	}
	if c.CenterHz <= 0 {
		return fmt.Errorf("radio: center frequency must be positive, got %d", c.CenterHz)
	}
	return nil
}

// Radio arms the transmitter for one activation pulse, fires it at the
// requested delay, and fills target with the subsequent receive capture.
// ArmAndFire blocks until the capture completes or ctx is canceled, and
// returns the wall-clock time, in microseconds, the capture window began.
type Radio interface {
	Configure(cfg Config) error
	ArmAndFire(ctx context.Context, target []complex128, interPulseSpacingUS int64) (atUS int64, err error)
}
