package radio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/pvachon/zepassd/internal/dsp"
)

// activeTag is a TagFixture with its frame pre-encoded into an amplitude
// envelope, so ArmAndFire doesn't rebuild it on every capture.
type activeTag struct {
	fixture  TagFixture
	envelope []float64
}

// Simulated is a deterministic, in-process Radio for local development,
// demos and integration tests, standing in for a real UHD/USRP backend
// behind the same Radio interface. It lets a configurable set of TagFixture
// replies ride on top of the noise floor and advances its clock by the
// hardware's pulse and receive timing. It does not synthesize the
// activation pulse itself; TXFreqOffsetHz and TXAmplitude are not used.
type Simulated struct {
	cfg Config

	tags []activeTag

	noiseFloor float64
	rng        *rand.Rand

	clockUS int64
	logger  *slog.Logger
}

// SimulatedOption configures a Simulated radio at construction time.
type SimulatedOption func(*Simulated)

// WithFixtures loads the given tags as simulated transponder replies.
func WithFixtures(tags []TagFixture) SimulatedOption {
	return func(s *Simulated) {
		for _, tag := range tags {
			s.tags = append(s.tags, activeTag{fixture: tag})
		}
	}
}

// WithNoiseFloor sets the amplitude of the simulated receiver noise floor.
func WithNoiseFloor(amplitude float64) SimulatedOption {
	return func(s *Simulated) {
		s.noiseFloor = amplitude
	}
}

// WithSeed makes the simulated noise deterministic, for reproducible tests.
func WithSeed(seed int64) SimulatedOption {
	return func(s *Simulated) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithSimulatedLogger attaches a structured logger.
func WithSimulatedLogger(logger *slog.Logger) SimulatedOption {
	return func(s *Simulated) {
		s.logger = logger
	}
}

// NewSimulated creates a Simulated radio. It must still be Configure()d
// before ArmAndFire will produce correctly shaped captures.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		noiseFloor: 0.05,
		rng:        rand.New(rand.NewSource(1)),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configure validates cfg and pre-encodes every fixture's frame into an
// amplitude envelope at the configured sample rate's symbol duration.
func (s *Simulated) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg

	samplesPerBit := dsp.SamplesPerBit(cfg.SampleRate)
	if samplesPerBit < 2 {
		return fmt.Errorf("radio: sample rate %d is too low to resolve the MFM symbol rate", cfg.SampleRate)
	}

	for i := range s.tags {
		s.tags[i].envelope = buildEnvelope(s.tags[i].fixture.frameBits(), samplesPerBit)
	}
	return nil
}

// ArmAndFire fills target with one simulated receive capture: noise plus
// every active tag's reply, each riding on its own carrier offset exactly
// the way a real transponder's OOK backscatter would appear after the
// front-end's downconversion.
func (s *Simulated) ArmAndFire(ctx context.Context, target []complex128, interPulseSpacingUS int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("radio: arm_and_fire canceled: %w", err)
	}

	deltaT := 1.0 / float64(s.cfg.SampleRate)

	for i := range target {
		target[i] = complex(s.noiseFloor*s.rng.NormFloat64(), s.noiseFloor*s.rng.NormFloat64())
	}

	for _, tag := range s.tags {
		for i := 0; i < len(target) && i < len(tag.envelope); i++ {
			// Positive sign here is deliberate: pass.New's baseband mixer
			// multiplies the capture by exp(-j*2*pi*f*i*deltaT), so a reply
			// actually riding at +FreqOffsetHz is what collapses to DC.
			theta := 2.0 * math.Pi * tag.fixture.FreqOffsetHz * float64(i) * deltaT
			target[i] += complex(tag.envelope[i], 0) * cmplx.Exp(complex(0, theta))
		}
	}

	// The pulse fires spacing-PulseLeadUS after the arm call, and the
	// receive window opens RXSettleUS after the pulse ends.
	s.clockUS += max(interPulseSpacingUS-PulseLeadUS, 0) + s.cfg.PulseLenUS + RXSettleUS
	s.logger.Debug("simulated arm_and_fire capture",
		slog.Int("tags", len(s.tags)),
		slog.Int64("atUS", s.clockUS))

	return s.clockUS, nil
}

// buildEnvelope renders a 256-bit frame into a +/- amplitude MFM envelope
// at samplesPerBit samples per bit: bit 1 is a high->low transition at the
// cell midpoint, bit 0 is low->high, matching the amplitude-slice
// convention internal/pass's decoder expects to recover.
func buildEnvelope(bits []int, samplesPerBit int) []float64 {
	const high, low = 2.0, 0.5

	half := samplesPerBit / 2
	env := make([]float64, 0, samplesPerBit*len(bits))
	for _, b := range bits {
		pre, post := low, high
		if b == 1 {
			pre, post = high, low
		}
		for i := 0; i < half; i++ {
			env = append(env, pre)
		}
		for i := half; i < samplesPerBit; i++ {
			env = append(env, post)
		}
	}
	return env
}
