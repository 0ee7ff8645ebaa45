package radio

import (
	"context"
	"strings"
	"testing"

	"github.com/pvachon/zepassd/internal/dsp"
	"github.com/pvachon/zepassd/internal/fft"
)

func testConfig() Config {
	return Config{
		Device:         "sim0",
		CenterHz:       915_750_000,
		TXGain:         75,
		RXGain:         75,
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

func TestConfigValidateRejectsPulseLongerThanSpacing(t *testing.T) {
	cfg := testConfig()
	cfg.PulseLenUS = 25_001
	cfg.PulseSpacingMS = 25
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted a pulse longer than its own spacing")
	}
}

func TestConfigValidateAcceptsDefaults(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Errorf("Validate() on default config: %v", err)
	}
}

func TestSimulatedArmAndFireProducesDetectablePeak(t *testing.T) {
	cfg := testConfig()
	s := NewSimulated(WithSeed(42), WithFixtures([]TagFixture{
		{Header: 5, TagType: 2, GroupID: 0x12, AgencyID: 0x34, SerialNumber: 0x5678AB, FreqOffsetHz: 250_000},
	}))
	if err := s.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	m := dsp.IntervalSamples(cfg.SampleRate, cfg.IntervalUS)
	n := int(dsp.NextPowerOfTwo(uint64(m)))
	target := make([]complex128, m)

	if _, err := s.ArmAndFire(context.Background(), target, 25_000); err != nil {
		t.Fatalf("ArmAndFire: %v", err)
	}

	plan, err := fft.NewPlan(n)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	freqVec := make([]complex128, n)
	if err := plan.Transform(target, freqVec); err != nil {
		t.Fatalf("Transform: %v", err)
	}

	var maxMag float64
	var maxBin int
	for i, v := range freqVec {
		if mag := dsp.Magnitude(v); mag > maxMag {
			maxMag = mag
			maxBin = i
		}
	}
	// A real carrier riding on top of low-amplitude noise must dominate the
	// spectrum; this is a coarse "did a peak appear at all" smoke test, the
	// registry/pass package tests cover the actual decode path precisely.
	if maxMag < 50 {
		t.Errorf("max spectral magnitude = %f, want a clearly dominant peak", maxMag)
	}

	physicalBin := fft.PhysicalBin(maxBin, n)
	gotOffsetHz := fft.BinFrequency(physicalBin, n, cfg.SampleRate)
	binWidthHz := float64(cfg.SampleRate) / float64(n)
	const wantOffsetHz = 250_000.0
	if delta := gotOffsetHz - wantOffsetHz; delta < -binWidthHz || delta > binWidthHz {
		t.Errorf("peak landed at offset %g Hz, want within %g Hz of +%g Hz (a tag's reply is a positive-frequency tone, not a negative one)", gotOffsetHz, binWidthHz, wantOffsetHz)
	}
}

func TestSimulatedArmAndFireAdvancesClock(t *testing.T) {
	cfg := testConfig()
	s := NewSimulated(WithSeed(1))
	if err := s.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	target := make([]complex128, dsp.IntervalSamples(cfg.SampleRate, cfg.IntervalUS))
	at1, err := s.ArmAndFire(context.Background(), target, 25_000)
	if err != nil {
		t.Fatalf("ArmAndFire: %v", err)
	}
	at2, err := s.ArmAndFire(context.Background(), target, 25_000)
	if err != nil {
		t.Fatalf("ArmAndFire: %v", err)
	}
	if at2 <= at1 {
		t.Errorf("clock did not advance: at1=%d at2=%d", at1, at2)
	}
}

func TestSimulatedArmAndFireRejectsCanceledContext(t *testing.T) {
	s := NewSimulated()
	if err := s.Configure(testConfig()); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := make([]complex128, 16)
	if _, err := s.ArmAndFire(ctx, target, 25_000); err == nil {
		t.Error("ArmAndFire on a canceled context returned nil error")
	}
}

func TestLoadFixturesParsesYAML(t *testing.T) {
	doc := `
tags:
  - header: 5
    tagType: 2
    groupId: 18
    agencyId: 52
    serialNum: 5666987
    freqOffsetHz: 250000
`
	fs, err := LoadFixtures(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFixtures: %v", err)
	}
	if len(fs.Tags) != 1 {
		t.Fatalf("got %d tags, want 1", len(fs.Tags))
	}
	tag := fs.Tags[0]
	if tag.Header != 5 || tag.GroupID != 18 || tag.SerialNumber != 5666987 || tag.FreqOffsetHz != 250_000 {
		t.Errorf("unexpected fixture: %+v", tag)
	}
}
