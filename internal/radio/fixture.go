package radio

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/pvachon/zepassd/internal/dsp"
)

// fixtureField mirrors the frame layout internal/pass decodes, duplicated
// here (rather than exported from pass) since it's a wire-format constant,
// not an implementation detail of the decoder.
type fixtureField struct{ start, length int }

var (
	fixtureFieldHeader    = fixtureField{0, 3}
	fixtureFieldTagType   = fixtureField{3, 3}
	fixtureFieldAppID     = fixtureField{6, 3}
	fixtureFieldGroupID   = fixtureField{9, 7}
	fixtureFieldAgencyID  = fixtureField{16, 7}
	fixtureFieldSerialNum = fixtureField{23, 24}
)

// TagFixture describes one simulated transponder: its identity fields and
// the frequency offset, relative to the radio's center frequency, its
// reply rides on.
type TagFixture struct {
	Header       uint64  `yaml:"header"`
	TagType      uint64  `yaml:"tagType"`
	AppID        uint64  `yaml:"appId"`
	GroupID      uint64  `yaml:"groupId"`
	AgencyID     uint64  `yaml:"agencyId"`
	SerialNumber uint64  `yaml:"serialNum"`
	FreqOffsetHz float64 `yaml:"freqOffsetHz"`
}

// FixtureSet is the top-level document loaded from a simulated-radio
// fixture file: a list of tags that reply on every interrogation.
type FixtureSet struct {
	Tags []TagFixture `yaml:"tags"`
}

// LoadFixtures parses a YAML fixture document describing the simulated
// transponders a Simulated radio should reply with.
func LoadFixtures(r io.Reader) (*FixtureSet, error) {
	var fs FixtureSet
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&fs); err != nil {
		return nil, fmt.Errorf("radio: decoding fixture set: %w", err)
	}
	return &fs, nil
}

// frameBits packs the tag's identity fields into a 256-bit frame, including
// the trailing CRC-16 that makes the whole frame validate.
func (f TagFixture) frameBits() []int {
	bits := make([]int, 256)
	setField := func(fld fixtureField, value uint64) {
		for i := 0; i < fld.length; i++ {
			bits[fld.start+i] = int((value >> (fld.length - 1 - i)) & 1)
		}
	}

	setField(fixtureFieldHeader, f.Header)
	setField(fixtureFieldTagType, f.TagType)
	setField(fixtureFieldAppID, f.AppID)
	setField(fixtureFieldGroupID, f.GroupID)
	setField(fixtureFieldAgencyID, f.AgencyID)
	setField(fixtureFieldSerialNum, f.SerialNumber)

	crc := dsp.CRC16(dsp.PackBitsMSBFirst(bits[:240]))
	for i := 0; i < 16; i++ {
		bits[240+i] = int((crc >> (15 - i)) & 1)
	}
	return bits
}
