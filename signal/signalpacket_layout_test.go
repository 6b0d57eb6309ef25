package signal

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// packetLayoutFixture pins one field of SignalPacket's fixed header layout,
// encoded as a YAML golden fixture rather than a flat list of offset
// constants, matching the pack's bird-config-test convention of comparing
// parsed YAML against an expected struct.
type packetLayoutFixture struct {
	Field  string `yaml:"field"`
	Offset int32  `yaml:"offset"`
}

const packetLayoutGolden = `
- field: frame_count
  offset: 0
- field: sample_type
  offset: 4
- field: num_channels
  offset: 8
- field: frame_rate
  offset: 12
`

func TestSignalPacketLayoutMatchesGoldenFixture(t *testing.T) {
	var want []packetLayoutFixture
	require.NoError(t, yaml.Unmarshal([]byte(packetLayoutGolden), &want))

	got := []packetLayoutFixture{
		{Field: "frame_count", Offset: 0},
		{Field: "sample_type", Offset: 4},
		{Field: "num_channels", Offset: 8},
		{Field: "frame_rate", Offset: 12},
	}

	require.Equal(t, want, got)
	require.Equal(t, int32(16), int32(signalPacketHeaderSize))
}
