package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// headerLayoutFixture describes one field of the transport header's fixed
// byte layout, so the layout itself can be pinned with a YAML fixture
// instead of a long list of individual assert calls, the way bird's config
// tests pin expected parses against inline YAML.
type headerLayoutFixture struct {
	Field  string `yaml:"field"`
	Offset int32  `yaml:"offset"`
}

const headerLayoutGolden = `
- field: transport_version
  offset: 0
- field: total_bytes
  offset: 4
- field: schema_hash
  offset: 8
- field: base_timestamp
  offset: 40
- field: last_changelog_id
  offset: 48
- field: last_update_age_ms
  offset: 52
`

func TestHeaderLayoutMatchesGoldenFixture(t *testing.T) {
	var want []headerLayoutFixture
	require.NoError(t, yaml.Unmarshal([]byte(headerLayoutGolden), &want))

	got := []headerLayoutFixture{
		{Field: "transport_version", Offset: offsetTransportVersion},
		{Field: "total_bytes", Offset: offsetTotalBytes},
		{Field: "schema_hash", Offset: offsetSchemaHash},
		{Field: "base_timestamp", Offset: offsetBaseTimestamp},
		{Field: "last_changelog_id", Offset: offsetLastChangelogID},
		{Field: "last_update_age_ms", Offset: offsetLastUpdateAgeMs},
	}

	require.Equal(t, want, got)
	require.LessOrEqual(t, offsetLastUpdateAgeMs+4, HeaderByteCount)
}
