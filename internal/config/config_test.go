package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFixture(t *testing.T) {
	t.Setenv("DATA_SOURCE", "fixture")
	t.Setenv("FIXTURE_PATH", "testdata/pool.yaml")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("TRACK_IDENTITY", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")

	require.NoError(t, LoadConfig())
	assert.Equal(t, DataSourceFixture, DataSource)
	assert.Equal(t, "testdata/pool.yaml", FixturePath)
	assert.Equal(t, 30*time.Second, Parameters().PollInterval)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", TrackIdentity)
	assert.Equal(t, "8080", WebPort)
}

func TestLoadConfigPostgres(t *testing.T) {
	t.Setenv("DATA_SOURCE", "postgres")
	t.Setenv("DB_USER", "indexer")
	t.Setenv("DB_NAME", "globalpool")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("TRACK_IDENTITY", "")
	t.Setenv("POLL_INTERVAL", "")

	require.NoError(t, LoadConfig())
	assert.Equal(t, "localhost", DBHost)
	assert.Equal(t, 6543, DBPort)
	assert.Equal(t, "disable", DBSSLMode)
	assert.Equal(t, DefaultParameters.PollInterval, Parameters().PollInterval)
	assert.Empty(t, TrackIdentity)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown source", map[string]string{"DATA_SOURCE": "mongo"}},
		{"fixture without path", map[string]string{"DATA_SOURCE": "fixture"}},
		{"postgres without user", map[string]string{"DATA_SOURCE": "postgres", "DB_NAME": "x"}},
		{"bad port", map[string]string{"DATA_SOURCE": "postgres", "DB_USER": "u", "DB_NAME": "x", "DB_PORT": "abc"}},
		{"bad interval", map[string]string{"DATA_SOURCE": "fixture", "FIXTURE_PATH": "f", "POLL_INTERVAL": "-1s"}},
		{"bad identity", map[string]string{"DATA_SOURCE": "fixture", "FIXTURE_PATH": "f", "TRACK_IDENTITY": "bob"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"DATA_SOURCE", "FIXTURE_PATH", "DB_USER", "DB_NAME", "DB_PORT", "POLL_INTERVAL", "TRACK_IDENTITY"} {
				t.Setenv(key, tt.env[key])
			}
			assert.Error(t, LoadConfig())
		})
	}
}

func TestDefaultParametersExposeOnlyTunables(t *testing.T) {
	raw, err := json.Marshal(DefaultParameters)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "tier_count")
	assert.Equal(t, "1.0001", fields["tick_base"])
	assert.Equal(t, 10.0, fields["share_value"])
}
