package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"playback": { "resolution": 500, "endPolicy": "loop" },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, 500, viper.GetInt("playback.resolution"))
	assert.Equal(t, "loop", viper.GetString("playback.endPolicy"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./gpxlogs", viper.GetString("logsDir"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "gpxplayer", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./tracks", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "gpxplayer", viper.GetString("otel.serviceName"))
	assert.Equal(t, "127.0.0.1:8099", viper.GetString("stream.listen"))

	assert.NoError(t, Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	var notFound viper.ConfigFileNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("GPXPLAYER_PLAYBACK_ENDPOLICY", "rewind")

	LoadDefaults()

	assert.Equal(t, "rewind", GetPlaybackConfig().EndPolicy)
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetPlaybackConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetPlaybackConfig()
	assert.Equal(t, 1000, cfg.Resolution)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, "stop", cfg.EndPolicy)
	assert.Equal(t, "cursor", cfg.Sampler)
	assert.Equal(t, 1.0, cfg.Speed)
	assert.True(t, cfg.RaceStart.IsZero())
	assert.Equal(t, 60, cfg.TrailLength)

	assert.Equal(t, 12.0, GetTracksConfig().MaxSpeedKnots)
}

func TestGetPlaybackConfig_RaceStart(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"playback": {"raceStart": "2024-06-15T14:00:00+02:00"}}`)))

	cfg := GetPlaybackConfig()
	assert.True(t, cfg.RaceStart.Equal(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)))
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "path": "/tmp/tracks.db" }
		}
	}`)
	require.NoError(t, Load(dir))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, "/tmp/tracks.db", sc.SQLite.Path)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4318",
			"insecure": false
		}
	}`)
	require.NoError(t, Load(dir))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4318", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetOverlayConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	oc := GetOverlayConfig()
	assert.False(t, oc.Enabled)
	assert.Equal(t, time.Hour, oc.CacheTTL)
	assert.Equal(t, 5*time.Second, oc.Timeout)
	assert.Equal(t, time.Hour, oc.Step)
}

func TestGetRelayConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"relay": {"enabled": true, "serverUrl": "https://race.example", "apiKey": "k"}}`)))

	rc := GetRelayConfig()
	assert.True(t, rc.Enabled)
	assert.Equal(t, "https://race.example", rc.ServerURL)
	assert.Equal(t, "k", rc.APIKey)
	assert.NoError(t, Validate())
}

func TestGetStreamConfig_AllowedOrigins(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"stream": {"allowedOrigins": ["https://regatta.example"]}}`)))

	sc := GetStreamConfig()
	assert.Equal(t, []string{"https://regatta.example"}, sc.AllowedOrigins)
	assert.Equal(t, "/ws", sc.Path)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		section string
	}{
		{"bad end policy", `{"playback": {"endPolicy": "bounce"}}`, "playback"},
		{"bad sampler", `{"playback": {"sampler": "magic"}}`, "playback"},
		{"zero resolution", `{"playback": {"resolution": 0}}`, "playback"},
		{"negative max speed", `{"tracks": {"maxSpeedKnots": -1}}`, "tracks"},
		{"bad storage", `{"storage": {"type": "mongo"}}`, "storage"},
		{"influx without bucket", `{"influx": {"enabled": true, "bucket": ""}}`, "influx"},
		{"stream path", `{"stream": {"path": "ws"}}`, "stream"},
		{"relay without url", `{"relay": {"enabled": true}}`, "relay"},
		{"postgres without host", `{"storage": {"type": "postgres"}, "db": {"host": ""}}`, "db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			require.NoError(t, Load(writeConfig(t, tt.content)))

			err := Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid "+tt.section+" config")
		})
	}
}
