package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "gpxplayer.cfg.json"

// PlaybackConfig holds the playhead and tick settings
type PlaybackConfig struct {
	Resolution   int           `json:"resolution" mapstructure:"resolution" validate:"gt=0"`
	TickInterval time.Duration `json:"tickInterval" mapstructure:"tickInterval" validate:"gt=0"`
	EndPolicy    string        `json:"endPolicy" mapstructure:"endPolicy" validate:"oneof=stop rewind loop"`
	Sampler      string        `json:"sampler" mapstructure:"sampler" validate:"oneof=cursor binary linear"`
	Speed        float64       `json:"speed" mapstructure:"speed" validate:"gt=0"`
	RaceStart    time.Time     `json:"raceStart" mapstructure:"raceStart"`
	TrailLength  int           `json:"trailLength" mapstructure:"trailLength" validate:"gte=0"`
}

// TracksConfig holds metric derivation settings
type TracksConfig struct {
	MaxSpeedKnots float64 `json:"maxSpeedKnots" mapstructure:"maxSpeedKnots" validate:"gte=0"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir" validate:"required"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path" validate:"required"`
}

// StorageConfig selects and configures the track store
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type" validate:"oneof=memory sqlite postgres"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host" validate:"required"`
	Port     string `json:"port" mapstructure:"port" validate:"required"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database" validate:"required"`
	SSLMode  string `json:"sslMode" mapstructure:"sslMode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

// InfluxConfig holds InfluxDB frame sink settings
type InfluxConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Host      string `json:"host" mapstructure:"host" validate:"required_if=Enabled true"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol" validate:"oneof=http https"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket" validate:"required_if=Enabled true"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// GraylogConfig holds GELF logging settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address" validate:"required_if=Enabled true"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// StreamConfig holds the websocket control surface settings
type StreamConfig struct {
	Listen string `json:"listen" mapstructure:"listen" validate:"required"`
	Path   string `json:"path" mapstructure:"path" validate:"startswith=/"`
	// AllowedOrigins restricts browser clients; empty accepts any origin.
	AllowedOrigins []string `json:"allowedOrigins" mapstructure:"allowedOrigins"`
}

// RelayConfig holds the remote websocket frame relay settings
type RelayConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl" validate:"required_if=Enabled true"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// OverlayConfig holds the per-instant overlay loader settings
type OverlayConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Dir      string        `json:"dir" mapstructure:"dir" validate:"required_if=Enabled true"`
	CacheDir string        `json:"cacheDir" mapstructure:"cacheDir"`
	CacheTTL time.Duration `json:"cacheTTL" mapstructure:"cacheTTL" validate:"gte=0"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout" validate:"gt=0"`
	Step     time.Duration `json:"step" mapstructure:"step" validate:"gt=0"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
// Environment variables prefixed GPXPLAYER_ override file values.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// LoadDefaults applies defaults and environment overrides without a config file.
func LoadDefaults() {
	setDefaults()
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./gpxlogs")

	viper.SetDefault("playback.resolution", 1000)
	viper.SetDefault("playback.tickInterval", "100ms")
	viper.SetDefault("playback.endPolicy", "stop")
	viper.SetDefault("playback.sampler", "cursor")
	viper.SetDefault("playback.speed", 1.0)
	viper.SetDefault("playback.raceStart", "")
	viper.SetDefault("playback.trailLength", 60)

	viper.SetDefault("tracks.maxSpeedKnots", 12.0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./tracks")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./tracks.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "gpxplayer")
	viper.SetDefault("db.sslMode", "disable")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "gpxplayer")
	viper.SetDefault("influx.bucket", "playback")
	viper.SetDefault("influx.backupDir", "./gpxlogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "gpxplayer")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("stream.listen", "127.0.0.1:8099")
	viper.SetDefault("stream.path", "/ws")
	viper.SetDefault("stream.allowedOrigins", []string{})

	viper.SetDefault("relay.enabled", false)
	viper.SetDefault("relay.serverUrl", "")
	viper.SetDefault("relay.apiKey", "")

	viper.SetDefault("overlay.enabled", false)
	viper.SetDefault("overlay.dir", "./overlays")
	viper.SetDefault("overlay.cacheDir", "")
	viper.SetDefault("overlay.cacheTTL", "1h")
	viper.SetDefault("overlay.timeout", "5s")
	viper.SetDefault("overlay.step", "1h")

	viper.SetEnvPrefix("GPXPLAYER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetPlaybackConfig returns the playback configuration.
// An unparsable race start is treated as unset.
func GetPlaybackConfig() PlaybackConfig {
	cfg := PlaybackConfig{
		Resolution:   viper.GetInt("playback.resolution"),
		TickInterval: viper.GetDuration("playback.tickInterval"),
		EndPolicy:    viper.GetString("playback.endPolicy"),
		Sampler:      viper.GetString("playback.sampler"),
		Speed:        viper.GetFloat64("playback.speed"),
		TrailLength:  viper.GetInt("playback.trailLength"),
	}
	if s := viper.GetString("playback.raceStart"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			cfg.RaceStart = t
		}
	}
	return cfg
}

// GetTracksConfig returns the metric derivation configuration.
func GetTracksConfig() TracksConfig {
	return TracksConfig{
		MaxSpeedKnots: viper.GetFloat64("tracks.maxSpeedKnots"),
	}
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
	}
}

// GetDBConfig returns the Postgres connection configuration.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
		SSLMode:  viper.GetString("db.sslMode"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetGraylogConfig returns the GELF logging configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetStreamConfig returns the websocket configuration.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Listen: viper.GetString("stream.listen"),
		Path:   viper.GetString("stream.path"),

		AllowedOrigins: viper.GetStringSlice("stream.allowedOrigins"),
	}
}

// GetRelayConfig returns the frame relay configuration.
func GetRelayConfig() RelayConfig {
	return RelayConfig{
		Enabled:   viper.GetBool("relay.enabled"),
		ServerURL: viper.GetString("relay.serverUrl"),
		APIKey:    viper.GetString("relay.apiKey"),
	}
}

// GetOverlayConfig returns the overlay loader configuration.
func GetOverlayConfig() OverlayConfig {
	return OverlayConfig{
		Enabled:  viper.GetBool("overlay.enabled"),
		Dir:      viper.GetString("overlay.dir"),
		CacheDir: viper.GetString("overlay.cacheDir"),
		CacheTTL: viper.GetDuration("overlay.cacheTTL"),
		Timeout:  viper.GetDuration("overlay.timeout"),
		Step:     viper.GetDuration("overlay.step"),
	}
}

// Validate checks every section of the loaded configuration.
// Postgres settings are only checked when the postgres store is selected.
func Validate() error {
	v := validator.New()

	type section struct {
		name string
		cfg  any
	}
	sections := []section{
		{"playback", GetPlaybackConfig()},
		{"tracks", GetTracksConfig()},
		{"storage", GetStorageConfig()},
		{"influx", GetInfluxConfig()},
		{"graylog", GetGraylogConfig()},
		{"stream", GetStreamConfig()},
		{"relay", GetRelayConfig()},
		{"overlay", GetOverlayConfig()},
	}
	if GetStorageConfig().Type == "postgres" {
		sections = append(sections, section{"db", GetDBConfig()})
	}

	for _, s := range sections {
		if err := v.Struct(s.cfg); err != nil {
			return fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}
	return nil
}
