package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/seatrack/gpxplayer/internal/config"
	"github.com/seatrack/gpxplayer/internal/logging"
	intOtel "github.com/seatrack/gpxplayer/internal/otel"
	"github.com/seatrack/gpxplayer/internal/storage"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const (
	appName        = "gpxplayer"
	configFileHint = config.FileName
)

// runtime holds the ambient services shared by all commands.
type runtime struct {
	start   time.Time
	slog    *logging.SlogManager
	logger  *slog.Logger
	zlog    zerolog.Logger
	logFile *os.File
	otel    *intOtel.Provider
	closers []io.Closer
}

// newRuntime loads the config and sets up logging. Long running commands
// log to a per-run file in logsDir; short ones log to the console only.
// session tags exported OTel records and may be empty.
func newRuntime(toFile bool, state logging.PlaybackState, session string) (*runtime, error) {
	rt := &runtime{
		start: time.Now(),
		slog:  logging.NewSlogManager(),
	}
	rt.slog.Setup(nil, "info", nil)
	rt.logger = rt.slog.Logger()

	if err := config.Load(configDir); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		config.LoadDefaults()
		rt.logger.Debug("No config file found, using defaults", "dir", configDir)
	}
	if logLevel != "" {
		viper.Set("logLevel", logLevel)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	level := viper.GetString("logLevel")

	out := logging.Outputs{}
	var zw io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	if toFile {
		logsDir := viper.GetString("logsDir")
		if err := os.MkdirAll(logsDir, 0o755); err != nil {
			return nil, fmt.Errorf("create logs dir: %w", err)
		}
		path := logging.LogFilePath(logsDir, appName, rt.start)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		rt.logFile = f
		out.File = f
		zw = zerolog.MultiLevelWriter(
			zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
			zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339, NoColor: true},
		)

		otelCfg := config.GetOTelConfig()
		if otelCfg.Enabled {
			p, err := intOtel.New(intOtel.Config{
				Enabled:      otelCfg.Enabled,
				ServiceName:  otelCfg.ServiceName,
				Version:      Version,
				Session:      session,
				Resolution:   config.GetPlaybackConfig().Resolution,
				BatchTimeout: otelCfg.BatchTimeout,
				LogWriter:    f,
				Endpoint:     otelCfg.Endpoint,
				Insecure:     otelCfg.Insecure,
			})
			if err != nil {
				rt.logger.Error("Failed to initialize OTel provider", "error", err)
			} else {
				rt.otel = p
			}
		}
	}

	gl := config.GetGraylogConfig()
	if gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address, appName)
		if err != nil {
			rt.logger.Error("Failed to connect to Graylog", "address", gl.Address, "error", err)
		} else {
			out.Graylog = w
			rt.closers = append(rt.closers, w)
		}
	}

	var provider *sdklog.LoggerProvider
	if rt.otel != nil {
		provider = rt.otel.LoggerProvider()
	}
	out.Provider = provider

	if state != nil {
		rt.slog.Context = logging.PlaybackContext(state)
	}
	rt.slog.SetupOutputs(out, level)
	rt.logger = rt.slog.Logger()

	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	zl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || zl == zerolog.NoLevel {
		zl = zerolog.InfoLevel
	}
	rt.zlog = zerolog.New(zw).Level(zl).With().Timestamp().Logger()

	if rt.logFile != nil {
		rt.logger.Info("Logging to file", "path", rt.logFile.Name())
	}
	return rt, nil
}

// openStore creates and initializes the configured track store.
func (rt *runtime) openStore() (storage.Backend, error) {
	backend, err := storage.NewBackend(config.GetStorageConfig(), config.GetDBConfig(), rt.logger, rt.zlog)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	rt.logger.Debug("Storage backend initialized", "type", config.GetStorageConfig().Type)
	return backend, nil
}

// Close flushes telemetry and closes log outputs.
func (rt *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for name, n := range rt.slog.OutputFailures() {
		fmt.Fprintf(os.Stderr, "log output %s: %d failed writes\n", name, n)
	}
	if err := rt.slog.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flush logs: %v\n", err)
	}
	if rt.otel != nil {
		if err := rt.otel.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown otel: %v\n", err)
		}
	}
	for _, c := range rt.closers {
		_ = c.Close()
	}
	if rt.logFile != nil {
		_ = rt.logFile.Close()
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}

// parseTime accepts RFC 3339 with or without fractional seconds.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, want RFC 3339 like 2024-06-15T14:00:00Z", s)
	}
	return t, nil
}
