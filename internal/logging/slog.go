package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// console is where logs go when no file is configured.
var console io.Writer = os.Stdout

// SlogManager manages slog-based logging with optional OTel and Graylog output.
type SlogManager struct {
	logger *slog.Logger
	fanout *MultiHandler

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider

	// Context supplies live attributes (playhead, state) appended to every record.
	// Set it before Setup.
	Context ContextProvider
}

// Outputs lists the destinations a SlogManager fans out to.
// A nil File sends text logs to stdout instead.
type Outputs struct {
	File     io.Writer
	Graylog  io.Writer
	Provider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(lvl slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}
}

// Setup initializes the logging system with file and optional OTel output.
// If provider is nil, OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	m.SetupOutputs(Outputs{File: file, Provider: provider}, level)
}

// SetupOutputs replaces the current logger with one writing to every configured output.
func (m *SlogManager) SetupOutputs(out Outputs, level string) {
	lvl := parseLevel(level)
	opts := handlerOptions(lvl)
	m.logProvider = out.Provider

	var outputs []Output

	if out.File != nil {
		outputs = append(outputs, Output{Name: "file", Handler: slog.NewTextHandler(out.File, opts)})
	} else {
		outputs = append(outputs, Output{Name: "console", Handler: slog.NewTextHandler(console, opts)})
	}

	// GELF writer expects one JSON document per write
	if out.Graylog != nil {
		outputs = append(outputs, Output{Name: "graylog", Handler: slog.NewJSONHandler(out.Graylog, opts)})
	}

	if out.Provider != nil {
		otelHandler := otelslog.NewHandler("gpxplayer", otelslog.WithLoggerProvider(out.Provider))
		outputs = append(outputs, Output{Name: "otel", Handler: otelHandler})
	}

	m.fanout = NewMultiHandler(outputs...)
	var handler slog.Handler = m.fanout
	if m.Context != nil {
		handler = NewContextHandler(handler, m.Context)
	}

	m.logger = slog.New(handler)
	m.logger.Debug("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// OutputFailures returns failed writes per output since the last setup.
func (m *SlogManager) OutputFailures() map[string]uint64 {
	if m.fanout == nil {
		return nil
	}
	return m.fanout.Failures()
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog writes a log entry with the specified component, message and level.
func (m *SlogManager) WriteLog(component, data, level string) {
	if m.logger == nil {
		return
	}

	switch parseLevel(level) {
	case slog.LevelDebug:
		m.logger.Debug(data, "component", component)
	case slog.LevelWarn:
		m.logger.Warn(data, "component", component)
	case slog.LevelError:
		m.logger.Error(data, "component", component)
	default:
		m.logger.Info(data, "component", component)
	}
}
