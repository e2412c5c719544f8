package logging

import (
	"context"
	"log/slog"
	"maps"
	"sync"
)

// Output names a destination of the fan-out handler.
type Output struct {
	Name    string
	Handler slog.Handler
}

// failureCounts is shared by a MultiHandler and every handler derived from it.
type failureCounts struct {
	mu sync.Mutex
	n  map[string]uint64
}

func (f *failureCounts) add(name string) {
	f.mu.Lock()
	f.n[name]++
	f.mu.Unlock()
}

// MultiHandler fans each record out to the console, file, Graylog and OTel
// outputs. A failing output does not keep the record from the others; its
// failures are counted by output name instead, since logging must never
// interrupt playback.
type MultiHandler struct {
	outputs  []Output
	failures *failureCounts
}

// NewMultiHandler creates a handler writing to every output with a handler.
func NewMultiHandler(outputs ...Output) *MultiHandler {
	valid := make([]Output, 0, len(outputs))
	for _, o := range outputs {
		if o.Handler != nil {
			valid = append(valid, o)
		}
	}
	return &MultiHandler{
		outputs:  valid,
		failures: &failureCounts{n: make(map[string]uint64)},
	}
}

// Enabled reports whether any output takes records at level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, o := range m.outputs {
		if o.Handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends the record to every enabled output.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, o := range m.outputs {
		if !o.Handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := o.Handler.Handle(ctx, r.Clone()); err != nil {
			m.failures.add(o.Name)
		}
	}
	return nil
}

// Failures returns the number of failed writes per output name.
func (m *MultiHandler) Failures() map[string]uint64 {
	m.failures.mu.Lock()
	defer m.failures.mu.Unlock()
	return maps.Clone(m.failures.n)
}

func (m *MultiHandler) derive(f func(slog.Handler) slog.Handler) *MultiHandler {
	outputs := make([]Output, len(m.outputs))
	for i, o := range m.outputs {
		outputs[i] = Output{Name: o.Name, Handler: f(o.Handler)}
	}
	return &MultiHandler{outputs: outputs, failures: m.failures}
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}
