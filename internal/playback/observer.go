package playback

import (
	"context"
	"time"
)

// Observer is notified of every change of the authoritative instant.
// It runs inline on the playback tick and must not block. Seek, Play, Pause
// and the read accessors may be called from an observer; an instant set by a
// nested Seek is delivered once the current notification finishes.
type Observer interface {
	OnTimeChange(ctx context.Context, instant time.Time) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, instant time.Time) error

// OnTimeChange calls f(ctx, instant).
func (f ObserverFunc) OnTimeChange(ctx context.Context, instant time.Time) error {
	return f(ctx, instant)
}

type registered struct {
	name string
	obs  Observer
}
