package stream

import (
	"github.com/seatrack/gpxplayer/internal/dispatcher"
	"github.com/seatrack/gpxplayer/internal/playback"
	"github.com/seatrack/gpxplayer/pkg/streaming"
)

// Status reports the controller state.
func Status(ctl *playback.Controller) streaming.StatusPayload {
	s := streaming.StatusPayload{
		Playing:    ctl.IsPlaying(),
		Position:   ctl.Position(),
		Resolution: ctl.Resolution(),
	}
	if t, err := ctl.Instant(); err == nil {
		s.Instant = t
	}
	return s
}

// RegisterControl registers the playback commands on d. Every command
// replies with the controller status after it ran.
func RegisterControl(d *dispatcher.Dispatcher, ctl *playback.Controller) {
	d.Register(streaming.TypeSeek, func(e dispatcher.Event) (any, error) {
		var p streaming.SeekPayload
		if err := e.Decode(&p); err != nil {
			return nil, err
		}
		if err := ctl.Seek(p.Position); err != nil {
			return nil, err
		}
		return Status(ctl), nil
	}, dispatcher.Logged())

	d.Register(streaming.TypeSeekTime, func(e dispatcher.Event) (any, error) {
		var p streaming.SeekTimePayload
		if err := e.Decode(&p); err != nil {
			return nil, err
		}
		if err := ctl.SeekTime(p.Time); err != nil {
			return nil, err
		}
		return Status(ctl), nil
	}, dispatcher.Logged())

	d.Register(streaming.TypePlay, func(dispatcher.Event) (any, error) {
		if err := ctl.Play(); err != nil {
			return nil, err
		}
		return Status(ctl), nil
	}, dispatcher.Logged())

	d.Register(streaming.TypePause, func(dispatcher.Event) (any, error) {
		ctl.Pause()
		return Status(ctl), nil
	}, dispatcher.Logged())

	d.Register(streaming.TypeGetState, func(dispatcher.Event) (any, error) {
		return Status(ctl), nil
	})
}
