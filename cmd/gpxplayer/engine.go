package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/seatrack/gpxplayer/internal/clock"
	"github.com/seatrack/gpxplayer/internal/config"
	"github.com/seatrack/gpxplayer/internal/gpx"
	"github.com/seatrack/gpxplayer/internal/influx"
	"github.com/seatrack/gpxplayer/internal/playback"
	"github.com/seatrack/gpxplayer/internal/player"
	"github.com/seatrack/gpxplayer/internal/sampler"
	"github.com/seatrack/gpxplayer/internal/stream"
	"github.com/seatrack/gpxplayer/internal/track"
	"github.com/seatrack/gpxplayer/internal/util"
	"github.com/seatrack/gpxplayer/pkg/core"
	"github.com/seatrack/gpxplayer/pkg/streaming"
	"github.com/spf13/cobra"
)

// trackFlags selects the tracks a command works on: GPX files given as
// arguments, or a stored session.
type trackFlags struct {
	session string
	start   string
	end     string
}

func (f *trackFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.session, "session", "", "stored session to load (or name for GPX arguments)")
	cmd.Flags().StringVar(&f.start, "start", "", "drop samples before this RFC 3339 instant")
	cmd.Flags().StringVar(&f.end, "end", "", "drop samples after this RFC 3339 instant")
}

// sessionName returns the explicit session or one derived from the first file.
func (f *trackFlags) sessionName(files []string) string {
	if f.session != "" || len(files) == 0 {
		return f.session
	}
	base := filepath.Base(files[0])
	return util.Slug(strings.TrimSuffix(base, filepath.Ext(base)))
}

// load reads the selected tracks and applies the start/end window.
func (f *trackFlags) load(rt *runtime, files []string) (core.Session, map[string]core.TimeSeries, error) {
	from, err := parseTime(f.start)
	if err != nil {
		return core.Session{}, nil, err
	}
	to, err := parseTime(f.end)
	if err != nil {
		return core.Session{}, nil, err
	}

	var (
		session core.Session
		series  map[string]core.TimeSeries
	)
	switch {
	case len(files) > 0:
		series, err = gpx.ReadFiles(files...)
		if err != nil {
			return core.Session{}, nil, err
		}
		session = core.Session{Name: f.sessionName(files), StartTime: earliest(series)}
	case f.session != "":
		store, err := rt.openStore()
		if err != nil {
			return core.Session{}, nil, err
		}
		defer store.Close()
		session, series, err = store.LoadSession(f.session)
		if err != nil {
			return core.Session{}, nil, err
		}
	default:
		return core.Session{}, nil, errors.New("no tracks: pass GPX files or --session")
	}

	for id, ts := range series {
		windowed := track.Window(ts, from, to)
		if windowed.Len() == 0 {
			rt.logger.Warn("Track has no samples inside the window, skipping", "entity", id)
			delete(series, id)
			continue
		}
		series[id] = windowed
	}
	if len(series) == 0 {
		return core.Session{}, nil, errors.New("no samples inside the selected window")
	}
	return session, series, nil
}

func earliest(series map[string]core.TimeSeries) time.Time {
	var t time.Time
	for _, ts := range series {
		if s := ts.Start(); !s.IsZero() && (t.IsZero() || s.Before(t)) {
			t = s
		}
	}
	return t
}

func sortedIDs(series map[string]core.TimeSeries) []string {
	ids := make([]string, 0, len(series))
	for id := range series {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// engine is the sampler, controller and player for one session.
type engine struct {
	session core.Session
	smp     *sampler.Sampler
	ctl     *playback.Controller
	player  *player.Player
}

func newEngine(rt *runtime, session core.Session, series map[string]core.TimeSeries, speed float64) (*engine, error) {
	pc := config.GetPlaybackConfig()
	if speed > 0 {
		pc.Speed = speed
	}

	strategy, err := sampler.ParseStrategy(pc.Sampler)
	if err != nil {
		return nil, err
	}
	policy, err := playback.ParseEndPolicy(pc.EndPolicy)
	if err != nil {
		return nil, err
	}

	opts := []sampler.Option{
		sampler.WithStrategy(strategy),
		sampler.WithTrackOptions(track.Options{MaxSpeed: config.GetTracksConfig().MaxSpeedKnots}),
		sampler.WithLogger(rt.logger),
	}
	if !pc.RaceStart.IsZero() {
		opts = append(opts, sampler.WithRaceStart(pc.RaceStart, pc.TrailLength))
	}
	smp := sampler.New(opts...)
	if err := smp.Load(series); err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}

	ctl, err := playback.New(smp.Timeline(), playback.Config{
		Resolution:   pc.Resolution,
		TickInterval: pc.TickInterval,
		EndPolicy:    policy,
	}, playback.WithClock(clock.New(pc.Speed)), playback.WithLogger(rt.logger))
	if err != nil {
		return nil, err
	}

	popts := []player.Option{player.WithLogger(rt.logger)}
	if !pc.RaceStart.IsZero() {
		popts = append(popts, player.WithRaceStart(pc.RaceStart))
	}
	p := player.New(ctl, smp, popts...)
	p.AddSink("log", player.LogSink{Logger: rt.logger})

	rt.logger.Info("Tracks loaded",
		"session", session.Name,
		"vessels", len(series),
		"instants", smp.Timeline().Len(),
		"start", smp.Timeline().Start(),
		"end", smp.Timeline().End(),
		"speed", pc.Speed)

	return &engine{session: session, smp: smp, ctl: ctl, player: p}, nil
}

// hello describes the session to websocket peers.
func (e *engine) hello() streaming.HelloPayload {
	tl := e.smp.Timeline()
	return streaming.HelloPayload{
		Session:    e.session.Name,
		Resolution: e.ctl.Resolution(),
		Start:      tl.Start(),
		End:        tl.End(),
		Entities:   e.smp.Entities(),
	}
}

// attachOutputs wires the configured influx and relay sinks. The returned
// func closes them and records the playback statistics.
func (e *engine) attachOutputs(ctx context.Context, rt *runtime) func() {
	var closers []func()

	ic := config.GetInfluxConfig()
	if ic.Enabled {
		mgr := influx.NewManager(rt.zlog, ic, influx.BackupFilePath(ic.BackupDir, rt.start))
		if err := mgr.Connect(ctx); err != nil {
			rt.logger.Error("Failed to set up InfluxDB", "error", err)
		} else {
			e.player.AddSink("influx", influx.Sink{Manager: mgr, Bucket: ic.Bucket, Session: e.session.Name})
			closers = append(closers, func() {
				if err := mgr.WritePoint(influx.StatsBucket, influx.StatsPoint(e.session.Name, e.ctl.Stats(), time.Now())); err != nil {
					rt.logger.Warn("Failed to write playback stats", "error", err)
				}
				if err := mgr.Close(); err != nil {
					rt.logger.Warn("Failed to close InfluxDB", "error", err)
				}
			})
		}
	}

	rc := config.GetRelayConfig()
	if rc.Enabled {
		url := httpToWS(rc.ServerURL) + "/api"
		relay := stream.NewRelay(url, rc.APIKey, rt.logger)
		if err := relay.Dial(e.hello()); err != nil {
			rt.logger.Error("Failed to connect relay", "url", url, "error", err)
			_ = relay.Close()
		} else {
			rt.logger.Info("Relaying frames", "url", url)
			e.player.AddSink("relay", relay)
			closers = append(closers, func() { _ = relay.Close() })
		}
	}

	return func() {
		for _, c := range closers {
			c()
		}
	}
}

func (e *engine) logStats(rt *runtime) {
	s := e.ctl.Stats()
	ss := e.smp.Stats()
	rt.logger.Info("Playback stopped",
		"position", e.ctl.Position(),
		"ticks", s.Ticks,
		"notifications", s.Notifications,
		"observerFailures", s.ObserverFailures,
		"latencyP50", s.LatencyP50,
		"latencyP99", s.LatencyP99,
		"latencyMax", s.LatencyMax,
		"samplerQueries", ss.Queries,
		"samplerFallbacks", ss.Fallbacks)
}

func (e *engine) Close() {
	e.ctl.Close()
}
