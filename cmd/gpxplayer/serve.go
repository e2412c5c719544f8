package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seatrack/gpxplayer/internal/config"
	"github.com/seatrack/gpxplayer/internal/dispatcher"
	"github.com/seatrack/gpxplayer/internal/geo"
	"github.com/seatrack/gpxplayer/internal/logging"
	"github.com/seatrack/gpxplayer/internal/overlay"
	"github.com/seatrack/gpxplayer/internal/stream"
	"github.com/seatrack/gpxplayer/pkg/core"
	"github.com/seatrack/gpxplayer/pkg/streaming"
	"github.com/spf13/cobra"
)

var (
	serveFlags    trackFlags
	serveSpeed    float64
	serveAutoplay bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [file.gpx]...",
	Short: "Play tracks and expose them over a websocket",
	Long: `serve loads tracks and serves the playback on stream.listen. Clients
receive a hello, then every frame, and control the playhead with seek,
seek_time, play, pause and get_status messages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		state := &controllerState{}
		rt, err := newRuntime(true, state, serveFlags.sessionName(args))
		if err != nil {
			return err
		}
		defer rt.Close()

		session, series, err := serveFlags.load(rt, args)
		if err != nil {
			return err
		}
		e, err := newEngine(rt, session, series, serveSpeed)
		if err != nil {
			return err
		}
		defer e.Close()
		state.ctl.Store(e.ctl)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		disp, err := dispatcher.New(logging.NewZerologAdapter(rt.zlog))
		if err != nil {
			return err
		}
		defer disp.Close()
		stream.RegisterControl(disp, e.ctl)

		hubOpts := []stream.HubOption{stream.WithHello(e.hello)}
		if origins := config.GetStreamConfig().AllowedOrigins; len(origins) > 0 {
			hubOpts = append(hubOpts, stream.WithCheckOrigin(stream.OriginAllowlist(origins)))
		}
		hub := stream.NewHub(disp, logging.NewZerologAdapter(rt.zlog), hubOpts...)
		defer hub.Close()
		e.player.AddSink("stream", hub)

		closeOverlay, err := attachOverlay(rt, e, hub, series)
		if err != nil {
			return err
		}
		defer closeOverlay()

		closeOutputs := e.attachOutputs(ctx, rt)
		defer closeOutputs()

		sc := config.GetStreamConfig()
		mux := http.NewServeMux()
		mux.Handle(sc.Path, hub)
		srv := &http.Server{Addr: sc.Listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		errCh := make(chan error, 1)
		go func() {
			rt.logger.Info("Serving playback", "addr", sc.Listen, "path", sc.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		if err := e.ctl.Seek(0); err != nil {
			return err
		}
		if serveAutoplay {
			if err := e.ctl.Play(); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			rt.logger.Warn("HTTP shutdown failed", "error", err)
		}
		e.ctl.Pause()
		if n := hub.Dropped(); n > 0 {
			rt.logger.Warn("Frames dropped for slow clients", "count", n)
		}
		e.logStats(rt)
		return nil
	},
}

// attachOverlay registers the overlay loader as a playback observer when
// enabled. Loaded overlays are broadcast to websocket clients.
func attachOverlay(rt *runtime, e *engine, hub *stream.Hub, series map[string]core.TimeSeries) (func(), error) {
	oc := config.GetOverlayConfig()
	if !oc.Enabled {
		return func() {}, nil
	}

	cache, err := overlay.OpenBadgerCache(oc.CacheDir)
	if err != nil {
		return nil, err
	}

	all := make([]core.TimeSeries, 0, len(series))
	for _, ts := range series {
		all = append(all, ts)
	}
	bounds, _ := geo.TrackBounds(all...)

	loader := overlay.NewLoader(overlay.DirSource{Dir: oc.Dir}, func(o overlay.Overlay) {
		data, err := streaming.Marshal(streaming.TypeOverlay, "", o)
		if err != nil {
			rt.logger.Warn("Failed to encode overlay", "error", err)
			return
		}
		hub.Broadcast(data)
	},
		overlay.WithCache(cache),
		overlay.WithBounds(bounds.Pad(0.05)),
		overlay.WithStep(oc.Step),
		overlay.WithTTL(oc.CacheTTL),
		overlay.WithTimeout(oc.Timeout),
		overlay.WithLogger(rt.logger),
	)
	e.ctl.Observe("overlay", loader)
	rt.logger.Info("Overlay loader enabled", "dir", oc.Dir, "step", oc.Step)

	return func() {
		loader.Close()
		if err := cache.Close(); err != nil {
			rt.logger.Warn("Failed to close overlay cache", "error", err)
		}
	}, nil
}

func init() {
	serveFlags.register(serveCmd)
	serveCmd.Flags().Float64Var(&serveSpeed, "speed", 0, "playback speed factor (default from config)")
	serveCmd.Flags().BoolVar(&serveAutoplay, "autoplay", false, "start playing right away")
}
