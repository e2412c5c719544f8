package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/seatrack/gpxplayer/internal/playback"
	"github.com/seatrack/gpxplayer/internal/player"
	"github.com/spf13/cobra"
)

// controllerState feeds the log context from a controller that is created
// after logging is set up.
type controllerState struct {
	ctl atomic.Pointer[playback.Controller]
}

func (s *controllerState) Position() int {
	if c := s.ctl.Load(); c != nil {
		return c.Position()
	}
	return 0
}

func (s *controllerState) IsPlaying() bool {
	if c := s.ctl.Load(); c != nil {
		return c.IsPlaying()
	}
	return false
}

var (
	playFlags trackFlags
	playSpeed float64
	playFrom  float64
	playQuiet bool
)

var playCmd = &cobra.Command{
	Use:   "play [file.gpx]...",
	Short: "Play tracks headless and print every frame",
	Long: `play replays GPX files given as arguments or a stored --session from
--from to the end of the timeline, printing one table per frame. Ctrl-C stops.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		state := &controllerState{}
		rt, err := newRuntime(true, state, playFlags.sessionName(args))
		if err != nil {
			return err
		}
		defer rt.Close()

		session, series, err := playFlags.load(rt, args)
		if err != nil {
			return err
		}
		e, err := newEngine(rt, session, series, playSpeed)
		if err != nil {
			return err
		}
		defer e.Close()
		state.ctl.Store(e.ctl)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !playQuiet {
			e.player.AddSink("table", player.TableSink{W: cmd.OutOrStdout()})
		}
		closeOutputs := e.attachOutputs(ctx, rt)
		defer closeOutputs()

		return run(ctx, rt, e, playFrom)
	},
}

// run seeks to from, plays and blocks until the end policy stops playback
// or ctx is cancelled.
func run(ctx context.Context, rt *runtime, e *engine, from float64) error {
	if err := e.ctl.Seek(from); err != nil {
		return err
	}
	if err := e.ctl.Play(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		rt.logger.Info("Interrupted, stopping playback")
		e.ctl.Pause()
	case <-e.ctl.Done():
	}
	e.logStats(rt)
	return nil
}

func init() {
	playFlags.register(playCmd)
	playCmd.Flags().Float64Var(&playSpeed, "speed", 0, "playback speed factor (default from config)")
	playCmd.Flags().Float64Var(&playFrom, "from", 0, "start playhead position")
	playCmd.Flags().BoolVarP(&playQuiet, "quiet", "q", false, "do not print frames")
}
