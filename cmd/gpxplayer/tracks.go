package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/seatrack/gpxplayer/internal/geo"
	"github.com/seatrack/gpxplayer/internal/gpx"
	"github.com/seatrack/gpxplayer/internal/track"
	"github.com/seatrack/gpxplayer/internal/util"
	"github.com/seatrack/gpxplayer/pkg/core"
	"github.com/spf13/cobra"
)

var (
	importFlags trackFlags
	importTag   string
)

var importCmd = &cobra.Command{
	Use:   "import <file.gpx>...",
	Short: "Store GPX tracks under a session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(false, nil, "")
		if err != nil {
			return err
		}
		defer rt.Close()

		store, err := rt.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		from, err := parseTime(importFlags.start)
		if err != nil {
			return err
		}
		to, err := parseTime(importFlags.end)
		if err != nil {
			return err
		}

		name := importFlags.sessionName(args)
		var tracks []core.StoredTrack
		for _, path := range args {
			series, err := gpx.ReadFile(path)
			if err != nil {
				return err
			}
			for _, ts := range series {
				ts = track.Window(ts, from, to)
				if ts.Len() == 0 {
					rt.logger.Warn("Track has no samples inside the window, skipping", "entity", ts.EntityID)
					continue
				}
				if err := track.ValidateStrict(ts); err != nil {
					rt.logger.Warn("Track failed strict validation, importing anyway", "error", err)
				}
				tracks = append(tracks, core.StoredTrack{
					Series:     ts,
					SourceFile: filepath.Base(path),
					Metadata: map[string]string{
						"importedAt": time.Now().UTC().Format(time.RFC3339),
					},
				})
			}
		}

		session := core.Session{Name: name, Tag: importTag}
		for _, t := range tracks {
			if session.StartTime.IsZero() || t.Series.Start().Before(session.StartTime) {
				session.StartTime = t.Series.Start()
			}
		}
		for _, t := range tracks {
			if err := store.SaveTrack(session, t); err != nil {
				return fmt.Errorf("save %s: %w", t.Series.EntityID, err)
			}
			rt.logger.Info("Imported track", "session", name, "entity", t.Series.EntityID, "samples", t.Series.Len())
		}
		count := len(tracks)
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tracks into session %q\n", count, name)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <file.gpx>...",
	Short: "Check GPX files for strictly increasing timestamps",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			if err := gpx.ValidateFile(path); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: INVALID\n  %v\n", path, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed validation", failed, len(args))
		}
		return nil
	},
}

var (
	cutAt   string
	cutKeep string
)

var cutCmd = &cobra.Command{
	Use:   "cut <file.gpx>",
	Short: "Keep a GPX file's points before or after an instant",
	Long: `cut writes <file>_cut.gpx next to the input. With --keep start every
point at or after --at is kept, with --keep end every point at or before it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parseTime(cutAt)
		if err != nil {
			return err
		}
		if at.IsZero() {
			return fmt.Errorf("--at is required")
		}
		keep, err := track.ParseCutType(cutKeep)
		if err != nil {
			return err
		}
		out, err := gpx.CutFile(args[0], at, keep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved cut file to %s\n", out)
		return nil
	},
}

var infoFlags trackFlags

var infoCmd = &cobra.Command{
	Use:   "info [file.gpx]...",
	Short: "Show entities, spans and bounds of tracks",
	Long:  "info describes GPX files given as arguments, a stored --session, or lists stored sessions when given neither.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(false, nil, "")
		if err != nil {
			return err
		}
		defer rt.Close()

		out := cmd.OutOrStdout()
		if len(args) == 0 && infoFlags.session == "" {
			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			sessions, err := store.ListSessions()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tSTART\tTAG")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.StartTime.UTC().Format(time.RFC3339), s.Tag)
			}
			return w.Flush()
		}

		session, series, err := infoFlags.load(rt, args)
		if err != nil {
			return err
		}
		printInfo(out, session, series)
		return nil
	},
}

func printInfo(out io.Writer, session core.Session, series map[string]core.TimeSeries) {
	fmt.Fprintf(out, "Session: %s\n", session.Name)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSAMPLES\tSTART\tEND\tDURATION\tDISTANCE")
	all := make([]core.TimeSeries, 0, len(series))
	for _, id := range sortedIDs(series) {
		ts := series[id]
		all = append(all, ts)
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%.2f nm\n",
			id, ts.Name, ts.Len(),
			ts.Start().UTC().Format(time.RFC3339),
			ts.End().UTC().Format(time.RFC3339),
			util.FormatHMS(ts.End().Sub(ts.Start())),
			geo.TrackLengthNM(ts))
	}
	_ = w.Flush()

	if b, ok := geo.TrackBounds(all...); ok {
		fmt.Fprintf(out, "Bounds: %s %s .. %s %s\n",
			util.DecimalToDMS(b.South), util.DecimalToDMS(b.West),
			util.DecimalToDMS(b.North), util.DecimalToDMS(b.East))
	}
}

func init() {
	importFlags.register(importCmd)
	importCmd.Flags().StringVar(&importTag, "tag", "", "free-form tag stored with the session")

	cutCmd.Flags().StringVar(&cutAt, "at", "", "cut instant, RFC 3339")
	cutCmd.Flags().StringVar(&cutKeep, "keep", string(track.CutStart), "side to keep: start or end")

	infoFlags.register(infoCmd)
}
