package player

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LogSink logs one debug line per frame.
type LogSink struct {
	Logger *slog.Logger
}

// WriteFrame logs the frame summary.
func (s LogSink) WriteFrame(ctx context.Context, f Frame) error {
	s.Logger.DebugContext(ctx, "frame",
		"seq", f.Seq,
		"position", f.Position,
		"instant", f.Instant,
		"vessels", len(f.States))
	return nil
}

// TableSink prints a human readable table of each frame, the headless
// counterpart of the on-map distance and speed labels.
type TableSink struct {
	W io.Writer
}

// WriteFrame prints the frame.
func (s TableSink) WriteFrame(_ context.Context, f Frame) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[%4d] %s  %s\n", f.Position, f.Instant.UTC().Format("2006-01-02 15:04:05"), f.Clock)
	for _, st := range f.States {
		name := st.Name
		if name == "" {
			name = st.EntityID
		}
		fmt.Fprintf(&b, "  %-24s %9.5f %10.5f  %5.1f kt  %6.2f nm  avg %5.1f kt  hdg %3.0f\n",
			name, st.Sample.Lat, st.Sample.Lon,
			st.Metrics.Speed, st.Metrics.CumulativeDistance, st.Metrics.RunningAverageSpeed,
			st.Heading)
	}
	_, err := io.WriteString(s.W, b.String())
	return err
}
