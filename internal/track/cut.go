package track

import (
	"fmt"
	"time"

	"github.com/seatrack/gpxplayer/pkg/core"
)

// CutType selects which side of the cut instant is kept.
type CutType string

const (
	// CutStart keeps everything at or after the instant.
	CutStart CutType = "start"
	// CutEnd keeps everything at or before the instant.
	CutEnd CutType = "end"
)

// ParseCutType parses "start" or "end".
func ParseCutType(s string) (CutType, error) {
	switch CutType(s) {
	case CutStart, CutEnd:
		return CutType(s), nil
	default:
		return "", fmt.Errorf("invalid cut type %q: want %q or %q", s, CutStart, CutEnd)
	}
}

// Cut returns a copy of the series holding only the samples on the kept side of at.
// Metrics are dropped since cumulative values no longer start at the first sample.
func Cut(ts core.TimeSeries, at time.Time, keep CutType) core.TimeSeries {
	out := core.TimeSeries{EntityID: ts.EntityID, Name: ts.Name}
	for _, s := range ts.Samples {
		if (keep == CutStart && !s.Time.Before(at)) || (keep == CutEnd && !s.Time.After(at)) {
			s.Metrics = nil
			out.Samples = append(out.Samples, s)
		}
	}
	return out
}

// Window keeps samples with from <= Time <= to. A zero from or to leaves that side open.
func Window(ts core.TimeSeries, from, to time.Time) core.TimeSeries {
	if from.IsZero() && to.IsZero() {
		return ts
	}
	out := core.TimeSeries{EntityID: ts.EntityID, Name: ts.Name}
	for _, s := range ts.Samples {
		if !from.IsZero() && s.Time.Before(from) {
			continue
		}
		if !to.IsZero() && s.Time.After(to) {
			continue
		}
		s.Metrics = nil
		out.Samples = append(out.Samples, s)
	}
	return out
}
