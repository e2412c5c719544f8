package track

import (
	"errors"
	"testing"
	"time"

	"github.com/seatrack/gpxplayer/internal/geo"
	"github.com/seatrack/gpxplayer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)

// arcMinute is one minute of latitude, about one nautical mile.
const arcMinute = 1.0 / 60

func northbound(n int, step time.Duration) []core.Sample {
	samples := make([]core.Sample, n)
	for i := range samples {
		samples[i] = core.Sample{
			Time: base.Add(time.Duration(i) * step),
			Lat:  54 + float64(i)*arcMinute,
			Lon:  10,
		}
	}
	return samples
}

func TestDerive_SteadySpeed(t *testing.T) {
	// one arc minute every 10 minutes is about 6 knots
	out, clamped := Derive(northbound(4, 10*time.Minute), DefaultOptions())

	require.Len(t, out, 4)
	assert.Empty(t, clamped)

	assert.Equal(t, core.Metrics{}, *out[0].Metrics)
	for i := 1; i < len(out); i++ {
		m := out[i].Metrics
		require.NotNil(t, m)
		assert.InDelta(t, 6.0, m.Speed, 0.05, "speed at %d", i)
		assert.InDelta(t, float64(i), m.CumulativeDistance, 0.01, "distance at %d", i)
		assert.InDelta(t, 6.0, m.RunningAverageSpeed, 0.05, "average at %d", i)
	}
}

func TestDerive_DoesNotModifyInput(t *testing.T) {
	in := northbound(3, time.Minute)
	_, _ = Derive(in, DefaultOptions())

	for _, s := range in {
		assert.Nil(t, s.Metrics)
	}
}

func TestDerive_ZeroElapsedTime(t *testing.T) {
	in := northbound(3, time.Minute)
	in[2].Time = in[1].Time

	out, clamped := Derive(in, DefaultOptions())

	assert.Empty(t, clamped)
	assert.Zero(t, out[2].Metrics.Speed)
	// distance still accumulates
	assert.InDelta(t, 2.0, out[2].Metrics.CumulativeDistance, 0.01)
}

func TestDerive_MaxSpeedZeroesDirtyLegs(t *testing.T) {
	// one nautical mile per minute is 60 knots
	out, clamped := Derive(northbound(3, time.Minute), Options{MaxSpeed: 12})

	require.Len(t, clamped, 2)
	assert.Equal(t, 1, clamped[0].Index)
	assert.InDelta(t, 60, clamped[0].Speed, 0.5)
	assert.Zero(t, out[1].Metrics.Speed)
	assert.Zero(t, out[2].Metrics.Speed)
	// running average is not clamped
	assert.InDelta(t, 60, out[2].Metrics.RunningAverageSpeed, 0.5)
}

func TestDerive_NoMaxSpeed(t *testing.T) {
	out, clamped := Derive(northbound(2, time.Minute), Options{})

	assert.Empty(t, clamped)
	assert.InDelta(t, 60, out[1].Metrics.Speed, 0.5)
}

func TestDerive_Empty(t *testing.T) {
	out, clamped := Derive(nil, DefaultOptions())
	assert.Empty(t, out)
	assert.Nil(t, clamped)
}

func TestEnsureMetrics(t *testing.T) {
	t.Run("keeps supplied metrics", func(t *testing.T) {
		samples := northbound(2, time.Minute)
		for i := range samples {
			samples[i].Metrics = &core.Metrics{Speed: 42}
		}
		ts, _ := EnsureMetrics(core.TimeSeries{EntityID: "a", Samples: samples}, DefaultOptions())
		assert.Equal(t, 42.0, ts.Samples[1].Metrics.Speed)
	})

	t.Run("derives when any sample lacks metrics", func(t *testing.T) {
		samples := northbound(3, 10*time.Minute)
		samples[0].Metrics = &core.Metrics{Speed: 42}
		ts, _ := EnsureMetrics(core.TimeSeries{EntityID: "a", Samples: samples}, DefaultOptions())
		assert.True(t, ts.HasMetrics())
		assert.Zero(t, ts.Samples[0].Metrics.Speed)
		assert.InDelta(t, 6.0, ts.Samples[2].Metrics.Speed, 0.05)
	})
}

func TestCut(t *testing.T) {
	ts := core.TimeSeries{EntityID: "a", Name: "A", Samples: northbound(5, time.Minute)}
	at := base.Add(2 * time.Minute)

	start := Cut(ts, at, CutStart)
	require.Equal(t, 3, start.Len())
	assert.True(t, start.Start().Equal(at))
	assert.Equal(t, "A", start.Name)

	end := Cut(ts, at, CutEnd)
	require.Equal(t, 3, end.Len())
	assert.True(t, end.End().Equal(at))
}

func TestParseCutType(t *testing.T) {
	c, err := ParseCutType("start")
	require.NoError(t, err)
	assert.Equal(t, CutStart, c)

	c, err = ParseCutType("end")
	require.NoError(t, err)
	assert.Equal(t, CutEnd, c)

	_, err = ParseCutType("middle")
	assert.Error(t, err)
}

func TestWindow(t *testing.T) {
	ts := core.TimeSeries{EntityID: "a", Samples: northbound(5, time.Minute)}

	assert.Equal(t, 5, Window(ts, time.Time{}, time.Time{}).Len())
	assert.Equal(t, 3, Window(ts, base.Add(2*time.Minute), time.Time{}).Len())
	assert.Equal(t, 2, Window(ts, time.Time{}, base.Add(time.Minute)).Len())
	assert.Equal(t, 1, Window(ts, base.Add(90*time.Second), base.Add(150*time.Second)).Len())
}

func TestValidateStrict(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]core.Sample)
		wantErr error
		index   int
	}{
		{"valid", func([]core.Sample) {}, nil, 0},
		{"duplicate", func(s []core.Sample) { s[2].Time = s[1].Time }, ErrDuplicateTimestamp, 2},
		{"backwards", func(s []core.Sample) { s[3].Time = s[1].Time.Add(-time.Second) }, ErrNotIncreasing, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := northbound(4, time.Minute)
			tt.mutate(samples)

			err := ValidateStrict(core.TimeSeries{EntityID: "boat", Samples: samples})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))

			var tsErr *TimestampError
			require.True(t, errors.As(err, &tsErr))
			assert.Equal(t, tt.index, tsErr.Index)
			assert.Equal(t, "boat", tsErr.EntityID)
		})
	}
}

func TestValidateStrict_BadCoordinates(t *testing.T) {
	samples := northbound(2, time.Minute)
	samples[1].Lat = 95

	err := ValidateStrict(core.TimeSeries{EntityID: "boat", Samples: samples})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestHeading(t *testing.T) {
	samples := northbound(3, time.Minute)

	deg, ok := Heading(samples, 0)
	require.True(t, ok)
	assert.InDelta(t, 0, deg, 1e-6)

	deg, ok = Heading(samples, 2)
	require.True(t, ok)
	assert.InDelta(t, 0, deg, 1e-6)

	_, ok = Heading(samples[:1], 0)
	assert.False(t, ok)
	_, ok = Heading(samples, 5)
	assert.False(t, ok)
}

func TestTrailStart(t *testing.T) {
	samples := northbound(100, time.Second)
	raceStart := base.Add(10 * time.Second)

	tests := []struct {
		name      string
		idx       int
		instant   time.Time
		raceStart time.Time
		want      int
	}{
		{"no race start", 80, base.Add(80 * time.Second), time.Time{}, 0},
		{"before start", 5, base.Add(5 * time.Second), raceStart, 0},
		{"just after start", 20, base.Add(20 * time.Second), raceStart, 10},
		{"long after start", 90, base.Add(90 * time.Second), raceStart, 31},
		{"start after vessel data", 5, base.Add(200 * time.Second), base.Add(150 * time.Second), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrailStart(samples, tt.idx, tt.instant, tt.raceStart, DefaultTrailLength)
			assert.Equal(t, tt.want, got)
		})
	}
}
