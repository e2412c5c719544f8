package sampler

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/seatrack/gpxplayer/internal/timeline"
	"github.com/seatrack/gpxplayer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(0, 0).UTC()

func at(sec int) time.Time {
	return epoch.Add(time.Duration(sec) * time.Second)
}

func scenario() map[string]core.TimeSeries {
	return map[string]core.TimeSeries{
		"boat": {Samples: []core.Sample{
			{Time: at(0), Lat: 0, Lon: 0},
			{Time: at(10), Lat: 1, Lon: 1},
			{Time: at(20), Lat: 2, Lon: 2},
		}},
	}
}

func strategies() []Strategy {
	return []Strategy{StrategyCursor, StrategyBinary, StrategyLinear}
}

func TestResolve_Scenario(t *testing.T) {
	for _, st := range strategies() {
		t.Run(string(st), func(t *testing.T) {
			s := New(WithStrategy(st))
			require.NoError(t, s.Load(scenario()))

			got, err := s.Resolve("boat", at(15))
			require.NoError(t, err)
			assert.True(t, got.Sample.Time.Equal(at(10)))
			assert.Equal(t, 1, got.Index)
			assert.False(t, got.Clamped)

			got, err = s.Resolve("boat", at(-5))
			require.NoError(t, err)
			assert.True(t, got.Sample.Time.Equal(at(0)))
			assert.Equal(t, 0, got.Index)
			assert.True(t, got.Clamped)

			got, err = s.Resolve("boat", at(999))
			require.NoError(t, err)
			assert.True(t, got.Sample.Time.Equal(at(20)))
			assert.Equal(t, 2, got.Index)
			assert.True(t, got.Clamped)
		})
	}
}

func TestResolve_ExactMatch(t *testing.T) {
	s := New()
	require.NoError(t, s.Load(scenario()))

	got, err := s.Resolve("boat", at(20))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Index)
	assert.False(t, got.Clamped)
}

func TestResolve_TiesPickLastInSequence(t *testing.T) {
	series := map[string]core.TimeSeries{
		"boat": {Samples: []core.Sample{
			{Time: at(0), Lat: 0},
			{Time: at(10), Lat: 1},
			{Time: at(10), Lat: 2},
			{Time: at(10), Lat: 3},
			{Time: at(20), Lat: 4},
		}},
	}
	for _, st := range strategies() {
		t.Run(string(st), func(t *testing.T) {
			s := New(WithStrategy(st))
			require.NoError(t, s.Load(series))

			got, err := s.Resolve("boat", at(10))
			require.NoError(t, err)
			assert.Equal(t, 3, got.Index)
			assert.Equal(t, 3.0, got.Sample.Lat)
		})
	}
}

func TestResolve_UnknownEntity(t *testing.T) {
	s := New()
	require.NoError(t, s.Load(scenario()))

	_, err := s.Resolve("ghost", at(0))
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestResolve_BeforeLoad(t *testing.T) {
	s := New()
	_, err := s.Resolve("boat", at(0))
	assert.ErrorIs(t, err, ErrUnknownEntity)
	assert.Empty(t, s.ResolveAll(at(0)))
	assert.Equal(t, 0, s.Timeline().Len())
}

func TestLoad_Unsorted(t *testing.T) {
	s := New()
	series := map[string]core.TimeSeries{
		"ok": scenario()["boat"],
		"bad": {Samples: []core.Sample{
			{Time: at(0)},
			{Time: at(10)},
			{Time: at(5)},
		}},
	}

	err := s.Load(series)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsortedSeries))

	var unsorted *UnsortedSeriesError
	require.True(t, errors.As(err, &unsorted))
	assert.Equal(t, "bad", unsorted.EntityID)
	assert.Equal(t, 2, unsorted.Index)

	// nothing installed
	assert.Empty(t, s.Entities())
}

func TestLoad_FailureKeepsPreviousSet(t *testing.T) {
	s := New()
	require.NoError(t, s.Load(scenario()))

	err := s.Load(map[string]core.TimeSeries{"empty": {}})
	assert.ErrorIs(t, err, ErrEmptySeries)

	assert.Equal(t, []string{"boat"}, s.Entities())
}

func TestLoad_DerivesMissingMetrics(t *testing.T) {
	// one arc minute per 10 minutes, about 6 knots
	series := map[string]core.TimeSeries{
		"boat": {Samples: []core.Sample{
			{Time: at(0), Lat: 54, Lon: 10},
			{Time: at(600), Lat: 54 + 1.0/60, Lon: 10},
		}},
	}
	s := New()
	require.NoError(t, s.Load(series))

	got, err := s.Resolve("boat", at(600))
	require.NoError(t, err)
	assert.InDelta(t, 6.0, got.Metrics.Speed, 0.05)
	assert.InDelta(t, 1.0, got.Metrics.CumulativeDistance, 0.01)
	assert.InDelta(t, 6.0, got.Metrics.RunningAverageSpeed, 0.05)
	assert.InDelta(t, 0, got.Heading, 1e-6)

	// the caller's samples are untouched
	assert.Nil(t, series["boat"].Samples[1].Metrics)
}

func TestLoad_KeepsSuppliedMetrics(t *testing.T) {
	series := map[string]core.TimeSeries{
		"boat": {Samples: []core.Sample{
			{Time: at(0), Metrics: &core.Metrics{Speed: 1}},
			{Time: at(10), Metrics: &core.Metrics{Speed: 7, CumulativeDistance: 3, RunningAverageSpeed: 4}},
		}},
	}
	s := New()
	require.NoError(t, s.Load(series))

	got, err := s.Resolve("boat", at(10))
	require.NoError(t, err)
	assert.Equal(t, core.Metrics{Speed: 7, CumulativeDistance: 3, RunningAverageSpeed: 4}, got.Metrics)
}

func TestLoad_EntityIDFromKey(t *testing.T) {
	s := New()
	require.NoError(t, s.Load(map[string]core.TimeSeries{
		"b": {EntityID: "ignored", Samples: []core.Sample{{Time: at(0)}}},
		"a": {Samples: []core.Sample{{Time: at(5)}}},
	}))

	states := s.ResolveAll(at(5))
	require.Len(t, states, 2)
	assert.Equal(t, "a", states[0].EntityID)
	assert.Equal(t, "b", states[1].EntityID)

	ts, ok := s.Series("b")
	require.True(t, ok)
	assert.Equal(t, "b", ts.EntityID)
}

func TestTimeline_UnionOfInstants(t *testing.T) {
	s := New()
	require.NoError(t, s.Load(map[string]core.TimeSeries{
		"a": {Samples: []core.Sample{{Time: at(0)}, {Time: at(10)}}},
		"b": {Samples: []core.Sample{{Time: at(5)}, {Time: at(10)}, {Time: at(30)}}},
	}))

	tl := s.Timeline()
	assert.Equal(t, 4, tl.Len())
	assert.True(t, tl.Start().Equal(at(0)))
	assert.True(t, tl.End().Equal(at(30)))
}

func TestTimeline_Explicit(t *testing.T) {
	axis, err := timeline.FromInstants([]time.Time{at(-100), at(100)})
	require.NoError(t, err)

	s := New(WithTimeline(axis))
	require.NoError(t, s.Load(scenario()))

	assert.Equal(t, 2, s.Timeline().Len())
	assert.True(t, s.Timeline().Start().Equal(at(-100)))
}

func TestResolve_StrategiesAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	series := map[string]core.TimeSeries{}
	for _, id := range []string{"a", "b", "c"} {
		var samples []core.Sample
		sec := rng.Intn(50)
		for i := 0; i < 200; i++ {
			// steps of 0 produce ties
			sec += rng.Intn(4)
			samples = append(samples, core.Sample{Time: at(sec), Lat: 54 + float64(i)*0.0001, Lon: 10})
		}
		series[id] = core.TimeSeries{Samples: samples}
	}

	samplers := map[Strategy]*Sampler{}
	for _, st := range strategies() {
		samplers[st] = New(WithStrategy(st))
		require.NoError(t, samplers[st].Load(series))
	}

	// forward play with occasional scrubs backwards and repeats
	sec := -20
	for q := 0; q < 2000; q++ {
		switch r := rng.Intn(10); {
		case r == 0:
			sec -= rng.Intn(200)
		case r == 1:
			// repeat
		default:
			sec += rng.Intn(3)
		}
		instant := at(sec)

		for _, id := range []string{"a", "b", "c"} {
			want, err := samplers[StrategyLinear].Resolve(id, instant)
			require.NoError(t, err)
			for _, st := range []Strategy{StrategyCursor, StrategyBinary} {
				got, err := samplers[st].Resolve(id, instant)
				require.NoError(t, err)
				require.Equal(t, want, got, "strategy %s entity %s query %d at %ds", st, id, q, sec)
			}
		}
	}

	stats := samplers[StrategyCursor].Stats()
	assert.Equal(t, uint64(6000), stats.Queries)
	assert.NotZero(t, stats.Fallbacks)
}

func TestResolve_CursorFallbackOnlyWhenGoingBack(t *testing.T) {
	s := New()
	require.NoError(t, s.Load(scenario()))

	for _, sec := range []int{0, 5, 5, 10, 20, 30} {
		_, err := s.Resolve("boat", at(sec))
		require.NoError(t, err)
	}
	assert.Zero(t, s.Stats().Fallbacks)

	_, err := s.Resolve("boat", at(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.Stats().Fallbacks)
}

func TestResolve_TrailStartAfterRaceStart(t *testing.T) {
	var samples []core.Sample
	for i := 0; i < 100; i++ {
		samples = append(samples, core.Sample{Time: at(i)})
	}
	s := New(WithRaceStart(at(10), 60))
	require.NoError(t, s.Load(map[string]core.TimeSeries{"boat": {Samples: samples}}))

	got, err := s.Resolve("boat", at(5))
	require.NoError(t, err)
	assert.Equal(t, 0, got.TrailStart)

	got, err = s.Resolve("boat", at(90))
	require.NoError(t, err)
	assert.Equal(t, 31, got.TrailStart)
}

func TestParseStrategy(t *testing.T) {
	st, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyCursor, st)

	st, err = ParseStrategy("binary")
	require.NoError(t, err)
	assert.Equal(t, StrategyBinary, st)

	_, err = ParseStrategy("quantum")
	assert.Error(t, err)
}
