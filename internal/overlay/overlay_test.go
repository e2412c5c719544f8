package overlay

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/seatrack/gpxplayer/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slot = time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)

func testGrid() Grid {
	return Grid{
		U:   []float64{1, 2, 3, 4},
		V:   []float64{-1, -2, -3, -4},
		NX:  2,
		NY:  2,
		Lo1: 10.0,
		La1: 54.5,
		Dx:  0.25,
		Dy:  0.25,
	}
}

func writeGrid(t *testing.T, dir string, at time.Time, g Grid) {
	t.Helper()
	data, err := json.Marshal(g)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, at.Format(SlotLayout)+".json"), data, 0o644))
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	writeGrid(t, dir, slot, testGrid())

	src := DirSource{Dir: dir}
	g, err := src.Grid(context.Background(), geo.Bounds{}, slot)
	require.NoError(t, err)
	assert.Equal(t, 2, g.NX)
	assert.Equal(t, []float64{1, 2, 3, 4}, g.U)

	_, err = src.Grid(context.Background(), geo.Bounds{}, slot.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestDirSource_InvalidGrid(t *testing.T) {
	dir := t.TempDir()
	bad := testGrid()
	bad.V = bad.V[:3]
	writeGrid(t, dir, slot, bad)

	_, err := DirSource{Dir: dir}.Grid(context.Background(), geo.Bounds{}, slot)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, slot.Add(time.Hour).Format(SlotLayout)+".json"), []byte("{"), 0o644))
	_, err = DirSource{Dir: dir}.Grid(context.Background(), geo.Bounds{}, slot.Add(time.Hour))
	assert.Error(t, err)
}

func TestDirSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DirSource{Dir: t.TempDir()}.Grid(ctx, geo.Bounds{}, slot)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSlot(t *testing.T) {
	at := slot.Add(42 * time.Minute)
	assert.Equal(t, slot, Slot(at, time.Hour))
	assert.Equal(t, slot.Add(30*time.Minute), Slot(at, 30*time.Minute))
	assert.Equal(t, at, Slot(at, 0))

	local := at.In(time.FixedZone("CEST", 2*3600))
	assert.Equal(t, slot, Slot(local, time.Hour))
}

func TestGrid_Validate(t *testing.T) {
	assert.NoError(t, testGrid().Validate())
	assert.Error(t, Grid{}.Validate())

	g := testGrid()
	g.NX = 3
	assert.Error(t, g.Validate())
}

func TestBadgerCache(t *testing.T) {
	c, err := OpenBadgerCache("")
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set("k", testGrid(), time.Hour))
	g, ok, err := c.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testGrid(), g)

	require.NoError(t, c.Set("forever", testGrid(), 0))
	_, ok, err = c.Get("forever")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBadgerCache_OnDisk(t *testing.T) {
	dir := t.TempDir()

	c, err := OpenBadgerCache(dir)
	require.NoError(t, err)
	require.NoError(t, c.Set("k", testGrid(), time.Hour))
	require.NoError(t, c.Close())

	c, err = OpenBadgerCache(dir)
	require.NoError(t, err)
	defer c.Close()
	_, ok, err := c.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
}
