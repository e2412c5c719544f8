// Package overlay loads auxiliary per-instant layers (wind grids) next to
// playback. Loading is fire-and-forget: the latest requested instant wins
// and failures never reach the playback loop.
package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/seatrack/gpxplayer/internal/geo"
)

// ErrNotAvailable is returned when a source has no data for an instant.
var ErrNotAvailable = errors.New("overlay data not available")

// SlotLayout names overlay files, one per slot: 20240615T1400.json
const SlotLayout = "20060102T1504"

// Grid is a regular wind grid in the leaflet-velocity layout. U and V are
// row-major from the north-west corner (Lo1, La1).
type Grid struct {
	U     []float64   `json:"u"`
	V     []float64   `json:"v"`
	NX    int         `json:"nx"`
	NY    int         `json:"ny"`
	Lo1   float64     `json:"lo1"`
	La1   float64     `json:"la1"`
	Dx    float64     `json:"dx"`
	Dy    float64     `json:"dy"`
	Times []time.Time `json:"times,omitempty"`
}

// Validate checks that the component slices match the grid size.
func (g Grid) Validate() error {
	if g.NX <= 0 || g.NY <= 0 {
		return fmt.Errorf("grid size %dx%d", g.NX, g.NY)
	}
	if len(g.U) != g.NX*g.NY || len(g.V) != g.NX*g.NY {
		return fmt.Errorf("grid %dx%d has %d u and %d v values", g.NX, g.NY, len(g.U), len(g.V))
	}
	return nil
}

// Overlay is a loaded layer for one playback instant.
type Overlay struct {
	Instant time.Time `json:"instant"`
	Slot    time.Time `json:"slot"`
	Cached  bool      `json:"cached"`
	Grid    Grid      `json:"grid"`
}

// Source provides the grid covering bounds at a slot.
type Source interface {
	Grid(ctx context.Context, bounds geo.Bounds, slot time.Time) (Grid, error)
}

// DirSource reads grids from <Dir>/<slot>.json.
type DirSource struct {
	Dir string
}

// Grid implements Source. Bounds are not used for cropping; local files
// already cover the race area.
func (s DirSource) Grid(ctx context.Context, _ geo.Bounds, slot time.Time) (Grid, error) {
	if err := ctx.Err(); err != nil {
		return Grid{}, err
	}

	path := filepath.Join(s.Dir, slot.UTC().Format(SlotLayout)+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Grid{}, fmt.Errorf("%w: %s", ErrNotAvailable, slot.UTC().Format(time.RFC3339))
	}
	if err != nil {
		return Grid{}, err
	}

	var g Grid
	if err := json.Unmarshal(data, &g); err != nil {
		return Grid{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return Grid{}, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Slot truncates instant to the slot grid of width step.
func Slot(instant time.Time, step time.Duration) time.Time {
	if step <= 0 {
		return instant.UTC()
	}
	return instant.UTC().Truncate(step)
}

// cacheKey identifies a grid by slot and area.
func cacheKey(slot time.Time, b geo.Bounds) string {
	return fmt.Sprintf("%s_%g_%g_%g_%g", slot.UTC().Format(time.RFC3339), b.West, b.South, b.East, b.North)
}
