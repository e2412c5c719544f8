// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/seatrack/gpxplayer/internal/config"
	"github.com/seatrack/gpxplayer/pkg/core"
)

// SessionRecord groups a session with all its tracks
type SessionRecord struct {
	Session core.Session
	Tracks  map[string]core.StoredTrack // keyed by EntityID
}

// Backend keeps sessions in memory and mirrors each one to a JSON file
// in OutputDir, so a later run can load what an earlier run imported.
type Backend struct {
	cfg      config.MemoryConfig
	logger   *slog.Logger
	sessions map[string]*SessionRecord // keyed by session name
	mu       sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*SessionRecord),
	}
}

// Init reads every session file already present in the output directory.
// A missing directory is not an error.
func (b *Backend) Init() error {
	if b.cfg.OutputDir == "" {
		return nil
	}
	entries, err := os.ReadDir(b.cfg.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read output directory: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.gz")) {
			continue
		}
		export, err := readExport(filepath.Join(b.cfg.OutputDir, name))
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
		rec := &SessionRecord{
			Session: export.Session,
			Tracks:  make(map[string]core.StoredTrack, len(export.Tracks)),
		}
		for _, t := range export.Tracks {
			rec.Tracks[t.Series.EntityID] = t
		}
		b.sessions[export.Session.Name] = rec
		b.logger.Debug("Loaded session file", "file", name, "session", export.Session.Name, "tracks", len(rec.Tracks))
	}
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// SaveTrack stores the track and rewrites the session file
func (b *Backend) SaveTrack(session core.Session, track core.StoredTrack) error {
	if session.Name == "" {
		return fmt.Errorf("session name is required")
	}
	if track.Series.EntityID == "" {
		return fmt.Errorf("track entity id is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.sessions[session.Name]
	if !ok {
		rec = &SessionRecord{
			Session: session,
			Tracks:  make(map[string]core.StoredTrack),
		}
		b.sessions[session.Name] = rec
	}
	rec.Tracks[track.Series.EntityID] = track

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON(rec)
}

// LoadSession returns the series of a session keyed by entity ID
func (b *Backend) LoadSession(name string) (core.Session, map[string]core.TimeSeries, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.sessions[name]
	if !ok {
		return core.Session{}, nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, name)
	}
	series := make(map[string]core.TimeSeries, len(rec.Tracks))
	for id, t := range rec.Tracks {
		series[id] = t.Series
	}
	return rec.Session, series, nil
}

// ListSessions returns every session ordered by name
func (b *Backend) ListSessions() ([]core.Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Session, 0, len(b.sessions))
	for _, rec := range b.sessions {
		out = append(out, rec.Session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
