// Package gormstorage implements the storage.Backend interface on top of GORM.
// The same code serves SQLite and Postgres; the dialect is chosen when the
// database.Manager connects.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/seatrack/gpxplayer/internal/database"
	"github.com/seatrack/gpxplayer/internal/model"
	"github.com/seatrack/gpxplayer/internal/model/convert"
	"github.com/seatrack/gpxplayer/pkg/core"
	"gorm.io/gorm"
)

// Backend stores sessions, vessels and track points through GORM.
type Backend struct {
	mgr    *database.Manager
	logger *slog.Logger
	// batch identifies the sessions created by this process
	batch string
}

// New creates a GORM backend over an already connected manager.
func New(mgr *database.Manager, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		mgr:    mgr,
		logger: logger,
		batch:  uuid.NewString(),
	}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	return b.mgr.Setup()
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	return b.mgr.Close()
}

// DB exposes the underlying handle for inspection in tests and tools.
func (b *Backend) DB() *gorm.DB {
	return b.mgr.DB
}

// SaveTrack stores the track in one transaction, replacing any earlier
// vessel with the same entity ID in the session.
func (b *Backend) SaveTrack(session core.Session, track core.StoredTrack) error {
	if session.Name == "" {
		return fmt.Errorf("session name is required")
	}
	if track.Series.EntityID == "" {
		return fmt.Errorf("track entity id is required")
	}

	return b.mgr.DB.Transaction(func(tx *gorm.DB) error {
		s := model.Session{
			Name:      session.Name,
			StartTime: session.StartTime,
			Tag:       session.Tag,
			BatchID:   b.batch,
		}
		created, err := s.GetOrInsert(tx)
		if err != nil {
			return fmt.Errorf("failed to get or insert session: %w", err)
		}
		if created {
			b.logger.Info("Session created", "session", s.Name, "id", s.ID, "batch", b.batch)
		}

		var old model.Vessel
		err = tx.Where("session_id = ? AND entity_id = ?", s.ID, track.Series.EntityID).First(&old).Error
		switch {
		case err == nil:
			if err := tx.Where("vessel_id = ?", old.ID).Delete(&model.TrackPoint{}).Error; err != nil {
				return fmt.Errorf("failed to delete old track points: %w", err)
			}
			if err := tx.Unscoped().Delete(&old).Error; err != nil {
				return fmt.Errorf("failed to delete old vessel: %w", err)
			}
			b.logger.Debug("Replacing vessel", "session", s.Name, "entity", old.EntityID)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to look up vessel: %w", err)
		}

		v := convert.CoreToVessel(track.Series, s.ID, track.SourceFile, track.Metadata)
		if err := tx.Create(&v).Error; err != nil {
			return fmt.Errorf("failed to insert vessel: %w", err)
		}

		points := convert.CoreToTrackPoints(track.Series, v.ID)
		if len(points) > 0 {
			if err := tx.CreateInBatches(points, 2000).Error; err != nil {
				return fmt.Errorf("failed to insert track points: %w", err)
			}
		}
		return nil
	})
}

// LoadSession returns the series of a session keyed by entity ID.
func (b *Backend) LoadSession(name string) (core.Session, map[string]core.TimeSeries, error) {
	var s model.Session
	err := b.mgr.DB.Where("name = ?", name).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Session{}, nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, name)
	}
	if err != nil {
		return core.Session{}, nil, fmt.Errorf("failed to load session: %w", err)
	}

	var vessels []model.Vessel
	err = b.mgr.DB.Where("session_id = ?", s.ID).
		Preload("Points", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Find(&vessels).Error
	if err != nil {
		return core.Session{}, nil, fmt.Errorf("failed to load vessels: %w", err)
	}

	series := make(map[string]core.TimeSeries, len(vessels))
	for _, v := range vessels {
		series[v.EntityID] = convert.VesselToCore(v, v.Points)
	}
	return sessionToCore(s), series, nil
}

// ListSessions returns every stored session ordered by name.
func (b *Backend) ListSessions() ([]core.Session, error) {
	var rows []model.Session
	if err := b.mgr.DB.Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]core.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, sessionToCore(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func sessionToCore(s model.Session) core.Session {
	return core.Session{
		Name:      s.Name,
		StartTime: s.StartTime.UTC(),
		Tag:       s.Tag,
	}
}
