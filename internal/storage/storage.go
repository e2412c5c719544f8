// internal/storage/storage.go
package storage

import "github.com/seatrack/gpxplayer/pkg/core"

// Backend is the interface all track stores must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// SaveTrack stores a series under the session, replacing an earlier
	// import of the same entity. The session is created on first use.
	SaveTrack(session core.Session, track core.StoredTrack) error

	// LoadSession returns the session and its series keyed by entity ID.
	// Unknown names fail with core.ErrSessionNotFound.
	LoadSession(name string) (core.Session, map[string]core.TimeSeries, error)

	// ListSessions returns every stored session ordered by name.
	ListSessions() ([]core.Session, error)
}

// Exportable is an optional interface for stores that write one file per session.
type Exportable interface {
	ExportPath(session string) string
}
