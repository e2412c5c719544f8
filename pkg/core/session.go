// pkg/core/session.go
package core

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned by track stores when a session was never saved.
var ErrSessionNotFound = errors.New("session not found")

// Session names a group of tracks imported together (one race or one day on the water).
type Session struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	Tag       string    `json:"tag,omitempty"`
}

// StoredTrack is one series together with where it came from.
type StoredTrack struct {
	Series     TimeSeries        `json:"series"`
	SourceFile string            `json:"sourceFile,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
