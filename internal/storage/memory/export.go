// internal/storage/memory/export.go
package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/seatrack/gpxplayer/internal/util"
	"github.com/seatrack/gpxplayer/pkg/core"
)

// exportVersion is bumped whenever SessionExport changes shape
const exportVersion = 1

// SessionExport is the root JSON structure of a session file
type SessionExport struct {
	Version int                `json:"version"`
	Session core.Session       `json:"session"`
	Tracks  []core.StoredTrack `json:"tracks"`
}

// ExportPath returns the file a session is mirrored to
func (b *Backend) ExportPath(session string) string {
	name := util.Slug(session)
	if b.cfg.CompressOutput {
		name += ".json.gz"
	} else {
		name += ".json"
	}
	return filepath.Join(b.cfg.OutputDir, name)
}

// exportJSON writes the session to its file, tracks ordered by entity ID
func (b *Backend) exportJSON(rec *SessionRecord) error {
	export := SessionExport{
		Version: exportVersion,
		Session: rec.Session,
		Tracks:  make([]core.StoredTrack, 0, len(rec.Tracks)),
	}
	for _, t := range rec.Tracks {
		export.Tracks = append(export.Tracks, t)
	}
	sort.Slice(export.Tracks, func(i, j int) bool {
		return export.Tracks[i].Series.EntityID < export.Tracks[j].Series.EntityID
	})

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := b.ExportPath(rec.Session.Name)
	if b.cfg.CompressOutput {
		return writeGzipJSON(outputPath, export)
	}
	return writeJSON(outputPath, export)
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

func readExport(path string) (SessionExport, error) {
	var export SessionExport

	f, err := os.Open(path)
	if err != nil {
		return export, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return export, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return export, fmt.Errorf("failed to decode session file: %w", err)
	}
	if export.Version != exportVersion {
		return export, fmt.Errorf("unsupported session file version %d", export.Version)
	}
	return export, nil
}
