package binary

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/teyhd/peacedb/logger"
	"github.com/teyhd/peacedb/models"
)

const manifestFileName = "manifest.json"

// Manifest is the tiny JSON file recording a database's last-applied
// sequence and the currently-authoritative snapshot file (spec §4.E,
// §6.2). Rewriting it atomically is the commit point of a snapshot.
type Manifest struct {
	LastSeq         int64  `json:"lastSeq"`
	ActiveSnapshot  string `json:"activeSnapshot"`
	SnapshotTimeUTC string `json:"snapshotTimeUtc"`
}

// SnapshotManager writes full-state snapshots and the manifest pointing
// at the active one, for a single database directory (spec §4.E).
type SnapshotManager struct {
	dbDir string
}

func NewSnapshotManager(dbDir string) *SnapshotManager {
	return &SnapshotManager{dbDir: dbDir}
}

// CreateSnapshot writes docs (every head, including tombstones, in
// insertion order) as one JSON document per line to a new
// snapshot-{unix_ts}.jsonl file, fsyncs it, then atomically overwrites
// the manifest to point at it. The previous snapshot file, if any, is
// left on disk — garbage collection is out of scope (spec §4.E).
func (sm *SnapshotManager) CreateSnapshot(docs []*models.Document, lastSeq int64, unixTS int64) error {
	name := fmt.Sprintf("snapshot-%d.jsonl", unixTS)
	path := filepath.Join(sm.dbDir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return models.NewError(models.KindIO, "CreateSnapshot", "failed to create snapshot file", err)
	}

	w := bufio.NewWriter(file)
	for _, doc := range docs {
		line, err := json.Marshal(doc)
		if err != nil {
			file.Close()
			return models.NewError(models.KindIO, "CreateSnapshot", "failed to marshal document", err)
		}
		if _, err := w.Write(line); err != nil {
			file.Close()
			return models.NewError(models.KindIO, "CreateSnapshot", "failed to write snapshot line", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			file.Close()
			return models.NewError(models.KindIO, "CreateSnapshot", "failed to write snapshot line", err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return models.NewError(models.KindIO, "CreateSnapshot", "failed to flush snapshot file", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return models.NewError(models.KindIO, "CreateSnapshot", "failed to fsync snapshot file", err)
	}
	if err := file.Close(); err != nil {
		return models.NewError(models.KindIO, "CreateSnapshot", "failed to close snapshot file", err)
	}

	manifest := Manifest{
		LastSeq:         lastSeq,
		ActiveSnapshot:  name,
		SnapshotTimeUTC: time.Now().UTC().Format(time.RFC3339),
	}
	return sm.writeManifest(manifest)
}

func (sm *SnapshotManager) writeManifest(m Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return models.NewError(models.KindIO, "writeManifest", "failed to marshal manifest", err)
	}

	tmpPath := filepath.Join(sm.dbDir, manifestFileName+".tmp")
	finalPath := filepath.Join(sm.dbDir, manifestFileName)

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return models.NewError(models.KindIO, "writeManifest", "failed to write temp manifest", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return models.NewError(models.KindIO, "writeManifest", "failed to rename manifest into place", err)
	}
	return nil
}

// TryReadManifest reads the manifest, returning ok=false if it's absent
// or unparseable — a corrupt manifest discards the snapshot step during
// recovery rather than failing it outright (spec §4.E, §7).
func (sm *SnapshotManager) TryReadManifest() (manifest Manifest, ok bool) {
	path := filepath.Join(sm.dbDir, manifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, false
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		logger.Warn("snapshot: corrupt manifest at %s: %v", path, err)
		return Manifest{}, false
	}
	return manifest, true
}

// ReadActiveSnapshotLines streams the documents in the manifest's active
// snapshot file, or nil if there is no valid manifest or snapshot.
func (sm *SnapshotManager) ReadActiveSnapshotLines() ([]*models.Document, error) {
	manifest, ok := sm.TryReadManifest()
	if !ok || manifest.ActiveSnapshot == "" {
		return nil, nil
	}

	path := filepath.Join(sm.dbDir, manifest.ActiveSnapshot)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("snapshot: manifest points at missing snapshot %s", path)
			return nil, nil
		}
		return nil, models.NewError(models.KindIO, "ReadActiveSnapshotLines", "failed to open snapshot file", err)
	}
	defer file.Close()

	var docs []*models.Document
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var doc models.Document
		if err := json.Unmarshal(line, &doc); err != nil {
			logger.Warn("snapshot: skipping corrupt line in %s: %v", path, err)
			continue
		}
		docs = append(docs, &doc)
	}
	if err := scanner.Err(); err != nil {
		return docs, models.NewError(models.KindCorruption, "ReadActiveSnapshotLines", "error scanning snapshot file", err)
	}
	return docs, nil
}
