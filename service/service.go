// Package service composes the in-memory store, write-ahead log, and
// snapshot manager into the Durable Document Service described in spec
// §4.F: the engine's outward-facing API (§6.1). It applies each mutation
// to memory before appending it to the WAL (memory-then-WAL, not
// WAL-then-apply), triggers snapshots, and performs crash recovery at
// startup.
package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/teyhd/peacedb/config"
	"github.com/teyhd/peacedb/logger"
	"github.com/teyhd/peacedb/models"
	"github.com/teyhd/peacedb/storage/binary"
)

// dbRuntime is one database's durable-layer state: its own reader/writer
// lock (spec §9: "do not share sub-locks between databases"), its WAL,
// its snapshot manager, and the sequence last assigned to it.
type dbRuntime struct {
	mu      sync.RWMutex
	name    string
	dir     string
	wal     *binary.WAL
	snap    *binary.SnapshotManager
	lastSeq int64
}

// Service is a Durable Document Service instance: one root directory, one
// in-memory Store shared across every database it opens, and one
// top-level lock guarding the map from database name to dbRuntime (spec
// §5, §9). Safe for concurrent use from multiple goroutines.
type Service struct {
	mu    sync.RWMutex
	cfg   *config.Config
	root  string
	store *binary.Store
	dbs   map[string]*dbRuntime
}

// Open creates a Service rooted at cfg.RootPath, recovering every
// database subdirectory already present there (spec §4.F "Recovery").
func Open(cfg *config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, models.NewError(models.KindValidation, "Open", "invalid config", err)
	}
	if err := os.MkdirAll(cfg.RootPath, 0755); err != nil {
		return nil, models.NewError(models.KindIO, "Open", "failed to create root directory", err)
	}

	s := &Service{
		cfg:   cfg,
		root:  cfg.RootPath,
		store: binary.NewStore(),
		dbs:   make(map[string]*dbRuntime),
	}

	if err := s.recoverAll(); err != nil {
		return nil, err
	}
	return s, nil
}

// recoverAll enumerates database directories under root and replays each
// one's snapshot and WAL (spec §4.F, step 1).
func (s *Service) recoverAll() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return models.NewError(models.KindIO, "recoverAll", "failed to list root directory", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := s.recoverDb(entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) recoverDb(sanitizedName string) error {
	dbDir := filepath.Join(s.root, sanitizedName)

	if err := s.store.CreateDb(sanitizedName); err != nil {
		return err
	}

	snap := binary.NewSnapshotManager(dbDir)
	manifest, ok := snap.TryReadManifest()
	lastSeq := int64(0)
	if ok {
		lastSeq = manifest.LastSeq

		docs, err := snap.ReadActiveSnapshotLines()
		if err != nil {
			logger.Warn("recovery: failed reading snapshot for %s: %v", sanitizedName, err)
		}
		for _, doc := range docs {
			if err := s.store.Import(sanitizedName, doc, true, true, false); err != nil {
				logger.Warn("recovery: failed to import snapshot doc %s/%s: %v", sanitizedName, doc.ID, err)
			}
		}
	}

	wal, err := binary.OpenWAL(dbDir, s.cfg.Durability, s.cfg.WALFsyncThresholdBytes)
	if err != nil {
		return err
	}

	records, err := binary.ReadAllLines(filepath.Join(dbDir, "wal.log"))
	if err != nil {
		logger.Warn("recovery: error reading wal for %s: %v", sanitizedName, err)
	}
	for _, rec := range records {
		switch rec.Op {
		case "put":
			if rec.Doc == nil {
				continue
			}
			if err := s.store.Import(sanitizedName, rec.Doc, true, true, false); err != nil {
				logger.Warn("recovery: failed to replay put %s/%s: %v", sanitizedName, rec.ID, err)
				continue
			}
		case "del":
			rev := rec.Rev
			if rev == "" {
				if existing, err := s.store.Get(sanitizedName, rec.ID, ""); err == nil {
					rev = existing.Rev
				}
			}
			tombstone := &models.Document{ID: rec.ID, Rev: rec.Rev, Deleted: true}
			if rev != "" {
				tombstone.Rev = rev
			}
			if err := s.store.Import(sanitizedName, tombstone, true, true, false); err != nil {
				logger.Warn("recovery: failed to replay delete %s/%s: %v", sanitizedName, rec.ID, err)
				continue
			}
		default:
			logger.Warn("recovery: unknown wal op %q for %s", rec.Op, sanitizedName)
			continue
		}
		if rec.Seq > lastSeq {
			lastSeq = rec.Seq
		}
	}

	if err := s.store.SetSeq(sanitizedName, lastSeq); err != nil {
		return err
	}

	s.dbs[sanitizedName] = &dbRuntime{
		name:    sanitizedName,
		dir:     dbDir,
		wal:     wal,
		snap:    snap,
		lastSeq: lastSeq,
	}
	return nil
}

// sanitizeDbName replaces every path-invalid byte in name with '_', per
// spec §6.2's on-disk layout rule.
func sanitizeDbName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// CreateDb creates an empty database, idempotently, and ensures its
// directory and WAL file exist on disk (spec §4.F). No manifest or
// snapshot file is written until the database's first snapshot.
func (s *Service) CreateDb(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sanitized := sanitizeDbName(name)
	if _, exists := s.dbs[sanitized]; exists {
		return nil
	}

	dbDir := filepath.Join(s.root, sanitized)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return models.NewError(models.KindIO, "CreateDb", "failed to create database directory", err)
	}
	if err := s.store.CreateDb(sanitized); err != nil {
		return err
	}
	wal, err := binary.OpenWAL(dbDir, s.cfg.Durability, s.cfg.WALFsyncThresholdBytes)
	if err != nil {
		return err
	}
	s.dbs[sanitized] = &dbRuntime{
		name: sanitized,
		dir:  dbDir,
		wal:  wal,
		snap: binary.NewSnapshotManager(dbDir),
	}
	return nil
}

// DeleteDb removes a database's directory and all its artifacts. Fails
// with NotFound if the database does not exist.
func (s *Service) DeleteDb(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sanitized := sanitizeDbName(name)
	rt, exists := s.dbs[sanitized]
	if !exists {
		return models.NewError(models.KindNotFound, "DeleteDb", fmt.Sprintf("database %q does not exist", name), nil)
	}

	rt.mu.Lock()
	_ = rt.wal.Close()
	rt.mu.Unlock()

	if err := os.RemoveAll(rt.dir); err != nil {
		return models.NewError(models.KindIO, "DeleteDb", "failed to remove database directory", err)
	}
	if err := s.store.DeleteDb(sanitized); err != nil {
		return err
	}
	delete(s.dbs, sanitized)
	return nil
}

// ListDbs returns every open database's name, sorted for deterministic
// output (the spec does not mandate an order for this operation, unlike
// AllDocs).
func (s *Service) ListDbs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.dbs))
	for name := range s.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Service) runtime(name string) (*dbRuntime, error) {
	sanitized := sanitizeDbName(name)
	s.mu.RLock()
	rt, ok := s.dbs[sanitized]
	s.mu.RUnlock()
	if !ok {
		return nil, models.NewError(models.KindNotFound, "runtime", fmt.Sprintf("database %q does not exist", name), nil)
	}
	return rt, nil
}

// Close closes every open database's WAL file handle.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, rt := range s.dbs {
		if err := rt.wal.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// nowUnix is split out so tests can stub deterministic timestamps for
// snapshot filenames without touching the rest of the mutation path.
var nowUnix = func() int64 { return time.Now().Unix() }
