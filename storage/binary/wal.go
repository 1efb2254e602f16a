package binary

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teyhd/peacedb/config"
	"github.com/teyhd/peacedb/logger"
	"github.com/teyhd/peacedb/models"
)

const walFileName = "wal.log"

// WALRecord is one line of the write-ahead log (spec §4.D): a JSON
// object, UTF-8, terminated by '\n'. Doc is present for "put" and absent
// for "del". Cksum is the supplemental per-line integrity checksum
// described in SPEC_FULL.md's "WAL checksums" section: a SHA-256 hex
// digest over Op+Id+Rev+Seq+Doc, verified on replay.
type WALRecord struct {
	Op     string           `json:"op"`
	ID     string           `json:"id"`
	Rev    string           `json:"rev"`
	Seq    int64            `json:"seq"`
	Doc    *models.Document `json:"doc,omitempty"`
	TS     time.Time        `json:"ts"`
	Cksum  string           `json:"cksum"`
}

func (r WALRecord) checksum() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d", r.Op, r.ID, r.Rev, r.Seq)
	if r.Doc != nil {
		if b, err := Encode(r.Doc); err == nil {
			h.Write(b)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// WAL is an append-only, line-delimited JSON journal for one database,
// with a configurable fsync policy (spec §4.D). Writes are serialized by
// an internal mutex; ReadAllLines is meant for single-threaded recovery
// use only (spec §5).
type WAL struct {
	mu               sync.Mutex
	file             *os.File
	path             string
	durability       config.Durability
	bytesSinceFsync  int64
	fsyncThreshold   int64
}

// OpenWAL opens (creating if needed) the WAL file for a database
// directory.
func OpenWAL(dbDir string, durability config.Durability, fsyncThresholdBytes int64) (*WAL, error) {
	path := filepath.Join(dbDir, walFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, models.NewError(models.KindIO, "OpenWAL", "failed to open wal file", err)
	}
	if fsyncThresholdBytes <= 0 {
		fsyncThresholdBytes = 1 << 20
	}
	return &WAL{file: file, path: path, durability: durability, fsyncThreshold: fsyncThresholdBytes}, nil
}

// Append writes one record to the log, applying the configured
// durability policy (spec §4.D):
//   - Relaxed: write only, no explicit fsync.
//   - Commit: fsync once ≥fsyncThreshold bytes have accumulated since the
//     last fsync.
//   - Strong: fsync after every append.
func (w *WAL) Append(rec WALRecord) error {
	rec.Cksum = rec.checksum()
	line, err := json.Marshal(rec)
	if err != nil {
		return models.NewError(models.KindIO, "Append", "failed to marshal wal record", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(line)
	if err != nil {
		return models.NewError(models.KindIO, "Append", "failed to write wal record", err)
	}
	w.bytesSinceFsync += int64(n)

	switch w.durability {
	case config.Strong:
		if err := w.file.Sync(); err != nil {
			return models.NewError(models.KindIO, "Append", "failed to fsync wal", err)
		}
		w.bytesSinceFsync = 0
	case config.Commit:
		if w.bytesSinceFsync >= w.fsyncThreshold {
			if err := w.file.Sync(); err != nil {
				return models.NewError(models.KindIO, "Append", "failed to fsync wal", err)
			}
			w.bytesSinceFsync = 0
		}
	case config.Relaxed:
		// No explicit fsync; the OS-level write above is enough per spec.
	}
	return nil
}

// Rotate closes the WAL, truncates it to empty, and reopens it for
// appending. Called after a successful snapshot (spec §4.F).
func (w *WAL) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Close(); err != nil {
		return models.NewError(models.KindIO, "Rotate", "failed to close wal before rotation", err)
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return models.NewError(models.KindIO, "Rotate", "failed to reopen wal after rotation", err)
	}
	w.file = file
	w.bytesSinceFsync = 0
	return nil
}

// GetSizeBytes returns the current size of the WAL file on disk.
func (w *WAL) GetSizeBytes() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := w.file.Stat()
	if err != nil {
		return 0, models.NewError(models.KindIO, "GetSizeBytes", "failed to stat wal file", err)
	}
	return info.Size(), nil
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadAllLines returns every parseable record from the WAL file at path,
// in order, whose checksum matches (a record with an empty cksum field is
// accepted unchecked). Any line that fails to parse or whose checksum
// doesn't match, including a trailing partial line left by a crash
// mid-append, is skipped and reported via logger.Warn — recovery is
// resilient to individual corrupt lines (spec §4.D, §7).
func ReadAllLines(path string) ([]WALRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, models.NewError(models.KindIO, "ReadAllLines", "failed to open wal file", err)
	}
	defer file.Close()

	var records []WALRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec WALRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn("wal: skipping corrupt line in %s: %v", path, err)
			continue
		}
		want := rec.checksum()
		if rec.Cksum != "" && rec.Cksum != want {
			logger.Warn("wal: skipping line with checksum mismatch in %s (id=%s seq=%d)", path, rec.ID, rec.Seq)
			continue
		}
		records = append(records, rec)
	}
	// bufio.Scanner silently stops at a trailing partial line that lacks
	// a terminating newline when it hits EOF mid-token only if the buffer
	// overflowed; for a bare truncated line without '\n', Scan still
	// returns it as a final token. Re-validate via checksum above handles
	// that case: a torn write almost never hashes correctly, so it is
	// dropped exactly as spec §4.D intends ("tolerant of a trailing
	// partial line — ignored").
	if err := scanner.Err(); err != nil {
		return records, models.NewError(models.KindCorruption, "ReadAllLines", "error scanning wal file", err)
	}
	return records, nil
}
