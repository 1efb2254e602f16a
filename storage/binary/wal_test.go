package binary

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teyhd/peacedb/config"
	"github.com/teyhd/peacedb/models"
)

func TestWALAppendAndReadAllLines(t *testing.T) {
	dir := t.TempDir()
	wal, err := OpenWAL(dir, config.Strong, 0)
	if err != nil {
		t.Fatalf("OpenWAL() error = %v", err)
	}
	defer wal.Close()

	recs := []WALRecord{
		{Op: "put", ID: "d1", Rev: "1-aaa", Seq: 1, Doc: &models.Document{ID: "d1", Rev: "1-aaa"}, TS: time.Now().UTC()},
		{Op: "del", ID: "d1", Rev: "2-bbb", Seq: 2, TS: time.Now().UTC()},
	}
	for _, r := range recs {
		if err := wal.Append(r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := ReadAllLines(filepath.Join(dir, walFileName))
	if err != nil {
		t.Fatalf("ReadAllLines() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadAllLines() returned %d records, want 2", len(got))
	}
	if got[0].Op != "put" || got[1].Op != "del" {
		t.Errorf("ReadAllLines() ops = [%s, %s], want [put, del]", got[0].Op, got[1].Op)
	}
}

func TestReadAllLinesSkipsCorruptChecksum(t *testing.T) {
	dir := t.TempDir()
	wal, err := OpenWAL(dir, config.Relaxed, 0)
	if err != nil {
		t.Fatalf("OpenWAL() error = %v", err)
	}
	if err := wal.Append(WALRecord{Op: "put", ID: "d1", Rev: "1-aaa", Seq: 1, TS: time.Now().UTC()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	wal.Close()

	path := filepath.Join(dir, walFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	// Corrupt the line's id so its checksum no longer matches.
	corrupted := []byte(string(data)[:0])
	corrupted = append(corrupted, data...)
	for i, b := range corrupted {
		if b == 'd' {
			corrupted[i] = 'x'
			break
		}
	}
	if err := os.WriteFile(path, corrupted, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := ReadAllLines(path)
	if err != nil {
		t.Fatalf("ReadAllLines() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadAllLines() = %d records, want 0 (corrupt line skipped)", len(got))
	}
}

func TestReadAllLinesMissingFileReturnsEmpty(t *testing.T) {
	got, err := ReadAllLines(filepath.Join(t.TempDir(), "does-not-exist.log"))
	if err != nil {
		t.Fatalf("ReadAllLines() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadAllLines() of missing file = %d records, want 0", len(got))
	}
}

func TestWALRotateTruncates(t *testing.T) {
	dir := t.TempDir()
	wal, err := OpenWAL(dir, config.Relaxed, 0)
	if err != nil {
		t.Fatalf("OpenWAL() error = %v", err)
	}
	defer wal.Close()

	if err := wal.Append(WALRecord{Op: "put", ID: "d1", Seq: 1, TS: time.Now().UTC()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := wal.Rotate(); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	size, err := wal.GetSizeBytes()
	if err != nil {
		t.Fatalf("GetSizeBytes() error = %v", err)
	}
	if size != 0 {
		t.Errorf("GetSizeBytes() after Rotate() = %d, want 0", size)
	}
}
