package binary

import (
	"testing"

	"github.com/teyhd/peacedb/models"
)

func TestCreateSnapshotAndReadBack(t *testing.T) {
	dir := t.TempDir()
	sm := NewSnapshotManager(dir)

	docs := []*models.Document{
		{ID: "d1", Rev: "1-aaa", Data: map[string]models.Value{"x": models.Int32Value(1)}},
		{ID: "d2", Rev: "2-bbb", Deleted: true},
	}

	if err := sm.CreateSnapshot(docs, 42, 1700000000); err != nil {
		t.Fatalf("CreateSnapshot() error = %v", err)
	}

	manifest, ok := sm.TryReadManifest()
	if !ok {
		t.Fatal("TryReadManifest() ok = false after CreateSnapshot")
	}
	if manifest.LastSeq != 42 {
		t.Errorf("manifest.LastSeq = %d, want 42", manifest.LastSeq)
	}
	if manifest.ActiveSnapshot == "" {
		t.Error("manifest.ActiveSnapshot is empty")
	}

	got, err := sm.ReadActiveSnapshotLines()
	if err != nil {
		t.Fatalf("ReadActiveSnapshotLines() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadActiveSnapshotLines() returned %d docs, want 2", len(got))
	}
}

func TestTryReadManifestMissingFile(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir())
	if _, ok := sm.TryReadManifest(); ok {
		t.Error("TryReadManifest() ok = true for a directory with no manifest")
	}
}

func TestReadActiveSnapshotLinesNoManifest(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir())
	docs, err := sm.ReadActiveSnapshotLines()
	if err != nil {
		t.Fatalf("ReadActiveSnapshotLines() error = %v", err)
	}
	if docs != nil {
		t.Errorf("ReadActiveSnapshotLines() with no manifest = %v, want nil", docs)
	}
}

func TestCreateSnapshotOverwritesManifestAtomically(t *testing.T) {
	dir := t.TempDir()
	sm := NewSnapshotManager(dir)

	if err := sm.CreateSnapshot([]*models.Document{{ID: "d1", Rev: "1-a"}}, 1, 1700000000); err != nil {
		t.Fatalf("CreateSnapshot() #1 error = %v", err)
	}
	first, _ := sm.TryReadManifest()

	if err := sm.CreateSnapshot([]*models.Document{{ID: "d1", Rev: "2-b"}}, 2, 1700000001); err != nil {
		t.Fatalf("CreateSnapshot() #2 error = %v", err)
	}
	second, ok := sm.TryReadManifest()
	if !ok {
		t.Fatal("TryReadManifest() ok = false after second snapshot")
	}
	if second.ActiveSnapshot == first.ActiveSnapshot {
		t.Error("second snapshot should replace the manifest's ActiveSnapshot pointer")
	}
	if second.LastSeq != 2 {
		t.Errorf("second manifest.LastSeq = %d, want 2", second.LastSeq)
	}
}
