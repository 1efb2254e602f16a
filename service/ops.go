package service

import (
	"time"

	"github.com/teyhd/peacedb/models"
	"github.com/teyhd/peacedb/storage/binary"
)

// Get reads the current document for id under the database's reader lock
// (spec §6.1, §5).
func (s *Service) Get(dbName, id, rev string) (*models.Document, error) {
	rt, err := s.runtime(dbName)
	if err != nil {
		return nil, err
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return s.store.Get(sanitizeDbName(dbName), id, rev)
}

// Put upserts doc under the database's writer lock: mutate memory, assign
// the next sequence, append a WAL record, then evaluate the snapshot
// trigger — the ordering spec §4.F calls out as a deliberate
// availability/durability trade-off for single-node recovery.
//
// A crash between the memory mutation and the WAL append loses the
// mutation on restart; this is acceptable because the caller has not yet
// received success (spec §4.F, §9 "Crash window").
func (s *Service) Put(dbName string, doc *models.Document) (*models.Document, error) {
	return s.mutate(dbName, func(sanitized string) (*models.Document, recordShape, error) {
		result, err := s.store.Put(sanitized, doc)
		if err != nil {
			return nil, recordShape{}, err
		}
		return result, recordShape{op: "put", id: result.ID, rev: result.Rev, doc: result}, nil
	})
}

// Post creates doc, generating an id when doc.ID is empty, then performs
// the same memory-mutate/WAL-append/maybe-snapshot sequence as Put.
func (s *Service) Post(dbName string, doc *models.Document) (*models.Document, error) {
	return s.mutate(dbName, func(sanitized string) (*models.Document, recordShape, error) {
		result, err := s.store.Post(sanitized, doc)
		if err != nil {
			return nil, recordShape{}, err
		}
		return result, recordShape{op: "put", id: result.ID, rev: result.Rev, doc: result}, nil
	})
}

// Delete soft-deletes id, requiring rev to match the current head, then
// performs the same memory-mutate/WAL-append/maybe-snapshot sequence.
func (s *Service) Delete(dbName, id, rev string) (*models.Document, error) {
	return s.mutate(dbName, func(sanitized string) (*models.Document, recordShape, error) {
		result, err := s.store.Delete(sanitized, id, rev)
		if err != nil {
			return nil, recordShape{}, err
		}
		return result, recordShape{op: "del", id: result.ID, rev: result.Rev}, nil
	})
}

// recordShape carries just enough information from a store mutation to
// build the WAL record, without the mutate helper needing to know which
// operation produced it.
type recordShape struct {
	op  string
	id  string
	rev string
	doc *models.Document
}

// mutate implements the memory-mutate -> WAL-append -> maybe-snapshot
// sequence shared by Put/Post/Delete under the database's writer lock.
func (s *Service) mutate(dbName string, do func(sanitized string) (*models.Document, recordShape, error)) (*models.Document, error) {
	rt, err := s.runtime(dbName)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	sanitized := sanitizeDbName(dbName)
	result, shape, err := do(sanitized)
	if err != nil {
		return nil, err
	}

	nextSeq := rt.lastSeq + 1
	rec := binary.WALRecord{
		Op:  shape.op,
		ID:  shape.id,
		Rev: shape.rev,
		Seq: nextSeq,
		Doc: shape.doc,
		TS:  time.Now().UTC(),
	}

	// Spec §4.F requires the WAL append to complete before the caller
	// receives Ok at durability >= Commit; Append already blocks until
	// that policy's fsync requirement is satisfied, so there is nothing
	// further to do here for Strong/Commit. The in-memory mutation above
	// is not rolled back if this append fails (spec §7's documented
	// window): the caller sees the IO error and must not assume the
	// mutation was durable, but other readers of this process will still
	// observe it until the process restarts and recovers from disk.
	if err := rt.wal.Append(rec); err != nil {
		return result, err
	}
	rt.lastSeq = nextSeq

	if err := s.maybeSnapshot(rt); err != nil {
		return result, err
	}

	return result, nil
}

// maybeSnapshot evaluates the snapshot trigger (spec §4.F):
// lastSeq % SnapshotEveryNOperations == 0, or the WAL size exceeds
// SnapshotMaxWalSizeMb. On trigger it exports every document (including
// tombstones), writes a snapshot, updates the manifest, and rotates the
// WAL. Runs under the caller's already-held writer lock, per spec §5's
// explicit allowance for snapshot writes under the writer lock.
func (s *Service) maybeSnapshot(rt *dbRuntime) error {
	walSize, err := rt.wal.GetSizeBytes()
	if err != nil {
		return err
	}

	bySeq := rt.lastSeq != 0 && rt.lastSeq%s.cfg.SnapshotEveryNOperations == 0
	bySize := walSize > s.cfg.SnapshotMaxWalSizeMb*1024*1024
	if !bySeq && !bySize {
		return nil
	}

	docs, err := s.store.AllDocs(rt.name, 0, allDocsUnbounded, true, allDocsUnbounded)
	if err != nil {
		return err
	}

	if err := rt.snap.CreateSnapshot(docs, rt.lastSeq, nowUnix()); err != nil {
		return err
	}
	return rt.wal.Rotate()
}

// allDocsUnbounded is used internally when exporting a full snapshot,
// where the spec's 1000-document AllDocs clamp must not apply.
const allDocsUnbounded = 1 << 30
