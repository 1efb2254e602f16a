package binary

import (
	"fmt"

	"github.com/teyhd/peacedb/models"
)

// database is the self-contained per-database state bundle described in
// spec §9: heads, bodies, the monotonic seq counter, and the three
// secondary indexes. Nothing here is shared with any other database.
type database struct {
	name    string
	heads   map[string]models.Head
	bodies  map[string]*models.Document
	order   []string // insertion order of ids, first-seen; spec §9 "AllDocs ordering"
	seq     int64

	fields   map[string]*fieldIndex
	tagIdx   map[string]map[string]struct{}
	textIdx  map[string]map[string]struct{}
}

func newDatabase(name string) *database {
	return &database{
		name:    name,
		heads:   make(map[string]models.Head),
		bodies:  make(map[string]*models.Document),
		fields:  make(map[string]*fieldIndex),
		tagIdx:  make(map[string]map[string]struct{}),
		textIdx: make(map[string]map[string]struct{}),
	}
}

// Store holds every open database's in-memory state. It implements spec
// §4.C in full; it performs no I/O of its own — durability is layered on
// top by the durable document service (package service), which
// also supplies the concurrency guarantees from spec §5. Store itself is
// not safe for concurrent use without an external lock, by design (§9,
// "do not share sub-locks between databases": each database's lock lives
// one layer up, in the service).
type Store struct {
	databases map[string]*database
}

// NewStore returns an empty Store with no databases.
func NewStore() *Store {
	return &Store{databases: make(map[string]*database)}
}

// CreateDb creates an empty database. Idempotent: creating an existing
// database is a no-op, not an error.
func (s *Store) CreateDb(name string) error {
	if name == "" {
		return models.NewError(models.KindValidation, "CreateDb", "database name must not be empty", nil)
	}
	if _, exists := s.databases[name]; exists {
		return nil
	}
	s.databases[name] = newDatabase(name)
	return nil
}

// DeleteDb removes a database and all its in-memory state. Fails with
// NotFound if the database does not exist.
func (s *Store) DeleteDb(name string) error {
	if _, exists := s.databases[name]; !exists {
		return models.NewError(models.KindNotFound, "DeleteDb", fmt.Sprintf("database %q does not exist", name), nil)
	}
	delete(s.databases, name)
	return nil
}

// ListDbs returns the names of every open database, in no particular
// order.
func (s *Store) ListDbs() []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	return names
}

func (s *Store) db(name string) (*database, error) {
	d, ok := s.databases[name]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "db", fmt.Sprintf("database %q does not exist", name), nil)
	}
	return d, nil
}

// Get returns the current document for id, or NotFound. If rev is
// non-empty it must match the stored head's rev, matching spec §4.C's
// description of Get's rev parameter: only the current revision is ever
// retrievable, and a mismatched rev is a not-found result rather than a
// conflict.
func (s *Store) Get(dbName, id, rev string) (*models.Document, error) {
	d, err := s.db(dbName)
	if err != nil {
		return nil, err
	}
	head, ok := d.heads[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "Get", fmt.Sprintf("document %q not found", id), nil)
	}
	if rev != "" && rev != head.Rev {
		return nil, models.NewError(models.KindNotFound, "Get", fmt.Sprintf("document %q has no revision %q", id, rev), nil)
	}
	body, ok := d.bodies[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "Get", fmt.Sprintf("document %q not found", id), nil)
	}
	return body.Clone(), nil
}

// Put upserts doc with optimistic concurrency (spec §4.C):
//   - no existing head for doc.ID: accept unconditionally, assign rev 1-H.
//   - existing head: doc.Rev must equal the head's rev, else Conflict.
//
// The index delta between the old and new body is computed up front and
// applied in one pass so no reader ever observes a partially updated
// index (spec §3, §9).
func (s *Store) Put(dbName string, doc *models.Document) (*models.Document, error) {
	d, err := s.db(dbName)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.ID == "" {
		return nil, models.NewError(models.KindValidation, "Put", "document id must not be empty", nil)
	}

	head, exists := d.heads[doc.ID]
	if exists && doc.Rev != head.Rev {
		return nil, models.NewError(models.KindConflict, "Put", fmt.Sprintf("revision mismatch for %q: have %q, got %q", doc.ID, head.Rev, doc.Rev), nil)
	}

	newDoc := doc.Clone()
	newDoc.Deleted = false

	encoded, err := Encode(newDoc)
	if err != nil {
		return nil, models.NewError(models.KindValidation, "Put", "failed to encode document", err)
	}
	newDoc.Rev = NextRevision(head.Rev, encoded)

	var oldBody *models.Document
	if exists {
		oldBody = d.bodies[doc.ID]
	}
	d.applyIndexDelta(doc.ID, oldBody, newDoc)

	d.heads[doc.ID] = models.Head{Rev: newDoc.Rev, Deleted: false}
	d.bodies[doc.ID] = newDoc
	if !exists {
		d.order = append(d.order, doc.ID)
	}
	d.seq++

	return newDoc.Clone(), nil
}

// Post creates a document, generating a 32-hex-character random id when
// doc.ID is empty, then delegates to Put (spec §4.C).
func (s *Store) Post(dbName string, doc *models.Document) (*models.Document, error) {
	if doc != nil && doc.ID == "" {
		doc = doc.Clone()
		doc.ID = newDocumentID()
		doc.Rev = ""
	}
	return s.Put(dbName, doc)
}

// Delete soft-deletes id: requires rev to match the current head,
// produces a new revision over the tombstone body, strips the id from
// every index, and bumps seq (spec §4.C).
func (s *Store) Delete(dbName, id, rev string) (*models.Document, error) {
	d, err := s.db(dbName)
	if err != nil {
		return nil, err
	}
	head, exists := d.heads[id]
	if !exists {
		return nil, models.NewError(models.KindNotFound, "Delete", fmt.Sprintf("document %q not found", id), nil)
	}
	if rev != head.Rev {
		return nil, models.NewError(models.KindConflict, "Delete", fmt.Sprintf("revision mismatch for %q: have %q, got %q", id, head.Rev, rev), nil)
	}

	tombstone := &models.Document{ID: id, Deleted: true}
	encoded, err := Encode(tombstone)
	if err != nil {
		return nil, models.NewError(models.KindValidation, "Delete", "failed to encode tombstone", err)
	}
	tombstone.Rev = NextRevision(head.Rev, encoded)

	oldBody := d.bodies[id]
	d.applyIndexDelta(id, oldBody, tombstone)

	d.heads[id] = models.Head{Rev: tombstone.Rev, Deleted: true}
	d.bodies[id] = tombstone
	d.seq++

	return tombstone.Clone(), nil
}

// AllDocs enumerates heads in insertion order (spec §9, open question
// resolved in favor of order-preservation). skip/limit are unsigned
// counts; limit is clamped to maxLimit (the caller, normally the durable
// service, supplies the configured clamp — spec §4.C hardcodes 1000, but
// the clamp is parameterized here so the service can apply its
// configured MaxAllDocsLimit).
func (s *Store) AllDocs(dbName string, skip, limit int, includeDeleted bool, maxLimit int) ([]*models.Document, error) {
	d, err := s.db(dbName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}

	out := make([]*models.Document, 0, limit)
	matched := 0
	for _, id := range d.order {
		head := d.heads[id]
		if head.Deleted && !includeDeleted {
			continue
		}
		if matched < skip {
			matched++
			continue
		}
		if len(out) >= limit {
			break
		}
		matched++
		out = append(out, d.bodies[id].Clone())
	}
	return out, nil
}

// Seq returns the database's current mutation counter.
func (s *Store) Seq(dbName string) (int64, error) {
	d, err := s.db(dbName)
	if err != nil {
		return 0, err
	}
	return d.seq, nil
}

// Import installs doc without running the revision engine: a recovery
// helper (spec §4.C) used only by the durable service while replaying a
// snapshot or WAL. setAsHead updates d.heads; reindex additionally
// updates the three secondary indexes; bumpSeq increments d.seq (false
// during snapshot replay, since the snapshot itself carries no
// per-document sequence advance).
func (s *Store) Import(dbName string, doc *models.Document, setAsHead, reindex, bumpSeq bool) error {
	d, err := s.db(dbName)
	if err != nil {
		return err
	}
	if doc == nil || doc.ID == "" {
		return models.NewError(models.KindValidation, "Import", "document id must not be empty", nil)
	}

	_, hadHead := d.heads[doc.ID]
	oldBody := d.bodies[doc.ID]

	if setAsHead {
		d.heads[doc.ID] = models.Head{Rev: doc.Rev, Deleted: doc.Deleted}
		d.bodies[doc.ID] = doc.Clone()
		if !hadHead {
			d.order = append(d.order, doc.ID)
		}
	}
	if reindex {
		d.applyIndexDelta(doc.ID, oldBody, doc)
	}
	if bumpSeq {
		d.seq++
	}
	return nil
}

// SetSeq force-sets the database's sequence counter: a recovery helper
// used once after snapshot + WAL replay completes (spec §4.C, §4.F).
func (s *Store) SetSeq(dbName string, n int64) error {
	d, err := s.db(dbName)
	if err != nil {
		return err
	}
	d.seq = n
	return nil
}

// applyIndexDelta removes oldBody's index entries (if any) and installs
// newBody's (if newBody is live), computing both snapshots before
// mutating any index so no reader sees a torn update (spec §3, §9).
func (d *database) applyIndexDelta(id string, oldBody, newBody *models.Document) {
	oldSnap := snapshotOf(oldBody)
	newSnap := snapshotOf(newBody)

	for field, val := range oldSnap.fields {
		if newSnap.fields[field] == val {
			continue
		}
		if fi, ok := d.fields[field]; ok {
			fi.removeEquality(val, id)
		}
	}
	for field, num := range oldSnap.nums {
		if nv, ok := newSnap.nums[field]; ok && nv == num {
			continue
		}
		if fi, ok := d.fields[field]; ok {
			fi.removeNumeric(num, id)
		}
	}
	for _, tag := range oldSnap.tags {
		if containsString(newSnap.tags, tag) {
			continue
		}
		if set, ok := d.tagIdx[tag]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(d.tagIdx, tag)
			}
		}
	}
	for _, tok := range oldSnap.tokens {
		if containsString(newSnap.tokens, tok) {
			continue
		}
		if set, ok := d.textIdx[tok]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(d.textIdx, tok)
			}
		}
	}

	for field, val := range newSnap.fields {
		if oldSnap.fields[field] == val {
			continue
		}
		fi, ok := d.fields[field]
		if !ok {
			fi = newFieldIndex()
			d.fields[field] = fi
		}
		fi.addEquality(val, id)
	}
	for field, num := range newSnap.nums {
		if ov, ok := oldSnap.nums[field]; ok && ov == num {
			continue
		}
		fi, ok := d.fields[field]
		if !ok {
			fi = newFieldIndex()
			d.fields[field] = fi
		}
		fi.addNumeric(num, id)
	}
	for _, tag := range newSnap.tags {
		if containsString(oldSnap.tags, tag) {
			continue
		}
		set, ok := d.tagIdx[tag]
		if !ok {
			set = make(map[string]struct{})
			d.tagIdx[tag] = set
		}
		set[id] = struct{}{}
	}
	for _, tok := range newSnap.tokens {
		if containsString(oldSnap.tokens, tok) {
			continue
		}
		set, ok := d.textIdx[tok]
		if !ok {
			set = make(map[string]struct{})
			d.textIdx[tok] = set
		}
		set[id] = struct{}{}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
