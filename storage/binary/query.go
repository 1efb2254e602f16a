package binary

import "github.com/teyhd/peacedb/models"

// NumericRange constrains FindByFields to ids whose value for Field lies
// within [Min, Max], where a nil bound leaves that side open (spec
// §4.C).
type NumericRange struct {
	Field string
	Min   *float64
	Max   *float64
}

// FindByFields intersects the id sets produced by each equality
// predicate in equals, then intersects that with the numeric range (if
// any). Tombstones are always excluded (spec §4.C).
func (s *Store) FindByFields(dbName string, equals map[string]string, numRange *NumericRange, skip, limit int) ([]*models.Document, error) {
	d, err := s.db(dbName)
	if err != nil {
		return nil, err
	}

	var result map[string]struct{}
	started := false

	for field, value := range equals {
		fi, ok := d.fields[field]
		if !ok {
			return paginate(nil, skip, limit), nil
		}
		matches := fi.equality[value]
		result = intersectOrInit(result, matches, started)
		started = true
		if len(result) == 0 {
			return paginate(nil, skip, limit), nil
		}
	}

	if numRange != nil {
		fi, ok := d.fields[numRange.Field]
		if !ok {
			return paginate(nil, skip, limit), nil
		}
		matches := fi.rangeIDs(numRange.Min, numRange.Max)
		result = intersectOrInit(result, matches, started)
		started = true
	}

	if !started {
		// No predicates given at all: nothing to match against.
		return paginate(nil, skip, limit), nil
	}

	ids := excludeTombstones(d, setToSlice(result))
	return paginate(d.materialize(ids), skip, limit), nil
}

// FindByTags returns ids in (∩ allOf) ∧ (anyOf empty ∨ ∪ anyOf) ∧ ¬(∪
// noneOf), per spec §4.C.
func (s *Store) FindByTags(dbName string, allOf, anyOf, noneOf []string, skip, limit int) ([]*models.Document, error) {
	d, err := s.db(dbName)
	if err != nil {
		return nil, err
	}

	var result map[string]struct{}
	started := false

	for _, tag := range allOf {
		matches := d.tagIdx[tag]
		result = intersectOrInit(result, matches, started)
		started = true
		if len(result) == 0 {
			return paginate(nil, skip, limit), nil
		}
	}

	if len(anyOf) > 0 {
		union := make(map[string]struct{})
		for _, tag := range anyOf {
			for id := range d.tagIdx[tag] {
				union[id] = struct{}{}
			}
		}
		result = intersectOrInit(result, union, started)
		started = true
	}

	if !started {
		// No allOf/anyOf given: match every live id, then apply noneOf.
		result = make(map[string]struct{}, len(d.heads))
		for id, head := range d.heads {
			if !head.Deleted {
				result[id] = struct{}{}
			}
		}
	}

	if len(noneOf) > 0 {
		for _, tag := range noneOf {
			for id := range d.tagIdx[tag] {
				delete(result, id)
			}
		}
	}

	ids := excludeTombstones(d, setToSlice(result))
	return paginate(d.materialize(ids), skip, limit), nil
}

// FullTextSearch tokenizes query identically to indexing and returns the
// ids whose content's token set intersects every query token (spec
// §4.C).
func (s *Store) FullTextSearch(dbName, query string, skip, limit int) ([]*models.Document, error) {
	d, err := s.db(dbName)
	if err != nil {
		return nil, err
	}

	tokens := tokenize(query)
	if len(tokens) == 0 {
		return paginate(nil, skip, limit), nil
	}

	var result map[string]struct{}
	for i, tok := range tokens {
		matches := d.textIdx[tok]
		result = intersectOrInit(result, matches, i > 0)
		if len(result) == 0 {
			return paginate(nil, skip, limit), nil
		}
	}

	ids := excludeTombstones(d, setToSlice(result))
	return paginate(d.materialize(ids), skip, limit), nil
}

// Stats reports per-database counts used by health checks and tests.
type Stats struct {
	LiveCount      int
	DeletedCount   int
	IndexedFields  int
	DistinctTags   int
	DistinctTokens int
	// IndexDrift counts (id, index-entry) pairs that a live id's current
	// body implies for the equality, tag or full-text index but that the
	// index does not hold. Extra entries an index holds, and the numeric
	// range entries, are not checked. Diagnostic only; zero while the
	// spec §3 invariant holds. See SPEC_FULL.md's supplemented-features
	// section.
	IndexDrift int
}

func (s *Store) Stats(dbName string) (Stats, error) {
	d, err := s.db(dbName)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{IndexedFields: len(d.fields), DistinctTags: len(d.tagIdx), DistinctTokens: len(d.textIdx)}
	for _, head := range d.heads {
		if head.Deleted {
			st.DeletedCount++
		} else {
			st.LiveCount++
		}
	}
	st.IndexDrift = d.computeIndexDrift()
	return st, nil
}

// computeIndexDrift re-derives every live id's expected index membership
// from its stored body and compares it against what the indexes actually
// record, returning the number of mismatched (id, index-entry) pairs.
func (d *database) computeIndexDrift() int {
	drift := 0
	for id, head := range d.heads {
		if head.Deleted {
			continue
		}
		snap := snapshotOf(d.bodies[id])
		for field, val := range snap.fields {
			fi, ok := d.fields[field]
			if !ok {
				drift++
				continue
			}
			if _, ok := fi.equality[val][id]; !ok {
				drift++
			}
		}
		for _, tag := range snap.tags {
			if _, ok := d.tagIdx[tag][id]; !ok {
				drift++
			}
		}
		for _, tok := range snap.tokens {
			if _, ok := d.textIdx[tok][id]; !ok {
				drift++
			}
		}
	}
	return drift
}

func (d *database) materialize(ids []string) []*models.Document {
	out := make([]*models.Document, 0, len(ids))
	for _, id := range ids {
		if body, ok := d.bodies[id]; ok {
			out = append(out, body.Clone())
		}
	}
	return out
}

func excludeTombstones(d *database, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if head, ok := d.heads[id]; ok && !head.Deleted {
			out = append(out, id)
		}
	}
	return out
}

func intersectOrInit(current map[string]struct{}, with map[string]struct{}, started bool) map[string]struct{} {
	if !started {
		out := make(map[string]struct{}, len(with))
		for id := range with {
			out[id] = struct{}{}
		}
		return out
	}
	out := make(map[string]struct{})
	for id := range current {
		if _, ok := with[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func paginate(docs []*models.Document, skip, limit int) []*models.Document {
	if skip > 0 {
		if skip >= len(docs) {
			return []*models.Document{}
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
