package service

import (
	"github.com/teyhd/peacedb/models"
	"github.com/teyhd/peacedb/storage/binary"
)

// AllDocs enumerates heads in insertion order (spec §4.C), clamping limit
// to the service's configured MaxAllDocsLimit.
func (s *Service) AllDocs(dbName string, skip, limit int, includeDeleted bool) ([]*models.Document, error) {
	rt, err := s.runtime(dbName)
	if err != nil {
		return nil, err
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return s.store.AllDocs(sanitizeDbName(dbName), skip, limit, includeDeleted, s.cfg.MaxAllDocsLimit)
}

// Seq returns the database's current mutation counter.
func (s *Service) Seq(dbName string) (int64, error) {
	rt, err := s.runtime(dbName)
	if err != nil {
		return 0, err
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return s.store.Seq(sanitizeDbName(dbName))
}

// Stats reports per-database counts (spec §4.C).
func (s *Service) Stats(dbName string) (binary.Stats, error) {
	rt, err := s.runtime(dbName)
	if err != nil {
		return binary.Stats{}, err
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return s.store.Stats(sanitizeDbName(dbName))
}

// FindByFields intersects equality and numeric-range predicates (spec
// §4.C), clamping limit the same way AllDocs does.
func (s *Service) FindByFields(dbName string, equals map[string]string, numRange *binary.NumericRange, skip, limit int) ([]*models.Document, error) {
	rt, err := s.runtime(dbName)
	if err != nil {
		return nil, err
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	limit = clampLimit(limit, s.cfg.MaxAllDocsLimit)
	return s.store.FindByFields(sanitizeDbName(dbName), equals, numRange, skip, limit)
}

// FindByTags evaluates the allOf/anyOf/noneOf tag predicate (spec §4.C).
func (s *Service) FindByTags(dbName string, allOf, anyOf, noneOf []string, skip, limit int) ([]*models.Document, error) {
	rt, err := s.runtime(dbName)
	if err != nil {
		return nil, err
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	limit = clampLimit(limit, s.cfg.MaxAllDocsLimit)
	return s.store.FindByTags(sanitizeDbName(dbName), allOf, anyOf, noneOf, skip, limit)
}

// FullTextSearch tokenizes query and returns ids present in every token's
// posting list (spec §4.C).
func (s *Service) FullTextSearch(dbName, query string, skip, limit int) ([]*models.Document, error) {
	rt, err := s.runtime(dbName)
	if err != nil {
		return nil, err
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	limit = clampLimit(limit, s.cfg.MaxAllDocsLimit)
	return s.store.FullTextSearch(sanitizeDbName(dbName), query, skip, limit)
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
