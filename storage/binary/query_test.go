package binary

import (
	"testing"

	"github.com/teyhd/peacedb/models"
)

func seedCatalog(t *testing.T, s *Store) {
	t.Helper()
	docs := []*models.Document{
		{ID: "p1", Data: map[string]models.Value{"category": models.StringValue("widget"), "price": models.Float64Value(9.99)}, Tags: []string{"sale", "new"}, Content: "shiny red widget"},
		{ID: "p2", Data: map[string]models.Value{"category": models.StringValue("widget"), "price": models.Float64Value(19.99)}, Tags: []string{"new"}, Content: "blue widget deluxe"},
		{ID: "p3", Data: map[string]models.Value{"category": models.StringValue("gadget"), "price": models.Float64Value(29.99)}, Tags: []string{"sale"}, Content: "smart gadget device"},
	}
	for _, d := range docs {
		if _, err := s.Put("catalog", d); err != nil {
			t.Fatalf("Put(%q) error = %v", d.ID, err)
		}
	}
}

func newCatalogStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	if err := s.CreateDb("catalog"); err != nil {
		t.Fatalf("CreateDb() error = %v", err)
	}
	seedCatalog(t, s)
	return s
}

func TestFindByFieldsEquality(t *testing.T) {
	s := newCatalogStore(t)
	results, err := s.FindByFields("catalog", map[string]string{"category": "widget"}, nil, 0, 10)
	if err != nil {
		t.Fatalf("FindByFields() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("FindByFields(category=widget) returned %d, want 2", len(results))
	}
}

func TestFindByFieldsNumericRange(t *testing.T) {
	s := newCatalogStore(t)
	min := 10.0
	results, err := s.FindByFields("catalog", nil, &NumericRange{Field: "price", Min: &min}, 0, 10)
	if err != nil {
		t.Fatalf("FindByFields() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("FindByFields(price>=10) returned %d, want 2", len(results))
	}
}

func TestFindByFieldsCombinesEqualityAndRange(t *testing.T) {
	s := newCatalogStore(t)
	max := 15.0
	results, err := s.FindByFields("catalog", map[string]string{"category": "widget"}, &NumericRange{Field: "price", Max: &max}, 0, 10)
	if err != nil {
		t.Fatalf("FindByFields() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "p1" {
		t.Fatalf("FindByFields(category=widget, price<=15) = %v, want exactly [p1]", results)
	}
}

func TestFindByTagsAllOfAnyOfNoneOf(t *testing.T) {
	s := newCatalogStore(t)

	all, err := s.FindByTags("catalog", []string{"new"}, nil, nil, 0, 10)
	if err != nil {
		t.Fatalf("FindByTags(allOf=new) error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("FindByTags(allOf=new) = %d results, want 2", len(all))
	}

	any, err := s.FindByTags("catalog", nil, []string{"sale", "new"}, nil, 0, 10)
	if err != nil {
		t.Fatalf("FindByTags(anyOf) error = %v", err)
	}
	if len(any) != 3 {
		t.Errorf("FindByTags(anyOf=sale,new) = %d results, want 3", len(any))
	}

	none, err := s.FindByTags("catalog", nil, nil, []string{"sale"}, 0, 10)
	if err != nil {
		t.Fatalf("FindByTags(noneOf) error = %v", err)
	}
	if len(none) != 1 || none[0].ID != "p2" {
		t.Fatalf("FindByTags(noneOf=sale) = %v, want exactly [p2]", none)
	}
}

func TestFullTextSearchIntersectsTokens(t *testing.T) {
	s := newCatalogStore(t)
	results, err := s.FullTextSearch("catalog", "blue widget", 0, 10)
	if err != nil {
		t.Fatalf("FullTextSearch() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "p2" {
		t.Fatalf("FullTextSearch(\"blue widget\") = %v, want exactly [p2]", results)
	}
}

func TestFullTextSearchIsCaseInsensitive(t *testing.T) {
	s := newCatalogStore(t)
	results, err := s.FullTextSearch("catalog", "SHINY", 0, 10)
	if err != nil {
		t.Fatalf("FullTextSearch() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "p1" {
		t.Fatalf("FullTextSearch(\"SHINY\") = %v, want exactly [p1]", results)
	}
}

func TestStatsCountsLiveAndDeleted(t *testing.T) {
	s := newCatalogStore(t)
	got, err := s.Get("catalog", "p1", "")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := s.Delete("catalog", "p1", got.Rev); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	stats, err := s.Stats("catalog")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.LiveCount != 2 {
		t.Errorf("Stats().LiveCount = %d, want 2", stats.LiveCount)
	}
	if stats.DeletedCount != 1 {
		t.Errorf("Stats().DeletedCount = %d, want 1", stats.DeletedCount)
	}
	if stats.IndexDrift != 0 {
		t.Errorf("Stats().IndexDrift = %d, want 0", stats.IndexDrift)
	}
}

func TestPaginationSkipAndLimit(t *testing.T) {
	s := NewStore()
	if err := s.CreateDb("page"); err != nil {
		t.Fatalf("CreateDb() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := s.Post("page", &models.Document{Tags: []string{"item"}}); err != nil {
			t.Fatalf("Post() error = %v", err)
		}
	}
	results, err := s.FindByTags("page", []string{"item"}, nil, nil, 2, 2)
	if err != nil {
		t.Fatalf("FindByTags() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("FindByTags() with skip=2,limit=2 returned %d, want 2", len(results))
	}
}
