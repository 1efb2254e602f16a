package models

import "testing"

func TestDocumentCloneIsDeep(t *testing.T) {
	doc := &Document{
		ID:   "doc-1",
		Rev:  "1-abc",
		Data: map[string]Value{"name": StringValue("ada")},
		Tags: []string{"a", "b"},
	}

	cp := doc.Clone()
	cp.Data["name"] = StringValue("mutated")
	cp.Tags[0] = "mutated"

	if doc.Data["name"].Str != "ada" {
		t.Error("Clone did not deep-copy Data")
	}
	if doc.Tags[0] != "a" {
		t.Error("Clone did not deep-copy Tags")
	}
}

func TestDocumentCloneIsDeepForNestedValues(t *testing.T) {
	doc := &Document{
		ID: "doc-1",
		Data: map[string]Value{
			"tags":    ListStringValue([]string{"x", "y"}),
			"profile": MapValue(map[string]Value{"nested": ListStringValue([]string{"p", "q"})}),
		},
	}

	cp := doc.Clone()
	cp.Data["tags"].List[0] = "mutated"
	cp.Data["profile"].Map["nested"].List[0] = "mutated"

	if doc.Data["tags"].List[0] != "x" {
		t.Error("Clone shared the List backing array of a KindListString field")
	}
	if doc.Data["profile"].Map["nested"].List[0] != "p" {
		t.Error("Clone shared backing storage of a value nested inside a KindMap field")
	}
}

func TestDocumentCloneNil(t *testing.T) {
	var doc *Document
	if doc.Clone() != nil {
		t.Error("Clone of a nil document should return nil")
	}
}

func TestTagSetDedupesPreservingOrder(t *testing.T) {
	doc := &Document{Tags: []string{"b", "a", "b", "c", "a"}}
	got := doc.TagSet()
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("TagSet() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TagSet()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
