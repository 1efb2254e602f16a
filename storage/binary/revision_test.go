package binary

import (
	"strings"
	"testing"
)

func TestNextRevisionFormat(t *testing.T) {
	rev := NextRevision("", []byte("body-v1"))
	if !strings.HasPrefix(rev, "1-") {
		t.Errorf("NextRevision(\"\", ...) = %q, want prefix %q", rev, "1-")
	}
	parts := strings.SplitN(rev, "-", 2)
	if len(parts) != 2 || len(parts[1]) != 40 {
		t.Errorf("NextRevision(\"\", ...) = %q, want a 40-char hex suffix", rev)
	}
}

func TestNextRevisionGenerationIncrements(t *testing.T) {
	first := NextRevision("", []byte("v1"))
	second := NextRevision(first, []byte("v2"))
	third := NextRevision(second, []byte("v3"))

	if RevisionGeneration(first) != 1 {
		t.Errorf("generation of first revision = %d, want 1", RevisionGeneration(first))
	}
	if RevisionGeneration(second) != 2 {
		t.Errorf("generation of second revision = %d, want 2", RevisionGeneration(second))
	}
	if RevisionGeneration(third) != 3 {
		t.Errorf("generation of third revision = %d, want 3", RevisionGeneration(third))
	}
}

func TestNextRevisionIsContentAddressed(t *testing.T) {
	a := NextRevision("1-aaaa", []byte("same body"))
	b := NextRevision("1-bbbb", []byte("same body"))
	// Same generation input and same encoded body must produce the same
	// hash half, independent of the previous revision's hash.
	if strings.SplitN(a, "-", 2)[1] != strings.SplitN(b, "-", 2)[1] {
		t.Error("NextRevision hash half should depend only on the encoded body")
	}

	c := NextRevision("1-aaaa", []byte("different body"))
	if a == c {
		t.Error("NextRevision should produce different hashes for different bodies")
	}
}

func TestNextRevisionMalformedPreviousDefaultsToGenerationOne(t *testing.T) {
	rev := NextRevision("not-a-revision", []byte("body"))
	if RevisionGeneration(rev) != 1 {
		t.Errorf("malformed previous revision should reset generation to 1, got %d", RevisionGeneration(rev))
	}
}
