package binary

import (
	"testing"

	"github.com/teyhd/peacedb/models"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc := &models.Document{
		ID:  "doc-1",
		Rev: "3-deadbeef",
		Data: map[string]models.Value{
			"name":    models.StringValue("ada"),
			"age":     models.Int32Value(36),
			"score":   models.Float64Value(98.6),
			"active":  models.BoolValue(true),
			"aliases": models.ListStringValue([]string{"augusta", "ada"}),
			"address": models.MapValue(map[string]models.Value{
				"city": models.StringValue("london"),
			}),
			"nothing": models.NullValue(),
		},
		Tags:    []string{"person", "mathematician"},
		Content: "the first programmer",
	}

	encoded, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if decoded.ID != doc.ID || decoded.Rev != doc.Rev || decoded.Content != doc.Content {
		t.Fatalf("Decode() top-level fields = %+v, want %+v", decoded, doc)
	}
	if len(decoded.Data) != len(doc.Data) {
		t.Fatalf("Decode() Data length = %d, want %d", len(decoded.Data), len(doc.Data))
	}
	for k, v := range doc.Data {
		got, ok := decoded.Data[k]
		if !ok {
			t.Errorf("Decode() missing field %q", k)
			continue
		}
		if !v.Equal(got) {
			t.Errorf("Decode() field %q = %+v, want %+v", k, got, v)
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	doc := &models.Document{
		ID:  "doc-1",
		Rev: "1-abc",
		Data: map[string]models.Value{
			"z": models.StringValue("1"),
			"a": models.StringValue("2"),
			"m": models.StringValue("3"),
		},
	}

	first, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Encode(doc)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if string(again) != string(first) {
			t.Fatalf("Encode() is not deterministic across repeated calls with the same map")
		}
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	doc := &models.Document{ID: "doc-1", Rev: "1-abc"}
	encoded, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, err := Decode(encoded[:len(encoded)-2]); err == nil {
		t.Error("Decode() of truncated input should fail")
	}
}

func TestDecodeRejectsWrongFormatVersion(t *testing.T) {
	doc := &models.Document{ID: "doc-1", Rev: "1-abc"}
	encoded, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	// The first field frame is [id=fieldFormatVersion][len=1][value]; byte
	// 5 is the version value itself.
	corrupted := append([]byte(nil), encoded...)
	corrupted[5] = 0xFF
	if _, err := Decode(corrupted); err == nil {
		t.Error("Decode() should reject an unrecognized format version")
	}
}
