package models

import "testing"

func TestValueIsScalar(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", NullValue(), true},
		{"string", StringValue("x"), true},
		{"int32", Int32Value(1), true},
		{"float64", Float64Value(1.5), true},
		{"bool", BoolValue(true), true},
		{"list", ListStringValue([]string{"a"}), false},
		{"map", MapValue(map[string]Value{"a": StringValue("b")}), false},
	}
	for _, tt := range tests {
		if got := tt.v.IsScalar(); got != tt.want {
			t.Errorf("%s: IsScalar() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValueAsFloat64(t *testing.T) {
	if f, ok := Int32Value(7).AsFloat64(); !ok || f != 7 {
		t.Errorf("Int32Value(7).AsFloat64() = (%v, %v), want (7, true)", f, ok)
	}
	if f, ok := Float64Value(2.5).AsFloat64(); !ok || f != 2.5 {
		t.Errorf("Float64Value(2.5).AsFloat64() = (%v, %v), want (2.5, true)", f, ok)
	}
	if _, ok := StringValue("x").AsFloat64(); ok {
		t.Error("StringValue.AsFloat64() ok = true, want false")
	}
}

func TestValueAsEqualityString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
		ok   bool
	}{
		{StringValue("hi"), "hi", true},
		{Int32Value(42), "42", true},
		{Float64Value(3.5), "3.5", true},
		{BoolValue(true), "true", true},
		{NullValue(), "", false},
		{ListStringValue([]string{"a"}), "", false},
	}
	for _, tt := range tests {
		got, ok := tt.v.AsEqualityString()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%v.AsEqualityString() = (%q, %v), want (%q, %v)", tt.v, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValueEqual(t *testing.T) {
	a := MapValue(map[string]Value{"x": ListStringValue([]string{"p", "q"})})
	b := MapValue(map[string]Value{"x": ListStringValue([]string{"p", "q"})})
	if !a.Equal(b) {
		t.Error("expected deep-equal nested map/list values to compare equal")
	}

	c := MapValue(map[string]Value{"x": ListStringValue([]string{"p", "r"})})
	if a.Equal(c) {
		t.Error("expected differing nested list values to compare unequal")
	}

	if !Int32Value(1).Equal(Int32Value(1)) {
		t.Error("expected equal scalars to compare equal")
	}
	if Int32Value(1).Equal(Float64Value(1)) {
		t.Error("expected values of different kinds to compare unequal even with the same magnitude")
	}
}

func TestListStringValueIsDefensiveCopy(t *testing.T) {
	src := []string{"a", "b"}
	v := ListStringValue(src)
	src[0] = "mutated"
	if v.List[0] != "a" {
		t.Error("ListStringValue did not defensively copy its input slice")
	}
}

func TestMapValueIsDefensiveCopy(t *testing.T) {
	src := map[string]Value{"k": StringValue("v")}
	v := MapValue(src)
	src["k"] = StringValue("mutated")
	if v.Map["k"].Str != "v" {
		t.Error("MapValue did not defensively copy its input map")
	}
}
