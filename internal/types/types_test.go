package types

import "testing"

func TestEqualNullStruct(t *testing.T) {
	s := StructT("Node")
	cases := []struct {
		name string
		a, b Type
		want bool
	}{
		{"struct vs same struct", s, StructT("Node"), true},
		{"struct vs different struct", s, StructT("Other"), false},
		{"struct vs null", s, NullT, true},
		{"null vs struct", NullT, s, true},
		{"int vs int", IntT, IntT, true},
		{"int vs bool", IntT, BoolT, false},
		{"null vs int", NullT, IntT, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Equal(c.a, c.b); got != c.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
			}
		})
	}
}

func TestStringKinds(t *testing.T) {
	cases := map[Type]string{
		IntT:           "int",
		BoolT:          "bool",
		ArrayT:         "int[]",
		NullT:          "null",
		VoidT:          "void",
		StructT("Pair"): "Pair",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("%#v.String() = %q, want %q", typ, got, want)
		}
	}
}
