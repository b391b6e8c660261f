// Package types defines Mini's small value-type lattice: Int, Bool,
// Struct(name), Array, Null and Void.
package types

// Kind distinguishes the handful of types a Mini expression can have.
type Kind int

const (
	Invalid Kind = iota
	Int
	Bool
	Struct
	Array
	Null
	Void
)

// Type is a Mini type. Struct carries the declared struct name; every
// other kind ignores it.
type Type struct {
	Kind   Kind
	Struct string
}

func (t Type) String() string {
	switch t.Kind {
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Struct:
		return t.Struct
	case Array:
		return "int[]"
	case Null:
		return "null"
	case Void:
		return "void"
	default:
		return "<invalid>"
	}
}

// IntT, BoolT, ArrayT, NullT and VoidT are the singleton non-struct types.
var (
	IntT   = Type{Kind: Int}
	BoolT  = Type{Kind: Bool}
	ArrayT = Type{Kind: Array}
	NullT  = Type{Kind: Null}
	VoidT  = Type{Kind: Void}
)

// StructT builds the Struct(name) type.
func StructT(name string) Type { return Type{Kind: Struct, Struct: name} }

// Equal implements Mini's structural equality, including the rule that
// Null compares equal to any Struct type (so `s == null` typechecks for
// every struct-typed s) and vice versa.
func Equal(a, b Type) bool {
	if a.Kind == Null && b.Kind == Struct {
		return true
	}
	if b.Kind == Null && a.Kind == Struct {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == Struct {
		return a.Struct == b.Struct
	}
	return true
}

// IsInt, IsBool and IsStruct are convenience predicates used throughout
// the checker and lowering passes.
func (t Type) IsInt() bool    { return t.Kind == Int }
func (t Type) IsBool() bool   { return t.Kind == Bool }
func (t Type) IsStruct() bool { return t.Kind == Struct }
func (t Type) IsArray() bool  { return t.Kind == Array }
func (t Type) IsVoid() bool   { return t.Kind == Void }
