// Package vm implements the stack-based bytecode interpreter core: a closed
// tagged value domain with exact bit-width arithmetic, a frame/operand-stack
// dispatch loop, structural pattern matching, FIFO channels, and the
// intrinsic function library (including on-the-fly bytecode synthesis for
// map).
package vm

import (
	"fmt"
	"math/big"
)

// Kind tags the closed set of runtime value variants. Every Value carries
// exactly one Kind and only the fields that variant uses are meaningful.
type Kind uint8

const (
	KindUnsignedBits Kind = iota
	KindSignedBits
	KindEnumBits
	KindTuple
	KindArray
	KindToken
	KindFunctionRef
	KindChannelHandle
)

func (k Kind) String() string {
	switch k {
	case KindUnsignedBits:
		return "unsigned-bits"
	case KindSignedBits:
		return "signed-bits"
	case KindEnumBits:
		return "enum-bits"
	case KindTuple:
		return "tuple"
	case KindArray:
		return "array"
	case KindToken:
		return "token"
	case KindFunctionRef:
		return "function-ref"
	case KindChannelHandle:
		return "channel-handle"
	default:
		return "unknown-kind"
	}
}

// Value is the tagged union described in the data model: bits (unsigned,
// signed, and enum), tuples, arrays, tokens, function references, and
// channel handles. Width is part of identity for every bits-like variant.
// Bits-like magnitudes are stored canonically in [0, 2^width), i.e. signed
// values are kept in their two's-complement unsigned encoding; Signed
// reinterprets on demand.
type Value struct {
	kind     Kind
	width    int
	mag      *big.Int
	enumName string
	elems    []Value
	fn       FunctionRef
	ch       *Channel
}

// NewUnsignedBits builds an unsigned bits value, masking mag into [0, 2^width).
func NewUnsignedBits(width int, mag *big.Int) Value {
	return Value{kind: KindUnsignedBits, width: width, mag: wrapUnsigned(mag, width)}
}

// NewUnsignedBitsU64 is a convenience constructor for small unsigned constants.
func NewUnsignedBitsU64(width int, mag uint64) Value {
	return NewUnsignedBits(width, new(big.Int).SetUint64(mag))
}

// NewSignedBits builds a signed bits value from a (possibly negative) two's
// complement interpretation, storing it canonically as unsigned bits.
func NewSignedBits(width int, val *big.Int) Value {
	return Value{kind: KindSignedBits, width: width, mag: wrapUnsigned(val, width)}
}

// NewSignedBitsI64 is a convenience constructor for small signed constants.
func NewSignedBitsI64(width int, val int64) Value {
	return NewSignedBits(width, big.NewInt(val))
}

// NewEnumBits builds an enum-tagged bits value; it compares and arithmetics
// as plain bits per the spec, with enumName carried only for diagnostics.
func NewEnumBits(width int, mag *big.Int, enumName string) Value {
	return Value{kind: KindEnumBits, width: width, mag: wrapUnsigned(mag, width), enumName: enumName}
}

// NewBool constructs the 1-bit unsigned boolean value used as the result of
// every comparison and predicate operation.
func NewBool(b bool) Value {
	if b {
		return NewUnsignedBitsU64(1, 1)
	}
	return NewUnsignedBitsU64(1, 0)
}

// MakeToken returns the unit-like value produced by side-effecting opcodes.
func MakeToken() Value {
	return Value{kind: KindToken}
}

// NewTuple builds a finite ordered tuple; the empty tuple is "unit".
func NewTuple(elems []Value) Value {
	return Value{kind: KindTuple, elems: elems}
}

// NewArray builds a finite ordered array. Callers are responsible for the
// shape invariant (all elements share structure); this constructor does not
// re-verify it on every call since most arrays are built element-by-element
// by trusted opcode handlers.
func NewArray(elems []Value) Value {
	return Value{kind: KindArray, elems: elems}
}

// NewUserFunctionRef wraps a reference to a user-defined (possibly
// parametric) function.
func NewUserFunctionRef(fn *UserFunction) Value {
	return Value{kind: KindFunctionRef, fn: FunctionRef{User: fn}}
}

// NewBuiltinFunctionRef wraps a reference to an intrinsic function.
func NewBuiltinFunctionRef(b Builtin) Value {
	return Value{kind: KindFunctionRef, fn: FunctionRef{Builtin: b, IsBuiltin: true}}
}

// NewChannelHandle wraps a shared reference to a channel's FIFO.
func NewChannelHandle(ch *Channel) Value {
	return Value{kind: KindChannelHandle, ch: ch}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) Width() int   { return v.width }
func (v Value) EnumName() string { return v.enumName }

func (v Value) IsBits() bool {
	return v.kind == KindUnsignedBits || v.kind == KindSignedBits || v.kind == KindEnumBits
}

func (v Value) IsSigned() bool { return v.kind == KindSignedBits }
func (v Value) IsTuple() bool  { return v.kind == KindTuple }
func (v Value) IsArray() bool  { return v.kind == KindArray }
func (v Value) IsToken() bool  { return v.kind == KindToken }
func (v Value) IsFunction() bool { return v.kind == KindFunctionRef }
func (v Value) IsChannel() bool  { return v.kind == KindChannelHandle }

// IsTrue reports whether a 1-bit boolean value is set. Used by jump-rel-if,
// the logical opcodes, and builtins taking a boolean operand.
func (v Value) IsTrue() bool {
	return v.IsBits() && v.width == 1 && v.mag.Sign() != 0
}

// Elements returns the backing slice for a tuple or array value. The slice
// must not be mutated by callers; array "mutation" builds a fresh Value.
func (v Value) Elements() ([]Value, error) {
	if v.kind != KindTuple && v.kind != KindArray {
		return nil, invalidArgumentf("value of kind %s has no elements", v.kind)
	}
	return v.elems, nil
}

func (v Value) Length() int { return len(v.elems) }

// Function returns the function reference carried by a KindFunctionRef value.
func (v Value) Function() (FunctionRef, error) {
	if v.kind != KindFunctionRef {
		return FunctionRef{}, invalidArgumentf("value of kind %s is not a function", v.kind)
	}
	return v.fn, nil
}

// Channel returns the channel handle carried by a KindChannelHandle value.
func (v Value) Channel() (*Channel, error) {
	if v.kind != KindChannelHandle {
		return nil, invalidArgumentf("value of kind %s is not a channel", v.kind)
	}
	return v.ch, nil
}

// Unsigned returns the raw [0, 2^width) magnitude backing any bits-like
// value, regardless of its signedness tag.
func (v Value) Unsigned() (*big.Int, error) {
	if !v.IsBits() {
		return nil, invalidArgumentf("value of kind %s is not bits-typed", v.kind)
	}
	return new(big.Int).Set(v.mag), nil
}

// Signed reinterprets a bits-like value's magnitude as two's complement.
func (v Value) Signed() (*big.Int, error) {
	if !v.IsBits() {
		return nil, invalidArgumentf("value of kind %s is not bits-typed", v.kind)
	}
	return toSigned(v.mag, v.width), nil
}

// AsInt64 is a convenience accessor for small bits values, used by opcode
// handlers that need a Go int (slot indices, counts, shift amounts).
func (v Value) AsInt64() (int64, error) {
	if !v.IsBits() {
		return 0, invalidArgumentf("value of kind %s is not bits-typed", v.kind)
	}
	if v.IsSigned() {
		return toSigned(v.mag, v.width).Int64(), nil
	}
	if !v.mag.IsUint64() {
		return 0, invalidArgumentf("value does not fit in an int64")
	}
	return int64(v.mag.Uint64()), nil
}

// Eq implements structural equality: bits compare by (width, magnitude)
// regardless of signedness tag or enum identity, tuples/arrays compare
// element-wise, tokens are always equal, and functions/channels compare by
// identity.
func (v Value) Eq(o Value) bool {
	if v.kind != o.kind {
		// Bits-like kinds are comparable across tags (spec: "EnumBits ...
		// compares as bits").
		if v.IsBits() && o.IsBits() {
			return v.width == o.width && v.mag.Cmp(o.mag) == 0
		}
		return false
	}
	switch v.kind {
	case KindUnsignedBits, KindSignedBits, KindEnumBits:
		return v.width == o.width && v.mag.Cmp(o.mag) == 0
	case KindTuple, KindArray:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Eq(o.elems[i]) {
				return false
			}
		}
		return true
	case KindToken:
		return true
	case KindFunctionRef:
		if v.fn.IsBuiltin != o.fn.IsBuiltin {
			return false
		}
		if v.fn.IsBuiltin {
			return v.fn.Builtin == o.fn.Builtin
		}
		return v.fn.User == o.fn.User
	case KindChannelHandle:
		return v.ch == o.ch
	default:
		return false
	}
}

// String renders a human-readable debug form, used by trace/fail rendering
// and test failure messages.
func (v Value) String() string {
	switch v.kind {
	case KindUnsignedBits:
		return fmt.Sprintf("u%d:%s", v.width, v.mag.String())
	case KindSignedBits:
		return fmt.Sprintf("s%d:%s", v.width, toSigned(v.mag, v.width).String())
	case KindEnumBits:
		name := v.enumName
		if name == "" {
			name = "enum"
		}
		return fmt.Sprintf("%s:%s(%d)", name, v.mag.String(), v.width)
	case KindTuple:
		s := "("
		for i, e := range v.elems {
			if i > 0 {
				s += ", "
			}
			s += e.String()
		}
		return s + ")"
	case KindArray:
		s := "["
		for i, e := range v.elems {
			if i > 0 {
				s += ", "
			}
			s += e.String()
		}
		return s + "]"
	case KindToken:
		return "token"
	case KindFunctionRef:
		if v.fn.IsBuiltin {
			return fmt.Sprintf("builtin:%s", v.fn.Builtin)
		}
		if v.fn.User != nil {
			return fmt.Sprintf("fn:%s", v.fn.User.ID)
		}
		return "fn:<nil>"
	case KindChannelHandle:
		return fmt.Sprintf("chan:%p", v.ch)
	default:
		return "<invalid value>"
	}
}

// zeroValueLike builds the zero-valued value sharing the shape of v, used by
// the gate builtin.
func zeroValueLike(v Value) (Value, error) {
	switch v.kind {
	case KindUnsignedBits:
		return NewUnsignedBitsU64(v.width, 0), nil
	case KindSignedBits:
		return NewSignedBitsI64(v.width, 0), nil
	case KindEnumBits:
		return NewEnumBits(v.width, big.NewInt(0), v.enumName), nil
	case KindTuple:
		elems := make([]Value, len(v.elems))
		for i, e := range v.elems {
			z, err := zeroValueLike(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = z
		}
		return NewTuple(elems), nil
	case KindArray:
		elems := make([]Value, len(v.elems))
		for i, e := range v.elems {
			z, err := zeroValueLike(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = z
		}
		return NewArray(elems), nil
	case KindToken:
		return MakeToken(), nil
	default:
		return Value{}, invalidArgumentf("no zero value for kind %s", v.kind)
	}
}
