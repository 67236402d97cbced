package vm

import "math/big"

// runBuiltin executes any builtin other than map, which needs to push a
// synthesized frame and so is special-cased directly in evalCall.
func (in *Interpreter) runBuiltin(frame *Frame, b Builtin, desc InvocationDescriptor) error {
	switch b {
	case BuiltinAddWithCarry:
		return in.binary(func(a, b Value) (Value, error) { return AddWithCarry(a, b) })
	case BuiltinAndReduce:
		return in.unary(AndReduce)
	case BuiltinAssertEq:
		return in.assertEq(frame)
	case BuiltinAssertLt:
		return in.assertLt(frame)
	case BuiltinBitSlice:
		return in.runBitSlice()
	case BuiltinBitSliceUpdate:
		return in.ternary(BitSliceUpdate)
	case BuiltinClz:
		return in.unary(Clz)
	case BuiltinCover:
		in.push(MakeToken())
		return nil
	case BuiltinCtz:
		return in.unary(Ctz)
	case BuiltinEnumerate:
		return in.runEnumerate()
	case BuiltinFail:
		v, err := in.pop()
		if err != nil {
			return err
		}
		return failuref(nil, "%s", v.String())
	case BuiltinGate:
		return in.binary(runGate)
	case BuiltinOneHot:
		return in.binary(func(input, lsbPrio Value) (Value, error) {
			return OneHot(input, lsbPrio.IsTrue())
		})
	case BuiltinOneHotSel:
		return in.runOneHotSel()
	case BuiltinOrReduce:
		return in.unary(OrReduce)
	case BuiltinRange:
		return in.binary(runRange)
	case BuiltinRev:
		return in.unary(Rev)
	case BuiltinSignex:
		return in.binary(runSignex)
	case BuiltinSlice:
		return in.runBuiltinSlice()
	case BuiltinTrace:
		return internalf("trace builtins should be converted into trace opcodes before execution")
	case BuiltinUpdate:
		return in.ternary(Update)
	case BuiltinXorReduce:
		return in.unary(XorReduce)
	default:
		return unimplementedf("builtin %s is not yet implemented", b)
	}
}

func (in *Interpreter) unary(f func(Value) (Value, error)) error {
	v, err := in.pop()
	if err != nil {
		return err
	}
	r, err := f(v)
	if err != nil {
		return err
	}
	in.push(r)
	return nil
}

func (in *Interpreter) binary(f func(a, b Value) (Value, error)) error {
	a, b, err := in.pop2()
	if err != nil {
		return err
	}
	r, err := f(a, b)
	if err != nil {
		return err
	}
	in.push(r)
	return nil
}

func (in *Interpreter) ternary(f func(a, b, c Value) (Value, error)) error {
	a, b, c, err := in.pop3()
	if err != nil {
		return err
	}
	r, err := f(a, b, c)
	if err != nil {
		return err
	}
	in.push(r)
	return nil
}

// runGate implements the gate builtin: pass the value through when the
// condition holds, otherwise produce a same-shaped zero value.
func runGate(passValue, value Value) (Value, error) {
	if passValue.IsTrue() {
		return value, nil
	}
	return zeroValueLike(value)
}

// runRange builds [start, start+1, ..., end) honoring start's signedness for
// both the element tag and the termination comparison.
func runRange(start, end Value) (Value, error) {
	if err := requireBits(start); err != nil {
		return Value{}, err
	}
	if err := requireBits(end); err != nil {
		return Value{}, err
	}
	var elems []Value
	cur := start
	for {
		c, err := compare(cur, end)
		if err != nil {
			return Value{}, err
		}
		if c >= 0 {
			break
		}
		elems = append(elems, cur)
		one := NewUnsignedBitsU64(cur.width, 1)
		if cur.IsSigned() {
			one = NewSignedBitsI64(cur.width, 1)
		}
		cur, err = Add(cur, one)
		if err != nil {
			return Value{}, err
		}
	}
	return NewArray(elems), nil
}

// runSignex sign-extends value to match type_value's bit count, preserving
// value's own signedness tag. The target width must be >= the source width.
func runSignex(value, typeValue Value) (Value, error) {
	if err := requireBits(value); err != nil {
		return Value{}, err
	}
	if err := requireBits(typeValue); err != nil {
		return Value{}, err
	}
	if value.width > typeValue.width {
		return Value{}, internalf("old bit count must be less than or equal to the new: %d vs. %d", value.width, typeValue.width)
	}
	signed := toSigned(value.mag, value.width)
	if value.IsSigned() {
		return NewSignedBits(typeValue.width, signed), nil
	}
	return NewUnsignedBits(typeValue.width, signed), nil
}

func (in *Interpreter) runBitSlice() error {
	subject, start, width, err := in.pop3()
	if err != nil {
		return err
	}
	if err := requireBits(subject); err != nil {
		return err
	}
	if err := requireBits(start); err != nil {
		return err
	}
	if err := requireBits(width); err != nil {
		return err
	}
	startIdx := start.mag
	if startIdx.Cmp(big.NewInt(int64(subject.width))) >= 0 {
		startIdx = big.NewInt(int64(subject.width))
	}
	result := extractBits(subject.mag, uint(startIdx.Uint64()), width.width)
	in.push(result)
	return nil
}

func (in *Interpreter) runBuiltinSlice() error {
	basis, start, typeValue, err := in.pop3()
	if err != nil {
		return err
	}
	result, err := Slice(basis, start, typeValue)
	if err != nil {
		return err
	}
	in.push(result)
	return nil
}

func (in *Interpreter) runOneHotSel() error {
	selector, casesArray, err := in.pop2()
	if err != nil {
		return err
	}
	if err := requireBits(selector); err != nil {
		return err
	}
	cases, err := casesArray.Elements()
	if err != nil {
		return err
	}
	result, err := OneHotSel(selector, cases)
	if err != nil {
		return err
	}
	in.push(result)
	return nil
}

func (in *Interpreter) runEnumerate() error {
	input, err := in.pop()
	if err != nil {
		return err
	}
	elems, err := input.Elements()
	if err != nil {
		return err
	}
	out := make([]Value, len(elems))
	for i, e := range elems {
		out[i] = NewTuple([]Value{NewUnsignedBitsU64(32, uint64(i)), e})
	}
	in.push(NewArray(out))
	return nil
}

// assertEq pops lhs and rhs (leaving Eq's usual stack effect) and, on
// inequality, fails with a message naming both operands and, for arrays,
// the first differing index.
func (in *Interpreter) assertEq(frame *Frame) error {
	lhs, rhs, err := in.pop2()
	if err != nil {
		return err
	}
	if lhs.Eq(rhs) {
		in.push(NewBool(true))
		return nil
	}
	msg := "\n  lhs: " + lhs.String() + "\n  rhs: " + rhs.String() + "\n  were not equal"
	if lhs.IsArray() && rhs.IsArray() {
		if idx, ok := firstDifferingIndex(lhs, rhs); ok {
			msg += formatDifferingIndex(idx, lhs, rhs)
		}
	}
	return failuref(nil, "%s", msg)
}

func firstDifferingIndex(lhs, rhs Value) (int, bool) {
	n := len(lhs.elems)
	if len(rhs.elems) < n {
		n = len(rhs.elems)
	}
	for i := 0; i < n; i++ {
		if !lhs.elems[i].Eq(rhs.elems[i]) {
			return i, true
		}
	}
	return 0, false
}

func formatDifferingIndex(i int, lhs, rhs Value) string {
	return "; first differing index: " + itoa(i) + " :: " + lhs.elems[i].String() + " vs " + rhs.elems[i].String()
}

func itoa(i int) string {
	return big.NewInt(int64(i)).String()
}

// assertLt pops lhs and rhs and, when lhs is not strictly less than rhs,
// fails naming both operands.
func (in *Interpreter) assertLt(frame *Frame) error {
	lhs, rhs, err := in.pop2()
	if err != nil {
		return err
	}
	c, err := compare(lhs, rhs)
	if err != nil {
		return err
	}
	if c < 0 {
		in.push(NewBool(true))
		return nil
	}
	return failuref(nil, "\n  want: %s < %s", lhs.String(), rhs.String())
}
