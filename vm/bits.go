package vm

import "math/big"

// wrapUnsigned reduces x modulo 2^width into the canonical [0, 2^width)
// magnitude used to store every bits-like Value. big.Int.Mod always returns
// a non-negative result for a positive modulus, which is exactly the
// wraparound semantics arithmetic ops need for negative two's-complement
// inputs.
func wrapUnsigned(x *big.Int, width int) *big.Int {
	return new(big.Int).Mod(x, twoPow(width))
}

func twoPow(width int) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(width))
}

// toSigned reinterprets a canonical [0, 2^width) magnitude as two's
// complement: values with the top bit set are shifted down by 2^width.
func toSigned(mag *big.Int, width int) *big.Int {
	if width <= 0 {
		return new(big.Int).Set(mag)
	}
	half := new(big.Int).Lsh(big.NewInt(1), uint(width-1))
	if mag.Cmp(half) >= 0 {
		return new(big.Int).Sub(mag, twoPow(width))
	}
	return new(big.Int).Set(mag)
}

func requireBits(v Value) error {
	if !v.IsBits() {
		return invalidArgumentf("expected a bits-typed value, got %s", v.kind)
	}
	return nil
}

func requireMatchingWidth(a, b Value) error {
	if err := requireBits(a); err != nil {
		return err
	}
	if err := requireBits(b); err != nil {
		return err
	}
	if a.width != b.width {
		return invalidArgumentf("width mismatch: %d vs %d", a.width, b.width)
	}
	return nil
}

// resultTagLike preserves a's kind/width/enum identity for same-width
// binary arithmetic results.
func resultTagLike(a Value, mag *big.Int) Value {
	switch a.kind {
	case KindSignedBits:
		return NewSignedBits(a.width, mag)
	case KindEnumBits:
		return NewEnumBits(a.width, mag, a.enumName)
	default:
		return NewUnsignedBits(a.width, mag)
	}
}

// Add wraps mod 2^width per the matching-width arithmetic invariant.
func Add(a, b Value) (Value, error) {
	if err := requireMatchingWidth(a, b); err != nil {
		return Value{}, err
	}
	return resultTagLike(a, new(big.Int).Add(a.mag, b.mag)), nil
}

// Sub wraps mod 2^width.
func Sub(a, b Value) (Value, error) {
	if err := requireMatchingWidth(a, b); err != nil {
		return Value{}, err
	}
	return resultTagLike(a, new(big.Int).Sub(a.mag, b.mag)), nil
}

// Mul wraps mod 2^width.
func Mul(a, b Value) (Value, error) {
	if err := requireMatchingWidth(a, b); err != nil {
		return Value{}, err
	}
	return resultTagLike(a, new(big.Int).Mul(a.mag, b.mag)), nil
}

// AddWithCarry returns a 2-tuple (carry, sum): the one exception to
// same-width arithmetic results. carry is a 1-bit unsigned value, sum has
// the operands' width.
func AddWithCarry(a, b Value) (Value, error) {
	if err := requireMatchingWidth(a, b); err != nil {
		return Value{}, err
	}
	full := new(big.Int).Add(a.mag, b.mag)
	carry := new(big.Int).Rsh(full, uint(a.width))
	sum := wrapUnsigned(full, a.width)
	return NewTuple([]Value{NewUnsignedBits(1, carry), resultTagLike(a, sum)}), nil
}

// FloorDiv is integer division honoring the LHS's signedness tag.
func FloorDiv(a, b Value) (Value, error) {
	if err := requireMatchingWidth(a, b); err != nil {
		return Value{}, err
	}
	if b.mag.Sign() == 0 && !b.IsSigned() {
		return Value{}, invalidArgumentf("division by zero")
	}
	if a.IsSigned() {
		as := toSigned(a.mag, a.width)
		bs := toSigned(b.mag, b.width)
		if bs.Sign() == 0 {
			return Value{}, invalidArgumentf("division by zero")
		}
		q := new(big.Int)
		m := new(big.Int)
		q.QuoRem(as, bs, m)
		// floor division: adjust toward negative infinity when signs differ
		// and there's a nonzero remainder.
		if m.Sign() != 0 && (as.Sign() < 0) != (bs.Sign() < 0) {
			q.Sub(q, big.NewInt(1))
		}
		return resultTagLike(a, q), nil
	}
	return resultTagLike(a, new(big.Int).Div(a.mag, b.mag)), nil
}

// Negate is two's-complement negation: (2^w - mag) mod 2^w.
func Negate(a Value) (Value, error) {
	if err := requireBits(a); err != nil {
		return Value{}, err
	}
	return resultTagLike(a, new(big.Int).Neg(a.mag)), nil
}

// And is bitwise AND.
func And(a, b Value) (Value, error) {
	if err := requireMatchingWidth(a, b); err != nil {
		return Value{}, err
	}
	return resultTagLike(a, new(big.Int).And(a.mag, b.mag)), nil
}

// Or is bitwise OR.
func Or(a, b Value) (Value, error) {
	if err := requireMatchingWidth(a, b); err != nil {
		return Value{}, err
	}
	return resultTagLike(a, new(big.Int).Or(a.mag, b.mag)), nil
}

// Xor is bitwise XOR.
func Xor(a, b Value) (Value, error) {
	if err := requireMatchingWidth(a, b); err != nil {
		return Value{}, err
	}
	return resultTagLike(a, new(big.Int).Xor(a.mag, b.mag)), nil
}

// Invert flips every bit within the operand's width.
func Invert(a Value) (Value, error) {
	if err := requireBits(a); err != nil {
		return Value{}, err
	}
	mask := new(big.Int).Sub(twoPow(a.width), big.NewInt(1))
	return resultTagLike(a, new(big.Int).Xor(a.mag, mask)), nil
}

// shiftAmount extracts a non-negative magnitude from a shift-count operand.
func shiftAmount(b Value) (uint, error) {
	if err := requireBits(b); err != nil {
		return 0, err
	}
	if b.mag.Sign() < 0 || !b.mag.IsUint64() {
		return 0, invalidArgumentf("shift amount out of range")
	}
	return uint(b.mag.Uint64()), nil
}

// Shl shifts left with zero fill; shifts >= width produce zero.
func Shl(a, b Value) (Value, error) {
	if err := requireBits(a); err != nil {
		return Value{}, err
	}
	n, err := shiftAmount(b)
	if err != nil {
		return Value{}, err
	}
	if int(n) >= a.width {
		return resultTagLike(a, big.NewInt(0)), nil
	}
	return resultTagLike(a, new(big.Int).Lsh(a.mag, n)), nil
}

// Shr is arithmetic for signed operands (sign-fill) and logical for
// unsigned ones (zero-fill); shifts >= width saturate to zero or all-sign.
func Shr(a, b Value) (Value, error) {
	if err := requireBits(a); err != nil {
		return Value{}, err
	}
	n, err := shiftAmount(b)
	if err != nil {
		return Value{}, err
	}
	if a.IsSigned() {
		signed := toSigned(a.mag, a.width)
		if int(n) >= a.width {
			if signed.Sign() < 0 {
				n = uint(a.width - 1)
			} else {
				return resultTagLike(a, big.NewInt(0)), nil
			}
		}
		return resultTagLike(a, new(big.Int).Rsh(signed, n)), nil
	}
	if int(n) >= a.width {
		return resultTagLike(a, big.NewInt(0)), nil
	}
	return resultTagLike(a, new(big.Int).Rsh(a.mag, n)), nil
}

func signedCompare(a, b Value) int {
	return toSigned(a.mag, a.width).Cmp(toSigned(b.mag, b.width))
}

func compare(a, b Value) (int, error) {
	if err := requireMatchingWidth(a, b); err != nil {
		return 0, err
	}
	if a.IsSigned() {
		return signedCompare(a, b), nil
	}
	return a.mag.Cmp(b.mag), nil
}

func Eq(a, b Value) Value { return NewBool(a.Eq(b)) }
func Ne(a, b Value) Value { return NewBool(!a.Eq(b)) }

func Lt(a, b Value) (Value, error) {
	c, err := compare(a, b)
	if err != nil {
		return Value{}, err
	}
	return NewBool(c < 0), nil
}

func Le(a, b Value) (Value, error) {
	c, err := compare(a, b)
	if err != nil {
		return Value{}, err
	}
	return NewBool(c <= 0), nil
}

func Gt(a, b Value) (Value, error) {
	c, err := compare(a, b)
	if err != nil {
		return Value{}, err
	}
	return NewBool(c > 0), nil
}

func Ge(a, b Value) (Value, error) {
	c, err := compare(a, b)
	if err != nil {
		return Value{}, err
	}
	return NewBool(c >= 0), nil
}

// Concat glues two bit-vectors; the result width is the sum, treated as
// unsigned, with a occupying the high-order bits.
func Concat(a, b Value) (Value, error) {
	if err := requireBits(a); err != nil {
		return Value{}, err
	}
	if err := requireBits(b); err != nil {
		return Value{}, err
	}
	mag := new(big.Int).Lsh(a.mag, uint(b.width))
	mag.Or(mag, b.mag)
	return NewUnsignedBits(a.width+b.width, mag), nil
}

// Slice implements the dynamic slice opcode: (basis, start, limit), with
// negative bounds reinterpreted as width+x and clamped to [0, width].
func Slice(basis, start, limit Value) (Value, error) {
	if err := requireBits(basis); err != nil {
		return Value{}, err
	}
	if err := requireBits(start); err != nil {
		return Value{}, err
	}
	if err := requireBits(limit); err != nil {
		return Value{}, err
	}
	width := basis.width
	s := toSigned(start.mag, start.width)
	l := toSigned(limit.mag, limit.width)
	zero := big.NewInt(0)
	widthBig := big.NewInt(int64(width))

	if s.Sign() < 0 {
		s = new(big.Int).Add(s, widthBig)
		if s.Sign() < 0 {
			s = big.NewInt(0)
		}
	}
	if l.Sign() < 0 {
		l = new(big.Int).Add(l, widthBig)
		if l.Sign() < 0 {
			l = big.NewInt(0)
		}
	}
	if l.Cmp(widthBig) >= 0 {
		l = new(big.Int).Set(widthBig)
	}
	length := new(big.Int).Sub(l, s)
	if length.Sign() < 0 {
		length = big.NewInt(0)
	}
	if s.Cmp(zero) < 0 {
		s = zero
	}
	startIdx := uint(s.Uint64())
	lengthWidth := int(length.Int64())
	return extractBits(basis.mag, startIdx, lengthWidth), nil
}

// extractBits pulls lengthWidth bits out of mag starting at bit startIdx.
func extractBits(mag *big.Int, startIdx uint, lengthWidth int) Value {
	if lengthWidth <= 0 {
		return NewUnsignedBits(0, big.NewInt(0))
	}
	shifted := new(big.Int).Rsh(mag, startIdx)
	mask := new(big.Int).Sub(twoPow(lengthWidth), big.NewInt(1))
	return NewUnsignedBits(lengthWidth, new(big.Int).And(shifted, mask))
}

// WidthSlice implements the fixed-width slice opcode/builtin: (basis,
// start) with a result width fixed independently of the inputs. A start
// past the basis width yields zero; the basis is zero-extended before
// extraction when the slice would otherwise run past its end.
func WidthSlice(basis, start Value, resultWidth int, signed bool) (Value, error) {
	if err := requireBits(basis); err != nil {
		return Value{}, err
	}
	if err := requireBits(start); err != nil {
		return Value{}, err
	}
	zero := func() Value {
		if signed {
			return NewSignedBitsI64(resultWidth, 0)
		}
		return NewUnsignedBitsU64(resultWidth, 0)
	}
	if start.mag.Sign() < 0 || !start.mag.IsUint64() {
		return zero(), nil
	}
	startIdx := start.mag.Uint64()
	if startIdx >= uint64(basis.width) {
		return zero(), nil
	}
	basisMag := basis.mag
	if startIdx+uint64(resultWidth) > uint64(basis.width) {
		basisMag = new(big.Int).Set(basisMag) // already masked to basis.width
	}
	shifted := new(big.Int).Rsh(basisMag, uint(startIdx))
	mask := new(big.Int).Sub(twoPow(resultWidth), big.NewInt(1))
	result := new(big.Int).And(shifted, mask)
	if signed {
		return NewSignedBits(resultWidth, result), nil
	}
	return NewUnsignedBits(resultWidth, result), nil
}

// SignExt sign-extends (or truncates) to targetWidth.
func SignExt(v Value, targetWidth int) (Value, error) {
	if err := requireBits(v); err != nil {
		return Value{}, err
	}
	signed := toSigned(v.mag, v.width)
	return NewSignedBits(targetWidth, signed), nil
}

// ZeroExt zero-extends (or truncates) to targetWidth.
func ZeroExt(v Value, targetWidth int) (Value, error) {
	if err := requireBits(v); err != nil {
		return Value{}, err
	}
	return NewUnsignedBits(targetWidth, v.mag), nil
}

// AndReduce, OrReduce, and XorReduce fold a bits value down to a boolean.
func AndReduce(v Value) (Value, error) {
	if err := requireBits(v); err != nil {
		return Value{}, err
	}
	for i := 0; i < v.width; i++ {
		if v.mag.Bit(i) == 0 {
			return NewBool(false), nil
		}
	}
	return NewBool(v.width > 0), nil
}

func OrReduce(v Value) (Value, error) {
	if err := requireBits(v); err != nil {
		return Value{}, err
	}
	return NewBool(v.mag.Sign() != 0), nil
}

func XorReduce(v Value) (Value, error) {
	if err := requireBits(v); err != nil {
		return Value{}, err
	}
	parity := 0
	for i := 0; i < v.width; i++ {
		parity ^= int(v.mag.Bit(i))
	}
	return NewBool(parity != 0), nil
}

// Clz and Ctz count leading/trailing zeros, returning an unsigned value of
// the source width.
func Clz(v Value) (Value, error) {
	if err := requireBits(v); err != nil {
		return Value{}, err
	}
	count := 0
	for i := v.width - 1; i >= 0; i-- {
		if v.mag.Bit(i) != 0 {
			break
		}
		count++
	}
	return NewUnsignedBitsU64(v.width, uint64(count)), nil
}

func Ctz(v Value) (Value, error) {
	if err := requireBits(v); err != nil {
		return Value{}, err
	}
	count := 0
	for i := 0; i < v.width; i++ {
		if v.mag.Bit(i) != 0 {
			break
		}
		count++
	}
	return NewUnsignedBitsU64(v.width, uint64(count)), nil
}

// Rev reverses an unsigned bit-vector.
func Rev(v Value) (Value, error) {
	if !v.IsBits() || v.IsSigned() {
		return Value{}, invalidArgumentf("rev requires an unsigned bits-typed value")
	}
	out := new(big.Int)
	for i := 0; i < v.width; i++ {
		if v.mag.Bit(i) != 0 {
			out.SetBit(out, v.width-1-i, 1)
		}
	}
	return NewUnsignedBits(v.width, out), nil
}

// OneHot returns an (n+1)-bit value with exactly one bit set: the index of
// x's lowest (lsbPriority) or highest set bit, or the extra high bit when x
// is zero.
func OneHot(x Value, lsbPriority bool) (Value, error) {
	if err := requireBits(x); err != nil {
		return Value{}, err
	}
	result := new(big.Int)
	found := false
	if lsbPriority {
		for i := 0; i < x.width; i++ {
			if x.mag.Bit(i) != 0 {
				result.SetBit(result, i, 1)
				found = true
				break
			}
		}
	} else {
		for i := x.width - 1; i >= 0; i-- {
			if x.mag.Bit(i) != 0 {
				result.SetBit(result, i, 1)
				found = true
				break
			}
		}
	}
	if !found {
		result.SetBit(result, x.width, 1)
	}
	return NewUnsignedBits(x.width+1, result), nil
}

// OneHotSel OR-reduces the cases whose selector bit is set.
func OneHotSel(selector Value, cases []Value) (Value, error) {
	if err := requireBits(selector); err != nil {
		return Value{}, err
	}
	if len(cases) == 0 {
		return Value{}, internalf("one-hot-sel requires at least one case")
	}
	result := big.NewInt(0)
	for i, c := range cases {
		if selector.mag.Bit(i) == 0 {
			continue
		}
		if err := requireBits(c); err != nil {
			return Value{}, err
		}
		result.Or(result, c.mag)
	}
	return resultTagLike(cases[0], result), nil
}

// IndexTuple extracts the element at a constant-known index.
func IndexTuple(tuple Value, index int) (Value, error) {
	if !tuple.IsTuple() {
		return Value{}, invalidArgumentf("index requires a tuple or array basis")
	}
	if index < 0 || index >= len(tuple.elems) {
		return Value{}, invalidArgumentf("tuple index %d out of range [0, %d)", index, len(tuple.elems))
	}
	return tuple.elems[index], nil
}

// IndexArray extracts the element at a bits-typed runtime index.
func IndexArray(arr, index Value) (Value, error) {
	if !arr.IsArray() {
		return Value{}, invalidArgumentf("index requires a tuple or array basis")
	}
	if err := requireBits(index); err != nil {
		return Value{}, err
	}
	if !index.mag.IsUint64() {
		return Value{}, invalidArgumentf("array index out of range")
	}
	i := index.mag.Uint64()
	if i >= uint64(len(arr.elems)) {
		return Value{}, invalidArgumentf("array index %d out of range [0, %d)", i, len(arr.elems))
	}
	return arr.elems[i], nil
}

// Index dispatches on the basis kind, matching the single "index" opcode
// which accepts both tuples (constant index) and arrays (bits-typed index).
func Index(basis, index Value) (Value, error) {
	switch basis.kind {
	case KindTuple:
		i, err := index.AsInt64()
		if err != nil {
			return Value{}, err
		}
		return IndexTuple(basis, int(i))
	case KindArray:
		return IndexArray(basis, index)
	default:
		return Value{}, invalidArgumentf("cannot index a value of kind %s", basis.kind)
	}
}

// Update returns a new array with one element replaced.
func Update(arr, index, newValue Value) (Value, error) {
	if !arr.IsArray() {
		return Value{}, invalidArgumentf("update requires an array basis")
	}
	if err := requireBits(index); err != nil {
		return Value{}, err
	}
	if !index.mag.IsUint64() {
		return Value{}, invalidArgumentf("array index out of range")
	}
	i := index.mag.Uint64()
	if i >= uint64(len(arr.elems)) {
		return Value{}, invalidArgumentf("array index %d out of range [0, %d)", i, len(arr.elems))
	}
	out := make([]Value, len(arr.elems))
	copy(out, arr.elems)
	out[i] = newValue
	return NewArray(out), nil
}

// Cast converts a bits, enum, or array value to the target shape. Arrays may
// only flatten to bits (matching bit counts required); enums only flatten to
// bits; bits may cast to arrays (matching bit counts, unflattened per to's
// element shape), to enums, or to other bits widths (sign- or zero-extended
// per the source's own signedness, never the target's).
func Cast(from Value, to ConcreteType) (Value, error) {
	switch from.kind {
	case KindToken:
		// A token carries no information to cast from; the target shape's
		// own zero value is the only sensible result.
		return to.ZeroValue()
	case KindArray:
		if to.Kind != TypeBits {
			return Value{}, invalidArgumentf("array types can only be cast to bits")
		}
		flat, width, err := flattenToBits(from)
		if err != nil {
			return Value{}, err
		}
		if width != to.Width {
			return Value{}, invalidArgumentf("cast to bits had mismatching bit counts: from %d to %d", width, to.Width)
		}
		if to.Signed {
			return NewSignedBits(to.Width, flat), nil
		}
		return NewUnsignedBits(to.Width, flat), nil
	case KindEnumBits:
		if to.Kind != TypeBits {
			return Value{}, invalidArgumentf("enum types can only be cast to bits")
		}
		if to.Signed {
			return NewSignedBits(to.Width, from.mag), nil
		}
		return NewUnsignedBits(to.Width, from.mag), nil
	case KindUnsignedBits, KindSignedBits:
		switch to.Kind {
		case TypeArray:
			totalBits := arrayTotalBits(to)
			if from.width != totalBits {
				return Value{}, invalidArgumentf("cast to array had mismatching bit counts: from %d to %d", from.width, totalBits)
			}
			return unflattenToArray(from.mag, to)
		case TypeEnum:
			return NewEnumBits(to.Width, from.mag, to.EnumName), nil
		case TypeBits:
			var result Value
			var err error
			if from.IsSigned() {
				result, err = SignExt(from, to.Width)
			} else {
				result, err = ZeroExt(from, to.Width)
			}
			if err != nil {
				return Value{}, err
			}
			if to.Signed {
				return NewSignedBits(to.Width, result.mag), nil
			}
			return NewUnsignedBits(to.Width, result.mag), nil
		default:
			return Value{}, invalidArgumentf("bits can only be cast to arrays, enums, or other bits types")
		}
	default:
		return Value{}, invalidArgumentf("only casts from arrays, enums, and bits are supported")
	}
}

func arrayTotalBits(t ConcreteType) int {
	if t.ElemType == nil {
		return 0
	}
	return elemBitWidth(*t.ElemType) * t.Length
}

func elemBitWidth(t ConcreteType) int {
	switch t.Kind {
	case TypeBits, TypeEnum:
		return t.Width
	case TypeArray:
		return arrayTotalBits(t)
	case TypeTuple:
		sum := 0
		for _, et := range t.Elems {
			sum += elemBitWidth(et)
		}
		return sum
	default:
		return 0
	}
}

// flattenToBits concatenates an array's elements (most significant element
// first) into a single unsigned magnitude, returning its total width.
func flattenToBits(v Value) (*big.Int, int, error) {
	result := big.NewInt(0)
	width := 0
	for _, e := range v.elems {
		if !e.IsBits() {
			return nil, 0, invalidArgumentf("array flatten requires bits-typed elements")
		}
		result.Lsh(result, uint(e.width))
		result.Or(result, e.mag)
		width += e.width
	}
	return result, width, nil
}

// unflattenToArray splits mag into to.Length elements of to.ElemType's
// width, most significant element first.
func unflattenToArray(mag *big.Int, to ConcreteType) (Value, error) {
	if to.ElemType == nil {
		return Value{}, internalf("array type missing element type")
	}
	elemWidth := elemBitWidth(*to.ElemType)
	elems := make([]Value, to.Length)
	for i := to.Length - 1; i >= 0; i-- {
		elem := extractBits(mag, 0, elemWidth)
		mag = new(big.Int).Rsh(mag, uint(elemWidth))
		if to.ElemType.Signed {
			elems[i] = NewSignedBits(elemWidth, elem.mag)
		} else {
			elems[i] = elem
		}
	}
	return NewArray(elems), nil
}

// BitSliceUpdate overlays update starting at bit position start; a start at
// or past the subject's width leaves the subject unchanged.
func BitSliceUpdate(subject, start, update Value) (Value, error) {
	if err := requireBits(subject); err != nil {
		return Value{}, err
	}
	if err := requireBits(start); err != nil {
		return Value{}, err
	}
	if err := requireBits(update); err != nil {
		return Value{}, err
	}
	if start.mag.Cmp(big.NewInt(int64(subject.width))) >= 0 {
		return resultTagLike(subject, subject.mag), nil
	}
	startIdx := start.mag.Uint64()
	mask := new(big.Int).Sub(twoPow(update.width), big.NewInt(1))
	mask.Lsh(mask, uint(startIdx))
	cleared := new(big.Int).AndNot(subject.mag, mask)
	shiftedUpdate := new(big.Int).Lsh(update.mag, uint(startIdx))
	result := new(big.Int).Or(cleared, shiftedUpdate)
	return resultTagLike(subject, wrapUnsigned(result, subject.width)), nil
}
