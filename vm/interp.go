package vm

import "go.uber.org/zap"

// Interpreter runs one or more frames of bytecode against a shared operand
// stack, matching the single-threaded, cooperative call/return discipline:
// a call pushes a frame, a completed frame's final stack value becomes the
// caller's result, and nothing here spawns a goroutine per process. An
// embedder juggling several communicating processes holds one Interpreter
// per process and ticks each forward independently, catching Unavailable
// from a Recv to decide when to resume it.
type Interpreter struct {
	frames []*Frame
	stack  []Value

	importData ImportData
	logger     *zap.Logger
	arena      *BytecodeArena
}

// NewInterpreter builds an Interpreter bound to importData for type info and
// bytecode caching. A nil logger disables trace output entirely.
func NewInterpreter(importData ImportData, logger *zap.Logger) *Interpreter {
	return &Interpreter{importData: importData, logger: logger, arena: NewBytecodeArena()}
}

func (in *Interpreter) push(v Value) { in.stack = append(in.stack, v) }

func (in *Interpreter) pop() (Value, error) {
	if len(in.stack) == 0 {
		return Value{}, internalf("operand stack underflow")
	}
	v := in.stack[len(in.stack)-1]
	in.stack = in.stack[:len(in.stack)-1]
	return v, nil
}

func (in *Interpreter) pop2() (Value, Value, error) {
	b, err := in.pop()
	if err != nil {
		return Value{}, Value{}, err
	}
	a, err := in.pop()
	if err != nil {
		return Value{}, Value{}, err
	}
	return a, b, nil
}

func (in *Interpreter) pop3() (Value, Value, Value, error) {
	c, err := in.pop()
	if err != nil {
		return Value{}, Value{}, Value{}, err
	}
	a, b, err := in.pop2()
	if err != nil {
		return Value{}, Value{}, Value{}, err
	}
	return a, b, c, nil
}

func (in *Interpreter) currentFrame() (*Frame, error) {
	if len(in.frames) == 0 {
		return nil, internalf("no active frame")
	}
	return in.frames[len(in.frames)-1], nil
}

// Interpret runs bf to completion (or until a call into an as-yet-unfinished
// frame structure unwinds naturally) with the given arguments, and returns
// its single result value. Any opcode error, including the first Unavailable
// from a Recv, unwinds every frame and is returned directly: a process
// driver that wants to resume later must retain the same Interpreter and
// retry from a fresh Interpret call once rescheduled, since a partially
// executed frame is not preserved across an Unavailable.
func (in *Interpreter) Interpret(bf *BytecodeFunction, args []Value) (Value, error) {
	var typeInfo TypeInfo
	if in.importData != nil {
		ti, err := in.importData.RootTypeInfo(bf.ID.Module)
		if err == nil {
			typeInfo = ti
		}
	}
	in.frames = append(in.frames, NewFrame(bf, args, typeInfo, nil))
	return in.run()
}

func (in *Interpreter) run() (Value, error) {
	for {
		if len(in.frames) == 0 {
			return in.pop()
		}
		frame, err := in.currentFrame()
		if err != nil {
			return Value{}, err
		}
		if frame.pc >= len(frame.bf.Code) {
			in.frames = in.frames[:len(in.frames)-1]
			if len(in.frames) == 0 {
				return in.pop()
			}
			continue
		}
		if err := in.evalNext(frame); err != nil {
			in.frames = nil
			in.stack = nil
			return Value{}, err
		}
	}
}

// evalNext executes the instruction at frame.pc and advances pc unless the
// handler already repositioned it (a jump, or a call pushing a new frame).
func (in *Interpreter) evalNext(frame *Frame) error {
	bc, err := frame.current()
	if err != nil {
		return err
	}
	advance := true
	var evalErr error

	switch bc.Op {
	case OpAdd, OpSub, OpMul, OpAnd, OpOr, OpXor, OpConcat, OpShl, OpShr:
		evalErr = in.evalBinaryArith(bc.Op)
	case OpDiv:
		a, b, e := in.pop2()
		if e != nil {
			evalErr = e
			break
		}
		r, e := FloorDiv(a, b)
		if e != nil {
			evalErr = e
			break
		}
		in.push(r)
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		evalErr = in.evalCompare(bc.Op)
	case OpLogicalAnd, OpLogicalOr:
		evalErr = in.evalLogical(bc.Op)
	case OpNegate:
		evalErr = in.evalUnary(Negate)
	case OpInvert:
		evalErr = in.evalUnary(Invert)
	case OpDup:
		v, e := in.pop()
		if e != nil {
			evalErr = e
			break
		}
		in.push(v)
		in.push(v)
	case OpSwap:
		a, b, e := in.pop2()
		if e != nil {
			evalErr = e
			break
		}
		in.push(b)
		in.push(a)
	case OpPop:
		_, evalErr = in.pop()
	case OpLiteral:
		p, ok := bc.Payload.(LiteralPayload)
		if !ok {
			evalErr = internalf("literal opcode missing LiteralPayload")
			break
		}
		in.push(p.Value)
	case OpLoad:
		p, ok := bc.Payload.(SlotPayload)
		if !ok {
			evalErr = internalf("load opcode missing SlotPayload")
			break
		}
		v, e := frame.slot(p.Slot)
		if e != nil {
			evalErr = e
			break
		}
		in.push(v)
	case OpStore:
		p, ok := bc.Payload.(SlotPayload)
		if !ok {
			evalErr = internalf("store opcode missing SlotPayload")
			break
		}
		v, e := in.pop()
		if e != nil {
			evalErr = e
			break
		}
		evalErr = frame.setSlot(p.Slot, v)
	case OpExpandTuple:
		p, ok := bc.Payload.(SlotsPayload)
		if !ok {
			evalErr = internalf("expand-tuple opcode missing SlotsPayload")
			break
		}
		v, e := in.pop()
		if e != nil {
			evalErr = e
			break
		}
		elems, e := v.Elements()
		if e != nil {
			evalErr = e
			break
		}
		if len(elems) != len(p.Slots) {
			evalErr = invalidArgumentf("expand-tuple arity mismatch: %d slots, %d elements", len(p.Slots), len(elems))
			break
		}
		for i, slot := range p.Slots {
			if e := frame.setSlot(slot, elems[i]); e != nil {
				evalErr = e
				break
			}
		}
	case OpCreateTuple:
		p, ok := bc.Payload.(CountPayload)
		if !ok {
			evalErr = internalf("create-tuple opcode missing CountPayload")
			break
		}
		elems, e := in.popN(p.Count)
		if e != nil {
			evalErr = e
			break
		}
		in.push(NewTuple(elems))
	case OpCreateArray:
		p, ok := bc.Payload.(CountPayload)
		if !ok {
			evalErr = internalf("create-array opcode missing CountPayload")
			break
		}
		elems, e := in.popN(p.Count)
		if e != nil {
			evalErr = e
			break
		}
		in.push(NewArray(elems))
	case OpIndex:
		a, b, e := in.pop2()
		if e != nil {
			evalErr = e
			break
		}
		r, e := Index(a, b)
		if e != nil {
			evalErr = e
			break
		}
		in.push(r)
	case OpSlice:
		a, b, c, e := in.pop3()
		if e != nil {
			evalErr = e
			break
		}
		r, e := Slice(a, b, c)
		if e != nil {
			evalErr = e
			break
		}
		in.push(r)
	case OpWidthSlice:
		p, ok := bc.Payload.(TypePayload)
		if !ok {
			evalErr = internalf("width-slice opcode missing TypePayload")
			break
		}
		a, b, e := in.pop2()
		if e != nil {
			evalErr = e
			break
		}
		r, e := WidthSlice(a, b, p.Type.Width, p.Type.Signed)
		if e != nil {
			evalErr = e
			break
		}
		in.push(r)
	case OpCast:
		p, ok := bc.Payload.(TypePayload)
		if !ok {
			evalErr = internalf("cast opcode missing TypePayload")
			break
		}
		v, e := in.pop()
		if e != nil {
			evalErr = e
			break
		}
		r, e := Cast(v, p.Type)
		if e != nil {
			evalErr = e
			break
		}
		in.push(r)
	case OpJumpDest:
		// no-op marker; only validated as a jump target.
	case OpJumpRel:
		p, ok := bc.Payload.(JumpOffsetPayload)
		if !ok {
			evalErr = internalf("jump-rel opcode missing JumpOffsetPayload")
			break
		}
		if e := frame.jumpRel(p.Offset); e != nil {
			evalErr = e
			break
		}
		advance = false
	case OpJumpRelIf:
		p, ok := bc.Payload.(JumpOffsetPayload)
		if !ok {
			evalErr = internalf("jump-rel-if opcode missing JumpOffsetPayload")
			break
		}
		cond, e := in.pop()
		if e != nil {
			evalErr = e
			break
		}
		if cond.IsTrue() {
			if e := frame.jumpRel(p.Offset); e != nil {
				evalErr = e
				break
			}
			advance = false
		}
	case OpMatchArm:
		p, ok := bc.Payload.(MatchArmPayload)
		if !ok {
			evalErr = internalf("match-arm opcode missing MatchArmPayload")
			break
		}
		scrutinee, e := in.pop()
		if e != nil {
			evalErr = e
			break
		}
		matched, e := matchPattern(p.Pattern, scrutinee, frame)
		if e != nil {
			evalErr = e
			break
		}
		if !matched {
			if e := frame.jumpRel(p.NextOffset); e != nil {
				evalErr = e
				break
			}
			advance = false
		}
	case OpCall:
		var pushed bool
		pushed, evalErr = in.evalCall(frame, bc)
		if evalErr == nil && pushed {
			return nil
		}
	case OpSend:
		evalErr = in.evalSend()
	case OpRecv:
		evalErr = in.evalRecv()
	case OpTrace:
		p, ok := bc.Payload.(TraceTemplatePayload)
		if !ok {
			evalErr = internalf("trace opcode missing TraceTemplatePayload")
			break
		}
		values, e := in.popN(p.Template.ValueCount)
		if e != nil {
			evalErr = e
			break
		}
		if e := emitTrace(in.logger, bc.Span, p.Template, values); e != nil {
			evalErr = e
			break
		}
		in.push(MakeToken())
	case OpFail:
		p, ok := bc.Payload.(TraceTemplatePayload)
		if !ok {
			evalErr = internalf("fail opcode missing TraceTemplatePayload")
			break
		}
		values, e := in.popN(p.Template.ValueCount)
		if e != nil {
			evalErr = e
			break
		}
		evalErr = renderFail(bc.Span, p.Template, values)
	default:
		evalErr = internalf("unhandled opcode %s", bc.Op)
	}

	if evalErr != nil {
		return evalErr
	}
	if advance {
		frame.pc++
	}
	return nil
}

func (in *Interpreter) popN(n int) ([]Value, error) {
	if n < 0 || n > len(in.stack) {
		return nil, internalf("operand stack underflow popping %d values", n)
	}
	out := make([]Value, n)
	copy(out, in.stack[len(in.stack)-n:])
	in.stack = in.stack[:len(in.stack)-n]
	return out, nil
}

func (in *Interpreter) evalBinaryArith(op Op) error {
	a, b, err := in.pop2()
	if err != nil {
		return err
	}
	var r Value
	switch op {
	case OpAdd:
		r, err = Add(a, b)
	case OpSub:
		r, err = Sub(a, b)
	case OpMul:
		r, err = Mul(a, b)
	case OpAnd:
		r, err = And(a, b)
	case OpOr:
		r, err = Or(a, b)
	case OpXor:
		r, err = Xor(a, b)
	case OpConcat:
		r, err = Concat(a, b)
	case OpShl:
		r, err = Shl(a, b)
	case OpShr:
		r, err = Shr(a, b)
	default:
		return internalf("unreachable arithmetic opcode %s", op)
	}
	if err != nil {
		return err
	}
	in.push(r)
	return nil
}

func (in *Interpreter) evalCompare(op Op) error {
	a, b, err := in.pop2()
	if err != nil {
		return err
	}
	var r Value
	switch op {
	case OpEq:
		r = Eq(a, b)
	case OpNe:
		r = Ne(a, b)
	case OpLt:
		r, err = Lt(a, b)
	case OpLe:
		r, err = Le(a, b)
	case OpGt:
		r, err = Gt(a, b)
	case OpGe:
		r, err = Ge(a, b)
	default:
		return internalf("unreachable comparison opcode %s", op)
	}
	if err != nil {
		return err
	}
	in.push(r)
	return nil
}

func (in *Interpreter) evalLogical(op Op) error {
	a, b, err := in.pop2()
	if err != nil {
		return err
	}
	if !a.IsBits() || a.width != 1 || !b.IsBits() || b.width != 1 {
		return invalidArgumentf("%s requires two 1-bit operands", op)
	}
	switch op {
	case OpLogicalAnd:
		in.push(NewBool(a.IsTrue() && b.IsTrue()))
	case OpLogicalOr:
		in.push(NewBool(a.IsTrue() || b.IsTrue()))
	default:
		return internalf("unreachable logical opcode %s", op)
	}
	return nil
}

func (in *Interpreter) evalUnary(f func(Value) (Value, error)) error {
	a, err := in.pop()
	if err != nil {
		return err
	}
	r, err := f(a)
	if err != nil {
		return err
	}
	in.push(r)
	return nil
}

// evalCall pops the callee, then either runs a builtin inline (returning
// pushed=false since no frame changes) or resolves/caches the user
// function's bytecode and pushes a new frame for it (returning pushed=true,
// signalling evalNext to resume the dispatch loop at the new top frame
// instead of advancing the old one).
func (in *Interpreter) evalCall(frame *Frame, bc Bytecode) (bool, error) {
	p, ok := bc.Payload.(InvocationPayload)
	if !ok {
		return false, internalf("call opcode missing InvocationPayload")
	}
	callee, err := in.pop()
	if err != nil {
		return false, err
	}
	ref, err := callee.Function()
	if err != nil {
		return false, err
	}

	if ref.IsBuiltin {
		if ref.Builtin == BuiltinMap {
			frame.pc++
			return true, in.evalBuiltinMap(frame, p.Descriptor)
		}
		return false, in.runBuiltin(frame, ref.Builtin, p.Descriptor)
	}

	bindings, err := in.resolveBindings(frame, p.Descriptor, ref.User)
	if err != nil {
		return false, err
	}

	bf, err := in.getBytecodeFn(ref.User, bindings)
	if err != nil {
		return false, err
	}

	frame.pc++

	args, err := in.popN(p.Descriptor.Arity)
	if err != nil {
		return false, err
	}

	typeInfo, err := in.resolveCalleeTypeInfo(frame, ref.User, bindings)
	if err != nil {
		return false, err
	}

	in.frames = append(in.frames, NewFrame(bf, args, typeInfo, bindings))
	return true, nil
}

// resolveCalleeTypeInfo picks the callee's frame-level TypeInfo by a
// three-way rule: a parametric callee instantiates its own type info from
// the caller's, since its shape depends on the bindings just resolved; a
// non-parametric callee defined in a different module gets that module's
// root type info from importData, since the caller's type info describes
// the wrong module; anything else inherits the caller's type info
// unchanged, since the callee lives in the same, already-resolved module.
func (in *Interpreter) resolveCalleeTypeInfo(frame *Frame, fn *UserFunction, bindings SymbolicBindings) (TypeInfo, error) {
	if fn.IsParametric {
		if frame.typeInfo == nil {
			return nil, internalf("parametric call to %s requires a caller type info to instantiate from", fn.ID)
		}
		ti, err := frame.typeInfo.InstantiationTypeInfo(fn, bindings)
		if err != nil {
			return nil, err
		}
		return ti, nil
	}

	if fn.ID.Module != frame.bf.ID.Module {
		if in.importData == nil {
			return nil, internalf("cross-module call to %s requires import data to resolve root type info", fn.ID)
		}
		ti, err := in.importData.RootTypeInfo(fn.ID.Module)
		if err != nil {
			return nil, err
		}
		return ti, nil
	}

	return frame.typeInfo, nil
}

func (in *Interpreter) resolveBindings(frame *Frame, desc InvocationDescriptor, fn *UserFunction) (SymbolicBindings, error) {
	if !fn.IsParametric || len(desc.BindingsTemplate) == 0 {
		return nil, nil
	}
	bindings := make(SymbolicBindings, len(desc.BindingsTemplate))
	for _, be := range desc.BindingsTemplate {
		v, err := frame.slot(be.Slot)
		if err != nil {
			return nil, err
		}
		n, err := v.AsInt64()
		if err != nil {
			return nil, err
		}
		bindings[be.Name] = n
	}
	return bindings, nil
}

func (in *Interpreter) getBytecodeFn(fn *UserFunction, bindings SymbolicBindings) (*BytecodeFunction, error) {
	if !fn.IsParametric {
		return fn.Template, nil
	}
	if in.importData == nil {
		return nil, internalf("parametric call requires import data to resolve bytecode cache")
	}
	cache := in.importData.BytecodeCache()
	return cache.GetOrCreate(fn, bindings, func() (*BytecodeFunction, error) {
		return fn.Template, nil
	})
}

func (in *Interpreter) evalSend() error {
	chVal, v, err := in.pop2()
	if err != nil {
		return err
	}
	ch, err := chVal.Channel()
	if err != nil {
		return err
	}
	if err := ch.Send(v); err != nil {
		return err
	}
	in.push(MakeToken())
	return nil
}

func (in *Interpreter) evalRecv() error {
	chVal, err := in.pop()
	if err != nil {
		return err
	}
	ch, err := chVal.Channel()
	if err != nil {
		return err
	}
	v, err := ch.Recv()
	if err != nil {
		return err
	}
	in.push(v)
	return nil
}
