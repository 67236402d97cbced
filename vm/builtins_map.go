package vm

// evalBuiltinMap synthesizes a small loop-shaped BytecodeFunction that
// applies the callee to each element of the input array in turn, rather
// than unrolling one call per element: the emitted code's size is constant
// regardless of how large the input array is. Slot 0 holds the input
// array (the frame's sole argument); slot 1 holds the loop index. Each
// iteration's call result is left sitting on the shared operand stack
// rather than collected anywhere, and the trailing create-array instruction
// gathers exactly that many values once the loop exits.
func (in *Interpreter) evalBuiltinMap(frame *Frame, desc InvocationDescriptor) error {
	callee, err := in.pop()
	if err != nil {
		return err
	}
	if !callee.IsFunction() {
		return invalidArgumentf("map requires a function value as its second argument")
	}
	inputs, err := in.pop()
	if err != nil {
		return err
	}
	elems, err := inputs.Elements()
	if err != nil {
		return err
	}
	if len(elems) == 0 {
		in.push(NewArray(nil))
		return nil
	}

	innerDesc := InvocationDescriptor{Arity: 1}
	scratch := in.arena.Get(17) // buildMapLoop emits 17 instructions
	scratch = buildMapLoop(scratch, len(elems), callee, innerDesc)
	// The synthesized function's code must outlive this call, but the arena
	// buffer it was assembled in must not: copy it into a freshly allocated,
	// exactly-sized slice the Frame below owns, then return the scratch
	// buffer so the next map call reuses it instead of allocating again.
	code := make([]Bytecode, len(scratch))
	copy(code, scratch)
	in.arena.Put(scratch)
	bf := NewBytecodeFunction(FunctionID{Module: frame.bf.ID.Module, Name: "map$synthesized"}, 1, 2, code)
	mapFrame := NewFrame(bf, []Value{inputs}, frame.typeInfo, frame.bindings)
	mapFrame.own(bf)

	in.frames = append(in.frames, mapFrame)
	return nil
}

func buildMapLoop(code []Bytecode, length int, callee Value, innerDesc InvocationDescriptor) []Bytecode {
	code = append(code,
		NewBytecode(OpLiteral, LiteralPayload{Value: NewUnsignedBitsU64(32, 0)}, nil),
		NewBytecode(OpStore, SlotPayload{Slot: 1}, nil),
	)
	topOfLoop := len(code)
	code = append(code,
		NewBytecode(OpJumpDest, nil, nil),
		NewBytecode(OpLoad, SlotPayload{Slot: 0}, nil),
		NewBytecode(OpLoad, SlotPayload{Slot: 1}, nil),
		NewBytecode(OpIndex, nil, nil),
		NewBytecode(OpLiteral, LiteralPayload{Value: callee}, nil),
		NewBytecode(OpCall, InvocationPayload{Descriptor: innerDesc}, nil),
		NewBytecode(OpLoad, SlotPayload{Slot: 1}, nil),
		NewBytecode(OpLiteral, LiteralPayload{Value: NewUnsignedBitsU64(32, 1)}, nil),
		NewBytecode(OpAdd, nil, nil),
		NewBytecode(OpStore, SlotPayload{Slot: 1}, nil),
		NewBytecode(OpLoad, SlotPayload{Slot: 1}, nil),
		NewBytecode(OpLiteral, LiteralPayload{Value: NewUnsignedBitsU64(32, uint64(length))}, nil),
		NewBytecode(OpLt, nil, nil),
	)
	jumpBackOffset := topOfLoop - len(code)
	code = append(code,
		NewBytecode(OpJumpRelIf, JumpOffsetPayload{Offset: jumpBackOffset}, nil),
		NewBytecode(OpCreateArray, CountPayload{Count: length}, nil),
	)
	return code
}
