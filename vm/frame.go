package vm

// Frame is one call activation: a program counter into its
// BytecodeFunction's code, a slot array holding parameters and locals, and
// the type info its instantiation was resolved against (needed by cast and
// by any nested parametric call). synthesized holds bytecode functions
// lowered on the fly for this frame to run (the map builtin's loop, say);
// the frame owns their lifetime so an interpreter need not manage a
// separate global arena for them.
type Frame struct {
	pc         int
	bf         *BytecodeFunction
	slots      []Value
	typeInfo   TypeInfo
	bindings   SymbolicBindings
	synthesized []*BytecodeFunction
}

// NewFrame builds a frame ready to execute bf from pc 0, with args occupying
// the first len(args) slots. Every other slot reads as the token value until
// written, per the interpreter's untouched-slot contract.
func NewFrame(bf *BytecodeFunction, args []Value, typeInfo TypeInfo, bindings SymbolicBindings) *Frame {
	slots := make([]Value, bf.SlotCount)
	fillTokens(slots)
	copy(slots, args)
	return &Frame{bf: bf, slots: slots, typeInfo: typeInfo, bindings: bindings}
}

func fillTokens(slots []Value) {
	for i := range slots {
		slots[i] = MakeToken()
	}
}

func (f *Frame) slot(i int) (Value, error) {
	if i < 0 || i >= len(f.slots) {
		return Value{}, internalf("slot %d out of range [0, %d)", i, len(f.slots))
	}
	return f.slots[i], nil
}

func (f *Frame) setSlot(i int, v Value) error {
	if i < 0 {
		return internalf("negative slot index %d", i)
	}
	if i >= len(f.slots) {
		grown := make([]Value, i+1)
		fillTokens(grown)
		copy(grown, f.slots)
		f.slots = grown
	}
	f.slots[i] = v
	return nil
}

// own records a bytecode function synthesized for this frame to run
// (currently only the map builtin does this), keeping it reachable for the
// lifetime of this frame.
func (f *Frame) own(bf *BytecodeFunction) {
	f.synthesized = append(f.synthesized, bf)
}

func (f *Frame) current() (Bytecode, error) {
	if f.pc < 0 || f.pc >= len(f.bf.Code) {
		return Bytecode{}, internalf("program counter %d out of range [0, %d)", f.pc, len(f.bf.Code))
	}
	return f.bf.Code[f.pc], nil
}

func (f *Frame) jumpRel(offset int) error {
	target := f.pc + offset
	if !f.bf.validJumpTarget(target) {
		return internalf("jump target %d is not a jump-dest instruction", target)
	}
	f.pc = target
	return nil
}
