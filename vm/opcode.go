package vm

// Op is the closed set of bytecode opcodes. The enumeration below lists
// every tag named in the external interface; the dispatch loop in
// interp.go switches over exactly these and no others.
type Op uint8

const (
	OpAdd Op = iota
	OpAnd
	OpCall
	OpCast
	OpConcat
	OpCreateArray
	OpCreateTuple
	OpDiv
	OpDup
	OpEq
	OpExpandTuple
	OpFail
	OpGe
	OpGt
	OpIndex
	OpInvert
	OpJumpDest
	OpJumpRel
	OpJumpRelIf
	OpLe
	OpLoad
	OpLiteral
	OpLogicalAnd
	OpLogicalOr
	OpLt
	OpMatchArm
	OpMul
	OpNe
	OpNegate
	OpOr
	OpPop
	OpRecv
	OpSend
	OpShl
	OpShr
	OpSlice
	OpStore
	OpSub
	OpSwap
	OpTrace
	OpWidthSlice
	OpXor
)

var opNames = map[Op]string{
	OpAdd:         "add",
	OpAnd:         "and",
	OpCall:        "call",
	OpCast:        "cast",
	OpConcat:      "concat",
	OpCreateArray: "create-array",
	OpCreateTuple: "create-tuple",
	OpDiv:         "div",
	OpDup:         "dup",
	OpEq:          "eq",
	OpExpandTuple: "expand-tuple",
	OpFail:        "fail",
	OpGe:          "ge",
	OpGt:          "gt",
	OpIndex:       "index",
	OpInvert:      "invert",
	OpJumpDest:    "jump-dest",
	OpJumpRel:     "jump-rel",
	OpJumpRelIf:   "jump-rel-if",
	OpLe:          "le",
	OpLoad:        "load",
	OpLiteral:     "literal",
	OpLogicalAnd:  "logical-and",
	OpLogicalOr:   "logical-or",
	OpLt:          "lt",
	OpMatchArm:    "match-arm",
	OpMul:         "mul",
	OpNe:          "ne",
	OpNegate:      "negate",
	OpOr:          "or",
	OpPop:         "pop",
	OpRecv:        "recv",
	OpSend:        "send",
	OpShl:         "shl",
	OpShr:         "shr",
	OpSlice:       "slice",
	OpStore:       "store",
	OpSub:         "sub",
	OpSwap:        "swap",
	OpTrace:       "trace",
	OpWidthSlice:  "width-slice",
	OpXor:         "xor",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "unknown-op"
}

// Payload is the typed per-opcode operand carried alongside an Op, in place
// of an untyped data bag. Each concrete payload type below is the only
// payload a given family of opcodes ever carries; opcodes needing no static
// operand (add, pop, dup, ...) carry a nil Payload.
type Payload interface {
	payloadKind() string
}

// LiteralPayload carries a constant Value, used by the literal opcode.
type LiteralPayload struct {
	Value Value
}

func (LiteralPayload) payloadKind() string { return "literal" }

// SlotPayload names a frame-local slot index, used by load and store.
type SlotPayload struct {
	Slot int
}

func (SlotPayload) payloadKind() string { return "slot" }

// SlotsPayload names an ordered list of frame-local slot indices, used by
// expand-tuple to destructure a tuple in one step.
type SlotsPayload struct {
	Slots []int
}

func (SlotsPayload) payloadKind() string { return "slots" }

// JumpOffsetPayload carries a relative jump displacement in instruction
// count, used by jump-rel and jump-rel-if. The destination instruction must
// carry jump-dest; the interpreter verifies this at the jump site rather
// than trusting the producer.
type JumpOffsetPayload struct {
	Offset int
}

func (JumpOffsetPayload) payloadKind() string { return "jump-offset" }

// CountPayload carries an element count, used by create-array and
// create-tuple to know how many operand-stack values to consume.
type CountPayload struct {
	Count int
}

func (CountPayload) payloadKind() string { return "count" }

// TypePayload carries a fully resolved ConcreteType, used by cast.
type TypePayload struct {
	Type ConcreteType
}

func (TypePayload) payloadKind() string { return "type" }

// InvocationPayload carries a call site's static shape, used by call.
type InvocationPayload struct {
	Descriptor InvocationDescriptor
}

func (InvocationPayload) payloadKind() string { return "invocation" }

// TraceTemplatePayload carries a trace or fail opcode's format template.
type TraceTemplatePayload struct {
	Template TraceTemplate
}

func (TraceTemplatePayload) payloadKind() string { return "trace-template" }

// MatchArmPayload carries one arm of a match expression: the pattern to
// test the scrutinee against, and the relative offset to jump to if it
// fails to match (falling through to the next match-arm instruction).
type MatchArmPayload struct {
	Pattern    Pattern
	NextOffset int
}

func (MatchArmPayload) payloadKind() string { return "match-arm" }

// Bytecode is one instruction: an opcode plus its typed payload and the
// source span used for trace/fail/error diagnostics.
type Bytecode struct {
	Op      Op
	Payload Payload
	Span    *Span
}

func NewBytecode(op Op, payload Payload, span *Span) Bytecode {
	return Bytecode{Op: op, Payload: payload, Span: span}
}
