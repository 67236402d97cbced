package vm

import (
	"strings"

	"go.uber.org/zap"
)

// TraceFragmentKind distinguishes a literal string fragment from a
// value-interpolation slot within a trace template.
type TraceFragmentKind uint8

const (
	TraceFragmentLiteral TraceFragmentKind = iota
	TraceFragmentValue
)

// TraceFragment is one piece of a trace/fail format template.
type TraceFragment struct {
	Kind TraceFragmentKind
	Text string // used when Kind == TraceFragmentLiteral
}

// TraceTemplate is an ordered sequence of literal fragments and
// value-interpolation markers; the values themselves are popped off the
// operand stack at the point the trace or fail opcode executes, one per
// TraceFragmentValue marker, in order.
type TraceTemplate struct {
	Fragments []TraceFragment
	ValueCount int
}

func LiteralFragment(text string) TraceFragment {
	return TraceFragment{Kind: TraceFragmentLiteral, Text: text}
}

func ValueFragment() TraceFragment {
	return TraceFragment{Kind: TraceFragmentValue}
}

// Render interpolates values into t's template in order, producing the
// final message trace logs or a fail error carries.
func (t TraceTemplate) Render(values []Value) (string, error) {
	if len(values) != t.ValueCount {
		return "", internalf("trace template expects %d values, got %d", t.ValueCount, len(values))
	}
	var b strings.Builder
	vi := 0
	for _, frag := range t.Fragments {
		switch frag.Kind {
		case TraceFragmentLiteral:
			b.WriteString(frag.Text)
		case TraceFragmentValue:
			b.WriteString(values[vi].String())
			vi++
		}
	}
	return b.String(), nil
}

// emitTrace renders template and logs it at info level. The trace opcode
// never fails the interpretation; a malformed template is the one
// exception, surfaced as an Internal error since it indicates a bytecode
// producer bug rather than a runtime condition.
func emitTrace(logger *zap.Logger, span *Span, template TraceTemplate, values []Value) error {
	msg, err := template.Render(values)
	if err != nil {
		return err
	}
	if logger == nil {
		return nil
	}
	if span != nil {
		logger.Info(msg, zap.String("span", span.String()))
	} else {
		logger.Info(msg)
	}
	return nil
}

// renderFail renders template into the message a fail opcode's Failure
// error carries.
func renderFail(span *Span, template TraceTemplate, values []Value) error {
	msg, err := template.Render(values)
	if err != nil {
		return err
	}
	return failuref(span, "%s", msg)
}
