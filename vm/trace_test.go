package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTraceTemplateRenderInterleavesFragmentsAndValues(t *testing.T) {
	t.Parallel()
	template := TraceTemplate{
		Fragments: []TraceFragment{
			LiteralFragment("a="),
			ValueFragment(),
			LiteralFragment(", b="),
			ValueFragment(),
		},
		ValueCount: 2,
	}
	msg, err := template.Render([]Value{u32(1), u32(2)})
	require.NoError(t, err)
	require.Equal(t, "a=u32:1, b=u32:2", msg)
}

// TestTraceOpcodeLogsThroughRealLogger exercises the one ambient-stack path
// every other test and example leaves untouched by always constructing
// NewInterpreter(nil, nil): an actual *zap.Logger threaded in at
// construction time, asserting emitTrace's logger.Info call really fires
// and carries the rendered message and span.
func TestTraceOpcodeLogsThroughRealLogger(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	template := TraceTemplate{
		Fragments:  []TraceFragment{LiteralFragment("value is "), ValueFragment()},
		ValueCount: 1,
	}
	span := &Span{Filename: "prog.dx", Start: Pos{Line: 3, Column: 1}, Limit: Pos{Line: 3, Column: 10}}
	code := []Bytecode{
		NewBytecode(OpLiteral, LiteralPayload{Value: u32(9)}, nil),
		NewBytecode(OpTrace, TraceTemplatePayload{Template: template}, span),
	}
	bf := NewBytecodeFunction(FunctionID{Module: "test", Name: "main"}, 0, 0, code)
	interp := NewInterpreter(nil, logger)
	result, err := interp.Interpret(bf, nil)
	require.NoError(t, err)
	require.True(t, result.IsToken())

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "value is u32:9", entries[0].Message)
	require.Equal(t, span.String(), entries[0].ContextMap()["span"])
}

func TestEmitTraceIsNoOpWithNilLogger(t *testing.T) {
	t.Parallel()
	template := TraceTemplate{
		Fragments:  []TraceFragment{LiteralFragment("x")},
		ValueCount: 0,
	}
	require.NoError(t, emitTrace(nil, nil, template, nil))
}
