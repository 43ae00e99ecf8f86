package shape_test

import (
	"testing"

	"github.com/hayride-dev/hayride/herr"
	"github.com/hayride-dev/hayride/shape"
	"github.com/hayride-dev/hayride/witinspect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRunIsCLI(t *testing.T) {
	exports := []witinspect.ExportFunc{{FunctionName: "run"}, {FunctionName: "handle"}}
	assert.Equal(t, shape.CLI, shape.Classify(exports))
}

func TestClassifyWebsocketHandleIsWebSocketServer(t *testing.T) {
	exports := []witinspect.ExportFunc{{FunctionName: "handle", EnclosingInterfaceName: "websocket"}}
	assert.Equal(t, shape.WebSocketServer, shape.Classify(exports))
}

func TestClassifyPlainHandleIsHTTPServer(t *testing.T) {
	exports := []witinspect.ExportFunc{{FunctionName: "handle", EnclosingInterfaceName: "my:api/handler"}}
	assert.Equal(t, shape.HTTPServer, shape.Classify(exports))
}

func TestClassifyOtherwiseIsReactor(t *testing.T) {
	exports := []witinspect.ExportFunc{{FunctionName: "echo"}}
	assert.Equal(t, shape.Reactor, shape.Classify(exports))
}

func TestFindExportReportsDuplicateCount(t *testing.T) {
	exports := []witinspect.ExportFunc{
		{FunctionName: "echo", EnclosingInterfaceName: "a"},
		{FunctionName: "echo", EnclosingInterfaceName: "b"},
	}
	first, found, count := shape.FindExport(exports, "echo")
	require.True(t, found)
	assert.Equal(t, "a", first.EnclosingInterfaceName)
	assert.Equal(t, 2, count)
}

func TestFromWitKindTranslatesPrimitives(t *testing.T) {
	pt, ok := shape.FromWitKind(witinspect.KindString)
	require.True(t, ok)
	assert.Equal(t, shape.ParamString, pt)

	pt, ok = shape.FromWitKind(witinspect.KindS64)
	require.True(t, ok)
	assert.Equal(t, shape.ParamS64, pt)
}

func TestFromWitKindRejectsOther(t *testing.T) {
	_, ok := shape.FromWitKind(witinspect.KindOther)
	assert.False(t, ok)
}

func TestCoerceArgsValidatesArityAndTypes(t *testing.T) {
	values, err := shape.CoerceArgs([]string{"echo", "hello"}, []shape.ParamType{shape.ParamString})
	require.NoError(t, err)
	assert.Equal(t, []any{"hello"}, values)

	_, err = shape.CoerceArgs([]string{"echo"}, []shape.ParamType{shape.ParamString})
	assert.Error(t, err)
}

func TestCoerceArgRejectsUnknownType(t *testing.T) {
	_, err := shape.CoerceArg(shape.ParamType("float"), "1.0")
	require.Error(t, err)
	herrErr, ok := herr.As(err)
	require.True(t, ok)
	assert.Equal(t, "UnknownParamType", herrErr.Code())
}

func TestSerializeResultUsesPrintableForm(t *testing.T) {
	assert.Equal(t, []byte("hello"), shape.SerializeResult("hello"))
	assert.Equal(t, []byte("42"), shape.SerializeResult(int32(42)))
	assert.Equal(t, []byte("true"), shape.SerializeResult(true))
}
