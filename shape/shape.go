// Package shape implements the Shape Dispatcher: it classifies a
// component's exports into one of {CLI, Reactor, HTTP Server,
// WebSocket Server} and provides the Reactor shape's argument-coercion and
// result-serialization logic. Actual instantiation and export invocation
// belong to the engine package, which owns the wazero runtime; this package
// only implements the classification rule and the pure data transforms
// around it, using a discriminated-union dispatch idiom switched on export
// name/interface rather than a Type() method.
package shape

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hayride-dev/hayride/herr"
	"github.com/hayride-dev/hayride/witinspect"
)

// Kind is one of the four execution shapes a component may present.
type Kind string

const (
	CLI             Kind = "cli"
	Reactor         Kind = "reactor"
	HTTPServer      Kind = "http-server"
	WebSocketServer Kind = "websocket-server"
)

// Classify applies a priority-ordered rule to a component's exports.
func Classify(exports []witinspect.ExportFunc) Kind {
	for _, e := range exports {
		if e.FunctionName == "run" {
			return CLI
		}
	}
	for _, e := range exports {
		if e.FunctionName == "handle" && e.EnclosingInterfaceName == "websocket" {
			return WebSocketServer
		}
	}
	for _, e := range exports {
		if e.FunctionName == "handle" {
			return HTTPServer
		}
	}
	return Reactor
}

// FindExport recursively searches exports (already flattened by witinspect,
// which walks nested interfaces) for the first export named name. First
// match wins; if multiple match, FindExport returns only the first and
// reports how many matched. It logs nothing itself.
func FindExport(exports []witinspect.ExportFunc, name string) (witinspect.ExportFunc, bool, int) {
	count := 0
	var first witinspect.ExportFunc
	found := false
	for _, e := range exports {
		if e.FunctionName == name {
			count++
			if !found {
				first = e
				found = true
			}
		}
	}
	return first, found, count
}

// ParamType is a Reactor argument's coerced Go-visible type, restricted to
// the documented set of supported primitive types.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamS32    ParamType = "s32"
	ParamS64    ParamType = "s64"
	ParamU32    ParamType = "u32"
	ParamU64    ParamType = "u64"
	ParamBool   ParamType = "bool"
)

// FromWitKind translates witinspect's WIT-declared ParamKind into the
// Reactor ParamType vocabulary, reporting false for a kind outside the
// supported primitive set (witinspect.KindOther, or any future addition
// this package has not been taught about yet).
func FromWitKind(k witinspect.ParamKind) (ParamType, bool) {
	switch k {
	case witinspect.KindString:
		return ParamString, true
	case witinspect.KindS32:
		return ParamS32, true
	case witinspect.KindS64:
		return ParamS64, true
	case witinspect.KindU32:
		return ParamU32, true
	case witinspect.KindU64:
		return ParamU64, true
	case witinspect.KindBool:
		return ParamBool, true
	default:
		return "", false
	}
}

// CoerceArg coerces a raw CLI-style string argument to paramType's Go
// value; an unsupported type yields Err(UnknownParamType).
func CoerceArg(paramType ParamType, raw string) (any, error) {
	switch paramType {
	case ParamString:
		return raw, nil
	case ParamS32:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, invalidArg(paramType, raw, err)
		}
		return int32(n), nil
	case ParamS64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, invalidArg(paramType, raw, err)
		}
		return n, nil
	case ParamU32:
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, invalidArg(paramType, raw, err)
		}
		return uint32(n), nil
	case ParamU64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, invalidArg(paramType, raw, err)
		}
		return n, nil
	case ParamBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, invalidArg(paramType, raw, err)
		}
		return b, nil
	default:
		return nil, herr.Core(herr.KindUnsupportedOperation, "UnknownParamType", fmt.Sprintf("unsupported reactor parameter type %q", paramType))
	}
}

func invalidArg(paramType ParamType, raw string, cause error) error {
	return herr.NewWithCause(herr.CapCore, herr.KindInvalidArgument, "", fmt.Sprintf("cannot coerce %q to %s", raw, paramType), cause)
}

// CoerceArgs validates arity (|args| - 1, since the first arg is the
// function name) and coerces every remaining argument against paramTypes
// in order.
func CoerceArgs(args []string, paramTypes []ParamType) ([]any, error) {
	if len(args) == 0 {
		return nil, herr.Core(herr.KindInvalidArgument, "", "reactor invocation requires at least a function name")
	}
	values := args[1:]
	if len(values) != len(paramTypes) {
		return nil, herr.Core(herr.KindInvalidArgument, "", fmt.Sprintf("expected %d argument(s), got %d", len(paramTypes), len(values)))
	}
	out := make([]any, len(values))
	for i, v := range values {
		coerced, err := CoerceArg(paramTypes[i], v)
		if err != nil {
			return nil, err
		}
		out[i] = coerced
	}
	return out, nil
}

// SerializeResult renders result's printable form as bytes: the first
// result is serialized to bytes via its printable form.
func SerializeResult(result any) []byte {
	switch v := result.(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	case bool:
		return []byte(strconv.FormatBool(v))
	default:
		return []byte(strings.TrimSpace(fmt.Sprint(v)))
	}
}
