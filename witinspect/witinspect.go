// Package witinspect implements the WIT Inspector: a pure function from
// component bytes to the set of declared capability imports and exported
// functions, used by the Capability Linker before any instantiation is
// attempted.
package witinspect

import (
	"fmt"
	"sort"

	"go.bytecodealliance.org/wit"

	"github.com/hayride-dev/hayride/herr"
)

// CapabilityImport names one imported interface's package, identified by
// namespace (e.g. "wasi", "hayride") and name (e.g. "ai", "silo").
type CapabilityImport struct {
	Namespace string
	Name      string
}

// ParamKind is the WIT-declared coarse shape of a function parameter or
// result, captured here because wazero's compiled core ABI cannot recover
// it: a WIT string flattens to the same two-i32 core signature as two
// numeric parameters, so choosing a Reactor lowering/lifting strategy
// requires the declared WIT shape, not the compiled core value types.
type ParamKind string

const (
	KindString ParamKind = "string"
	KindS32    ParamKind = "s32"
	KindS64    ParamKind = "s64"
	KindU32    ParamKind = "u32"
	KindU64    ParamKind = "u64"
	KindBool   ParamKind = "bool"
	KindOther  ParamKind = "other" // any WIT type outside the Reactor primitive set
)

// ExportFunc names one exported function, with the enclosing interface name
// when the export belongs to an exported interface rather than being a
// bare world-level export, plus its declared parameter/result shape.
type ExportFunc struct {
	FunctionName           string
	EnclosingInterfaceName string // empty for bare exports

	ParamKinds []ParamKind
	HasResult  bool
	ResultKind ParamKind // meaningful only when HasResult
}

// Result is the discovery result for a single component binary. It is a
// pure function of the bytes: the same bytes always produce the same Result.
type Result struct {
	Imports []CapabilityImport
	Exports []ExportFunc
}

// HasImport reports whether namespace is present among the discovered
// imports, used by the Capability Linker to decide which host modules to
// bind.
func (r Result) HasImport(namespace string) bool {
	for _, imp := range r.Imports {
		if imp.Namespace == namespace {
			return true
		}
	}
	return false
}

// Inspect parses component bytes and returns its declared imports and
// exports. It never instantiates the component.
func Inspect(componentBytes []byte) (Result, error) {
	resolve, world, err := decodeWorld(componentBytes)
	if err != nil {
		return Result{}, herr.NewWithCause(herr.CapWitInspect, herr.KindInvalidEncoding, "", "failed to decode component world", err)
	}

	imports := walkImports(resolve, world)
	exports := walkExports(resolve, world)

	return Result{Imports: dedupeImports(imports), Exports: exports}, nil
}

// decodeWorld decodes the component's declared world out of its binary
// representation using the bytecodealliance component-model decoder.
func decodeWorld(componentBytes []byte) (*wit.Resolve, *wit.World, error) {
	resolve, err := wit.DecodeComponent(componentBytes)
	if err != nil {
		return nil, nil, err
	}
	if len(resolve.Worlds) == 0 {
		return nil, nil, fmt.Errorf("component declares no world")
	}
	// A component binary embeds exactly one top-level world; subsequent
	// worlds in Resolve (if any) describe used packages, not the
	// component's own surface.
	return resolve, resolve.Worlds[0], nil
}

// walkImports records, for every imported interface, its enclosing
// package's namespace and name. Imports that are not interfaces (bare
// functions, types) are not capability-relevant and are skipped.
func walkImports(resolve *wit.Resolve, world *wit.World) []CapabilityImport {
	var out []CapabilityImport
	for _, item := range world.Imports {
		iface, ok := item.(*wit.Interface)
		if !ok || iface.Package == nil {
			continue
		}
		out = append(out, CapabilityImport{
			Namespace: iface.Package.Name.Namespace,
			Name:      iface.Package.Name.Name,
		})
	}
	return out
}

// walkExports records every exported function: bare world-level function
// exports, and every function of every exported interface (tagged with
// that interface's name as the enclosing interface).
func walkExports(resolve *wit.Resolve, world *wit.World) []ExportFunc {
	var out []ExportFunc
	for name, item := range world.Exports {
		switch v := item.(type) {
		case *wit.Function:
			kinds, hasResult, resultKind := functionShape(v)
			out = append(out, ExportFunc{FunctionName: v.Name, ParamKinds: kinds, HasResult: hasResult, ResultKind: resultKind})
		case *wit.Interface:
			ifaceName := name
			if v.Name != nil {
				ifaceName = *v.Name
			}
			for fname, fn := range v.Functions {
				kinds, hasResult, resultKind := functionShape(fn)
				out = append(out, ExportFunc{FunctionName: fname, EnclosingInterfaceName: ifaceName, ParamKinds: kinds, HasResult: hasResult, ResultKind: resultKind})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnclosingInterfaceName != out[j].EnclosingInterfaceName {
			return out[i].EnclosingInterfaceName < out[j].EnclosingInterfaceName
		}
		return out[i].FunctionName < out[j].FunctionName
	})
	return out
}

// functionShape reads fn's declared parameter and result types, reporting
// each as the Reactor-relevant ParamKind. A function with no result reports
// HasResult false; one with more than one result reports only the first
// result's kind, and no later stage rejects the extra results.
func functionShape(fn *wit.Function) (params []ParamKind, hasResult bool, resultKind ParamKind) {
	params = make([]ParamKind, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = witTypeKind(p.Type)
	}
	if len(fn.Results) == 0 {
		return params, false, ""
	}
	return params, true, witTypeKind(fn.Results[0].Type)
}

// witTypeKind maps a WIT type to the Reactor primitive vocabulary,
// reporting KindOther for anything outside that set (records, variants,
// resources, lists including list<u8>, and so on).
func witTypeKind(t wit.Type) ParamKind {
	switch t.(type) {
	case wit.String:
		return KindString
	case wit.S32:
		return KindS32
	case wit.S64:
		return KindS64
	case wit.U32:
		return KindU32
	case wit.U64:
		return KindU64
	case wit.Bool:
		return KindBool
	default:
		return KindOther
	}
}

func dedupeImports(in []CapabilityImport) []CapabilityImport {
	seen := map[string]bool{}
	var out []CapabilityImport
	for _, imp := range in {
		key := imp.Namespace + ":" + imp.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, imp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out
}
