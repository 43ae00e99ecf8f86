// Package capability implements the Capability Linker: given a
// component's discovered imports and the engine's enabled-capability set,
// it decides which host modules must be bound, or fails closed with
// herr.KindCapabilityDisabled before any instantiation is attempted.
package capability

import (
	"fmt"

	"github.com/hayride-dev/hayride/herr"
	"github.com/hayride-dev/hayride/witinspect"
)

// Name identifies one host-bindable capability module.
type Name string

const (
	WASI   Name = "wasi"
	AI     Name = "ai"
	Core   Name = "core"
	MCP    Name = "mcp"
	Silo   Name = "silo"
	WAC    Name = "wac"
	DB     Name = "db"
)

// EngineConfig.Enabled, restated here to avoid an import cycle with the
// top-level engine package; hoststore.EngineConfig holds this type as its
// Enabled field.
type Enabled struct {
	WASI  bool
	AI    bool
	Silo  bool
	WAC   bool
	Core  bool
	DB    bool
	MCP   bool
}

// Plan is the set of host modules that must be bound for one component,
// derived from its discovered imports and the engine's enabled set.
type Plan struct {
	Modules map[Name]bool
}

// Requires reports whether m must be bound for this component.
func (p Plan) Requires(m Name) bool { return p.Modules[m] }

// Link builds a Plan from discovered imports, failing closed if any
// capability namespace the component imports is not enabled.
func Link(discovered witinspect.Result, enabled Enabled) (Plan, error) {
	modules := map[Name]bool{}

	for _, imp := range discovered.Imports {
		switch imp.Namespace {
		case "wasi":
			if imp.Name == "nn" {
				if !enabled.AI {
					return Plan{}, disabledErr("hayride:ai")
				}
				modules[AI] = true
				continue
			}
			if !enabled.WASI {
				return Plan{}, disabledErr("wasi:" + imp.Name)
			}
			modules[WASI] = true
			if enabled.WASI {
				modules[Name("http")] = true
			}
		case "hayride":
			name, ok, err := hayrideModule(imp.Name, enabled)
			if err != nil {
				return Plan{}, err
			}
			if ok {
				modules[name] = true
			}
		default:
			// Unknown namespaces are ignored here and are not logged; they
			// will fail at instantiation, not at link time.
		}
	}

	return Plan{Modules: modules}, nil
}

// hayrideModule maps a "hayride:<name>" import to its host module, checking
// the corresponding enabled flag.
func hayrideModule(name string, enabled Enabled) (Name, bool, error) {
	switch name {
	case "core":
		if !enabled.Core {
			return "", false, disabledErr("hayride:core")
		}
		return Core, true, nil
	case "ai":
		if !enabled.AI {
			return "", false, disabledErr("hayride:ai")
		}
		return AI, true, nil
	case "mcp":
		if !enabled.MCP {
			return "", false, disabledErr("hayride:mcp")
		}
		return MCP, true, nil
	case "silo":
		if !enabled.Silo {
			return "", false, disabledErr("hayride:silo")
		}
		return Silo, true, nil
	case "wac":
		if !enabled.WAC {
			return "", false, disabledErr("hayride:wac")
		}
		return WAC, true, nil
	case "db":
		if !enabled.DB {
			return "", false, disabledErr("hayride:db")
		}
		return DB, true, nil
	default:
		return "", false, nil
	}
}

func disabledErr(namespace string) error {
	return herr.New(herr.CapLinker, herr.KindCapabilityDisabled, namespace, fmt.Sprintf("capability %q is not enabled", namespace))
}
