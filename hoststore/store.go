// Package hoststore implements the Store Builder: it constructs the
// per-invocation Host a component executes against, namely filesystem
// preopens, stdio redirection, environment, one context per enabled
// capability, and a fresh ResourceTable. Lifetime is exactly one
// component execution.
package hoststore

import (
	"path/filepath"
	"runtime"

	"github.com/google/uuid"

	"github.com/hayride-dev/hayride/capability"
)

// EngineConfig is the engine-wide, immutable configuration every Store is
// built from.
type EngineConfig struct {
	RegistryRoot string
	ModelRoot    string
	OutDir       string
	LogLevel     string
	InheritStdio bool
	Envs         map[string]string
	Enabled      capability.Enabled
}

// Preopen is one guest-visible directory mount.
type Preopen struct {
	HostDir  string
	GuestDir string
	ReadOnly bool
}

// Store is the per-invocation aggregate a component executes against.
// Capability contexts are stored as `any` and
// type-asserted by the capability package that owns them (ai.Backend,
// db.Dispatcher, silo.Registry, wac bindings, ...) to avoid hoststore
// importing every capability package and creating an import cycle.
type Store struct {
	InvocationID uuid.UUID

	Preopens []Preopen
	Env      map[string]string
	Stdio    *Stdio

	Resources *ResourceTable

	Core   any
	AI     any
	MCP    any
	Silo   any
	Wac    any
	DB     any
	WASI   bool
	HasAI  bool
	HasDB  bool
	HasWac bool
}

// Builder constructs Stores from one EngineConfig.
type Builder struct {
	cfg EngineConfig
}

// NewBuilder wraps cfg for repeated Store construction.
func NewBuilder(cfg EngineConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build realizes one Store for a fresh invocation, wiring only the
// capability contexts plan requires (the capability linker's output),
// via the supplied context values.
func (b *Builder) Build(plan capability.Plan, stdinRequested bool, contexts StoreContexts) (*Store, error) {
	id := uuid.New()

	sessionDir := ""
	if b.cfg.OutDir != "" {
		sessionDir = filepath.Join(b.cfg.OutDir, id.String())
	}

	stdio, err := StdioPolicy{
		InheritStdio: b.cfg.InheritStdio,
		SessionDir:   sessionDir,
		Stdin:        stdinRequested,
	}.Build()
	if err != nil {
		return nil, err
	}

	env := map[string]string{"PWD": "."}
	for k, v := range b.cfg.Envs {
		env[k] = v
	}

	store := &Store{
		InvocationID: id,
		Preopens:     defaultPreopens(),
		Env:          env,
		Stdio:        stdio,
		Resources:    NewResourceTable(),
		WASI:         plan.Requires(capability.WASI),
		HasAI:        plan.Requires(capability.AI),
		HasDB:        plan.Requires(capability.DB),
		HasWac:       plan.Requires(capability.WAC),
	}

	if plan.Requires(capability.Core) {
		store.Core = contexts.Core
	}
	if store.HasAI {
		store.AI = contexts.AI
	}
	if plan.Requires(capability.MCP) {
		store.MCP = contexts.MCP
	}
	if plan.Requires(capability.Silo) {
		store.Silo = contexts.Silo
	}
	if store.HasWac {
		store.Wac = contexts.Wac
	}
	if store.HasDB {
		store.DB = contexts.DB
	}

	return store, nil
}

// StoreContexts are the already-constructed, possibly process-wide
// capability context values a Builder wires into a Store on demand. Their
// concrete types belong to the owning capability packages (ai.Backend,
// db.Dispatcher, silo.Registry, a wac binding, an MCP client, a core
// version-cache handle); hoststore only moves them into place.
type StoreContexts struct {
	Core any
	AI   any
	MCP  any
	Silo any
	Wac  any
	DB   any
}

// defaultPreopens returns the two directories every Store preopens: the
// current directory as "." and the platform Hayride data directory as
// "/.hayride", both read-write.
func defaultPreopens() []Preopen {
	return []Preopen{
		{HostDir: ".", GuestDir: ".", ReadOnly: false},
		{HostDir: hayrideDataDir(), GuestDir: "/.hayride", ReadOnly: false},
	}
}

// hayrideDataDir returns the platform-appropriate Hayride data directory:
// a single well-known per-user directory, resolved using only
// stdlib/runtime facilities.
func hayrideDataDir() string {
	if runtime.GOOS == "windows" {
		if appdata := envOr("APPDATA", ""); appdata != "" {
			return filepath.Join(appdata, "hayride")
		}
	}
	home := envOr("HOME", ".")
	return filepath.Join(home, ".hayride")
}
