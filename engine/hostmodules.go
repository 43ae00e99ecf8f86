package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero/api"

	"github.com/hayride-dev/hayride/ai/backend"
	"github.com/hayride-dev/hayride/db"
	"github.com/hayride-dev/hayride/herr"
	"github.com/hayride-dev/hayride/hoststore"
	"github.com/hayride-dev/hayride/silo"
	"github.com/hayride-dev/hayride/wac"
)

// engineVersion is the static string the hayride:core version function
// reports; it identifies the capability surface, not a build of this binary.
const engineVersion = "hayride/0.1"

// storeCtxKey keys the per-invocation *hoststore.Store a host function
// reads out of the context.Context passed to whichever guest export
// triggered it. Host modules are instantiated once, at Engine.New time, so
// this is the only way a host function call can reach the Store that was
// built for its particular invocation.
type storeCtxKey struct{}

// withStore attaches store to ctx, ahead of invoking a guest export that may
// transitively call back into one of the registered host modules.
func withStore(ctx context.Context, store *hoststore.Store) context.Context {
	return context.WithValue(ctx, storeCtxKey{}, store)
}

// storeFromContext recovers the Store a withStore call attached, or nil if
// none was (a host function invoked outside of Run's dispatch, which should
// not happen outside of tests that call a host function directly).
func storeFromContext(ctx context.Context) *hoststore.Store {
	store, _ := ctx.Value(storeCtxKey{}).(*hoststore.Store)
	return store
}

// registerHostModules binds one wazero host module per hayride:* capability
// (plus the wasi:nn alias for AI), so that a compiled component's imports
// actually resolve to host-implemented functions instead of only
// wasi_snapshot_preview1 being available. Every module is registered
// exactly once, here, regardless of whether any given component's
// Capability Linker plan requires it: a component that never imports
// hayride:db never calls into the registered db functions, and one that
// does but was not granted DB (Store.DB == nil) gets a fail-closed result
// out of the function body, not a missing import at instantiation time.
//
// MCP has no host module: no MCP backend exists to bind (see DESIGN.md). A
// hayride:mcp import is rejected by the Capability Linker when MCP is
// disabled; when MCP is enabled it links, and instantiation then fails on
// the unresolved import.
func (e *Engine) registerHostModules(ctx context.Context) error {
	builders := []func(context.Context) error{
		e.registerCoreModule,
		e.registerAIModule,
		e.registerSiloModule,
		e.registerWacModule,
		e.registerDBModule,
	}
	for _, register := range builders {
		if err := register(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) registerCoreModule(ctx context.Context) error {
	_, err := e.runtime.NewHostModuleBuilder("hayride:core").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostCoreVersion), []api.ValueType{}, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}).
		Export("version").
		Instantiate(ctx)
	if err != nil {
		return herr.NewWithCause(herr.CapCore, herr.KindEngineError, "", "failed to register hayride:core host module", err)
	}
	return nil
}

// hostCoreVersion implements hayride:core/version: () -> string.
func (e *Engine) hostCoreVersion(ctx context.Context, mod api.Module, stack []uint64) {
	ptr, err := writeString(ctx, mod, engineVersion)
	if err != nil {
		stack[0], stack[1] = 0, 0
		return
	}
	stack[0], stack[1] = uint64(ptr), uint64(len(engineVersion))
}

// registerAIModule binds hayride:ai and its wasi:nn alias (the Capability
// Linker maps both to the same Name) to the same generate function.
func (e *Engine) registerAIModule(ctx context.Context) error {
	sig := []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	results := []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}

	for _, name := range []string{"hayride:ai", "wasi:nn"} {
		_, err := e.runtime.NewHostModuleBuilder(name).
			NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(e.hostAIGenerate), sig, results).
			Export("generate").
			Instantiate(ctx)
		if err != nil {
			return herr.NewWithCause(herr.CapAI, herr.KindEngineError, "", "failed to register "+name+" host module", err)
		}
	}
	return nil
}

// hostAIGenerate implements generate(prompt: string) -> (ok: bool, text:
// string): it runs one default-model compute against the Store's AI
// Backend and writes the decoded text back into the caller's memory. A
// missing/ungranted backend, or a failed compute, sets ok=0 rather than
// trapping and leaves the text slots unset: this primitive ABI has no error
// channel richer than the leading ok flag.
func (e *Engine) hostAIGenerate(ctx context.Context, mod api.Module, stack []uint64) {
	be, ok := storeAI(ctx)
	if !ok {
		stack[0] = 0
		return
	}

	prompt, ok := readString(mod, stack[0], stack[1])
	if !ok {
		stack[0] = 0
		return
	}

	graph, err := be.LoadByName("default")
	if err != nil {
		stack[0] = 0
		return
	}
	execCtx, err := graph.InitExecutionContext()
	if err != nil {
		stack[0] = 0
		return
	}
	defer execCtx.Release()

	opts, err := backend.ParsePromptOptions(nil)
	if err != nil {
		stack[0] = 0
		return
	}
	tensor, err := execCtx.Compute(ctx, prompt, opts)
	if err != nil {
		stack[0] = 0
		return
	}

	text := string(tensor.Data)
	ptr, err := writeString(ctx, mod, text)
	if err != nil {
		stack[0] = 0
		return
	}
	stack[0], stack[1], stack[2] = 1, uint64(ptr), uint64(len(text))
}

func storeAI(ctx context.Context) (*backend.Backend, bool) {
	store := storeFromContext(ctx)
	if store == nil || !store.HasAI || store.AI == nil {
		return nil, false
	}
	be, ok := store.AI.(*backend.Backend)
	return be, ok
}

func (e *Engine) registerSiloModule(ctx context.Context) error {
	b := e.runtime.NewHostModuleBuilder("hayride:silo")

	_, err := b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostSiloSpawn),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}).
		Export("spawn").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostSiloWait),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}).
		Export("wait").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostSiloKill),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI32}).
		Export("kill").
		Instantiate(ctx)
	if err != nil {
		return herr.NewWithCause(herr.CapSilo, herr.KindEngineError, "", "failed to register hayride:silo host module", err)
	}
	return nil
}

func storeSilo(ctx context.Context) (*silo.Registry, bool) {
	store := storeFromContext(ctx)
	if store == nil || store.Silo == nil {
		return nil, false
	}
	reg, ok := store.Silo.(*silo.Registry)
	return reg, ok
}

// hostSiloSpawn implements spawn(morph: string, args: string) -> (ok: bool,
// thread-id: string). args is a single NUL-joined argument blob, this
// primitive ABI's stand-in for a WIT list<string>.
func (e *Engine) hostSiloSpawn(ctx context.Context, mod api.Module, stack []uint64) {
	reg, ok := storeSilo(ctx)
	if !ok {
		stack[0] = 0
		return
	}

	morphID, ok := readString(mod, stack[0], stack[1])
	if !ok {
		stack[0] = 0
		return
	}
	argBlob, ok := readString(mod, stack[2], stack[3])
	if !ok {
		stack[0] = 0
		return
	}

	var rawArgs []string
	if argBlob != "" {
		rawArgs = strings.Split(argBlob, "\x00")
	}

	id := reg.NewThreadID()
	reg.SpawnWithID(ctx, id, e.spawnSiloTask(id, morphID, rawArgs))

	idStr := id.String()
	ptr, err := writeString(ctx, mod, idStr)
	if err != nil {
		stack[0] = 0
		return
	}
	stack[0], stack[1], stack[2] = 1, uint64(ptr), uint64(len(idStr))
}

// hostSiloWait implements wait(thread-id: string) -> (ok: bool, result:
// string). ok=0 covers both "no such thread" and "thread failed/was
// killed"; the distinction this primitive ABI cannot carry further than
// that is left to the richer status() call a real binding would also make.
func (e *Engine) hostSiloWait(ctx context.Context, mod api.Module, stack []uint64) {
	reg, ok := storeSilo(ctx)
	if !ok {
		stack[0] = 0
		return
	}
	idStr, ok := readString(mod, stack[0], stack[1])
	if !ok {
		stack[0] = 0
		return
	}
	parsed, err := uuid.Parse(idStr)
	if err != nil {
		stack[0] = 0
		return
	}

	result, err := reg.Wait(ctx, silo.ThreadID(parsed))
	if err != nil {
		stack[0] = 0
		return
	}

	ptr, err := writeString(ctx, mod, string(result))
	if err != nil {
		stack[0] = 0
		return
	}
	stack[0], stack[1], stack[2] = 1, uint64(ptr), uint64(len(result))
}

// hostSiloKill implements kill(thread-id: string) -> ok: bool.
func (e *Engine) hostSiloKill(ctx context.Context, mod api.Module, stack []uint64) {
	reg, ok := storeSilo(ctx)
	if !ok {
		stack[0] = 0
		return
	}
	idStr, ok := readString(mod, stack[0], stack[1])
	if !ok {
		stack[0] = 0
		return
	}
	parsed, err := uuid.Parse(idStr)
	if err != nil {
		stack[0] = 0
		return
	}
	if err := reg.Kill(silo.ThreadID(parsed)); err != nil {
		stack[0] = 0
		return
	}
	stack[0] = 1
}

func (e *Engine) registerWacModule(ctx context.Context) error {
	_, err := e.runtime.NewHostModuleBuilder("hayride:wac").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostWacCompose),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}).
		Export("compose").
		Instantiate(ctx)
	if err != nil {
		return herr.NewWithCause(herr.CapWAC, herr.KindEngineError, "", "failed to register hayride:wac host module", err)
	}
	return nil
}

// hostWacCompose implements compose(path: string) -> (ok: bool, component:
// bytes-as-string).
func (e *Engine) hostWacCompose(ctx context.Context, mod api.Module, stack []uint64) {
	store := storeFromContext(ctx)
	if store == nil || !store.HasWac || store.Wac == nil {
		stack[0] = 0
		return
	}
	b, ok := store.Wac.(*wac.Backend)
	if !ok {
		stack[0] = 0
		return
	}
	path, ok := readString(mod, stack[0], stack[1])
	if !ok {
		stack[0] = 0
		return
	}

	out, err := b.Compose(ctx, path)
	if err != nil {
		stack[0] = 0
		return
	}

	ptr, err := writeString(ctx, mod, string(out))
	if err != nil {
		stack[0] = 0
		return
	}
	stack[0], stack[1], stack[2] = 1, uint64(ptr), uint64(len(out))
}

func (e *Engine) registerDBModule(ctx context.Context) error {
	_, err := e.runtime.NewHostModuleBuilder("hayride:db").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostDBOpen),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI64}).
		Export("open").
		Instantiate(ctx)
	if err != nil {
		return herr.NewWithCause(herr.CapDB, herr.KindEngineError, "", "failed to register hayride:db host module", err)
	}
	return nil
}

// hostDBOpen implements open(dsn: string) -> (ok: bool, connection: handle).
// The returned handle indexes the Store's ResourceTable; statement
// preparation and row streaming need a richer parameter marshaling
// convention than this primitive ABI carries and are left as a documented
// limitation (see DESIGN.md): this binds the capability's connection
// lifecycle, the part the ResourceTable exists to hold.
func (e *Engine) hostDBOpen(ctx context.Context, mod api.Module, stack []uint64) {
	store := storeFromContext(ctx)
	if store == nil || !store.HasDB || store.DB == nil {
		stack[0] = 0
		return
	}
	dispatcher, ok := store.DB.(*db.Dispatcher)
	if !ok {
		stack[0] = 0
		return
	}
	dsn, ok := readString(mod, stack[0], stack[1])
	if !ok {
		stack[0] = 0
		return
	}

	conn, err := dispatcher.Open(ctx, dsn)
	if err != nil {
		stack[0] = 0
		return
	}

	handle := store.Resources.Push(conn)
	stack[0], stack[1] = 1, uint64(handle)
}

// readString reads a (ptr, len) pair out of mod's linear memory, the
// inverse of writeString.
func readString(mod api.Module, ptr, length uint64) (string, bool) {
	data, ok := mod.Memory().Read(uint32(ptr), uint32(length))
	if !ok {
		return "", false
	}
	return string(data), true
}
