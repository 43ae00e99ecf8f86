package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"

	"github.com/hayride-dev/hayride/herr"
	"github.com/hayride-dev/hayride/registry"
	"github.com/hayride-dev/hayride/silo"
)

// spawnSiloTask builds the silo.Task a hayride:silo spawn() call runs: it
// resolves morphID to bytes, constructs a child Engine with silo disabled
// (a spawned morph cannot itself spawn further morphs), redirects the
// child's stdio to <out_dir>/<id>/{out,err}, and runs the child to
// completion as a CLI-shape invocation with morphID prepended to rawArgs
// (so the child sees its own identifier as argv[0], the same convention a
// spawned OS process gets). The child's natural result bytes (its run
// export's return value; none for the CLI shape) are written to
// <out_dir>/<id>/result. This Task itself returns the contents of
// <out_dir>/<id>/out, the redirected stdout, since that is what Wait hands
// back to its caller.
func (e *Engine) spawnSiloTask(id silo.ThreadID, morphID string, rawArgs []string) silo.Task {
	return func(ctx context.Context) ([]byte, error) {
		wasmBytes, err := e.resolveMorph(morphID)
		if err != nil {
			return nil, err
		}

		sessionDir := filepath.Join(e.cfg.OutDir, id.String())
		if err := os.MkdirAll(sessionDir, 0o755); err != nil {
			return nil, herr.NewWithCause(herr.CapSilo, herr.KindFailedToSpawn, "", "failed to create silo session directory", err)
		}

		outPath := filepath.Join(sessionDir, "out")
		stdout, err := os.Create(outPath)
		if err != nil {
			return nil, herr.NewWithCause(herr.CapSilo, herr.KindFailedToSpawn, "", "failed to create silo stdout file", err)
		}

		stderr, err := os.Create(filepath.Join(sessionDir, "err"))
		if err != nil {
			stdout.Close()
			return nil, herr.NewWithCause(herr.CapSilo, herr.KindFailedToSpawn, "", "failed to create silo stderr file", err)
		}

		childCfg := e.cfg
		childCfg.Enabled.Silo = false

		child, err := New(ctx, childCfg)
		if err != nil {
			stdout.Close()
			stderr.Close()
			return nil, herr.NewWithCause(herr.CapSilo, herr.KindFailedToSpawn, "", "failed to construct child engine", err)
		}
		child.aiBackend = e.aiBackend
		child.dbDispatcher = e.dbDispatcher

		args := append([]string{morphID}, rawArgs...)

		engineResult, runErr := child.runChildToFiles(ctx, wasmBytes, args, stdout, stderr)
		child.Close(ctx)
		stdout.Close()
		stderr.Close()
		if runErr != nil {
			return nil, runErr
		}

		if err := os.WriteFile(filepath.Join(sessionDir, "result"), engineResult, 0o644); err != nil {
			return nil, herr.NewWithCause(herr.CapSilo, herr.KindFailedToSpawn, "", "failed to write silo result file", err)
		}

		out, err := os.ReadFile(outPath)
		if err != nil {
			return nil, herr.NewWithCause(herr.CapSilo, herr.KindFailedToSpawn, "", "failed to read silo stdout file", err)
		}
		return out, nil
	}
}

// resolveMorph parses a "<package>:<name>[@<semver>]" identifier against
// this Engine's registry and reads the resolved file's bytes. It never
// treats ident as a bare filesystem path: a spawned morph is always a
// registered morph, the same resolution rule cmd/hayride's loader applies
// to CLI-invoked morphs.
func (e *Engine) resolveMorph(ident string) ([]byte, error) {
	id, err := registry.ParseIdentifier(ident)
	if err != nil {
		return nil, err
	}
	path, err := e.registry.Resolve(id)
	if err != nil {
		return nil, err
	}
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, herr.NewWithCause(herr.CapSilo, herr.KindMorphNotFound, "", "failed to read resolved morph", err)
	}
	return wasmBytes, nil
}

// runChildToFiles runs wasmBytes as a CLI-shape component through the same
// discover/link/compile/run steps Run takes for shape.CLI, without
// classifying the shape first, and with stdio redirected to the caller-supplied files instead of the Store's own
// Stdio policy: a spawned child's output belongs in its session directory,
// not wherever the parent invocation's stdio was headed.
func (e *Engine) runChildToFiles(ctx context.Context, wasmBytes []byte, rawArgs []string, stdout, stderr *os.File) ([]byte, error) {
	plan, _, err := e.discoverAndLink(wasmBytes)
	if err != nil {
		return nil, err
	}

	compiled, store, err := e.compile(ctx, wasmBytes, plan, false)
	if err != nil {
		return nil, err
	}
	defer compiled.Close(ctx)
	defer store.Stdio.Close()

	modCfg := wazero.NewModuleConfig().
		WithArgs(rawArgs...).
		WithStdout(stdout).
		WithStderr(stderr)
	fsCfg := wazero.NewFSConfig()
	for guest, host := range preopenDirs(store) {
		fsCfg = fsCfg.WithDirMount(host, guest)
	}
	modCfg = modCfg.WithFSConfig(fsCfg)

	mod, err := e.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return nil, herr.NewWithCause(herr.CapSilo, herr.KindEngineError, "", "failed to instantiate spawned component", err)
	}
	defer mod.Close(ctx)

	run := mod.ExportedFunction("run")
	if run == nil {
		return nil, herr.New(herr.CapSilo, herr.KindEngineError, "", "spawned component declares no run export")
	}
	if _, err := run.Call(withStore(ctx, store)); err != nil {
		return nil, herr.NewWithCause(herr.CapSilo, herr.KindEngineError, "", "spawned component's run export trapped", err)
	}
	return nil, nil
}
