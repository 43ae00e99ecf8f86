// Package wac implements the WAC Plug/Compose capability: the host
// resolves morph/package references through a layered resolver (override
// map, then the on-disk morph registry) and binds out to the external
// `wac` composition tool to produce the composed component bytes. The
// core does not implement component composition itself, only binds it;
// the actual graph resolution/encoding algorithm (wac-parser/wac-resolver/
// wac-graph) has no pure-Go equivalent in the dependency pack, so this
// package shells out to the bytecodealliance `wac` CLI, with the
// morph-aware path resolution kept in Go.
package wac

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hayride-dev/hayride/herr"
	"github.com/hayride-dev/hayride/registry"
)

// ErrorCode classifies a compose/plug failure, mirroring the original
// host trait's Error{code, data} resource shape.
type ErrorCode string

const (
	ErrorCodeFileNotFound  ErrorCode = "file-not-found"
	ErrorCodeResolveFailed ErrorCode = "resolve-failed"
	ErrorCodeComposeFailed ErrorCode = "compose-failed"
	ErrorCodeEncodeFailed  ErrorCode = "encode-failed"
	ErrorCodeUnknown       ErrorCode = "unknown"
)

func (c ErrorCode) kind() herr.Kind {
	switch c {
	case ErrorCodeFileNotFound:
		return herr.KindFileNotFound
	case ErrorCodeResolveFailed:
		return herr.KindResolveFailed
	case ErrorCodeComposeFailed:
		return herr.KindComposeFailed
	case ErrorCodeEncodeFailed:
		return herr.KindEncodeFailed
	default:
		return herr.KindRuntimeError
	}
}

// Resolver resolves a morph path or plain filesystem path the same way the
// original's resolve_morph_path did: an override wins outright, otherwise
// fall back to the on-disk morph registry, and finally to the path taken
// literally as a file on disk.
type Resolver struct {
	reg       *registry.Registry
	overrides map[string]string
}

// NewResolver builds a layered resolver rooted at registryRoot, with an
// optional override map (package name -> local path) checked first, per
// SPEC_FULL.md's "WAC resolver layering" supplement.
func NewResolver(registryRoot string, overrides map[string]string) *Resolver {
	if overrides == nil {
		overrides = map[string]string{}
	}
	return &Resolver{reg: registry.New(registryRoot), overrides: overrides}
}

// Resolve turns a morph identifier or filesystem path into an absolute file
// path that exists on disk, or fails with a FileNotFound ErrorCode.
func (r *Resolver) Resolve(raw string) (string, ErrorCode, error) {
	if path, ok := r.overrides[raw]; ok {
		if _, err := os.Stat(path); err != nil {
			return "", ErrorCodeFileNotFound, herr.NewWithCause(herr.CapWAC, herr.KindFileNotFound, "", "override path does not exist", err)
		}
		return path, "", nil
	}

	if id, err := registry.ParseIdentifier(raw); err == nil {
		if path, err := r.reg.Resolve(id); err == nil {
			return path, "", nil
		}
	}

	// Not a known morph identifier (or not found in the registry): treat the
	// reference as a plain filesystem path.
	if info, err := os.Stat(raw); err != nil || info.IsDir() {
		return "", ErrorCodeFileNotFound, herr.New(herr.CapWAC, herr.KindFileNotFound, "", "no such package: "+raw)
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", ErrorCodeFileNotFound, herr.NewWithCause(herr.CapWAC, herr.KindFileNotFound, "", "failed to resolve path", err)
	}
	return abs, "", nil
}

// Runner executes the external `wac` tool, capturing its stdout bytes. It
// is an interface so tests can substitute a fake without invoking a real
// binary.
type Runner interface {
	Run(ctx context.Context, args ...string) (stdout []byte, stderr string, err error)
}

// execRunner is the default Runner, shelling out to the `wac` binary on
// PATH (or at the path named by the WAC_BIN environment variable).
type execRunner struct {
	bin string
}

func newExecRunner() execRunner {
	bin := os.Getenv("WAC_BIN")
	if bin == "" {
		bin = "wac"
	}
	return execRunner{bin: bin}
}

func (r execRunner) Run(ctx context.Context, args ...string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.String(), err
}

// Backend implements compose/plug by resolving package references and
// binding out to the external wac tool: composition is bound, not
// implemented, by the host.
type Backend struct {
	resolver *Resolver
	runner   Runner
}

// New constructs a Backend rooted at registryRoot with the given path
// overrides.
func New(registryRoot string, overrides map[string]string) *Backend {
	return &Backend{resolver: NewResolver(registryRoot, overrides), runner: newExecRunner()}
}

// NewWithResolverAndRunner builds a Backend from an explicit resolver and
// Runner, letting tests substitute a fake Runner without invoking the real
// wac binary.
func NewWithResolverAndRunner(resolver *Resolver, runner Runner) *Backend {
	return &Backend{resolver: resolver, runner: runner}
}

// Compose resolves path (a morph identifier or filesystem path to a WAC
// document or component) and invokes `wac compose` on it, returning the
// composed component bytes.
func (b *Backend) Compose(ctx context.Context, path string) ([]byte, error) {
	resolved, code, err := b.resolver.Resolve(path)
	if err != nil {
		if code == "" {
			code = ErrorCodeResolveFailed
		}
		return nil, wrap(code, err, "compose", path)
	}

	out, stderr, err := b.runner.Run(ctx, "compose", resolved)
	if err != nil {
		code := classify(stderr)
		return nil, wrap(code, herr.NewWithCause(herr.CapWAC, code.kind(), "", "error composing path: "+path, err), "compose", path)
	}
	return out, nil
}

// Plug resolves socketPath and every entry of plugPaths, then invokes
// `wac plug` to splice the plug components' exports into the socket's
// unfilled imports, returning the plugged component bytes.
func (b *Backend) Plug(ctx context.Context, socketPath string, plugPaths []string) ([]byte, error) {
	socket, code, err := b.resolver.Resolve(socketPath)
	if err != nil {
		if code == "" {
			code = ErrorCodeFileNotFound
		}
		return nil, wrap(code, err, "plug socket", socketPath)
	}

	args := []string{"plug", socket}
	for _, p := range plugPaths {
		resolved, code, err := b.resolver.Resolve(p)
		if err != nil {
			if code == "" {
				code = ErrorCodeFileNotFound
			}
			return nil, wrap(code, err, "plug", p)
		}
		args = append(args, "--plug", resolved)
	}

	out, stderr, err := b.runner.Run(ctx, args...)
	if err != nil {
		code := classify(stderr)
		return nil, wrap(code, herr.NewWithCause(herr.CapWAC, code.kind(), "", "error plugging socket path: "+socketPath, err), "plug", socketPath)
	}
	return out, nil
}

// classify turns the wac tool's stderr text into an ErrorCode, matching the
// original's per-stage mapping (parse/resolve/encode failures each map to a
// distinct code rather than a single generic failure).
func classify(stderr string) ErrorCode {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "no such file"), strings.Contains(lower, "not found"):
		return ErrorCodeFileNotFound
	case strings.Contains(lower, "resolv"):
		return ErrorCodeResolveFailed
	case strings.Contains(lower, "encod"):
		return ErrorCodeEncodeFailed
	case strings.Contains(lower, "pars"), strings.Contains(lower, "compos"):
		return ErrorCodeComposeFailed
	default:
		return ErrorCodeUnknown
	}
}

func wrap(code ErrorCode, cause error, op, ref string) error {
	if herr.Is(cause, code.kind()) {
		return cause
	}
	return herr.NewWithCause(herr.CapWAC, code.kind(), "", op+" failed for "+ref, cause)
}
