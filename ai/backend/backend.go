// Package backend defines the pluggable ML backend vtable behind the AI
// Capability's FFI discipline. The native inference library itself is
// out of scope and treated as an external collaborator; Backend delegates
// generation to a Provider, implemented by the concrete adapters in
// ai/providers, each wrapping a cloud completion API behind the same strict acquire/release
// ordering a real FFI binding requires: execution-context-guard before
// sampler-guard before model before backend-teardown.
package backend

import (
	"context"
	"strings"
	"sync"

	"github.com/hayride-dev/hayride/ai/tensor"
	"github.com/hayride-dev/hayride/herr"
)

// Provider is the minimal surface a pluggable AI backend must implement:
// one streaming generation call. Each of ai/providers/{anthropic,openai,bedrock}
// implements Provider behind the real SDK client, wrapped in a small
// interface so tests can substitute a fake (e.g. bedrock's RuntimeClient).
type Provider interface {
	Name() string
	// Generate streams the completion for prompt, invoking emit once per
	// decoded piece. emit returns false when the consumer has gone away;
	// Generate must stop producing as soon as emit returns false, mirroring
	// a Tensor-Stream producer detecting a dropped receiver.
	Generate(ctx context.Context, prompt string, opts PromptOptions, emit func(piece string) bool) error
}

// Backend owns a keyed map of already-loaded models: a model is loaded at
// most once per (backend, name). Loading the same name twice returns a
// new Graph wrapping the same underlying model.
type Backend struct {
	provider Provider

	mu     sync.Mutex
	graphs map[string]*sharedModel
}

// sharedModel is the backend's internal representation of a loaded model;
// every Graph returned for the same name shares one sharedModel.
type sharedModel struct {
	name string
}

// New constructs a Backend over a single Provider. A production engine may
// register one Backend per provider and dispatch model names to them, but
// the vtable discipline (one interface, one implementation per backend,
// built once) is identical either way.
func New(provider Provider) *Backend {
	return &Backend{provider: provider, graphs: map[string]*sharedModel{}}
}

// LoadByName returns a Graph handle for name, reusing the shared model
// entry if already loaded.
func (b *Backend) LoadByName(name string) (*Graph, error) {
	if strings.TrimSpace(name) == "" {
		return nil, herr.AI(herr.KindInvalidModelName, "", "model name is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	model, ok := b.graphs[name]
	if !ok {
		model = &sharedModel{name: name}
		b.graphs[name] = model
	}
	return &Graph{backend: b, model: model}, nil
}

// Graph is a shared, immutable handle to a loaded model. Dropping a Graph
// does not free the underlying model; freeing happens only when the
// Backend itself is torn down.
type Graph struct {
	backend *Backend
	model   *sharedModel
}

// InitExecutionContext allocates a compute session: a context guard and a
// sampler guard, released in that order ahead of the model (which the
// Backend continues to own).
func (g *Graph) InitExecutionContext() (*ExecutionContext, error) {
	return &ExecutionContext{
		graph:   g,
		ctxGrd:  newGuard("context"),
		sampGrd: newGuard("sampler"),
	}, nil
}

// guard is a move-only marker for one FFI-owned resource; its zero value
// is never returned to a caller, since construction failure is always an
// error rather than a null guard.
type guard struct {
	kind     string
	released bool
}

func newGuard(kind string) *guard { return &guard{kind: kind} }

func (g *guard) release() { g.released = true }

// ExecutionContext is mutable per-session compute state. Its destructors
// must run context before sampler; the model is never released through an
// ExecutionContext.
type ExecutionContext struct {
	graph   *Graph
	ctxGrd  *guard
	sampGrd *guard
	closed  bool
}

// Release tears the session down in the mandated order: context guard
// first, then sampler guard. Calling Release twice is a no-op.
func (e *ExecutionContext) Release() {
	if e.closed {
		return
	}
	e.ctxGrd.release()
	e.sampGrd.release()
	e.closed = true
}

// Compute runs the sync compute algorithm. It truncates an over-long
// prompt, then generates; the decoded text is trimmed and returned as a
// U8 tensor.
func (e *ExecutionContext) Compute(ctx context.Context, prompt string, opts PromptOptions) (tensor.Tensor, error) {
	prepared := truncatePrompt(prompt, opts)

	var out strings.Builder
	decoded := 0
	err := e.graph.backend.provider.Generate(ctx, prepared, opts, func(piece string) bool {
		if decoded >= int(opts.MaxPredict) {
			return false
		}
		out.WriteString(piece)
		decoded++
		return true
	})
	if err != nil {
		return tensor.Tensor{}, herr.NewWithCause(herr.CapAI, herr.KindRuntimeError, "", "compute failed", err)
	}

	return tensor.NewText(strings.TrimSpace(out.String())), nil
}

// ComputeStream is Compute's streaming counterpart: decoded pieces are
// pushed into a Tensor-Stream as they are produced instead of being
// accumulated, and the stream is returned immediately to the caller.
func (e *ExecutionContext) ComputeStream(ctx context.Context, prompt string, opts PromptOptions) (*tensor.Stream, error) {
	prepared := truncatePrompt(prompt, opts)
	stream := tensor.NewStream([]uint32{1}, tensor.U8, 64)

	go func() {
		decoded := 0
		err := e.graph.backend.provider.Generate(ctx, prepared, opts, func(piece string) bool {
			if decoded >= int(opts.MaxPredict) {
				return false
			}
			decoded++
			return stream.Push([]byte(piece))
		})
		stream.CloseWithError(err)
	}()

	return stream, nil
}

// truncatePrompt applies the rebuild-or-truncate rule for an over-long
// prompt. Tokenization itself is owned by the native library (out of scope); this
// approximates "tokens" as Unicode code points, which is sufficient to
// enforce the documented length invariants without a real tokenizer.
func truncatePrompt(prompt string, opts PromptOptions) string {
	runes := []rune(prompt)
	nPrompt := len(runes)
	batch := int(opts.NumBatch)

	if nPrompt <= batch {
		return prompt
	}
	if nPrompt+512 <= int(opts.NumContext) {
		// Context can be rebuilt larger instead of truncating; the
		// provider-backed implementation has no fixed context buffer to
		// resize, so this branch is a pass-through and the prompt is
		// left intact.
		return prompt
	}

	keep := batch - 64
	if keep < 0 {
		keep = 0
	}
	if keep >= nPrompt {
		return prompt
	}
	return string(runes[nPrompt-keep:])
}
