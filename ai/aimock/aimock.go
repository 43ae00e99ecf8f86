// Package aimock provides a deterministic fake ai/backend.Provider for tests
// that want the AI Capability's wiring without a real model or network call.
package aimock

import (
	"context"
	"os"

	"github.com/hayride-dev/hayride/ai/backend"
	"github.com/hayride-dev/hayride/ai/modelrepo"
	"github.com/hayride-dev/hayride/herr"
)

// Provider is a fixed-output backend.Provider: it always emits the
// configured Pieces (default: a single "mock-output" piece) regardless of
// prompt, the same way MockExecutionContext.compute always returns
// dimensions=[1], ty=U8, data=[0..9].
type Provider struct {
	Pieces []string
}

// New constructs a Provider emitting pieces, or a default single piece if
// none are given.
func New(pieces ...string) *Provider {
	if len(pieces) == 0 {
		pieces = []string{"mock-output"}
	}
	return &Provider{Pieces: pieces}
}

func (p *Provider) Name() string { return "mock" }

func (p *Provider) Generate(ctx context.Context, prompt string, opts backend.PromptOptions, emit func(string) bool) error {
	for _, piece := range p.Pieces {
		if !emit(piece) {
			return nil
		}
	}
	return nil
}

// Embedder is a fixed-output ai/rag.Embedder: it always returns Vector
// (default: a 4-dimensional unit-ish vector), mirroring the rag mock's
// fixed-dimension fake embedding.
type Embedder struct {
	Vector []float32
}

// NewEmbedder constructs an Embedder returning vector, or a default vector
// if none is given.
func NewEmbedder(vector ...float32) *Embedder {
	if len(vector) == 0 {
		vector = []float32{0.1, 0.2, 0.3, 0.4}
	}
	return &Embedder{Vector: vector}
}

func (e *Embedder) Embed(ctx context.Context, model, data string) ([]float32, error) {
	if data == "" {
		return nil, herr.AI(herr.KindInvalidOption, "", "data is required")
	}
	return e.Vector, nil
}

// Fetcher is a fixed-output ai/modelrepo.Fetcher: it writes a small fixed
// payload to destPath instead of reaching the HuggingFace download client.
type Fetcher struct {
	Payload []byte
}

// NewFetcher constructs a Fetcher writing payload, or a default payload if
// none is given.
func NewFetcher(payload ...byte) *Fetcher {
	if len(payload) == 0 {
		payload = []byte("mock-model-bytes")
	}
	return &Fetcher{Payload: payload}
}

// Fetch writes Payload to destPath, implementing modelrepo.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, name modelrepo.Name, destPath string) error {
	if err := os.WriteFile(destPath, f.Payload, 0o644); err != nil {
		return herr.NewWithCause(herr.CapAI, herr.KindRuntimeError, "", "mock fetch failed", err)
	}
	return nil
}
