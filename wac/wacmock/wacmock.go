// Package wacmock provides a hand-written wac.Backend test double so
// consumers of the WAC capability can be unit tested without invoking
// the external wac tool.
package wacmock

import "context"

// Backend is a fixed-output double: Compose and Plug return the configured
// bytes, or the configured error if set.
type Backend struct {
	ComposeOutput []byte
	PlugOutput    []byte
	Err           error

	ComposedPaths []string
	PluggedSocket string
	PluggedPaths  []string
}

// New constructs a Backend returning composeOutput/plugOutput until Err is
// set by the caller.
func New(composeOutput, plugOutput []byte) *Backend {
	return &Backend{ComposeOutput: composeOutput, PlugOutput: plugOutput}
}

func (b *Backend) Compose(ctx context.Context, path string) ([]byte, error) {
	b.ComposedPaths = append(b.ComposedPaths, path)
	if b.Err != nil {
		return nil, b.Err
	}
	return b.ComposeOutput, nil
}

func (b *Backend) Plug(ctx context.Context, socketPath string, plugPaths []string) ([]byte, error) {
	b.PluggedSocket = socketPath
	b.PluggedPaths = plugPaths
	if b.Err != nil {
		return nil, b.Err
	}
	return b.PlugOutput, nil
}
