package wacmock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hayride-dev/hayride/wac/wacmock"
)

func TestComposeReturnsConfiguredOutput(t *testing.T) {
	b := wacmock.New([]byte("composed"), nil)
	out, err := b.Compose(context.Background(), "pkg:name")
	require.NoError(t, err)
	assert.Equal(t, "composed", string(out))
	assert.Equal(t, []string{"pkg:name"}, b.ComposedPaths)
}

func TestPlugRecordsSocketAndPlugPaths(t *testing.T) {
	b := wacmock.New(nil, []byte("plugged"))
	out, err := b.Plug(context.Background(), "socket", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "plugged", string(out))
	assert.Equal(t, "socket", b.PluggedSocket)
	assert.Equal(t, []string{"a", "b"}, b.PluggedPaths)
}

func TestErrPropagatesFromBothOperations(t *testing.T) {
	want := errors.New("boom")
	b := wacmock.New([]byte("x"), []byte("y"))
	b.Err = want

	_, err := b.Compose(context.Background(), "p")
	assert.ErrorIs(t, err, want)

	_, err = b.Plug(context.Background(), "s", nil)
	assert.ErrorIs(t, err, want)
}
