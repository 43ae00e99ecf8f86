package herr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hayride-dev/hayride/herr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCapabilityAndKind(t *testing.T) {
	assert.Panics(t, func() { herr.New("", herr.KindNotFound, "", "msg") })
	assert.Panics(t, func() { herr.New(herr.CapDB, "", "", "msg") })
}

func TestErrorChainUnwrapsToCause(t *testing.T) {
	cause := errors.New("driver exploded")
	err := herr.NewWithCause(herr.CapDB, herr.KindQueryFailed, "PG500", "query failed", cause)

	require.ErrorIs(t, err, cause)

	var he *herr.Error
	require.True(t, errors.As(err, &he))
	assert.Equal(t, herr.CapDB, he.Capability())
	assert.Equal(t, herr.KindQueryFailed, he.Kind())
}

func TestAsAndIs(t *testing.T) {
	base := herr.DB(herr.KindNotFound, "", "missing row")
	wrapped := fmt.Errorf("wrapping: %w", base)

	got, ok := herr.As(wrapped)
	require.True(t, ok)
	assert.Equal(t, base, got)
	assert.True(t, herr.Is(wrapped, herr.KindNotFound))
	assert.False(t, herr.Is(wrapped, herr.KindTimeout))
}

func TestErrorMessageIncludesCodeWhenPresent(t *testing.T) {
	withCode := herr.New(herr.CapAI, herr.KindRuntimeError, "E42", "decode failed")
	assert.Contains(t, withCode.Error(), "E42")

	withoutCode := herr.New(herr.CapAI, herr.KindRuntimeError, "", "decode failed")
	assert.NotContains(t, withoutCode.Error(), "()")
}
