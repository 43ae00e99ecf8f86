package streamadapter_test

import (
	"errors"
	"testing"

	"github.com/hayride-dev/hayride/streamadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadReturnsFramesInOrder(t *testing.T) {
	s := streamadapter.New(4)

	require.True(t, s.Push([]byte("abc")))
	require.True(t, s.Push([]byte("def")))
	s.CloseWithError(nil)

	first, err := s.Read(0)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(first))

	second, err := s.Read(0)
	require.NoError(t, err)
	assert.Equal(t, "def", string(second))

	_, err = s.Read(0)
	assert.NoError(t, err)
}

func TestReadSplitsOversizedFrameAndBuffersRemainder(t *testing.T) {
	s := streamadapter.New(1)
	require.True(t, s.Push([]byte("hello world")))
	s.CloseWithError(nil)

	first, err := s.Read(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(first))

	second, err := s.Read(0)
	require.NoError(t, err)
	assert.Equal(t, " world", string(second))
}

func TestReadReturnsTerminalErrorAfterClose(t *testing.T) {
	s := streamadapter.New(1)
	boom := errors.New("boom")
	s.CloseWithError(boom)

	_, err := s.Read(0)
	assert.Equal(t, boom, err)

	_, err = s.Read(0)
	assert.Equal(t, boom, err)
}

func TestPushAfterCloseReportsFalse(t *testing.T) {
	s := streamadapter.New(1)
	s.CloseWithError(nil)
	assert.False(t, s.Push([]byte("too late")))
}
