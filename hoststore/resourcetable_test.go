package hoststore_test

import (
	"testing"

	"github.com/hayride-dev/hayride/hoststore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushGetDelete(t *testing.T) {
	table := hoststore.NewResourceTable()
	h := table.Push("hello")

	v, err := table.Get(h)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	v, err = table.Delete(h)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
	assert.Equal(t, 0, table.Len())
}

func TestGetAfterDeleteFails(t *testing.T) {
	table := hoststore.NewResourceTable()
	h := table.Push(42)
	_, err := table.Delete(h)
	require.NoError(t, err)

	_, err = table.Get(h)
	assert.Error(t, err)

	_, err = table.Delete(h)
	assert.Error(t, err)
}

func TestHandlesAreDistinctAcrossPushes(t *testing.T) {
	table := hoststore.NewResourceTable()
	h1 := table.Push("a")
	h2 := table.Push("b")
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, table.Len())
}
