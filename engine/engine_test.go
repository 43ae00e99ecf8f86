package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hayride-dev/hayride/hoststore"
	"github.com/hayride-dev/hayride/shape"
	"github.com/hayride-dev/hayride/witinspect"
)

func TestConfigAddressDefaultsWhenUnset(t *testing.T) {
	var c Config
	assert.Equal(t, "127.0.0.1:8080", c.address())
}

func TestConfigAddressHonorsOverride(t *testing.T) {
	c := Config{Address: "0.0.0.0:9090"}
	assert.Equal(t, "0.0.0.0:9090", c.address())
}

func TestPreopenDirsMapsGuestToHost(t *testing.T) {
	store := &hoststore.Store{
		Preopens: []hoststore.Preopen{
			{HostDir: ".", GuestDir: "."},
			{HostDir: "/var/hayride", GuestDir: "/.hayride"},
		},
	}

	got := preopenDirs(store)
	assert.Equal(t, map[string]string{
		".":         ".",
		"/.hayride": "/var/hayride",
	}, got)
}

func TestReactorParamTypesTranslatesDeclaredKinds(t *testing.T) {
	export := witinspect.ExportFunc{
		ParamKinds: []witinspect.ParamKind{witinspect.KindString, witinspect.KindS64, witinspect.KindBool},
	}
	got, err := reactorParamTypes(export)
	require.NoError(t, err)
	assert.Equal(t, []shape.ParamType{shape.ParamString, shape.ParamS64, shape.ParamBool}, got)
}

func TestReactorParamTypesRejectsUnsupportedKind(t *testing.T) {
	export := witinspect.ExportFunc{ParamKinds: []witinspect.ParamKind{witinspect.KindOther}}
	_, err := reactorParamTypes(export)
	assert.Error(t, err)
}

func TestLiftReactorResultI64(t *testing.T) {
	got, err := liftReactorResult(nil, witinspect.KindS64, []uint64{uint64(1) << 40})
	require.NoError(t, err)
	assert.Equal(t, int64(1)<<40, got)
}

func TestLiftReactorResultBool(t *testing.T) {
	got, err := liftReactorResult(nil, witinspect.KindBool, []uint64{1})
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestLiftReactorResultDefaultsToS32(t *testing.T) {
	got, err := liftReactorResult(nil, witinspect.KindS32, []uint64{42})
	require.NoError(t, err)
	assert.Equal(t, int32(42), got)
}

func TestLowerArgsHandlesPrimitivesWithoutModule(t *testing.T) {
	stack, err := lowerArgs(nil, nil, []any{int32(7), int64(9), true, false, uint32(3), uint64(11)})
	assert.NoError(t, err)
	assert.Equal(t, []uint64{7, 9, 1, 0, 3, 11}, stack)
}

func TestLowerArgsRejectsUnsupportedType(t *testing.T) {
	_, err := lowerArgs(nil, nil, []any{3.14})
	assert.Error(t, err)
}

func TestLowerArgsReturnsEmptyStackForNoArgs(t *testing.T) {
	stack, err := lowerArgs(nil, nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, stack)
}
