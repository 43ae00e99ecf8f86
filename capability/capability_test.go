package capability_test

import (
	"testing"

	"github.com/hayride-dev/hayride/capability"
	"github.com/hayride-dev/hayride/herr"
	"github.com/hayride-dev/hayride/witinspect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkBindsOnlyRequiredModules(t *testing.T) {
	discovered := witinspect.Result{Imports: []witinspect.CapabilityImport{
		{Namespace: "hayride", Name: "db"},
	}}

	plan, err := capability.Link(discovered, capability.Enabled{DB: true})
	require.NoError(t, err)

	assert.True(t, plan.Requires(capability.DB))
	assert.False(t, plan.Requires(capability.AI))
}

func TestLinkFailsClosedWhenDisabled(t *testing.T) {
	discovered := witinspect.Result{Imports: []witinspect.CapabilityImport{
		{Namespace: "hayride", Name: "ai"},
	}}

	_, err := capability.Link(discovered, capability.Enabled{DB: true})
	require.Error(t, err)

	he, ok := herr.As(err)
	require.True(t, ok)
	assert.Equal(t, herr.KindCapabilityDisabled, he.Kind())
}

func TestWasiNNForcesAIModule(t *testing.T) {
	discovered := witinspect.Result{Imports: []witinspect.CapabilityImport{
		{Namespace: "wasi", Name: "nn"},
	}}

	plan, err := capability.Link(discovered, capability.Enabled{AI: true})
	require.NoError(t, err)
	assert.True(t, plan.Requires(capability.AI))
}

func TestUnknownNamespaceIsIgnoredAtLinkTime(t *testing.T) {
	discovered := witinspect.Result{Imports: []witinspect.CapabilityImport{
		{Namespace: "acme", Name: "whatever"},
	}}

	plan, err := capability.Link(discovered, capability.Enabled{})
	require.NoError(t, err)
	assert.Empty(t, plan.Modules)
}
