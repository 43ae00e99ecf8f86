package backend_test

import (
	"context"
	"strings"
	"testing"

	"github.com/hayride-dev/hayride/ai/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	pieces []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts backend.PromptOptions, emit func(string) bool) error {
	for _, p := range f.pieces {
		if !emit(p) {
			return nil
		}
	}
	return nil
}

func TestParsePromptOptionsAppliesDefaults(t *testing.T) {
	opts, err := backend.ParsePromptOptions(nil)
	require.NoError(t, err)
	assert.EqualValues(t, 40960, opts.NumContext)
	assert.EqualValues(t, 2048, opts.NumBatch)
	assert.EqualValues(t, 5000, opts.MaxPredict)
	assert.EqualValues(t, 20, opts.TopK)
	assert.InDelta(t, 0.95, opts.TopP, 0.0001)
}

func TestParsePromptOptionsPreservesExplicitValues(t *testing.T) {
	opts, err := backend.ParsePromptOptions([]byte(`{"num_context":2048,"max_predict":8}`))
	require.NoError(t, err)
	assert.EqualValues(t, 2048, opts.NumContext)
	assert.EqualValues(t, 8, opts.MaxPredict)
	assert.EqualValues(t, 2048, opts.NumBatch) // still defaulted
}

func TestParsePromptOptionsCapsNumContext(t *testing.T) {
	opts, err := backend.ParsePromptOptions([]byte(`{"num_context":999999999}`))
	require.NoError(t, err)
	assert.EqualValues(t, 128000, opts.NumContext)
}

func TestParsePromptOptionsRejectsOversizedPayload(t *testing.T) {
	huge := strings.Repeat("a", (1<<20)+1)
	_, err := backend.ParsePromptOptions([]byte(huge))
	assert.Error(t, err)
}

func TestParsePromptOptionsRejectsUnknownField(t *testing.T) {
	_, err := backend.ParsePromptOptions([]byte(`{"num_context":2048,"bogus_field":1}`))
	assert.Error(t, err)
}

func TestParsePromptOptionsRejectsWrongFieldType(t *testing.T) {
	_, err := backend.ParsePromptOptions([]byte(`{"num_context":"not-a-number"}`))
	assert.Error(t, err)
}

func TestGreedyWhenTemperatureZero(t *testing.T) {
	opts := backend.PromptOptions{Temperature: 0}
	assert.True(t, opts.Greedy())

	opts.Temperature = 0.8
	assert.False(t, opts.Greedy())
}

func TestComputeRespectsMaxPredict(t *testing.T) {
	provider := &fakeProvider{pieces: []string{"a", "b", "c", "d", "e"}}
	b := backend.New(provider)
	graph, err := b.LoadByName("demo-model")
	require.NoError(t, err)
	execCtx, err := graph.InitExecutionContext()
	require.NoError(t, err)

	opts, err := backend.ParsePromptOptions([]byte(`{"max_predict":2}`))
	require.NoError(t, err)

	out, err := execCtx.Compute(context.Background(), "2+2=", opts)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(out.Data))
}

func TestLoadByNameReturnsNewGraphEachCall(t *testing.T) {
	b := backend.New(&fakeProvider{})
	g1, err := b.LoadByName("m")
	require.NoError(t, err)
	g2, err := b.LoadByName("m")
	require.NoError(t, err)

	assert.NotSame(t, g1, g2)
}

func TestComputeStreamPushesPiecesInOrder(t *testing.T) {
	provider := &fakeProvider{pieces: []string{"he", "llo"}}
	b := backend.New(provider)
	graph, _ := b.LoadByName("m")
	execCtx, _ := graph.InitExecutionContext()

	opts, _ := backend.ParsePromptOptions(nil)
	stream, err := execCtx.ComputeStream(context.Background(), "hi", opts)
	require.NoError(t, err)

	first, err := stream.Read(0)
	require.NoError(t, err)
	assert.Equal(t, "he", string(first))

	second, err := stream.Read(0)
	require.NoError(t, err)
	assert.Equal(t, "llo", string(second))
}
