package providers_test

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hayride-dev/hayride/ai/backend"
	"github.com/hayride-dev/hayride/ai/providers"
)

type fakeMessagesClient struct {
	resp *sdk.Message
	err  error

	capturedParams sdk.MessageNewParams
}

func (f *fakeMessagesClient) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	f.capturedParams = body
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestAnthropicGenerateEmitsTextBlocks(t *testing.T) {
	fake := &fakeMessagesClient{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{{Text: "hello world"}},
		},
	}
	p, err := providers.NewAnthropic(fake, "claude-demo")
	require.NoError(t, err)

	var got []string
	err = p.Generate(context.Background(), "hi", backend.PromptOptions{MaxPredict: 10}, func(piece string) bool {
		got = append(got, piece)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello world"}, got)
}

func TestAnthropicGenerateStopsWhenEmitReturnsFalse(t *testing.T) {
	fake := &fakeMessagesClient{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{
				{Text: "first"},
				{Text: "second"},
			},
		},
	}
	p, err := providers.NewAnthropic(fake, "claude-demo")
	require.NoError(t, err)

	calls := 0
	err = p.Generate(context.Background(), "hi", backend.PromptOptions{MaxPredict: 10}, func(piece string) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestAnthropicGeneratePropagatesClientError(t *testing.T) {
	fake := &fakeMessagesClient{err: errors.New("upstream unavailable")}
	p, err := providers.NewAnthropic(fake, "claude-demo")
	require.NoError(t, err)

	err = p.Generate(context.Background(), "hi", backend.PromptOptions{MaxPredict: 10}, func(string) bool { return true })
	assert.Error(t, err)
}

func TestAnthropicGreedyOmitsTemperature(t *testing.T) {
	fake := &fakeMessagesClient{resp: &sdk.Message{}}
	p, err := providers.NewAnthropic(fake, "claude-demo")
	require.NoError(t, err)

	err = p.Generate(context.Background(), "hi", backend.PromptOptions{MaxPredict: 10, Temperature: 0}, func(string) bool { return true })
	require.NoError(t, err)
	assert.False(t, fake.capturedParams.Temperature.Valid())
}

func TestNewAnthropicRequiresClientAndModel(t *testing.T) {
	_, err := providers.NewAnthropic(nil, "model")
	assert.Error(t, err)

	_, err = providers.NewAnthropic(&fakeMessagesClient{}, "")
	assert.Error(t, err)
}
