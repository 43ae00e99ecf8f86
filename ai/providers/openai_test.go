package providers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hayride-dev/hayride/ai/backend"
	"github.com/hayride-dev/hayride/ai/providers"
)

type fakeChatClient struct {
	resp *openai.ChatCompletion
	err  error
}

func (f *fakeChatClient) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestOpenAIGenerateEmitsMessageContent(t *testing.T) {
	fake := &fakeChatClient{
		resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "hello from gpt"}},
			},
		},
	}
	p, err := providers.NewOpenAI(fake, "gpt-demo")
	require.NoError(t, err)

	var got string
	err = p.Generate(context.Background(), "hi", backend.PromptOptions{MaxPredict: 10}, func(piece string) bool {
		got = piece
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from gpt", got)
}

func TestOpenAIGenerateNoChoicesEmitsNothing(t *testing.T) {
	fake := &fakeChatClient{resp: &openai.ChatCompletion{}}
	p, err := providers.NewOpenAI(fake, "gpt-demo")
	require.NoError(t, err)

	called := false
	err = p.Generate(context.Background(), "hi", backend.PromptOptions{MaxPredict: 10}, func(string) bool {
		called = true
		return true
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestOpenAIGeneratePropagatesClientError(t *testing.T) {
	fake := &fakeChatClient{err: errors.New("rate limited")}
	p, err := providers.NewOpenAI(fake, "gpt-demo")
	require.NoError(t, err)

	err = p.Generate(context.Background(), "hi", backend.PromptOptions{MaxPredict: 10}, func(string) bool { return true })
	assert.Error(t, err)
}

func TestNewOpenAIRequiresClientAndModel(t *testing.T) {
	_, err := providers.NewOpenAI(nil, "model")
	assert.Error(t, err)

	_, err = providers.NewOpenAI(&fakeChatClient{}, "")
	assert.Error(t, err)
}
