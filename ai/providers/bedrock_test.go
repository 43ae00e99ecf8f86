package providers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hayride-dev/hayride/ai/backend"
	"github.com/hayride-dev/hayride/ai/providers"
	"github.com/hayride-dev/hayride/herr"
)

type fakeRuntimeClient struct {
	out *bedrockruntime.ConverseOutput
	err error
}

func (f *fakeRuntimeClient) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func TestBedrockGenerateEmitsTextContent(t *testing.T) {
	fake := &fakeRuntimeClient{
		out: &bedrockruntime.ConverseOutput{
			Output: &types.ConverseOutputMemberMessage{
				Value: types.Message{
					Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "titan reply"}},
				},
			},
		},
	}
	p, err := providers.NewBedrock(fake, "amazon.titan-demo")
	require.NoError(t, err)

	var got string
	err = p.Generate(context.Background(), "hi", backend.PromptOptions{MaxPredict: 10}, func(piece string) bool {
		got = piece
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, "titan reply", got)
}

func TestBedrockGeneratePropagatesClientError(t *testing.T) {
	fake := &fakeRuntimeClient{err: errors.New("throttled")}
	p, err := providers.NewBedrock(fake, "amazon.titan-demo")
	require.NoError(t, err)

	err = p.Generate(context.Background(), "hi", backend.PromptOptions{MaxPredict: 10}, func(string) bool { return true })
	assert.Error(t, err)
}

func TestBedrockGenerateIgnoresNonMessageOutput(t *testing.T) {
	fake := &fakeRuntimeClient{out: &bedrockruntime.ConverseOutput{}}
	p, err := providers.NewBedrock(fake, "amazon.titan-demo")
	require.NoError(t, err)

	called := false
	err = p.Generate(context.Background(), "hi", backend.PromptOptions{MaxPredict: 10}, func(string) bool {
		called = true
		return true
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestBedrockGenerateClassifiesThrottlingAsTimeout(t *testing.T) {
	fake := &fakeRuntimeClient{err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "too many requests"}}
	p, err := providers.NewBedrock(fake, "amazon.titan-demo")
	require.NoError(t, err)

	err = p.Generate(context.Background(), "hi", backend.PromptOptions{MaxPredict: 10}, func(string) bool { return true })
	require.Error(t, err)
	he, ok := herr.As(err)
	require.True(t, ok)
	assert.Equal(t, herr.KindTimeout, he.Kind())
}

func TestNewBedrockRequiresClientAndModel(t *testing.T) {
	_, err := providers.NewBedrock(nil, "model")
	assert.Error(t, err)

	_, err = providers.NewBedrock(&fakeRuntimeClient{}, "")
	assert.Error(t, err)
}
