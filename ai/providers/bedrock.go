package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/hayride-dev/hayride/ai/backend"
	"github.com/hayride-dev/hayride/herr"
)

// RuntimeClient captures the subset of the Bedrock runtime client the
// adapter uses, satisfied by *bedrockruntime.Client.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Bedrock implements backend.Provider over the Bedrock Converse API.
type Bedrock struct {
	runtime RuntimeClient
	model   string
}

// NewBedrock builds a Bedrock-backed provider.
func NewBedrock(runtime RuntimeClient, model string) (*Bedrock, error) {
	if runtime == nil {
		return nil, errors.New("bedrock runtime client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Bedrock{runtime: runtime, model: model}, nil
}

func (b *Bedrock) Name() string { return "bedrock" }

// Generate issues one non-streaming Converse call and replays the reply's
// non-empty text blocks through emit, one piece per block, stopping as soon
// as emit returns false.
func (b *Bedrock) Generate(ctx context.Context, prompt string, opts backend.PromptOptions, emit func(string) bool) error {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.model),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(opts.MaxPredict),
			TopP:      aws.Float32(opts.TopP),
		},
	}
	if !opts.Greedy() {
		input.InferenceConfig.Temperature = aws.Float32(opts.Temperature)
	}

	out, err := b.runtime.Converse(ctx, input)
	if err != nil {
		return wrapBedrockErr(err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil
	}
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok && text.Value != "" {
			if !emit(text.Value) {
				return nil
			}
		}
	}
	return nil
}

// wrapBedrockErr classifies a Converse failure by its smithy API error code
// so callers can distinguish a throttled/unavailable/model-timeout retry case from
// a genuine runtime failure without string-matching the AWS SDK's message.
func wrapBedrockErr(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return herr.NewWithCause(herr.CapAI, herr.KindRuntimeError, "", "bedrock converse failed", err)
	}

	switch apiErr.ErrorCode() {
	case "ThrottlingException", "ServiceUnavailableException", "ModelTimeoutException":
		return herr.NewWithCause(herr.CapAI, herr.KindTimeout, "", apiErr.ErrorMessage(), err)
	default:
		return herr.NewWithCause(herr.CapAI, herr.KindRuntimeError, "", apiErr.ErrorMessage(), err)
	}
}
