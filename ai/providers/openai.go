package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/hayride-dev/hayride/ai/backend"
)

// ChatClient captures the subset of the OpenAI SDK client the adapter uses,
// satisfied by client.Chat.Completions (adapted here to
// github.com/openai/openai-go, the chat SDK actually vendored in go.mod).
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements backend.Provider over the Chat Completions API.
type OpenAI struct {
	chat  ChatClient
	model string
}

// NewOpenAI builds an OpenAI-backed provider.
func NewOpenAI(chat ChatClient, model string) (*OpenAI, error) {
	if chat == nil {
		return nil, errors.New("openai client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &OpenAI{chat: chat, model: model}, nil
}

// NewOpenAIFromAPIKey constructs a provider using the default OpenAI HTTP
// client.
func NewOpenAIFromAPIKey(apiKey, model string) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAI(client.Chat.Completions, model)
}

func (o *OpenAI) Name() string { return "openai" }

// Generate issues one non-streaming chat completion and replays the first
// choice's message content through emit as a single piece. As with the
// Anthropic adapter, true incremental delivery is layered on top by
// ai/backend.ExecutionContext.ComputeStream rather than by this call.
func (o *OpenAI) Generate(ctx context.Context, prompt string, opts backend.PromptOptions, emit func(string) bool) error {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens: openai.Int(int64(opts.MaxPredict)),
	}
	if !opts.Greedy() {
		params.Temperature = openai.Float(float64(opts.Temperature))
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(float64(opts.TopP))
	}

	resp, err := o.chat.New(ctx, params)
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return nil
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		return nil
	}
	emit(text)
	return nil
}
