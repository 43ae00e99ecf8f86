// Package providers adapts cloud completion APIs to the ai/backend.Provider
// interface, standing in for the native, FFI-wrapped inference library
// treated as an out-of-scope external collaborator. Each adapter wraps
// only the SDK surface it needs behind a small interface so tests can
// substitute a fake.
package providers

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hayride-dev/hayride/ai/backend"
)

// MessagesClient captures the subset of the Anthropic SDK client the
// adapter uses, satisfied by *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Anthropic implements backend.Provider over the Anthropic Messages API.
type Anthropic struct {
	msg   MessagesClient
	model string
}

// NewAnthropic builds an Anthropic-backed provider.
func NewAnthropic(msg MessagesClient, model string) (*Anthropic, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Anthropic{msg: msg, model: model}, nil
}

// NewAnthropicFromAPIKey constructs a provider using the default Anthropic
// HTTP client, authenticated with apiKey.
func NewAnthropicFromAPIKey(apiKey, model string) (*Anthropic, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropic(&client.Messages, model)
}

func (a *Anthropic) Name() string { return "anthropic" }

// Generate issues one non-streaming Messages.New call and replays the
// reply's non-empty text blocks through emit, one piece per block, stopping
// as soon as emit returns false. A true token-by-token
// decode loop belongs to the native inference library this adapter stands
// in for; callers that need incremental delivery still get it via
// ai/backend.ExecutionContext.ComputeStream's goroutine, which calls
// Generate once and lets emit gate early termination.
func (a *Anthropic) Generate(ctx context.Context, prompt string, opts backend.PromptOptions, emit func(string) bool) error {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: int64(opts.MaxPredict),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if !opts.Greedy() {
		params.Temperature = sdk.Float(float64(opts.Temperature))
	}
	if opts.TopP > 0 {
		params.TopP = sdk.Float(float64(opts.TopP))
	}
	if opts.TopK > 0 {
		params.TopK = sdk.Int(int64(opts.TopK))
	}

	msg, err := a.msg.New(ctx, params)
	if err != nil {
		return err
	}

	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			if !emit(text) {
				return nil
			}
		}
	}
	return nil
}
