// Package anthropic provides an llm.Provider backed by Anthropic's Claude
// API via the official anthropic-sdk-go client.
package anthropic

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/researchpipe-go/pipeline/llm"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "claude-3-5-sonnet-20241022"

// Provider implements llm.Provider for Claude models. Safe for concurrent
// use after creation; the gateway serializes calls regardless.
type Provider struct {
	client *anthropic.Client
	model  string
}

// New creates a Provider for the given API key and model name. An empty
// model name selects DefaultModel.
func New(apiKey, model string) *Provider {
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Provider{client: &client, model: model}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "anthropic" }

// Complete implements llm.Provider.
//
// Claude reports refusals via stop_reason; responses ended by "refusal" are
// surfaced as llm.FinishSafety so the gateway retries with a safer prompt.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, err
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return llm.Response{
		Text:         text.String(),
		FinishReason: finishReason(string(message.StopReason)),
	}, nil
}

func finishReason(stop string) llm.FinishReason {
	switch stop {
	case "max_tokens":
		return llm.FinishLength
	case "refusal":
		return llm.FinishSafety
	default:
		return llm.FinishStop
	}
}
