// Package openai provides an llm.Provider backed by OpenAI's chat completion
// API via the official openai-go client.
package openai

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/researchpipe-go/pipeline/llm"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "gpt-4o"

// Provider implements llm.Provider for OpenAI chat models.
type Provider struct {
	client *openai.Client
	model  string
}

// New creates a Provider for the given API key and model name. An empty
// model name selects DefaultModel.
func New(apiKey, model string) *Provider {
	if model == "" {
		model = DefaultModel
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Provider{client: &client, model: model}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "openai" }

// Complete implements llm.Provider.
//
// OpenAI reports moderation refusals via finish_reason "content_filter";
// that is surfaced as llm.FinishSafety so the gateway retries with a safer
// prompt variant.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(req.System),
				},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(req.Prompt),
			},
		},
	})

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(p.model),
		Messages:            messages,
		Temperature:         openai.Float(req.Temperature),
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
	})
	if err != nil {
		return llm.Response{}, err
	}
	if len(completion.Choices) == 0 {
		return llm.Response{Text: "", FinishReason: llm.FinishSafety}, nil
	}

	choice := completion.Choices[0]
	return llm.Response{
		Text:         choice.Message.Content,
		FinishReason: finishReason(choice.FinishReason),
	}, nil
}

func finishReason(reason string) llm.FinishReason {
	switch reason {
	case "content_filter":
		return llm.FinishSafety
	case "length":
		return llm.FinishLength
	default:
		return llm.FinishStop
	}
}
