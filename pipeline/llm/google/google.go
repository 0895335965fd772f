// Package google provides an llm.Provider backed by Google's Gemini API via
// the generative-ai-go client.
//
// Gemini is the provider whose safety filters the gateway's blocked-response
// handling was designed around: blocked candidates carry
// FinishReasonSafety, which is translated to llm.FinishSafety here.
package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/researchpipe-go/pipeline/llm"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "gemini-2.5-flash"

// Provider implements llm.Provider for Gemini models.
//
// A genai client is created per call; the SDK multiplexes connections and
// the gateway serializes calls, so this keeps the provider stateless.
type Provider struct {
	apiKey string
	model  string
}

// New creates a Provider for the given API key and model name. An empty
// model name selects DefaultModel.
func New(apiKey, model string) *Provider {
	if model == "" {
		model = DefaultModel
	}
	return &Provider{apiKey: apiKey, model: model}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "google" }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return llm.Response{}, fmt.Errorf("create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(p.model)
	temp := float32(req.Temperature)
	model.Temperature = &temp
	if req.MaxTokens > 0 {
		tokens := int32(req.MaxTokens)
		model.MaxOutputTokens = &tokens
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return llm.Response{}, fmt.Errorf("gemini API error: %w", err)
	}

	// A prompt-level block produces no candidates at all.
	if len(resp.Candidates) == 0 {
		return llm.Response{FinishReason: llm.FinishSafety}, nil
	}

	candidate := resp.Candidates[0]
	reason := finishReason(candidate.FinishReason)
	var text strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}

	return llm.Response{Text: text.String(), FinishReason: reason}, nil
}

func finishReason(r genai.FinishReason) llm.FinishReason {
	switch r {
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return llm.FinishSafety
	case genai.FinishReasonMaxTokens:
		return llm.FinishLength
	default:
		return llm.FinishStop
	}
}
