// Package openai answers agent prompts with the OpenAI Chat Completions API or
// any endpoint compatible with it.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultModel = openai.ChatModelGPT4oMini

type Model struct {
	client *openai.Client
	model  string
}

// New creates a client. baseURL is optional.
func New(apiKey, model, baseURL string) *Model {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Model{client: &client, model: model}
}

func (m *Model) Name() string { return "openai" }

func (m *Model) Model() string { return m.model }

// Respond sends a single user message and returns the first choice.
func (m *Model) Respond(ctx context.Context, _ string, prompt string) (string, error) {
	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: m.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
