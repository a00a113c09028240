// Package anthropic answers agent prompts with Claude via the Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultModel     = anthropic.ModelClaude3_5HaikuLatest
	defaultMaxTokens = 512
)

type Model struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// New creates a client. baseURL is optional.
func New(apiKey, model, baseURL string, maxTokens int64) *Model {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)

	m := &Model{client: &client, model: defaultModel, maxTokens: maxTokens}
	if model = strings.TrimSpace(model); model != "" {
		m.model = anthropic.Model(model)
	}
	if m.maxTokens <= 0 {
		m.maxTokens = defaultMaxTokens
	}
	return m
}

func (m *Model) Name() string { return "anthropic" }

func (m *Model) Model() string { return string(m.model) }

// Respond sends a single user turn and joins the text blocks of the answer.
func (m *Model) Respond(ctx context.Context, _ string, prompt string) (string, error) {
	resp, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		text := strings.TrimSpace(block.AsText().Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(text)
	}
	if b.Len() == 0 {
		return "", errors.New("anthropic api returned no text")
	}
	return b.String(), nil
}
