// Package agent connects the conversation to the model that speaks for each
// party.
package agent

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/logger"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/utils"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxLogLength = 200
)

// Provider produces a single reply for a prompt. Errors are returned as-is;
// the Adapter decides how they surface.
type Provider interface {
	Name() string
	Model() string
	Respond(ctx context.Context, credential, prompt string) (string, error)
}

// Adapter turns a Provider into a conversation.Responder: every failure,
// timeout or empty reply becomes an empty string so the caller can substitute
// its fallback. Calls are never retried.
type Adapter struct {
	provider  Provider
	timeout   time.Duration
	maxLogLen int
	logger    *zap.Logger
}

func NewAdapter(provider Provider, timeout time.Duration, maxLogLength int, log *zap.Logger) *Adapter {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Adapter{
		provider:  provider,
		timeout:   timeout,
		maxLogLen: maxLogLength,
		logger:    logger.WithProviderFields(log, provider.Name(), provider.Model()),
	}
}

// Respond implements conversation.Responder.
func (a *Adapter) Respond(ctx context.Context, credential, prompt string) string {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.logger.Debug("agent request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	started := time.Now()
	reply, err := a.provider.Respond(ctx, credential, prompt)
	elapsed := time.Since(started)
	if err != nil {
		level := a.logger.Warn
		if errors.Is(err, context.Canceled) {
			level = a.logger.Debug
		}
		level("agent request failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return ""
	}

	reply = strings.TrimSpace(reply)
	a.logger.Debug("agent response",
		zap.Duration("elapsed", elapsed),
		zap.Int("response_length", utf8.RuneCountInString(reply)),
		zap.String("response_preview", utils.TruncateForLog(reply, a.maxLogLen)),
	)
	return reply
}

// Provider returns the wrapped provider.
func (a *Adapter) Provider() Provider { return a.provider }
