// Package secondme talks to the SecondMe personal-agent platform, where each
// user's own agent answers on their behalf.
package secondme

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAPIBase = "https://app.mindos.com/gate/lab"

	chatStreamPath = "/api/secondme/chat/stream"
	userInfoPath   = "/api/secondme/user/info"
	userAgent      = "pitchmatch (+https://github.com/kylin-feng/v0-ai-pitch-with-ai)"
	contentType    = "application/json"
	maxLineSize    = 1 << 20
)

// ErrMissingCredential is returned when no access token is supplied.
var ErrMissingCredential = errors.New("secondme access token is required")

type Client struct {
	APIBase    string
	HTTPClient *http.Client
	UserAgent  string
	logger     *zap.Logger
}

func New(apiBase string, logger *zap.Logger) *Client {
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		APIBase: apiBase,
		// Per-call deadlines come from the caller's context.
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
		UserAgent:  userAgent,
		logger:     logger,
	}
}

func (c *Client) Name() string { return "secondme" }

func (c *Client) Model() string { return "secondme-chat" }

type chatRequest struct {
	Message string `json:"message"`
}

type streamChunk struct {
	SessionID string `json:"sessionId"`
	Choices   []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Respond sends the prompt to the user's agent and concatenates the streamed
// reply.
func (c *Client) Respond(ctx context.Context, credential, prompt string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", ErrMissingCredential
	}

	body, err := json.Marshal(chatRequest{Message: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBase+chatStreamPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req = c.setHeaders(req, credential)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	return c.readStream(resp.Body)
}

func (c *Client) readStream(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Debug("skipping malformed stream chunk", zap.Error(err))
			continue
		}
		if len(chunk.Choices) > 0 {
			out.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading chat stream: %w", err)
	}

	return out.String(), nil
}

// UserInfo is the profile of the signed-in user.
type UserInfo struct {
	Name   string `json:"name"`
	Bio    string `json:"bio,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type userInfoResponse struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    *UserInfo `json:"data"`
}

// UserInfo fetches the profile that belongs to the access token.
func (c *Client) UserInfo(ctx context.Context, credential string) (*UserInfo, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBase+userInfoPath, nil)
	if err != nil {
		return nil, err
	}
	req = c.setHeaders(req, credential)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var payload userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Code != 0 || payload.Data == nil {
		return nil, fmt.Errorf("user info: code %d: %s", payload.Code, payload.Message)
	}
	return payload.Data, nil
}

// DisplayName returns the profile name behind the access token.
func (c *Client) DisplayName(ctx context.Context, credential string) (string, error) {
	info, err := c.UserInfo(ctx, credential)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(info.Name), nil
}

func (c *Client) setHeaders(req *http.Request, credential string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("User-Agent", c.UserAgent)
	return req
}
