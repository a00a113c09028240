package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestModelRespond(t *testing.T) {
	var gotModel, gotPrompt, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = body.Model
		if len(body.Messages) == 1 {
			gotPrompt = body.Messages[0].Content
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Let's arrange a call. "}}]}`)
	}))
	defer srv.Close()

	m := New("sk-test", "", srv.URL)
	got, err := m.Respond(context.Background(), "", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Let's arrange a call." {
		t.Fatalf("unexpected reply %q", got)
	}
	if gotModel != defaultModel {
		t.Fatalf("unexpected model %q", gotModel)
	}
	if gotPrompt != "hi" {
		t.Fatalf("unexpected prompt %q", gotPrompt)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth %q", gotAuth)
	}
}

func TestModelRespondNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	}))
	defer srv.Close()

	if _, err := New("k", "m", srv.URL).Respond(context.Background(), "", "hi"); err == nil {
		t.Fatalf("expected error without choices")
	}
}
