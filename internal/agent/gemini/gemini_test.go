package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

type stubModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	prompt string
}

func (s *stubModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.model = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		s.prompt = contents[0].Parts[0].Text
	}
	return s.resp, s.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: genai.RoleModel}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGeneratorRespond(t *testing.T) {
	cases := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		err     error
		want    string
		wantErr bool
	}{
		{name: "joins parts", resp: textResponse(" Sounds good. ", "", "Let's talk further."), want: "Sounds good.\nLet's talk further."},
		{name: "empty candidates", resp: &genai.GenerateContentResponse{}, wantErr: true},
		{name: "nil content", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, wantErr: true},
		{name: "api error", err: errors.New("quota"), wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubModels{resp: tc.resp, err: tc.err}
			g := newWithGenerator(stub, "")

			got, err := g.Respond(context.Background(), "ignored", " hello ")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
			if stub.model != defaultModel {
				t.Fatalf("expected default model, got %q", stub.model)
			}
			if stub.prompt != "hello" {
				t.Fatalf("expected trimmed prompt, got %q", stub.prompt)
			}
		})
	}
}

func TestGeneratorRejectsEmptyPrompt(t *testing.T) {
	g := newWithGenerator(&stubModels{}, "gemini-pro")
	if _, err := g.Respond(context.Background(), "", "   "); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
	if g.Model() != "gemini-pro" {
		t.Fatalf("unexpected model %q", g.Model())
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(context.Background(), " ", ""); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
