package filtering

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/directory"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/relevance"
)

type zeroNoise struct{}

func (zeroNoise) IntN(int) int { return 0 }

func candidate(id, statement string) directory.Candidate {
	return directory.Candidate{ID: id, Role: conversation.RoleInvestor, DisplayName: id, Statement: statement}
}

func ids(p Pool) []string {
	out := make([]string, 0, len(p))
	for _, e := range p {
		out = append(out, e.Candidate.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunDefaultPipeline(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := &Config{Exclude: []string{"blocked"}, ShortlistSize: 2}
	deps := Deps{
		Logger:      zap.New(core),
		Scorer:      relevance.NewScorer(zeroNoise{}),
		Statement:   "AI recruiting for enterprise customers",
		SubmitterID: "self",
	}

	pool := NewPool([]directory.Candidate{
		candidate("blank", "   "),
		candidate("blocked", "AI enterprise recruiting"),
		candidate("self", "AI enterprise recruiting"),
		candidate("weak", "consumer hardware"),
		candidate("strong", "enterprise AI software"),
		candidate("medium", "AI tooling"),
	})

	got, err := Run(context.Background(), cfg, deps, Default(cfg), pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []string{"strong", "medium"}; !equal(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
	if got[0].Relevance != 70 || got[1].Relevance != 60 {
		t.Fatalf("unexpected relevance scores: %d, %d", got[0].Relevance, got[1].Relevance)
	}

	entries := logs.FilterMessage("filter step").All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 filter step logs, got %d", len(entries))
	}
	last := entries[2].ContextMap()
	if last["name"] != "shortlist" || last["initial"] != int64(3) || last["dropped"] != int64(1) || last["left"] != int64(2) {
		t.Fatalf("unexpected shortlist step fields: %v", last)
	}
}

func TestShortlistKeepsDirectoryOrderOnTies(t *testing.T) {
	deps := Deps{Scorer: relevance.NewScorer(zeroNoise{}), Statement: "fintech"}
	pool := NewPool([]directory.Candidate{
		candidate("a", "biotech"),
		candidate("b", "fintech"),
		candidate("c", "agritech"),
		candidate("d", "fintech payments"),
	})

	got, step, err := NewShortlist(3).Apply(context.Background(), deps, pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"b", "d", "a"}; !equal(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
	if step != (Step{Initial: 4, Dropped: 1, Left: 3}) {
		t.Fatalf("unexpected step: %+v", step)
	}
}

func TestShortlistRequiresScorer(t *testing.T) {
	if _, _, err := NewShortlist(1).Apply(context.Background(), Deps{}, NewPool(nil)); err == nil {
		t.Fatalf("expected error without scorer")
	}
}

func TestDisabledFilterIsSkipped(t *testing.T) {
	cfg := &Config{Exclude: []string{"a"}}
	steps := []Filter{NewExcluded(cfg.Exclude)}
	DisableByName(steps, "excluded", "manual run")

	got, err := Run(context.Background(), cfg, Deps{}, steps, NewPool([]directory.Candidate{candidate("a", "x")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("expected disabled filter to keep pool, got %v", ids(got))
	}

	statuses := Describe(steps)
	if len(statuses) != 1 || statuses[0].Enabled || statuses[0].Reason != "manual run" {
		t.Fatalf("unexpected status: %+v", statuses)
	}
	if statuses[0].Details["count"] != "1" {
		t.Fatalf("unexpected details: %v", statuses[0].Details)
	}
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, &Config{}, Deps{}, []Filter{NewBlankStatement()}, nil); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestExcludeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excluded.json")

	// A file that does not exist yet excludes nothing.
	pool := NewPool([]directory.Candidate{candidate("a", "x"), candidate("b", "y"), candidate("c", "z")})
	got, step, err := NewExcludeFile(path).Apply(context.Background(), Deps{}, pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step != (Step{Initial: 3, Left: 3}) {
		t.Fatalf("unexpected step: %+v", step)
	}

	excluded, err := LoadExcluded(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	excluded.Append(ExcludedCandidate{ID: "b", ExcludedAt: at}, ExcludedCandidate{ID: "b", ExcludedAt: at})
	if err := excluded.ToFile(path); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	reloaded, err := LoadExcluded(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equal(reloaded.IDs(), []string{"b"}) {
		t.Fatalf("unexpected ids %v", reloaded.IDs())
	}

	got, step, err = NewExcludeFile(path).Apply(context.Background(), Deps{}, got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equal(ids(got), []string{"a", "c"}) || step.Dropped != 1 {
		t.Fatalf("unexpected result %v %+v", ids(got), step)
	}
}

func TestDefaultAddsExcludeFileWhenConfigured(t *testing.T) {
	if n := len(Default(&Config{})); n != 3 {
		t.Fatalf("expected 3 steps, got %d", n)
	}
	steps := Default(&Config{ExcludeFile: "excluded.json"})
	if len(steps) != 4 || steps[2].Name() != "exclude_file" {
		t.Fatalf("unexpected steps %+v", Describe(steps))
	}
}

func TestCounterpartRole(t *testing.T) {
	founder := candidate("f", "AI tooling")
	founder.Role = conversation.RoleFounder
	anonymous := candidate("anon", "AI tooling")
	anonymous.Role = ""

	pool := NewPool([]directory.Candidate{candidate("i", "AI"), founder, anonymous})
	got, step, err := NewCounterpartRole(conversation.RoleInvestor).Apply(context.Background(), Deps{}, pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equal(ids(got), []string{"i", "anon"}) || step.Dropped != 1 || step.Left != 2 {
		t.Fatalf("unexpected result %v %+v", ids(got), step)
	}
	if got[1].Candidate.Role != conversation.RoleInvestor {
		t.Fatalf("expected empty role to become investor, got %q", got[1].Candidate.Role)
	}
	if pool[2].Candidate.Role != "" {
		t.Fatalf("input pool was modified")
	}

	if err := NewCounterpartRole("advisor").Validate(&Config{}); err == nil {
		t.Fatalf("expected an error for an unknown role")
	}

	steps := Default(&Config{Counterpart: conversation.RoleInvestor})
	if len(steps) != 4 || steps[0].Name() != "role" {
		t.Fatalf("unexpected steps %+v", Describe(steps))
	}
}
