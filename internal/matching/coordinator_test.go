package matching

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/directory"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/evaluation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/relevance"
)

type zeroNoise struct{}

func (zeroNoise) IntN(int) int { return 0 }

// scriptedAgents answers investor prompts with investorReply(prompt) and
// founder prompts with founderReply.
type scriptedAgents struct {
	calls         atomic.Int32
	founderReply  string
	investorReply func(prompt string) string
}

func (s *scriptedAgents) Respond(_ context.Context, _ string, prompt string) string {
	s.calls.Add(1)
	if strings.Contains(prompt, ", an investor,") {
		if s.investorReply == nil {
			return ""
		}
		return s.investorReply(prompt)
	}
	return s.founderReply
}

func constant(reply string) func(string) string {
	return func(string) string { return reply }
}

var sessionTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newCoordinator(responder conversation.Responder, dir directory.Directory, cfg Config) *Coordinator {
	orch := conversation.NewOrchestrator(responder, conversation.Config{Rounds: 3}, conversation.WithClock(func() time.Time { return sessionTime }))
	return NewCoordinator(dir, orch, evaluation.New(evaluation.DefaultLexicon()), relevance.NewScorer(zeroNoise{}), cfg,
		WithIDGenerator(func() string { return "session-1" }),
		WithClock(func() time.Time { return sessionTime }),
	)
}

func investor(id, name, statement string) directory.Candidate {
	return directory.Candidate{
		ID:           id,
		Role:         conversation.RoleInvestor,
		DisplayName:  name,
		OrgLabel:     name + " Capital",
		Statement:    statement,
		ContactRoute: "mailto:" + id + "@example.com",
	}
}

func founderRequest() Request {
	return Request{
		Role:       conversation.RoleFounder,
		Name:       "Ada",
		Statement:  "AI-driven recruiting assistant for enterprises",
		Credential: "token",
	}
}

func lastEvent(t *testing.T, rec *Recorder) Event {
	t.Helper()
	events := rec.Events()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

func TestRunMutualInterest(t *testing.T) {
	agents := &scriptedAgents{
		founderReply:  "We serve 200 enterprise customers. What stage do you invest in?",
		investorReply: constant("I have real interest in this, let's talk further next week."),
	}
	dir := directory.NewStatic(investor("inv-1", "Zhang", "early-stage AI and enterprise-software investments"))
	coord := newCoordinator(agents, dir, Config{ShortlistSize: 3})

	rec := &Recorder{}
	res, err := coord.Run(context.Background(), founderRequest(), rec)
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	match := res.Matches[0]
	assert.True(t, match.Matched)
	assert.GreaterOrEqual(t, match.Score, 75)
	assert.Len(t, match.Transcript, 6)
	assert.Equal(t, 3, match.RoundCount)
	assert.Contains(t, match.Highlights, evaluation.HighlightMutualInterest)
	assert.Equal(t, "mailto:inv-1@example.com", match.ContactRoute)
	assert.Equal(t, 70, match.Relevance)
	assert.Equal(t, 1, res.TotalMatched)
	assert.Equal(t, "session-1", res.SessionID)
	assert.Equal(t, int32(6), agents.calls.Load())

	assert.Equal(t, []EventType{
		EventStatus, EventStatus, EventStatus,
		EventCandidateStart,
		EventRoundStart, EventMessage, EventMessage,
		EventRoundStart, EventMessage, EventMessage,
		EventRoundStart, EventMessage, EventMessage,
		EventCandidateComplete,
		EventComplete,
	}, rec.Types())

	events := rec.Events()
	assert.Equal(t, PhaseSearching, events[0].(StatusEvent).Phase)
	assert.Equal(t, PhaseShortlisted, events[2].(StatusEvent).Phase)
	msg := events[5].(MessageEvent)
	assert.Equal(t, conversation.SpeakerFounder, msg.Role)
	assert.Equal(t, 1, msg.Round)
	assert.Equal(t, sessionTime, msg.Timestamp)
	last := events[12].(MessageEvent)
	assert.Equal(t, 3, last.Round)
	assert.Equal(t, sessionTime.Add(15*time.Minute), last.Timestamp)

	complete := lastEvent(t, rec).(CompleteEvent)
	assert.Equal(t, res.Matches, complete.Matches)
	assert.Equal(t, 1, complete.TotalMatched)
}

func TestRunHesitantCounterpart(t *testing.T) {
	agents := &scriptedAgents{
		founderReply:  "Here are our numbers.",
		investorReply: constant("not quite aligned, reconsider"),
	}
	dir := directory.NewStatic(investor("inv-1", "Zhang", "early-stage AI and enterprise-software investments"))

	res, err := newCoordinator(agents, dir, Config{}).Run(context.Background(), founderRequest(), nil)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	match := res.Matches[0]
	assert.False(t, match.Matched)
	assert.Equal(t, 60, match.Score)
	assert.Contains(t, match.Risks, evaluation.RiskDirection)
	assert.Empty(t, match.ContactRoute)
	assert.Equal(t, 0, res.TotalMatched)
}

func TestRunEmptyPool(t *testing.T) {
	agents := &scriptedAgents{}
	rec := &Recorder{}

	res, err := newCoordinator(agents, directory.NewStatic(), Config{}).Run(context.Background(), founderRequest(), rec)
	require.NoError(t, err)

	assert.Empty(t, res.Matches)
	assert.NotNil(t, res.Matches)
	assert.Equal(t, 0, res.TotalMatched)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, []EventType{EventStatus, EventComplete}, rec.Types())
	assert.Equal(t, int32(0), agents.calls.Load())
}

func TestRunRejectsMissingStatement(t *testing.T) {
	agents := &scriptedAgents{}
	rec := &Recorder{}
	dir := directory.NewStatic(investor("inv-1", "Zhang", "AI"))

	req := founderRequest()
	req.Statement = "   "
	_, err := newCoordinator(agents, dir, Config{}).Run(context.Background(), req, rec)
	require.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, []EventType{EventError}, rec.Types())
	assert.Equal(t, CodeInvalidInput, lastEvent(t, rec).(ErrorEvent).Code)
	assert.Equal(t, int32(0), agents.calls.Load())
}

func TestRunRequiresCredential(t *testing.T) {
	agents := &scriptedAgents{}
	rec := &Recorder{}
	dir := directory.NewStatic(investor("inv-1", "Zhang", "AI"))

	req := founderRequest()
	req.Credential = ""
	_, err := newCoordinator(agents, dir, Config{RequireCredential: true}).Run(context.Background(), req, rec)
	require.ErrorIs(t, err, ErrMissingCredential)
	assert.Equal(t, CodeUnauthorized, lastEvent(t, rec).(ErrorEvent).Code)
	assert.Equal(t, int32(0), agents.calls.Load())
}

func TestRunAllAgentsSilent(t *testing.T) {
	agents := &scriptedAgents{}
	dir := directory.NewStatic(investor("inv-1", "Zhang", "AI enterprise"))

	res, err := newCoordinator(agents, dir, Config{}).Run(context.Background(), founderRequest(), nil)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	match := res.Matches[0]
	require.Len(t, match.Transcript, 6)
	for _, turn := range match.Transcript {
		assert.Equal(t, conversation.DefaultFallbacks[turn.Role.Role()], turn.Content)
	}
	assert.False(t, match.Matched)
	assert.Equal(t, 65, match.Score)
}

func TestRunRanksMatchedFirst(t *testing.T) {
	agents := &scriptedAgents{
		founderReply: "Our retention is 78%.",
		investorReply: func(prompt string) string {
			switch {
			case strings.Contains(prompt, "representing Alpha,"):
				return "Strong interest, let's arrange a detailed discussion."
			case strings.Contains(prompt, "representing Beta,"):
				return "This is a mismatch for us."
			default:
				return "Sounds optimistic."
			}
		},
	}
	dir := directory.NewStatic(
		investor("beta", "Beta", "AI recruiting enterprises"),
		investor("gamma", "Gamma", "AI enterprise"),
		investor("alpha", "Alpha", "AI"),
		investor("delta", "Delta", "consumer hardware"),
	)

	rec := &Recorder{}
	res, err := newCoordinator(agents, dir, Config{ShortlistSize: 3}).Run(context.Background(), founderRequest(), rec)
	require.NoError(t, err)

	ids := make([]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		ids = append(ids, m.CandidateID)
	}
	assert.Equal(t, []string{"alpha", "gamma", "beta"}, ids)
	assert.Equal(t, 2, res.TotalMatched)

	starts := 0
	for _, ev := range rec.Events() {
		if start, ok := ev.(CandidateStartEvent); ok {
			starts++
			assert.Equal(t, 3, start.TotalCandidates)
		}
	}
	assert.Equal(t, 3, starts)
}

func TestRunResultLimit(t *testing.T) {
	agents := &scriptedAgents{investorReply: constant("interest")}
	dir := directory.NewStatic(
		investor("a", "A", "AI"),
		investor("b", "B", "AI"),
		investor("c", "C", "AI"),
	)

	res, err := newCoordinator(agents, dir, Config{ShortlistSize: 3, ResultLimit: 2}).Run(context.Background(), founderRequest(), nil)
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)
	assert.Equal(t, 3, res.TotalMatched)
}

func TestRunExcludesSubmitterAndConfiguredIDs(t *testing.T) {
	agents := &scriptedAgents{investorReply: constant("interest")}
	dir := directory.NewStatic(
		investor("self", "Self", "AI recruiting"),
		investor("blocked", "Blocked", "AI recruiting"),
	)

	req := founderRequest()
	req.SubmitterID = "self"
	rec := &Recorder{}
	res, err := newCoordinator(agents, dir, Config{Exclude: []string{"blocked"}}).Run(context.Background(), req, rec)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, []EventType{EventStatus, EventStatus, EventComplete}, rec.Types())
}

func TestRunInvestorSubmitter(t *testing.T) {
	agents := &scriptedAgents{
		founderReply:  "I am looking forward to a detailed discussion.",
		investorReply: constant("What is your retention?"),
	}
	founder := directory.Candidate{ID: "fnd-1", Role: conversation.RoleFounder, DisplayName: "Chen", Statement: "AI recruiting SaaS"}

	req := Request{Role: conversation.RoleInvestor, Statement: "Seed AI SaaS", Credential: "token"}
	res, err := newCoordinator(agents, directory.NewStatic(founder), Config{}).Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	match := res.Matches[0]
	assert.Equal(t, conversation.SpeakerInvestor, match.Transcript[0].Role)
	assert.True(t, match.Matched)
	assert.Equal(t, 80, match.Score)
}

func TestRunStopsWhenSinkFails(t *testing.T) {
	agents := &scriptedAgents{investorReply: constant("interest")}
	dir := directory.NewStatic(investor("inv-1", "Zhang", "AI"))
	gone := errors.New("client disconnected")

	var seen []EventType
	sink := SinkFunc(func(_ context.Context, ev Event) error {
		seen = append(seen, ev.Type())
		if ev.Type() == EventMessage {
			return gone
		}
		return nil
	})

	_, err := newCoordinator(agents, dir, Config{}).Run(context.Background(), founderRequest(), sink)
	require.ErrorIs(t, err, gone)
	assert.True(t, IsClientGone(err))
	assert.Equal(t, EventMessage, seen[len(seen)-1])
	assert.Equal(t, int32(1), agents.calls.Load())
}

func TestRunRecoversFromPanic(t *testing.T) {
	responder := conversation.ResponderFunc(func(context.Context, string, string) string {
		panic("adapter exploded")
	})
	dir := directory.NewStatic(investor("inv-1", "Zhang", "AI"))
	rec := &Recorder{}

	res, err := newCoordinator(responder, dir, Config{}).Run(context.Background(), founderRequest(), rec)
	require.ErrorIs(t, err, ErrInternal)
	assert.Nil(t, res)

	last := lastEvent(t, rec).(ErrorEvent)
	assert.Equal(t, CodeInternal, last.Code)
	for _, ev := range rec.Events() {
		assert.NotEqual(t, EventComplete, ev.Type())
	}
}

type failingDirectory struct{}

func (failingDirectory) Candidates(context.Context, conversation.Role) ([]directory.Candidate, error) {
	return nil, errors.New("database is down")
}

func TestRunDirectoryFailure(t *testing.T) {
	rec := &Recorder{}
	_, err := newCoordinator(&scriptedAgents{}, failingDirectory{}, Config{}).Run(context.Background(), founderRequest(), rec)
	require.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, []EventType{EventStatus, EventError}, rec.Types())
	assert.NotContains(t, lastEvent(t, rec).(ErrorEvent).Message, "database")
}

func TestMatchUsesExplicitPool(t *testing.T) {
	agents := &scriptedAgents{investorReply: constant("interest")}
	coord := newCoordinator(agents, nil, Config{})

	res, err := coord.Match(context.Background(), founderRequest(), []directory.Candidate{investor("x", "X", "AI")}, nil)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "x", res.Matches[0].CandidateID)
}

func TestMatchSkipsCandidatesOfTheWrongRole(t *testing.T) {
	agents := &scriptedAgents{founderReply: "Tell me more.", investorReply: constant("interest")}
	coord := newCoordinator(agents, nil, Config{})

	founder := investor("c", "Chen", "AI enterprise tooling")
	founder.Role = conversation.RoleFounder

	rec := &Recorder{}
	res, err := coord.Match(context.Background(), founderRequest(), []directory.Candidate{
		{ID: "a", DisplayName: "Anon", Statement: "AI enterprise"},
		investor("b", "Bai", "enterprise software"),
		founder,
	}, rec)
	require.NoError(t, err)

	got := make([]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		got = append(got, m.CandidateID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, got)
	assert.NotContains(t, rec.Types(), EventError)
	assert.Equal(t, int32(12), agents.calls.Load())
}

func TestContinueExtendsConversation(t *testing.T) {
	reply := "not quite aligned"
	agents := &scriptedAgents{
		founderReply:  "More details.",
		investorReply: func(string) string { return reply },
	}
	dir := directory.NewStatic(investor("inv-1", "Zhang", "AI enterprise"))
	coord := newCoordinator(agents, dir, Config{})

	first, err := coord.Run(context.Background(), founderRequest(), nil)
	require.NoError(t, err)
	require.False(t, first.Matches[0].Matched)

	reply = "Now I see the potential, let's arrange a call."
	rec := &Recorder{}
	updated, err := coord.Continue(context.Background(), Continuation{
		Request: Request{Credential: "token"},
		Prior:   first,
		Target:  "inv-1",
		Rounds:  1,
	}, rec)
	require.NoError(t, err)

	match := updated.Matches[0]
	assert.Equal(t, 4, match.RoundCount)
	assert.Len(t, match.Transcript, 8)
	assert.True(t, match.Matched)
	assert.Equal(t, 1, updated.TotalMatched)
	assert.Len(t, first.Matches[0].Transcript, 6)
	assert.Equal(t, []EventType{EventRoundStart, EventMessage, EventMessage, EventCandidateComplete}, rec.Types())
	assert.Equal(t, 4, rec.Events()[0].(RoundStartEvent).Round)

	_, err = coord.Continue(context.Background(), Continuation{Prior: updated, Target: "inv-1", Rounds: 2}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = coord.Continue(context.Background(), Continuation{Prior: updated, Target: "ghost"}, nil)
	assert.ErrorIs(t, err, ErrUnknownCandidate)
}
