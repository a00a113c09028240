package matching

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/directory"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/logger"
)

// ErrUnknownCandidate is returned when a continuation names a candidate that is
// not part of the session.
var ErrUnknownCandidate = errors.New("unknown candidate")

// Continuation extends one finished conversation of an earlier session.
type Continuation struct {
	Request
	Prior  *Result
	Target string
	Rounds int
}

// Continue adds rounds to the conversation with Target, re-evaluates it and
// returns the updated session result. Progress is reported as round_start,
// message and candidate_complete events; failures end with an ErrorEvent.
func (c *Coordinator) Continue(ctx context.Context, cont Continuation, sink Sink) (*Result, error) {
	if sink == nil {
		sink = Discard
	}
	s := &session{Coordinator: c, id: "", req: cont.Request, sink: sink}
	if cont.Prior != nil {
		s.id = cont.Prior.SessionID
		s.req.Role = cont.Prior.Role
		s.req.Statement = cont.Prior.Statement
		if s.req.Name == "" {
			s.req.Name = cont.Prior.Name
		}
	}
	s.logger = logger.WithFields(c.logger, logger.SessionFields(s.id, string(s.req.Role))...)

	if cont.Prior == nil {
		return nil, s.fail(ctx, fmt.Errorf("%w: session is required", ErrInvalidInput))
	}
	if err := s.validate(); err != nil {
		return nil, s.fail(ctx, err)
	}

	prior, ok := cont.Prior.Find(cont.Target)
	if !ok {
		return nil, s.fail(ctx, fmt.Errorf("%w: %w %q", ErrInvalidInput, ErrUnknownCandidate, cont.Target))
	}

	cand, err := c.lookup(ctx, s.req.Role.Counterpart(), cont.Target)
	if err != nil {
		return nil, s.fail(ctx, fmt.Errorf("%w: %v", ErrInternal, err))
	}

	rounds := cont.Rounds
	if rounds <= 0 {
		rounds = 1
	}
	index := 1
	round := prior.RoundCount
	extended, err := c.orchestrator.Extend(ctx, conversation.Session{
		Credential: s.req.Credential,
		Self:       s.req.self(),
		Other:      conversation.Party{Role: cand.Role, Name: cand.DisplayName, Statement: cand.Statement},
	}, prior.Conversation(), rounds, conversation.Hooks{
		RoundStarted: func(r int) error {
			round = r
			return s.emit(ctx, RoundStartEvent{Round: r, TotalRounds: prior.RoundCount + rounds, CandidateIndex: index})
		},
		TurnProduced: func(t conversation.Turn) error {
			return s.emit(ctx, MessageEvent{
				Role:           t.Role,
				Content:        t.Content,
				Round:          round,
				Sequence:       t.Sequence,
				CandidateIndex: index,
				Timestamp:      t.EmittedAt,
			})
		},
	})
	switch {
	case errors.Is(err, conversation.ErrRoundLimit):
		return nil, s.fail(ctx, fmt.Errorf("%w: %v", ErrInvalidInput, err))
	case err != nil && (ctx.Err() != nil || errors.Is(err, errSinkClosed)):
		return nil, err
	case err != nil:
		return nil, s.fail(ctx, fmt.Errorf("%w: %v", ErrInternal, err))
	}

	verdict := c.evaluator.Evaluate(extended, cand.Role.Speaker())
	rec := newRecord(cand, prior.Relevance, extended, verdict)

	s.logger.Info("conversation continued",
		zap.String(logger.FieldCandidate, cand.ID),
		zap.Int("rounds", rec.RoundCount),
		zap.Bool("matched", rec.Matched),
		zap.Int("score", rec.Score),
	)

	if err := s.emit(ctx, CandidateCompleteEvent{CandidateIndex: index, CandidateID: cand.ID, Matched: rec.Matched, Score: rec.Score}); err != nil {
		return nil, err
	}

	updated := *cont.Prior
	updated.Matches = append([]Record(nil), cont.Prior.Matches...)
	updated.Replace(rec)
	return &updated, nil
}

func (c *Coordinator) lookup(ctx context.Context, role conversation.Role, id string) (directory.Candidate, error) {
	if c.directory == nil {
		return directory.Candidate{}, fmt.Errorf("candidate directory is not configured")
	}
	pool, err := c.directory.Candidates(ctx, role)
	if err != nil {
		return directory.Candidate{}, err
	}
	for _, cand := range pool {
		if cand.ID == id {
			return cand, nil
		}
	}
	return directory.Candidate{}, fmt.Errorf("%w %q", ErrUnknownCandidate, id)
}
