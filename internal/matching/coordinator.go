// Package matching runs a full matching session: pre-filter the counterpart
// pool, hold one conversation per shortlisted candidate, evaluate and rank.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/directory"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/evaluation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/filtering"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/logger"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/relevance"
)

// Config tunes a Coordinator.
type Config struct {
	ShortlistSize     int      `mapstructure:"shortlist-size"`
	ResultLimit       int      `mapstructure:"result-limit"`
	Exclude           []string `mapstructure:"exclude"`
	ExcludeFile       string   `mapstructure:"exclude-file"`
	RequireCredential bool     `mapstructure:"-"`
}

// Request is what a submitter sends to start a session.
type Request struct {
	Role        conversation.Role `json:"role"`
	Statement   string            `json:"statement"`
	Name        string            `json:"name,omitempty"`
	SubmitterID string            `json:"submitterId,omitempty"`
	Credential  string            `json:"-"`
}

func (r Request) self() conversation.Party {
	return conversation.Party{Role: r.Role, Name: r.Name, Statement: r.Statement}
}

// Coordinator drives matching sessions. It holds no per-session state and is
// safe for concurrent use.
type Coordinator struct {
	directory    directory.Directory
	orchestrator *conversation.Orchestrator
	evaluator    *evaluation.Evaluator
	scorer       *relevance.Scorer
	cfg          Config
	logger       *zap.Logger
	newID        func() string
	now          func() time.Time
}

type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(dir directory.Directory, orch *conversation.Orchestrator, eval *evaluation.Evaluator, scorer *relevance.Scorer, cfg Config, opts ...Option) *Coordinator {
	if cfg.ShortlistSize <= 0 {
		cfg.ShortlistSize = filtering.DefaultShortlistSize
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = DefaultResultLimit
	}
	c := &Coordinator{
		directory:    dir,
		orchestrator: orch,
		evaluator:    eval,
		scorer:       scorer,
		cfg:          cfg,
		logger:       zap.NewNop(),
		newID:        uuid.NewString,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run looks up the counterpart pool in the directory and matches against it.
func (c *Coordinator) Run(ctx context.Context, req Request, sink Sink) (*Result, error) {
	return c.run(ctx, req, sink, func(ctx context.Context) ([]directory.Candidate, error) {
		if c.directory == nil {
			return nil, fmt.Errorf("candidate directory is not configured")
		}
		return c.directory.Candidates(ctx, req.Role.Counterpart())
	})
}

// Match runs a session against an explicit candidate pool.
func (c *Coordinator) Match(ctx context.Context, req Request, pool []directory.Candidate, sink Sink) (*Result, error) {
	return c.run(ctx, req, sink, func(context.Context) ([]directory.Candidate, error) {
		return pool, nil
	})
}

type poolSource func(ctx context.Context) ([]directory.Candidate, error)

type session struct {
	*Coordinator
	id     string
	req    Request
	sink   Sink
	logger *zap.Logger
}

func (c *Coordinator) run(ctx context.Context, req Request, sink Sink, source poolSource) (res *Result, err error) {
	if sink == nil {
		sink = Discard
	}
	req.Statement = strings.TrimSpace(req.Statement)

	s := &session{Coordinator: c, id: c.newID(), req: req, sink: sink}
	s.logger = logger.WithFields(c.logger, logger.SessionFields(s.id, string(req.Role))...)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("matching session panicked", zap.Any("panic", r))
			res, err = nil, s.fail(ctx, fmt.Errorf("%w: %v", ErrInternal, r))
		}
	}()

	if err := s.validate(); err != nil {
		return nil, s.fail(ctx, err)
	}

	return s.execute(ctx, source)
}

func (s *session) validate() error {
	if !s.req.Role.Valid() {
		return fmt.Errorf("%w: role must be %q or %q", ErrInvalidInput, conversation.RoleFounder, conversation.RoleInvestor)
	}
	if s.req.Statement == "" {
		return fmt.Errorf("%w: statement is required", ErrInvalidInput)
	}
	if s.cfg.RequireCredential && strings.TrimSpace(s.req.Credential) == "" {
		return fmt.Errorf("%w: sign in to let your agent talk", ErrMissingCredential)
	}
	return nil
}

func (s *session) execute(ctx context.Context, source poolSource) (*Result, error) {
	counterpart := s.req.Role.Counterpart()
	s.logger.Info("matching session started")

	if err := s.emit(ctx, StatusEvent{Phase: PhaseSearching, Message: fmt.Sprintf("Searching for %ss...", counterpart)}); err != nil {
		return nil, err
	}

	candidates, err := source(ctx)
	if err != nil {
		return nil, s.fail(ctx, fmt.Errorf("%w: listing candidates: %v", ErrInternal, err))
	}
	if len(candidates) == 0 {
		return s.complete(ctx, nil, fmt.Sprintf("No %ss are available yet, please check back once more join the platform.", counterpart))
	}

	if err := s.emit(ctx, StatusEvent{
		Phase:   PhaseScoring,
		Message: fmt.Sprintf("Found %d %ss, scoring relevance...", len(candidates), counterpart),
		Count:   len(candidates),
	}); err != nil {
		return nil, err
	}

	fcfg := &filtering.Config{Counterpart: counterpart, Exclude: s.cfg.Exclude, ExcludeFile: s.cfg.ExcludeFile, ShortlistSize: s.cfg.ShortlistSize}
	shortlist, err := filtering.Run(ctx, fcfg, filtering.Deps{
		Logger:      s.logger,
		Scorer:      s.scorer,
		Statement:   s.req.Statement,
		SubmitterID: s.req.SubmitterID,
	}, filtering.Default(fcfg), filtering.NewPool(candidates))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, s.fail(ctx, fmt.Errorf("%w: filtering candidates: %v", ErrInternal, err))
	}
	if shortlist.Len() == 0 {
		return s.complete(ctx, nil, fmt.Sprintf("No suitable %ss found for this statement.", counterpart))
	}

	if err := s.emit(ctx, StatusEvent{
		Phase:   PhaseShortlisted,
		Message: fmt.Sprintf("Shortlisted %d most relevant %ss, starting agent conversations...", shortlist.Len(), counterpart),
		Count:   shortlist.Len(),
	}); err != nil {
		return nil, err
	}

	records := make([]Record, 0, shortlist.Len())
	for i, entry := range shortlist {
		rec, err := s.converse(ctx, i+1, shortlist.Len(), entry)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return s.complete(ctx, records, "")
}

func (s *session) converse(ctx context.Context, index, total int, entry filtering.Entry) (Record, error) {
	cand := entry.Candidate
	log := s.logger.With(zap.String(logger.FieldCandidate, cand.ID))

	start := CandidateStartEvent{
		CandidateIndex:  index,
		TotalCandidates: total,
		CandidateID:     cand.ID,
		CandidateName:   cand.DisplayName,
		CandidateOrg:    cand.OrgLabel,
		Avatar:          cand.Avatar,
	}
	if err := s.emit(ctx, start); err != nil {
		return Record{}, err
	}

	round := 0
	transcript, err := s.orchestrator.Run(ctx, conversation.Session{
		Credential: s.req.Credential,
		Self:       s.req.self(),
		Other:      conversation.Party{Role: cand.Role, Name: cand.DisplayName, Statement: cand.Statement},
	}, conversation.Hooks{
		RoundStarted: func(r int) error {
			round = r
			return s.emit(ctx, RoundStartEvent{Round: r, TotalRounds: s.orchestrator.Rounds(), CandidateIndex: index})
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
		StateChanged: func(state conversation.State, r int) error {
			log.Debug("conversation state", zap.Stringer("state", state), zap.Int("round", r))
			return nil
		},
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, errSinkClosed) {
			return Record{}, err
		}
		return Record{}, s.fail(ctx, fmt.Errorf("%w: conversation with %s: %v", ErrInternal, cand.ID, err))
	}

	if err := s.checkTranscript(transcript); err != nil {
		return Record{}, s.fail(ctx, fmt.Errorf("%w: conversation with %s: %v", ErrInternal, cand.ID, err))
	}

	verdict := s.evaluator.Evaluate(transcript, cand.Role.Speaker())
	rec := newRecord(cand, entry.Relevance, transcript, verdict)

	log.Info("candidate evaluated",
		zap.Bool("matched", rec.Matched),
		zap.Int("score", rec.Score),
		zap.Int("relevance", rec.Relevance),
		zap.Int("positive_signals", verdict.Signals.Positive),
		zap.Int("negative_signals", verdict.Signals.Negative),
	)

	if err := s.emit(ctx, CandidateCompleteEvent{
		CandidateIndex: index,
		CandidateID:    cand.ID,
		Matched:        rec.Matched,
		Score:          rec.Score,
	}); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *session) checkTranscript(t *conversation.Transcript) error {
	if t.Len() != 2*s.orchestrator.Rounds() {
		return fmt.Errorf("expected %d turns, got %d", 2*s.orchestrator.Rounds(), t.Len())
	}
	return t.Validate(s.req.Role.Speaker())
}

func (s *session) complete(ctx context.Context, records []Record, message string) (*Result, error) {
	res := &Result{
		SessionID:    s.id,
		Role:         s.req.Role,
		Name:         s.req.Name,
		Statement:    s.req.Statement,
		Matches:      Rank(records, s.cfg.ResultLimit),
		TotalMatched: CountMatched(records),
		Message:      message,
		CreatedAt:    s.now(),
	}

	if err := s.emit(ctx, CompleteEvent{
		SessionID:    res.SessionID,
		Matches:      res.Matches,
		TotalMatched: res.TotalMatched,
		Message:      res.Message,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("matching session completed",
		zap.Int("candidates", len(records)),
		zap.Int("matched", res.TotalMatched),
	)
	return res, nil
}

// errSinkClosed wraps sink failures so they are not reported as internal faults.
var errSinkClosed = errors.New("event sink closed")

func (s *session) emit(ctx context.Context, ev Event) error {
	if err := s.sink.Emit(ctx, ev); err != nil {
		s.logger.Debug("event sink rejected event", zap.String("event", string(ev.Type())), zap.Error(err))
		return fmt.Errorf("%w: %w", errSinkClosed, err)
	}
	return nil
}

// fail emits the terminal error event and returns err. Nothing is emitted
// once the caller's context is done.
func (s *session) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}

	level := s.logger.Error
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrMissingCredential) {
		level = s.logger.Warn
	}
	level("matching session failed", zap.Error(err))

	msg := "Matching failed, please try again later."
	if !errors.Is(err, ErrInternal) {
		msg = err.Error()
	}
	if emitErr := s.emit(ctx, ErrorEvent{Code: Code(err), Message: msg}); emitErr != nil {
		s.logger.Debug("could not deliver error event", zap.Error(emitErr))
	}
	return err
}

// IsClientGone reports whether err means the event consumer went away rather
// than the session failing.
func IsClientGone(err error) bool {
	return errors.Is(err, errSinkClosed) || errors.Is(err, context.Canceled)
}
