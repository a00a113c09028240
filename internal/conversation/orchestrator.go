package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Responder produces one agent reply. Implementations never fail: any
// failure is reported as an empty reply.
type Responder interface {
	Respond(ctx context.Context, credential, prompt string) string
}

// ResponderFunc adapts a plain function to Responder.
type ResponderFunc func(ctx context.Context, credential, prompt string) string

func (f ResponderFunc) Respond(ctx context.Context, credential, prompt string) string {
	return f(ctx, credential, prompt)
}

// Hooks observe the conversation as it unfolds. A non-nil error aborts it.
type Hooks struct {
	RoundStarted func(round int) error
	TurnProduced func(turn Turn) error
	StateChanged func(state State, round int) error
}

func (h Hooks) roundStarted(round int) error {
	if h.RoundStarted == nil {
		return nil
	}
	return h.RoundStarted(round)
}

func (h Hooks) stateChanged(state State, round int) error {
	if h.StateChanged == nil {
		return nil
	}
	return h.StateChanged(state, round)
}

func (h Hooks) turnProduced(turn Turn) error {
	if h.TurnProduced == nil {
		return nil
	}
	return h.TurnProduced(turn)
}

// Session is one pairing: the submitter's agent speaks first in every round.
type Session struct {
	Credential string
	Self       Party
	Other      Party
}

func (s Session) validate() error {
	if !s.Self.Role.Valid() || !s.Other.Role.Valid() {
		return fmt.Errorf("session roles must be founder or investor")
	}
	if s.Self.Role == s.Other.Role {
		return fmt.Errorf("session needs one founder and one investor, got two %s parties", s.Self.Role)
	}
	if strings.TrimSpace(s.Self.Statement) == "" {
		return ErrEmptyStatement
	}
	return nil
}

// ErrEmptyStatement is returned when the submitter's statement is blank.
var ErrEmptyStatement = errors.New("statement is empty")

// ErrRoundLimit is returned when a continuation would exceed MaxRounds.
var ErrRoundLimit = fmt.Errorf("conversation is limited to %d rounds", MaxRounds)

// State is the orchestrator progress for one session.
type State int

const (
	StateNotStarted State = iota
	StateInRound
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInRound:
		return "in_round"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// TurnSpacing is the simulated gap between consecutive turns.
const TurnSpacing = 3 * time.Minute

const defaultHistoryWindow = 4

// Config tunes the orchestrator.
type Config struct {
	Rounds        int
	HistoryWindow int
	Fallbacks     map[Role]string
}

// DefaultFallbacks are used when an agent produces no reply.
var DefaultFallbacks = map[Role]string{
	RoleFounder:  "Thanks for your interest, looking forward to the chance to talk further.",
	RoleInvestor: "Thanks for sharing, I need to reconsider this.",
}

// Orchestrator runs fixed-length conversations between two agents.
type Orchestrator struct {
	responder Responder
	books     map[Role]PromptBook
	cfg       Config
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Orchestrator)

// WithClock overrides the time source used to stamp turns.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPromptBook replaces the prompt book for a role.
func WithPromptBook(role Role, book PromptBook) Option {
	return func(o *Orchestrator) { o.books[role] = book }
}

func NewOrchestrator(responder Responder, cfg Config, opts ...Option) *Orchestrator {
	cfg.Rounds = ClampRounds(cfg.Rounds)
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = defaultHistoryWindow
	}
	fallbacks := make(map[Role]string, 2)
	for role, text := range DefaultFallbacks {
		fallbacks[role] = text
	}
	for role, text := range cfg.Fallbacks {
		if strings.TrimSpace(text) != "" {
			fallbacks[role] = text
		}
	}
	cfg.Fallbacks = fallbacks

	o := &Orchestrator{
		responder: responder,
		books: map[Role]PromptBook{
			RoleFounder:  BookFor(RoleFounder),
			RoleInvestor: BookFor(RoleInvestor),
		},
		cfg:    cfg,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Rounds reports the configured conversation length.
func (o *Orchestrator) Rounds() int { return o.cfg.Rounds }

// run tracks one conversation through its states.
type run struct {
	state      State
	round      int
	lastRound  int
	cursor     time.Time
	transcript *Transcript
}

// Run holds a complete conversation of the configured length. On success the
// transcript has exactly 2*Rounds turns alternating Self, Other.
func (o *Orchestrator) Run(ctx context.Context, s Session, hooks Hooks) (*Transcript, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	r := &run{
		state:      StateNotStarted,
		lastRound:  o.cfg.Rounds,
		cursor:     o.now(),
		transcript: &Transcript{},
	}
	if err := o.drive(ctx, s, r, Plan(1, o.cfg.Rounds), hooks); err != nil {
		return nil, err
	}
	return r.transcript, nil
}

// Extend continues a finished conversation by extra rounds, up to MaxRounds in
// total. The returned transcript is a new value; prior is left untouched.
func (o *Orchestrator) Extend(ctx context.Context, s Session, prior *Transcript, extra int, hooks Hooks) (*Transcript, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if err := prior.Validate(s.Self.Role.Speaker()); err != nil {
		return nil, fmt.Errorf("prior transcript: %w", err)
	}
	if extra <= 0 {
		extra = 1
	}
	done := prior.Rounds()
	if done+extra > MaxRounds {
		return nil, ErrRoundLimit
	}

	last, _ := prior.Last()
	r := &run{
		state:      StateNotStarted,
		round:      done,
		lastRound:  done + extra,
		cursor:     last.EmittedAt.Add(TurnSpacing),
		transcript: prior.Clone(),
	}
	if err := o.drive(ctx, s, r, Plan(done+1, done+extra), hooks); err != nil {
		return nil, err
	}
	return r.transcript, nil
}

func (o *Orchestrator) drive(ctx context.Context, s Session, r *run, plan []RoundSpec, hooks Hooks) error {
	for _, spec := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.round = spec.Round
		if err := r.enter(StateInRound, hooks); err != nil {
			return err
		}
		if err := hooks.roundStarted(spec.Round); err != nil {
			return err
		}

		for _, speaker := range []Party{s.Self, s.Other} {
			if err := ctx.Err(); err != nil {
				return err
			}
			listener := s.Other
			if speaker.Role == s.Other.Role {
				listener = s.Self
			}

			prompt := o.compose(speaker, listener, spec, r)
			reply := sanitizeReply(o.responder.Respond(ctx, s.Credential, prompt))
			if err := ctx.Err(); err != nil {
				return err
			}
			if reply == "" {
				o.logger.Debug("agent reply empty, using fallback",
					zap.String("speaker", string(speaker.Role.Speaker())),
					zap.Int("round", spec.Round),
				)
				reply = o.cfg.Fallbacks[speaker.Role]
			}

			turn := r.transcript.append(speaker.Role.Speaker(), reply, r.cursor)
			r.cursor = r.cursor.Add(TurnSpacing)
			if err := hooks.turnProduced(turn); err != nil {
				return err
			}
		}
	}
	return r.enter(StateDone, hooks)
}

// enter moves the run to state and reports the transition. A finished run
// cannot be re-entered.
func (r *run) enter(state State, hooks Hooks) error {
	if r.state == StateDone {
		return fmt.Errorf("conversation is %s, cannot move to %s", r.state, state)
	}
	r.state = state
	return hooks.stateChanged(state, r.round)
}

func (o *Orchestrator) compose(self, other Party, spec RoundSpec, r *run) string {
	turns := r.transcript.Turns
	var last string
	if n := len(turns); n > 0 && turns[n-1].Role == other.Role.Speaker() {
		last = turns[n-1].Content
		turns = turns[:n-1]
	}
	history := (&Transcript{Turns: turns}).Tail(o.cfg.HistoryWindow)

	book := o.books[self.Role]
	return book.Compose(spec.Stage, PromptInput{
		Self:        self,
		Other:       other,
		Round:       spec.Round,
		TotalRounds: r.lastRound,
		Topic:       spec.Topic,
		History:     history,
		LastMessage: last,
	})
}
