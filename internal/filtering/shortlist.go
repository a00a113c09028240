package filtering

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"go.uber.org/zap"
)

// DefaultShortlistSize bounds the number of candidates that reach the agents.
const DefaultShortlistSize = 3

type shortlistFilter struct {
	toggle
	size int
}

// NewShortlist creates a filter that scores every candidate against the
// submitter's statement and keeps the top size entries. Equal scores keep
// their directory order.
func NewShortlist(size int) Filter {
	if size <= 0 {
		size = DefaultShortlistSize
	}
	return &shortlistFilter{size: size}
}

func (f *shortlistFilter) Name() string { return "shortlist" }

func (f *shortlistFilter) Validate(*Config) error {
	if f.size <= 0 {
		return fmt.Errorf("shortlist size must be positive")
	}
	return nil
}

func (f *shortlistFilter) Apply(ctx context.Context, deps Deps, p Pool) (Pool, Step, error) {
	if deps.Scorer == nil {
		return nil, Step{}, fmt.Errorf("relevance scorer is not configured")
	}
	initial := p.Len()

	scored := make(Pool, 0, len(p))
	for _, e := range p {
		if err := ctx.Err(); err != nil {
			return nil, Step{}, err
		}
		e.Relevance = deps.Scorer.Score(deps.Statement, e.Candidate.Statement)
		scored = append(scored, e)
	}

	slices.SortStableFunc(scored, func(a, b Entry) int {
		return b.Relevance - a.Relevance
	})
	if len(scored) > f.size {
		scored = scored[:f.size]
	}

	if deps.Logger != nil {
		for _, e := range scored {
			deps.Logger.Debug("shortlisted candidate",
				zap.String("candidate_id", e.Candidate.ID),
				zap.Int("relevance", e.Relevance),
			)
		}
	}

	return scored, Step{Initial: initial, Dropped: initial - scored.Len(), Left: scored.Len()}, nil
}

func (f *shortlistFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"size": strconv.Itoa(f.size)},
	}
}
