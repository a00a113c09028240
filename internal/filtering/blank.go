package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

type blankStatementFilter struct {
	toggle
}

// NewBlankStatement creates a filter that removes candidates without a profile statement.
func NewBlankStatement() Filter {
	return &blankStatementFilter{}
}

func (f *blankStatementFilter) Name() string { return "blank_statement" }

func (f *blankStatementFilter) Validate(*Config) error { return nil }

func (f *blankStatementFilter) Apply(_ context.Context, deps Deps, p Pool) (Pool, Step, error) {
	initial := p.Len()
	kept := make(Pool, 0, len(p))
	var dropped []string
	for _, e := range p {
		if strings.TrimSpace(e.Candidate.Statement) == "" {
			dropped = append(dropped, e.Candidate.ID)
			continue
		}
		kept = append(kept, e)
	}

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Debug("excluding candidates without a statement", zap.Strings("candidates", dropped))
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: kept.Len()}, nil
}
