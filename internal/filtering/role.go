package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
)

type counterpartRoleFilter struct {
	toggle
	role conversation.Role
}

// NewCounterpartRole creates a filter that keeps only candidates of the given
// role. Candidates without a role are assumed to hold it.
func NewCounterpartRole(role conversation.Role) Filter {
	return &counterpartRoleFilter{role: role}
}

func (f *counterpartRoleFilter) Name() string { return "role" }

func (f *counterpartRoleFilter) Validate(*Config) error {
	if !f.role.Valid() {
		return fmt.Errorf("unsupported counterpart role %q", f.role)
	}
	return nil
}

func (f *counterpartRoleFilter) Apply(_ context.Context, deps Deps, p Pool) (Pool, Step, error) {
	initial := p.Len()
	kept := make(Pool, 0, len(p))
	var dropped []string
	for _, e := range p {
		switch e.Candidate.Role {
		case f.role:
		case "":
			e.Candidate.Role = f.role
		default:
			dropped = append(dropped, e.Candidate.ID)
			continue
		}
		kept = append(kept, e)
	}

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Debug("excluding candidates of another role",
			zap.String("role", string(f.role)),
			zap.Strings("candidates", dropped),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: kept.Len()}, nil
}

func (f *counterpartRoleFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"role": string(f.role)},
	}
}
