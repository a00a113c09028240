// Package directory holds the candidate profiles a submitter is matched against.
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/utils"
)

// Candidate is a potential counterpart.
type Candidate struct {
	ID           string            `json:"id" mapstructure:"id"`
	Role         conversation.Role `json:"role" mapstructure:"role"`
	DisplayName  string            `json:"name" mapstructure:"name"`
	OrgLabel     string            `json:"org" mapstructure:"org"`
	Statement    string            `json:"statement" mapstructure:"statement"`
	ContactRoute string            `json:"route,omitempty" mapstructure:"route"`
	Avatar       string            `json:"avatar,omitempty" mapstructure:"avatar"`
	UpdatedAt    time.Time         `json:"updatedAt,omitzero" mapstructure:"-"`
}

// Normalize trims fields and derives the avatar from the display name.
func (c *Candidate) Normalize() {
	c.ID = strings.TrimSpace(c.ID)
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	c.OrgLabel = strings.TrimSpace(c.OrgLabel)
	c.Statement = strings.TrimSpace(c.Statement)
	c.ContactRoute = strings.TrimSpace(c.ContactRoute)
	if strings.TrimSpace(c.Avatar) == "" {
		c.Avatar = utils.Initials(c.DisplayName)
	}
	if c.OrgLabel == "" {
		c.OrgLabel = defaultOrgLabel(c.Role, c.Statement)
	}
}

// orgLabelRunes is how much of a founder statement stands in for a missing
// organisation label.
const orgLabelRunes = 30

func defaultOrgLabel(role conversation.Role, statement string) string {
	switch role {
	case conversation.RoleInvestor:
		return "Investor"
	case conversation.RoleFounder:
		runes := []rune(statement)
		if len(runes) > orgLabelRunes {
			return string(runes[:orgLabelRunes]) + "..."
		}
		return statement
	}
	return ""
}

// Validate reports the first missing required field.
func (c Candidate) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("candidate id is required")
	}
	if !c.Role.Valid() {
		return fmt.Errorf("candidate %s: role must be %q or %q", c.ID, conversation.RoleFounder, conversation.RoleInvestor)
	}
	if c.DisplayName == "" {
		return fmt.Errorf("candidate %s: name is required", c.ID)
	}
	return nil
}

// Directory lists candidates of a role.
type Directory interface {
	Candidates(ctx context.Context, role conversation.Role) ([]Candidate, error)
}

// Static is an in-memory Directory. Candidates come back in the order they
// were first put.
type Static struct {
	mu    sync.RWMutex
	items []Candidate
}

func NewStatic(items ...Candidate) *Static {
	s := &Static{}
	for _, c := range items {
		s.Put(c)
	}
	return s
}

// Put inserts or replaces a candidate by id.
func (s *Static) Put(c Candidate) {
	c.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == c.ID {
			s.items[i] = c
			return
		}
	}
	s.items = append(s.items, c)
}

func (s *Static) Candidates(ctx context.Context, role conversation.Role) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Candidate, 0, len(s.items))
	for _, c := range s.items {
		if c.Role == role {
			out = append(out, c)
		}
	}
	return out, nil
}
