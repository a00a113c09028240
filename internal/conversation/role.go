// Package conversation drives the simulated founder/investor dialogue.
package conversation

import (
	"fmt"
	"strings"
)

// Role identifies the kind of party submitting a profile statement.
type Role string

const (
	RoleFounder  Role = "founder"
	RoleInvestor Role = "investor"
)

// ParseRole accepts the role names used by the API and CLI.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleFounder:
		return RoleFounder, nil
	case RoleInvestor:
		return RoleInvestor, nil
	default:
		return "", fmt.Errorf("unknown role %q: expected %q or %q", s, RoleFounder, RoleInvestor)
	}
}

func (r Role) Valid() bool {
	return r == RoleFounder || r == RoleInvestor
}

// Counterpart returns the role on the other side of the table.
func (r Role) Counterpart() Role {
	if r == RoleFounder {
		return RoleInvestor
	}
	return RoleFounder
}

// Speaker returns the agent that speaks on behalf of the role.
func (r Role) Speaker() Speaker {
	if r == RoleFounder {
		return SpeakerFounder
	}
	return SpeakerInvestor
}

// Title is the human label used inside prompts.
func (r Role) Title() string {
	if r == RoleFounder {
		return "Founder"
	}
	return "Investor"
}

func (r Role) String() string { return string(r) }

// Speaker is the author of a single conversation turn.
type Speaker string

const (
	SpeakerFounder  Speaker = "founder-agent"
	SpeakerInvestor Speaker = "investor-agent"
)

// Role returns the party the speaker represents.
func (s Speaker) Role() Role {
	if s == SpeakerFounder {
		return RoleFounder
	}
	return RoleInvestor
}
