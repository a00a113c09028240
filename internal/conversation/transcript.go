package conversation

import (
	"fmt"
	"time"
)

// Turn is one reply produced by an agent.
type Turn struct {
	Role      Speaker   `json:"role"`
	Content   string    `json:"content"`
	Sequence  int       `json:"sequence"`
	EmittedAt time.Time `json:"timestamp"`
}

// Transcript is the ordered, append-only record of one conversation.
type Transcript struct {
	Turns []Turn `json:"turns"`
}

func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Turns)
}

// Rounds returns the number of completed rounds.
func (t *Transcript) Rounds() int {
	return t.Len() / 2
}

// LastBy returns the most recent turn authored by the speaker.
func (t *Transcript) LastBy(s Speaker) (Turn, bool) {
	if t == nil {
		return Turn{}, false
	}
	for i := len(t.Turns) - 1; i >= 0; i-- {
		if t.Turns[i].Role == s {
			return t.Turns[i], true
		}
	}
	return Turn{}, false
}

// Last returns the most recent turn.
func (t *Transcript) Last() (Turn, bool) {
	if t.Len() == 0 {
		return Turn{}, false
	}
	return t.Turns[len(t.Turns)-1], true
}

// Tail returns up to n trailing turns.
func (t *Transcript) Tail(n int) []Turn {
	if t == nil || n <= 0 {
		return nil
	}
	if n >= len(t.Turns) {
		return t.Turns
	}
	return t.Turns[len(t.Turns)-n:]
}

// Clone returns a deep copy safe to hand to other goroutines.
func (t *Transcript) Clone() *Transcript {
	if t == nil {
		return &Transcript{}
	}
	turns := make([]Turn, len(t.Turns))
	copy(turns, t.Turns)
	return &Transcript{Turns: turns}
}

func (t *Transcript) append(s Speaker, content string, at time.Time) Turn {
	turn := Turn{Role: s, Content: content, Sequence: len(t.Turns), EmittedAt: at}
	t.Turns = append(t.Turns, turn)
	return turn
}

// Validate checks the structural invariants: whole rounds, sequential indexes
// and strict alternation starting with first.
func (t *Transcript) Validate(first Speaker) error {
	if t.Len() == 0 {
		return fmt.Errorf("transcript is empty")
	}
	if t.Len()%2 != 0 {
		return fmt.Errorf("transcript has %d turns, expected whole rounds", t.Len())
	}

	second := first.Role().Counterpart().Speaker()
	for i, turn := range t.Turns {
		want := first
		if i%2 == 1 {
			want = second
		}
		if turn.Role != want {
			return fmt.Errorf("turn %d: expected %s, got %s", i, want, turn.Role)
		}
		if turn.Sequence != i {
			return fmt.Errorf("turn %d: unexpected sequence index %d", i, turn.Sequence)
		}
	}
	return nil
}
