package conversation

// Stage is the behaviour an agent is asked to perform in a round.
type Stage int

const (
	// StageOpening introduces the party and solicits the other side's preferences.
	StageOpening Stage = iota
	// StageProbing follows up on one business topic.
	StageProbing
	// StageClosing summarises and states willingness to proceed.
	StageClosing
)

func (s Stage) String() string {
	switch s {
	case StageOpening:
		return "opening"
	case StageProbing:
		return "probing"
	case StageClosing:
		return "closing"
	default:
		return "unknown"
	}
}

const (
	// DefaultRounds is the length of a matching conversation.
	DefaultRounds = 3
	// MaxRounds caps a conversation including continuations.
	MaxRounds = 5
)

// Topics steer probing rounds. Rounds past the end reuse the last topic.
var Topics = []string{
	"customer acquisition and retention data",
	"technical moat",
	"business model",
	"team and fundraising plan",
	"next steps",
}

// RoundSpec describes what both agents should do in one round.
type RoundSpec struct {
	Round int
	Stage Stage
	Topic string
}

// Plan lays out rounds first..last (1-based, inclusive) of a conversation whose
// final round is last. The first round of a fresh conversation opens, the final
// round closes and everything between probes a topic.
func Plan(first, last int) []RoundSpec {
	if first < 1 {
		first = 1
	}
	specs := make([]RoundSpec, 0, last-first+1)
	for round := first; round <= last; round++ {
		spec := RoundSpec{Round: round, Stage: StageProbing, Topic: TopicFor(round)}
		switch {
		case round == last:
			spec.Stage = StageClosing
		case round == 1:
			spec.Stage = StageOpening
		}
		specs = append(specs, spec)
	}
	return specs
}

// TopicFor returns the topic for a round; round 2 is the first probing round.
func TopicFor(round int) string {
	idx := round - 2
	if idx < 0 {
		idx = 0
	}
	if idx >= len(Topics) {
		idx = len(Topics) - 1
	}
	return Topics[idx]
}

// ClampRounds keeps a requested round count within [1, MaxRounds].
func ClampRounds(n int) int {
	if n <= 0 {
		return DefaultRounds
	}
	if n > MaxRounds {
		return MaxRounds
	}
	return n
}
