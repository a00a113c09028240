// Package evaluation turns a finished transcript into a match verdict.
package evaluation

import (
	"strings"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
)

const (
	baseScore   = 70
	signalStep  = 5
	minScore    = 50
	maxScore    = 95
	strongLevel = 2

	maxHighlights = 4
	maxRisks      = 2
)

const (
	HighlightMutualInterest = "Agent dialogue went smoothly with mutual interest"
	HighlightStrongInterest = "Counterpart showed strong interest"
	RiskDirection           = "Investment direction may differ"
)

// Lexicon lists the phrases that signal interest or hesitation. Matching is
// case-sensitive substring containment and each phrase counts at most once.
type Lexicon struct {
	Positive []string `mapstructure:"positive"`
	Negative []string `mapstructure:"negative"`
}

// DefaultLexicon covers Chinese and English replies.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Positive: []string{
			"兴趣", "交流", "沟通", "合作", "不错", "看好", "有潜力", "期待", "安排", "详谈",
			"interest", "talk further", "follow up", "collaborat", "not bad", "optimistic",
			"potential", "looking forward", "arrange", "detailed discussion",
		},
		Negative: []string{
			"不太", "暂时", "考虑", "再看", "不匹配", "方向不同",
			"not quite", "temporarily", "reconsider", "look again", "mismatch", "different direction",
		},
	}
}

// Signals holds the raw lexicon hit counts behind a verdict.
type Signals struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// Result is the verdict for one transcript.
type Result struct {
	Matched    bool     `json:"matched"`
	Score      int      `json:"score"`
	Highlights []string `json:"highlights"`
	Risks      []string `json:"risks"`
	Signals    Signals  `json:"signals"`
}

// Evaluator scores transcripts against a lexicon. It is stateless and safe for
// concurrent use.
type Evaluator struct {
	lexicon Lexicon
}

// New builds an evaluator. An empty list in lexicon falls back to the
// matching DefaultLexicon list.
func New(lexicon Lexicon) *Evaluator {
	def := DefaultLexicon()
	if len(lexicon.Positive) == 0 {
		lexicon.Positive = def.Positive
	}
	if len(lexicon.Negative) == 0 {
		lexicon.Negative = def.Negative
	}
	return &Evaluator{lexicon: lexicon}
}

// Evaluate scores the last turn of the evaluated speaker. A transcript with no
// such turn scores as neutral text.
func (e *Evaluator) Evaluate(t *conversation.Transcript, evaluated conversation.Speaker) Result {
	var text string
	if turn, ok := t.LastBy(evaluated); ok {
		text = turn.Content
	}
	return e.EvaluateText(text)
}

// EvaluateText scores a single reply.
func (e *Evaluator) EvaluateText(text string) Result {
	signals := Signals{
		Positive: countHits(text, e.lexicon.Positive),
		Negative: countHits(text, e.lexicon.Negative),
	}

	matched := signals.Positive > signals.Negative
	res := Result{
		Matched:    matched,
		Score:      clamp(baseScore+(signals.Positive-signals.Negative)*signalStep, minScore, maxScore),
		Highlights: []string{},
		Risks:      []string{},
		Signals:    signals,
	}

	if matched {
		res.Highlights = append(res.Highlights, HighlightMutualInterest)
	}
	if signals.Positive >= strongLevel {
		res.Highlights = append(res.Highlights, HighlightStrongInterest)
	}
	if !matched {
		res.Risks = append(res.Risks, RiskDirection)
	}

	if len(res.Highlights) > maxHighlights {
		res.Highlights = res.Highlights[:maxHighlights]
	}
	if len(res.Risks) > maxRisks {
		res.Risks = res.Risks[:maxRisks]
	}
	return res
}

func countHits(text string, phrases []string) int {
	count := 0
	seen := make(map[string]struct{}, len(phrases))
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if _, dup := seen[phrase]; dup {
			continue
		}
		seen[phrase] = struct{}{}
		if strings.Contains(text, phrase) {
			count++
		}
	}
	return count
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
