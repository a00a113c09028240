// Package relevance provides the cheap pre-filter that ranks candidates
// before any agent is consulted.
package relevance

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	baseScore    = 50
	pairWeight   = 10
	maxPairBonus = 40
	noiseSpan    = 10
)

// Noise supplies the tie-breaking perturbation.
type Noise interface {
	IntN(n int) int
}

// Scorer compares two statements. It is safe for concurrent use.
type Scorer struct {
	mu    sync.Mutex
	noise Noise
}

// NewScorer uses the given noise source. A nil source gets a time-seeded
// generator.
func NewScorer(noise Noise) *Scorer {
	if noise == nil {
		seed := uint64(time.Now().UnixNano())
		noise = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Scorer{noise: noise}
}

// Score returns 50 + min(10*pairs, 40) + noise in [0, 9].
func (s *Scorer) Score(a, b string) int {
	score := BaseScore(PairCount(Tokenize(a), Tokenize(b)))

	s.mu.Lock()
	n := s.noise.IntN(noiseSpan)
	s.mu.Unlock()

	if n < 0 || n >= noiseSpan {
		n = 0
	}
	return score + n
}

// BaseScore is the deterministic part of Score.
func BaseScore(pairs int) int {
	bonus := pairs * pairWeight
	if bonus > maxPairBonus {
		bonus = maxPairBonus
	}
	return baseScore + bonus
}

// Tokenize lowercases s, splits on whitespace, punctuation and symbols,
// drops single-rune tokens and removes duplicates keeping first-seen order.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= 1 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// PairCount counts token pairs across both sets where one token contains the
// other.
func PairCount(a, b []string) int {
	count := 0
	for _, x := range a {
		for _, y := range b {
			if strings.Contains(x, y) || strings.Contains(y, x) {
				count++
			}
		}
	}
	return count
}
