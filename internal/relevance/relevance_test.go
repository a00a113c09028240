package relevance

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedNoise int

func (f fixedNoise) IntN(int) int { return int(f) }

func TestTokenize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{name: "punctuation and case", in: "AI-driven, Recruiting assistant!", want: []string{"ai", "driven", "recruiting", "assistant"}},
		{name: "drops single runes", in: "a b c AI x", want: []string{"ai"}},
		{name: "dedupes", in: "saas SaaS saas", want: []string{"saas"}},
		{name: "cjk punctuation", in: "人工智能，企业服务。", want: []string{"人工智能", "企业服务"}},
		{name: "empty", in: "   ", want: []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Tokenize(tc.in))
		})
	}
}

func TestPairCount(t *testing.T) {
	a := Tokenize("AI-driven recruiting assistant for enterprises")
	b := Tokenize("early-stage AI and enterprise-software investments")
	// ai~ai, enterprises~enterprise
	assert.Equal(t, 2, PairCount(a, b))
	assert.Equal(t, 0, PairCount(nil, b))
}

func TestBaseScore(t *testing.T) {
	assert.Equal(t, 50, BaseScore(0))
	assert.Equal(t, 70, BaseScore(2))
	assert.Equal(t, 90, BaseScore(4))
	assert.Equal(t, 90, BaseScore(11))
}

func TestScorerScore(t *testing.T) {
	s := NewScorer(fixedNoise(0))
	assert.Equal(t, 70, s.Score("AI-driven recruiting assistant for enterprises", "early-stage AI and enterprise-software investments"))
	assert.Equal(t, 50, s.Score("", ""))

	noisy := NewScorer(fixedNoise(7))
	assert.Equal(t, 57, noisy.Score("", ""))

	broken := NewScorer(fixedNoise(42))
	assert.Equal(t, 50, broken.Score("", ""))
}

func TestScorerNoiseStaysInRange(t *testing.T) {
	s := NewScorer(rand.New(rand.NewPCG(1, 2)))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got := s.Score("fintech", "fintech")
				assert.GreaterOrEqual(t, got, 60)
				assert.LessOrEqual(t, got, 69)
			}
		}()
	}
	wg.Wait()
}
