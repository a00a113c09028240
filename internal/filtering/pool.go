package filtering

import "github.com/kylin-feng/v0-ai-pitch-with-ai/internal/directory"

// Entry is a candidate with its pre-filter relevance score.
type Entry struct {
	Candidate directory.Candidate
	Relevance int
}

// Pool is an ordered candidate list flowing through the filters.
type Pool []Entry

// NewPool wraps candidates with a zero relevance.
func NewPool(items []directory.Candidate) Pool {
	p := make(Pool, 0, len(items))
	for _, c := range items {
		p = append(p, Entry{Candidate: c})
	}
	return p
}

func (p Pool) Len() int { return len(p) }

// Exclude drops entries whose id is listed and returns the dropped ids.
func (p Pool) Exclude(ids []string) (Pool, []string) {
	if len(ids) == 0 {
		return p, nil
	}
	skip := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		skip[id] = struct{}{}
	}

	kept := make(Pool, 0, len(p))
	var dropped []string
	for _, e := range p {
		if _, ok := skip[e.Candidate.ID]; ok {
			dropped = append(dropped, e.Candidate.ID)
			continue
		}
		kept = append(kept, e)
	}
	return kept, dropped
}
