package matching

import (
	"encoding/json"
	"os"
	"slices"
	"time"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/directory"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/evaluation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/utils"
)

// DefaultResultLimit caps the ranked list returned to the caller.
const DefaultResultLimit = 10

// Record is the outcome for one candidate.
type Record struct {
	CandidateID  string              `json:"id"`
	DisplayName  string              `json:"name"`
	OrgLabel     string              `json:"org"`
	Avatar       string              `json:"avatar"`
	Score        int                 `json:"score"`
	Highlights   []string            `json:"highlights"`
	Risks        []string            `json:"risks"`
	RoundCount   int                 `json:"chatRounds"`
	Transcript   []conversation.Turn `json:"conversation"`
	Matched      bool                `json:"matched"`
	ContactRoute string              `json:"route,omitempty"`
	Relevance    int                 `json:"relevance"`
	Signals      evaluation.Signals  `json:"signals"`
}

func newRecord(c directory.Candidate, relevance int, t *conversation.Transcript, res evaluation.Result) Record {
	avatar := c.Avatar
	if avatar == "" {
		avatar = utils.Initials(c.DisplayName)
	}
	r := Record{
		CandidateID: c.ID,
		DisplayName: c.DisplayName,
		OrgLabel:    c.OrgLabel,
		Avatar:      avatar,
		Score:       res.Score,
		Highlights:  res.Highlights,
		Risks:       res.Risks,
		RoundCount:  t.Rounds(),
		Transcript:  t.Turns,
		Matched:     res.Matched,
		Relevance:   relevance,
		Signals:     res.Signals,
	}
	if res.Matched {
		r.ContactRoute = c.ContactRoute
	}
	return r
}

// Conversation rebuilds the transcript carried by the record.
func (r Record) Conversation() *conversation.Transcript {
	turns := make([]conversation.Turn, len(r.Transcript))
	copy(turns, r.Transcript)
	return &conversation.Transcript{Turns: turns}
}

// Rank orders records matched first, then by score, keeping the input order
// for ties, and truncates to limit when limit > 0. The input is not modified.
func Rank(records []Record, limit int) []Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b Record) int {
		if a.Matched != b.Matched {
			if a.Matched {
				return -1
			}
			return 1
		}
		return b.Score - a.Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Record{}
	}
	return out
}

// CountMatched returns how many records are matched.
func CountMatched(records []Record) int {
	n := 0
	for _, r := range records {
		if r.Matched {
			n++
		}
	}
	return n
}

// Result is the final outcome of a session.
type Result struct {
	SessionID    string            `json:"sessionId"`
	Role         conversation.Role `json:"role"`
	Name         string            `json:"name,omitempty"`
	Statement    string            `json:"statement"`
	Matches      []Record          `json:"matches"`
	TotalMatched int               `json:"totalMatched"`
	Message      string            `json:"message,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Find returns the record for a candidate.
func (r *Result) Find(candidateID string) (Record, bool) {
	for _, m := range r.Matches {
		if m.CandidateID == candidateID {
			return m, true
		}
	}
	return Record{}, false
}

// Replace swaps in an updated record and re-ranks the list. TotalMatched
// also counts records cut by the result limit, so it is adjusted by the
// change in the replaced record rather than recounted.
func (r *Result) Replace(rec Record) {
	for i := range r.Matches {
		if r.Matches[i].CandidateID != rec.CandidateID {
			continue
		}
		switch {
		case rec.Matched && !r.Matches[i].Matched:
			r.TotalMatched++
		case !rec.Matched && r.Matches[i].Matched:
			r.TotalMatched--
		}
		r.Matches[i] = rec
	}
	r.Matches = Rank(r.Matches, 0)
}

// DumpToTmpFile writes the result as indented JSON to a new temp file and
// returns its name.
func (r *Result) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "pitchmatch_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}
