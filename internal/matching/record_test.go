package matching

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
)

func TestRankIsStable(t *testing.T) {
	in := []Record{
		{CandidateID: "a", Matched: false, Score: 90},
		{CandidateID: "b", Matched: true, Score: 70},
		{CandidateID: "c", Matched: true, Score: 80},
		{CandidateID: "d", Matched: true, Score: 70},
		{CandidateID: "e", Matched: false, Score: 90},
	}

	got := Rank(in, 0)
	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.CandidateID)
	}
	assert.Equal(t, []string{"c", "b", "d", "a", "e"}, ids)
	assert.Equal(t, "a", in[0].CandidateID, "input must not be reordered")

	assert.Len(t, Rank(in, 2), 2)
	assert.NotNil(t, Rank(nil, 10))
	assert.Equal(t, 3, CountMatched(in))
}

func TestEventJSON(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 3, 0, 0, time.UTC)
	data, err := json.Marshal(MessageEvent{Role: conversation.SpeakerInvestor, Content: "hi", Round: 1, Sequence: 1, CandidateIndex: 2, Timestamp: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","role":"investor-agent","content":"hi","round":1,"sequence":1,"candidateIndex":2,"timestamp":"2025-03-01T09:03:00Z"}`, string(data))

	data, err = json.Marshal(CompleteEvent{SessionID: "s"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"complete","sessionId":"s","matches":[],"totalMatched":0}`, string(data))

	data, err = json.Marshal(ErrorEvent{Code: CodeInvalidInput, Message: "statement is required"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","code":"invalid_input","message":"statement is required"}`, string(data))
}

func TestRecordJSONOmitsRouteUnlessMatched(t *testing.T) {
	data, err := json.Marshal(Record{CandidateID: "x", Highlights: []string{}, Risks: []string{"r"}})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	_, hasRoute := fields["route"]
	assert.False(t, hasRoute)
	assert.Contains(t, fields, "chatRounds")
	assert.Contains(t, fields, "conversation")
}

func TestResultReplace(t *testing.T) {
	res := &Result{Matches: []Record{
		{CandidateID: "a", Matched: true, Score: 80},
		{CandidateID: "b", Matched: false, Score: 60},
	}, TotalMatched: 1}

	res.Replace(Record{CandidateID: "b", Matched: true, Score: 90})
	assert.Equal(t, "b", res.Matches[0].CandidateID)
	assert.Equal(t, 2, res.TotalMatched)

	_, ok := res.Find("missing")
	assert.False(t, ok)
}

func TestResultReplaceKeepsUncappedTotal(t *testing.T) {
	res := &Result{Matches: []Record{
		{CandidateID: "a", Matched: true, Score: 80},
		{CandidateID: "b", Matched: true, Score: 78},
	}, TotalMatched: 12}

	res.Replace(Record{CandidateID: "b", Matched: false, Score: 40})
	assert.Equal(t, 11, res.TotalMatched)

	res.Replace(Record{CandidateID: "b", Matched: true, Score: 85})
	assert.Equal(t, 12, res.TotalMatched)
	assert.Equal(t, "b", res.Matches[0].CandidateID)

	res.Replace(Record{CandidateID: "a", Matched: true, Score: 90})
	assert.Equal(t, 12, res.TotalMatched)
}

func TestTeeStopsAtFirstError(t *testing.T) {
	first, last := &Recorder{}, &Recorder{}
	closed := errors.New("closed")
	sink := Tee(first, SinkFunc(func(context.Context, Event) error { return closed }), last)

	err := sink.Emit(context.Background(), StatusEvent{Phase: PhaseSearching})
	require.ErrorIs(t, err, closed)
	assert.Len(t, first.Events(), 1)
	assert.Empty(t, last.Events())
}

func TestCode(t *testing.T) {
	assert.Equal(t, CodeInvalidInput, Code(ErrInvalidInput))
	assert.Equal(t, CodeUnauthorized, Code(ErrMissingCredential))
	assert.Equal(t, CodeInternal, Code(ErrInternal))
}

func TestDumpToTmpFile(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	res := &Result{SessionID: "s-1", Role: conversation.RoleFounder, Statement: "AI", Matches: []Record{{CandidateID: "a", Score: 80, Matched: true}}}

	name, err := res.DumpToTmpFile()
	require.NoError(t, err)

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	var back Result
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "s-1", back.SessionID)
	require.Len(t, back.Matches, 1)
	assert.Equal(t, 80, back.Matches[0].Score)
}
