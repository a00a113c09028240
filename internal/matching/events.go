package matching

import (
	"encoding/json"
	"time"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
)

// EventType is the discriminator written as the "type" field on the wire.
type EventType string

const (
	EventStatus            EventType = "status"
	EventCandidateStart    EventType = "candidate_start"
	EventRoundStart        EventType = "round_start"
	EventMessage           EventType = "message"
	EventCandidateComplete EventType = "candidate_complete"
	EventComplete          EventType = "complete"
	EventError             EventType = "error"
)

// Event is one progress notification. Every session ends with exactly one
// CompleteEvent or ErrorEvent.
type Event interface {
	Type() EventType
}

// Phase names the coarse stage a StatusEvent reports.
type Phase string

const (
	PhaseSearching   Phase = "searching"
	PhaseScoring     Phase = "scoring"
	PhaseShortlisted Phase = "shortlisted"
)

type StatusEvent struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

type CandidateStartEvent struct {
	CandidateIndex  int    `json:"candidateIndex"`
	TotalCandidates int    `json:"totalCandidates"`
	CandidateID     string `json:"candidateId"`
	CandidateName   string `json:"candidateName"`
	CandidateOrg    string `json:"candidateOrg"`
	Avatar          string `json:"avatar"`
}

type RoundStartEvent struct {
	Round          int `json:"round"`
	TotalRounds    int `json:"totalRounds"`
	CandidateIndex int `json:"candidateIndex"`
}

type MessageEvent struct {
	Role           conversation.Speaker `json:"role"`
	Content        string               `json:"content"`
	Round          int                  `json:"round"`
	Sequence       int                  `json:"sequence"`
	CandidateIndex int                  `json:"candidateIndex"`
	Timestamp      time.Time            `json:"timestamp"`
}

type CandidateCompleteEvent struct {
	CandidateIndex int    `json:"candidateIndex"`
	CandidateID    string `json:"candidateId"`
	Matched        bool   `json:"matched"`
	Score          int    `json:"score"`
}

type CompleteEvent struct {
	SessionID    string   `json:"sessionId"`
	Matches      []Record `json:"matches"`
	TotalMatched int      `json:"totalMatched"`
	Message      string   `json:"message,omitempty"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (StatusEvent) Type() EventType            { return EventStatus }
func (CandidateStartEvent) Type() EventType    { return EventCandidateStart }
func (RoundStartEvent) Type() EventType        { return EventRoundStart }
func (MessageEvent) Type() EventType           { return EventMessage }
func (CandidateCompleteEvent) Type() EventType { return EventCandidateComplete }
func (CompleteEvent) Type() EventType          { return EventComplete }
func (ErrorEvent) Type() EventType             { return EventError }

func (e StatusEvent) MarshalJSON() ([]byte, error) {
	type alias StatusEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		alias
	}{e.Type(), alias(e)})
}

func (e CandidateStartEvent) MarshalJSON() ([]byte, error) {
	type alias CandidateStartEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		alias
	}{e.Type(), alias(e)})
}

func (e RoundStartEvent) MarshalJSON() ([]byte, error) {
	type alias RoundStartEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		alias
	}{e.Type(), alias(e)})
}

func (e MessageEvent) MarshalJSON() ([]byte, error) {
	type alias MessageEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		alias
	}{e.Type(), alias(e)})
}

func (e CandidateCompleteEvent) MarshalJSON() ([]byte, error) {
	type alias CandidateCompleteEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		alias
	}{e.Type(), alias(e)})
}

func (e CompleteEvent) MarshalJSON() ([]byte, error) {
	type alias CompleteEvent
	if e.Matches == nil {
		e.Matches = []Record{}
	}
	return json.Marshal(struct {
		Type EventType `json:"type"`
		alias
	}{e.Type(), alias(e)})
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	type alias ErrorEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		alias
	}{e.Type(), alias(e)})
}
