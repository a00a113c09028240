package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/matching"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/store"
)

// matchBody is the JSON a submitter posts. oneLiner is accepted as an alias
// for statement.
type matchBody struct {
	Statement   string `json:"statement"`
	OneLiner    string `json:"oneLiner"`
	Name        string `json:"name"`
	SubmitterID string `json:"submitterId"`
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// decodeMatch parses the role and body. It writes a 400 and returns false when
// either cannot be read.
func (s *Server) decodeMatch(w http.ResponseWriter, r *http.Request) (matching.Request, bool) {
	role, err := conversation.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return matching.Request{}, false
	}
	var body matchBody
	if err := decodeJSON(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return matching.Request{}, false
	}
	return s.matchRequest(r, role, body), true
}

func (s *Server) matchRequest(r *http.Request, role conversation.Role, body matchBody) matching.Request {
	statement := body.Statement
	if strings.TrimSpace(statement) == "" {
		statement = body.OneLiner
	}
	req := matching.Request{
		Role:        role,
		Statement:   statement,
		Name:        strings.TrimSpace(body.Name),
		SubmitterID: strings.TrimSpace(body.SubmitterID),
		Credential:  s.credential(r),
	}
	if req.Name == "" && req.Credential != "" && s.profiles != nil {
		name, err := s.profiles.DisplayName(r.Context(), req.Credential)
		if err != nil {
			s.logger.Warn("profile lookup failed", zap.Error(err))
		} else {
			req.Name = name
		}
	}
	return req
}

// credential reads the provider token from the session cookie, falling back
// to a bearer Authorization header.
func (s *Server) credential(r *http.Request) string {
	if c, err := r.Cookie(s.cfg.CredentialCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeMatch(w, r)
	if !ok {
		return
	}
	res, err := s.coordinator.Run(r.Context(), req, nil)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.persist(r.Context(), res)
	JSON(w, http.StatusOK, res)
}

func (s *Server) handleMatchStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeMatch(w, r)
	if !ok {
		return
	}
	stream, ok := newEventStream(w)
	if !ok {
		Error(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	ctx := r.Context()
	stop := stream.keepAlive(ctx, s.cfg.KeepAlive)
	defer stop()

	res, err := s.coordinator.Run(ctx, req, matching.Tee(stream, traceSink(s.logger)))
	if err != nil {
		s.logSessionEnd(err)
		return
	}
	s.persist(ctx, res)
}

type continueBody struct {
	SessionID   string `json:"sessionId"`
	CandidateID string `json:"candidateId"`
	Rounds      int    `json:"rounds"`
}

type continueResponse struct {
	Match   matching.Record  `json:"match"`
	Session *matching.Result `json:"session"`
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var body continueBody
	if err := decodeJSON(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.SessionID == "" || body.CandidateID == "" {
		Error(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	prior, err := s.store.Session(r.Context(), body.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		s.logger.Error("load session", zap.String("session_id", body.SessionID), zap.Error(err))
		Error(w, http.StatusInternalServerError, "Failed to load session")
		return
	}

	res, err := s.coordinator.Continue(r.Context(), matching.Continuation{
		Request: matching.Request{Credential: s.credential(r)},
		Prior:   prior,
		Target:  body.CandidateID,
		Rounds:  body.Rounds,
	}, nil)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.persist(r.Context(), res)

	rec, _ := res.Find(body.CandidateID)
	JSON(w, http.StatusOK, continueResponse{Match: rec, Session: res})
}

// persist stores a finished session. It outlives the request so a client
// hanging up right after the complete event does not lose the result.
func (s *Server) persist(ctx context.Context, res *matching.Result) {
	if s.store == nil || res == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.SaveSession(ctx, res); err != nil {
		s.logger.Error("save session", zap.String("session_id", res.SessionID), zap.Error(err))
	}
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	if matching.IsClientGone(err) {
		s.logSessionEnd(err)
		return
	}
	status := http.StatusInternalServerError
	msg := "Matching failed, please try again later."
	switch matching.Code(err) {
	case matching.CodeInvalidInput:
		status, msg = http.StatusBadRequest, err.Error()
	case matching.CodeUnauthorized:
		status, msg = http.StatusUnauthorized, "Not authenticated"
	}
	JSON(w, status, matching.ErrorEvent{Code: matching.Code(err), Message: msg})
}

func (s *Server) logSessionEnd(err error) {
	if matching.IsClientGone(err) {
		s.logger.Debug("client went away before session completed", zap.Error(err))
		return
	}
	s.logger.Debug("session ended with error", zap.Error(err))
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		Error(w, http.StatusNotImplemented, "Storage is not configured")
		return false
	}
	return true
}
