package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/directory"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/store"
)

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	role, err := conversation.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.store.Candidates(r.Context(), role)
	if err != nil {
		s.logger.Error("list candidates", zap.Error(err))
		Error(w, http.StatusInternalServerError, "Failed to list candidates")
		return
	}
	if list == nil {
		list = []directory.Candidate{}
	}
	JSON(w, http.StatusOK, map[string]any{"candidates": list})
}

func (s *Server) handleUpsertCandidate(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var c directory.Candidate
	if err := decodeJSON(w, r, &c); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.UpsertCandidate(r.Context(), c); err != nil {
		s.logger.Error("upsert candidate", zap.String("candidate_id", c.ID), zap.Error(err))
		Error(w, http.StatusInternalServerError, "Failed to save candidate")
		return
	}
	JSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := chi.URLParam(r, "id")
	err := s.store.DeleteCandidate(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "Candidate not found")
	case err != nil:
		s.logger.Error("delete candidate", zap.String("candidate_id", id), zap.Error(err))
		Error(w, http.StatusInternalServerError, "Failed to delete candidate")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := chi.URLParam(r, "id")
	res, err := s.store.Session(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "Session not found")
	case err != nil:
		s.logger.Error("load session", zap.String("session_id", id), zap.Error(err))
		Error(w, http.StatusInternalServerError, "Failed to load session")
	default:
		JSON(w, http.StatusOK, res)
	}
}
