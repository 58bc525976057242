package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/claude/replog/internal/docstore"
	"github.com/claude/replog/internal/workout"
	"github.com/go-chi/chi/v5"
)

// entryPayload carries the raw form field values; sets and reps arrive as
// strings because the core's normalizer owns all parsing and validation.
type entryPayload struct {
	Exercise string `json:"exercise"`
	Sets     string `json:"sets"`
	Reps     string `json:"reps"`
	Weights  string `json:"weights"`
	Failure  bool   `json:"failure"`
}

func (p entryPayload) input() workout.EntryInput {
	return workout.EntryInput{
		Exercise: p.Exercise,
		Sets:     p.Sets,
		Reps:     p.Reps,
		Weights:  p.Weights,
		Failure:  p.Failure,
	}
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.lb.StartSession(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleRequestFinish(w http.ResponseWriter, r *http.Request) {
	if err := s.lb.RequestFinish(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "finalizing"})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Notes string `json:"notes"`
		Force bool   `json:"force"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
	}
	session, err := s.lb.Finalize(r.Context(), payload.Notes, payload.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := s.lb.Discard(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lb.CurrentSession()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": true, "session": session})
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var payload entryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	entry, err := s.lb.SubmitEntry(r.Context(), payload.input(), "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var payload entryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	entry, err := s.lb.SubmitEntry(r.Context(), payload.input(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.lb.DeleteEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.lb.EntryForEdit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	order := workout.ParseOrder(r.URL.Query().Get("order"))
	views, err := s.lb.History(r.Context(), order)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSetSortOrder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Order string `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	order := workout.ParseOrder(payload.Order)
	if err := s.lb.SetSortOrder(r.Context(), order); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"order": order.String()})
}

func (s *Server) handleExercises(w http.ResponseWriter, r *http.Request) {
	opts, err := s.lb.ExerciseNames(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps core errors to HTTP: validation failures are 400 with a
// machine-readable code, illegal lifecycle transitions 409, unknown ids 404,
// and a failed store 503. The renderer shows the code's message and re-prompts;
// nothing was partially written in any of these cases.
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, workout.ErrEmptyExerciseName):
		status, code = http.StatusBadRequest, "empty_exercise_name"
	case errors.Is(err, workout.ErrInvalidSets):
		status, code = http.StatusBadRequest, "invalid_sets"
	case errors.Is(err, workout.ErrInvalidReps):
		status, code = http.StatusBadRequest, "invalid_reps"
	case errors.Is(err, workout.ErrInvalidWeights):
		status, code = http.StatusBadRequest, "invalid_weights"
	case errors.Is(err, workout.ErrSessionAlreadyActive):
		status, code = http.StatusConflict, "session_already_active"
	case errors.Is(err, workout.ErrNoActiveSession):
		status, code = http.StatusConflict, "no_active_session"
	case errors.Is(err, workout.ErrCannotDiscardNonEmpty):
		status, code = http.StatusConflict, "cannot_discard_non_empty"
	case errors.Is(err, workout.ErrConfirmRequired):
		status, code = http.StatusConflict, "confirm_required"
	case errors.Is(err, docstore.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, docstore.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "store_unavailable"
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}
