// CLAUDE:SUMMARY chi HTTP API: health, policies, snapshots, checks, history, tasks, sessions, stats and /metrics.
package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/polwatch/store"
)

// maxSnapshotBytes bounds a snapshot upload.
const maxSnapshotBytes = 10 << 20

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/policies", s.handlePolicies)
		r.Post("/policies/{policy}/snapshots", s.handleAddSnapshot)
		r.Post("/policies/{policy}/check", s.handleCheck)
		r.Get("/policies/{policy}/history", s.handleHistory)
		r.Post("/check", s.handleCheckBatch)
		r.Post("/compare", s.handleCompare)
		r.Get("/tasks/{id}", s.handleTask)
		r.Get("/sessions/{id}", s.handleSession)
		r.Get("/sessions/{id}/audit", s.handleAudit)
		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.Stats())
		})
	})
	return r
}

func (s *Service) handlePolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := s.store.Policies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if policies == nil {
		policies = []store.PolicyInfo{}
	}
	writeJSON(w, http.StatusOK, policies)
}

func (s *Service) handleAddSnapshot(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	rec, err := s.AddSnapshot(r.Context(), chi.URLParam(r, "policy"), r.URL.Query().Get("source"), string(body))
	switch {
	case errors.Is(err, store.ErrUnchanged):
		writeJSON(w, http.StatusOK, map[string]string{"status": "unchanged"})
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusCreated, rec)
	}
}

func (s *Service) handleCheck(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Check(r.Context(), chi.URLParam(r, "policy"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Service) handleCheckBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Policies []string `json:"policies"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidInput, err))
		return
	}
	br, err := s.CheckBatch(r.Context(), req.Policies)
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, br)
	}
}

func (s *Service) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidInput, err))
		return
	}
	resp, err := s.Compare(req.PolicyName, req.OldText, req.NewText, req.IncludeDiff)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := s.store.PolicyHistory(r.Context(), chi.URLParam(r, "policy"), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if hist == nil {
		hist = []*store.ComparisonRecord{}
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Service) handleTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.Task(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Service) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Session(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Service) handleAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.AuditLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
