/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/vanir_energy/internal/audit"
	"github.com/friendsincode/vanir_energy/internal/planning"
	"github.com/friendsincode/vanir_energy/internal/timeline"
)

// API exposes HTTP handlers.
type API struct {
	timeline *timeline.Service
	auditSvc *audit.Service
	logger   zerolog.Logger
}

// New creates the API router wrapper.
func New(timelineSvc *timeline.Service, auditSvc *audit.Service, logger zerolog.Logger) *API {
	return &API{
		timeline: timelineSvc,
		auditSvc: auditSvc,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts API routes on provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Route("/timeline", func(r chi.Router) {
			r.Get("/lanes", a.handleLanesList)
			r.Post("/sessions", a.handleSessionCreate)
			r.Route("/sessions/{sessionID}", func(r chi.Router) {
				r.Get("/", a.handleSessionGet)
				r.Delete("/", a.handleSessionClose)
				r.Post("/commands", a.handleSessionCommand)
				r.Post("/apply", a.handleSessionApply)
			})
		})

		r.Get("/audit", a.handleAuditList)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleLanesList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, planning.Lanes())
}

// handleSessionCreate loads a fresh editing session. A failed schedule fetch
// still creates the session so the client can render the error state and
// retry via reset.
func (a *API) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	session, err := a.timeline.CreateSession(r.Context())
	if err != nil {
		a.logger.Warn().Err(err).Msg("session created degraded")
	}
	if session == nil {
		writeError(w, http.StatusBadGateway, "planner_unreachable")
		return
	}
	writeJSON(w, http.StatusCreated, session.Snapshot())
}

func (a *API) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	session, err := a.timeline.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session_not_found")
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (a *API) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	a.timeline.CloseSession(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSessionCommand(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var cmd timeline.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if err := a.timeline.Dispatch(sessionID, cmd); err != nil {
		a.writeCommandError(w, err)
		return
	}

	session, err := a.timeline.Session(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session_not_found")
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (a *API) handleSessionApply(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	err := a.timeline.Apply(r.Context(), sessionID)

	var violation *timeline.ViolationError
	switch {
	case err == nil:
	case errors.As(err, &violation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "constraint_violation",
			"message":    violation.Result.Message,
			"violations": violation.Result.Violations,
		})
		return
	case errors.Is(err, timeline.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found")
		return
	case errors.Is(err, timeline.ErrApplyInProgress):
		writeError(w, http.StatusConflict, "apply_in_progress")
		return
	case errors.Is(err, timeline.ErrNotReady):
		writeError(w, http.StatusConflict, "session_not_ready")
		return
	case errors.Is(err, timeline.ErrSimulateFailed):
		writeError(w, http.StatusBadGateway, "simulate_failed")
		return
	default:
		writeError(w, http.StatusInternalServerError, "apply_failed")
		return
	}

	session, err := a.timeline.Session(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session_not_found")
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (a *API) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timeline.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found")
	case errors.Is(err, timeline.ErrBlockNotFound):
		writeError(w, http.StatusNotFound, "block_not_found")
	case errors.Is(err, timeline.ErrApplyInProgress):
		writeError(w, http.StatusConflict, "apply_in_progress")
	case errors.Is(err, timeline.ErrNotReady):
		writeError(w, http.StatusConflict, "session_not_ready")
	case errors.Is(err, timeline.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, "invalid_interval")
	case errors.Is(err, timeline.ErrUnknownLane):
		writeError(w, http.StatusBadRequest, "unknown_lane")
	default:
		writeError(w, http.StatusBadRequest, "invalid_command")
	}
}

func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if a.auditSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "audit_unavailable")
		return
	}

	filters := audit.QueryFilters{}
	q := r.URL.Query()
	if v := q.Get("session_id"); v != "" {
		filters.SessionID = &v
	}
	if v := q.Get("action"); v != "" {
		filters.Action = &v
	}
	if v := q.Get("outcome"); v != "" {
		filters.Outcome = &v
	}
	if v := q.Get("since"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filters.StartTime = &ts
		}
	}
	if v := q.Get("until"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filters.EndTime = &ts
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters.Offset = n
		}
	}

	logs, total, err := a.auditSvc.Query(r.Context(), filters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": logs,
		"total":   total,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
