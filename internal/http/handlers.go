package http

import (
	"context"
	"net/http"
	"time"

	"compras/internal/core"
	"compras/internal/log"
	"compras/internal/partition"
)

type monthEntry struct {
	Month  string           `json:"month"`
	Label  string           `json:"label"`
	Status partition.Status `json:"status"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "active": s.manager.Active()})
}

// handleListMonths lists every month with its partition state. It never
// activates anything.
func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	out := make([]monthEntry, 0, len(core.Months))
	for _, m := range core.Months {
		out = append(out, monthEntry{Month: m, Label: core.MonthLabel(m), Status: s.manager.Status(m)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": s.manager.Active(), "months": out})
}

// handleGetMonth activates the month if needed and waits for its tree.
func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		s.respondError(w, r, log.OpActivate, err)
		return
	}
	tree, err := s.manager.Snapshot(r.Context(), month)
	if err != nil {
		s.respondError(w, r, log.OpActivate, err)
		return
	}
	writeJSON(w, http.StatusOK, newMonthView(month, tree, s.manager.Status(month)))
}

// handleActivate switches the active month without waiting for it to load.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		s.respondError(w, r, log.OpActivate, err)
		return
	}
	if err := s.manager.Activate(r.Context(), month); err != nil {
		s.respondError(w, r, log.OpActivate, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.manager.Status(month))
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		s.respondError(w, r, log.OpActivate, err)
		return
	}
	if err := s.manager.Retry(r.Context(), month); err != nil {
		s.respondError(w, r, log.OpActivate, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.manager.Status(month))
}
