package http

import (
	"net/http"

	"compras/internal/core"
	"compras/internal/log"
)

type importResponse struct {
	monthView
	Report core.ImportReport `json:"report"`
}

// handleEstimate asks the estimator for suggested quantities. Nothing is
// written to the month.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		s.respondError(w, r, log.OpEstimate, err)
		return
	}
	if s.estimator == nil {
		writeError(w, http.StatusServiceUnavailable, "estimation is not configured")
		return
	}

	set, err := s.estimator.Estimate(r.Context(), month)
	if err != nil {
		s.respondError(w, r, log.OpEstimate, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month":       month,
		"estimations": set.List(),
	})
}

func (s *Server) handleImportEstimations(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		s.respondError(w, r, log.OpImport, err)
		return
	}
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, log.OpImport, err)
		return
	}

	var selections []core.Selection
	if req.All {
		if s.estimator == nil {
			writeError(w, http.StatusServiceUnavailable, "estimation is not configured")
			return
		}
		set, err := s.estimator.Estimate(r.Context(), month)
		if err != nil {
			s.respondError(w, r, log.OpImport, err)
			return
		}
		selections = set.Selections()
	} else {
		selections = make([]core.Selection, 0, len(req.Selections))
		for _, sel := range req.Selections {
			selections = append(selections, core.Selection{Name: sel.Name, Quantity: sel.Quantity})
		}
	}
	tree, report, err := s.manager.ImportEstimations(r.Context(), month, selections)
	if err != nil {
		s.respondError(w, r, log.OpImport, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{
		monthView: newMonthView(month, tree, s.manager.Status(month)),
		Report:    report,
	})
}
