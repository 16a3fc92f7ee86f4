package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"compras/internal/core"
	"compras/internal/estimation"
	"compras/internal/partition"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// monthView is the full picture of one month returned by most endpoints.
type monthView struct {
	Month         string            `json:"month"`
	Label         string            `json:"label"`
	Categories    core.Tree         `json:"categories"`
	CategoryNames []string          `json:"categoryNames"`
	Summary       core.MonthSummary `json:"summary"`
	Status        partition.Status  `json:"status"`
}

func newMonthView(month string, tree core.Tree, status partition.Status) monthView {
	if tree == nil {
		tree = core.Tree{}
	}
	return monthView{
		Month:         month,
		Label:         core.MonthLabel(month),
		Categories:    tree,
		CategoryNames: core.CategoryNames(tree),
		Summary:       core.Summarize(month, tree),
		Status:        status,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

// errorStatus maps a domain error to a status code and a client message.
func errorStatus(err error) (int, string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, "validation failed"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrInvalidMonth):
		return http.StatusNotFound, "unknown month"
	case errors.Is(err, core.ErrUnknownField):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, partition.ErrLoadFailed):
		return http.StatusServiceUnavailable, "month could not be loaded, retry later"
	case errors.Is(err, partition.ErrSwitched):
		return http.StatusConflict, "month was switched while the request was waiting"
	case errors.Is(err, partition.ErrClosed):
		return http.StatusServiceUnavailable, "server is shutting down"
	case errors.Is(err, estimation.ErrUnavailable):
		return http.StatusServiceUnavailable, "estimation service unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "month is still loading"
	case errors.Is(err, context.Canceled):
		return 499, "request canceled"
	}
	return http.StatusInternalServerError, "internal error"
}

// respondError writes err and logs it when it is a server side failure.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := errorStatus(err)
	var details []string
	var verr *ValidationError
	if errors.As(err, &verr) {
		details = verr.Problems
	}
	if status >= http.StatusInternalServerError {
		s.logger.LogError(r.Context(), "Request failed", err, op, "path", r.URL.Path)
	}
	writeError(w, status, msg, details...)
}
