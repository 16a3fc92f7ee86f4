package http

import (
	"net/http"

	"compras/internal/core"
	"compras/internal/log"
)

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		s.respondError(w, r, log.OpAdd, err)
		return
	}
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, log.OpAdd, err)
		return
	}

	tree, err := s.manager.AddItem(r.Context(), month,
		core.NewItem{Name: req.Name, Quantity: req.Quantity, Price: req.Price},
		req.Category)
	if err != nil {
		s.respondError(w, r, log.OpAdd, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMonthView(month, tree, s.manager.Status(month)))
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		s.respondError(w, r, log.OpUpdate, err)
		return
	}
	id, err := itemIDParam(r)
	if err != nil {
		s.respondError(w, r, log.OpUpdate, err)
		return
	}
	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, log.OpUpdate, err)
		return
	}
	field, err := core.ParseField(req.Field)
	if err != nil {
		s.respondError(w, r, log.OpUpdate, err)
		return
	}

	tree, err := s.manager.UpdateItem(r.Context(), month, id, field, req.Value)
	if err != nil {
		s.respondError(w, r, log.OpUpdate, err)
		return
	}
	if _, _, ok := tree.FindItem(id); !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, newMonthView(month, tree, s.manager.Status(month)))
}

// handleDeleteItem is idempotent: deleting an unknown id returns the
// unchanged month.
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		s.respondError(w, r, log.OpDelete, err)
		return
	}
	id, err := itemIDParam(r)
	if err != nil {
		s.respondError(w, r, log.OpDelete, err)
		return
	}

	tree, err := s.manager.DeleteItem(r.Context(), month, id)
	if err != nil {
		s.respondError(w, r, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, newMonthView(month, tree, s.manager.Status(month)))
}
