// This file implements NR checklist template endpoints.
//
// Routes handled:
//   - GET /api/nr-checklists      -> List
//   - GET /api/nr-checklists/{id} -> Get
package handler

import (
	"log/slog"
	"net/http"

	"github.com/obraguard/obraguard/internal/domain"
	"github.com/obraguard/obraguard/internal/service"
)

// ChecklistHandler handles checklist template HTTP requests.
type ChecklistHandler struct {
	checklists service.ChecklistService
	logger     *slog.Logger
}

// NewChecklistHandler creates a new ChecklistHandler.
func NewChecklistHandler(checklists service.ChecklistService, logger *slog.Logger) *ChecklistHandler {
	return &ChecklistHandler{
		checklists: checklists,
		logger:     logger,
	}
}

// RegisterRoutes registers checklist routes on the provided mux.
func (h *ChecklistHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/nr-checklists", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/nr-checklists/{id}", requireUser(http.HandlerFunc(h.Get)))
}

// List returns all NR checklist templates.
func (h *ChecklistHandler) List(w http.ResponseWriter, r *http.Request) {
	checklists, err := h.checklists.List(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if checklists == nil {
		checklists = []domain.NRChecklist{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"checklists": checklists})
}

// Get returns one checklist template.
func (h *ChecklistHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	cl, err := h.checklists.Get(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"checklist": cl})
}
