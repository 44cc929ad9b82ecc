// This file implements inspection endpoints.
//
// Routes handled:
//   - POST   /api/inspections               -> Create (quota gated)
//   - GET    /api/inspections               -> List
//   - GET    /api/inspections/{id}          -> Get
//   - PUT    /api/inspections/{id}          -> Update
//   - DELETE /api/inspections/{id}          -> Delete
//   - POST   /api/inspections/{id}/complete -> Complete
//   - GET    /api/stats/dashboard           -> DashboardStats
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/obraguard/obraguard/internal/auth"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/obraguard/obraguard/internal/service"
)

// InspectionHandler handles inspection HTTP requests.
type InspectionHandler struct {
	inspections   service.InspectionService
	subscriptions service.SubscriptionService
	logger        *slog.Logger
}

// NewInspectionHandler creates a new InspectionHandler.
func NewInspectionHandler(inspections service.InspectionService, subscriptions service.SubscriptionService, logger *slog.Logger) *InspectionHandler {
	return &InspectionHandler{
		inspections:   inspections,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// RegisterRoutes registers inspection routes on the provided mux.
func (h *InspectionHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/inspections", requireUser(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/inspections", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/inspections/{id}", requireUser(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /api/inspections/{id}", requireUser(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/inspections/{id}", requireUser(http.HandlerFunc(h.Delete)))
	mux.Handle("POST /api/inspections/{id}/complete", requireUser(http.HandlerFunc(h.Complete)))
	mux.Handle("GET /api/stats/dashboard", requireUser(http.HandlerFunc(h.DashboardStats)))
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int32, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, domain.Invalid("handler.pathID", "Invalid id")
	}
	return int32(id), nil
}

// Create stores a new inspection after passing the monthly quota gate.
func (h *InspectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	// Quota first: the insert never happens for an exhausted plan.
	if err := h.subscriptions.CheckQuota(r.Context(), user); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req struct {
		CompanyID      *int32          `json:"companyId"`
		Title          string          `json:"title"`
		Location       string          `json:"location"`
		InspectorName  string          `json:"inspectorName"`
		InspectionDate *time.Time      `json:"inspectionDate"`
		ChecklistData  json.RawMessage `json:"checklistData"`
		Observations   string          `json:"observations"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	params := domain.CreateInspectionParams{
		UserID:        user.ID,
		CompanyID:     req.CompanyID,
		Title:         strings.TrimSpace(req.Title),
		Location:      req.Location,
		InspectorName: req.InspectorName,
		ChecklistData: req.ChecklistData,
		Observations:  req.Observations,
	}
	if req.InspectionDate != nil {
		params.InspectionDate = *req.InspectionDate
	}

	insp, err := h.inspections.Create(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"inspection": insp})
}

// List returns the user's inspections, optionally filtered by ?status=.
func (h *InspectionHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	var statuses []string
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, s)
			}
		}
	}

	inspections, err := h.inspections.List(r.Context(), user.ID, statuses)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if inspections == nil {
		inspections = []domain.Inspection{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"inspections": inspections})
}

// Get returns one inspection.
func (h *InspectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	insp, err := h.inspections.Get(r.Context(), id, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"inspection": insp})
}

// Update applies a partial update.
func (h *InspectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req struct {
		Title         *string         `json:"title"`
		Location      *string         `json:"location"`
		InspectorName *string         `json:"inspectorName"`
		ChecklistData json.RawMessage `json:"checklistData"`
		OverallScore  *int32          `json:"overallScore"`
		Observations  *string         `json:"observations"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	insp, err := h.inspections.Update(r.Context(), domain.UpdateInspectionParams{
		ID:            id,
		UserID:        user.ID,
		Title:         req.Title,
		Location:      req.Location,
		InspectorName: req.InspectorName,
		ChecklistData: req.ChecklistData,
		OverallScore:  req.OverallScore,
		Observations:  req.Observations,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"inspection": insp})
}

// Delete removes an inspection.
func (h *InspectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.inspections.Delete(r.Context(), id, user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Complete marks an inspection as completed.
func (h *InspectionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req struct {
		OverallScore *int32 `json:"overallScore"`
	}
	// An empty body completes without a score.
	_ = decodeJSON(r, &req)

	insp, err := h.inspections.Complete(r.Context(), id, user.ID, req.OverallScore)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"inspection": insp})
}

// DashboardStats returns the user's aggregate numbers.
func (h *InspectionHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	stats, err := h.inspections.DashboardStats(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}
