// This file implements client company endpoints.
//
// Routes handled:
//   - POST /api/companies           -> Create
//   - GET  /api/companies           -> List
//   - GET  /api/companies/{id}      -> Get
//   - PUT  /api/companies/{id}      -> Update
//   - POST /api/companies/{id}/logo -> UploadLogo (plan gated)
package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/obraguard/obraguard/internal/auth"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/obraguard/obraguard/internal/service"
)

// maxLogoUploadBytes caps the multipart form for logo uploads at 6 MB;
// the service enforces the tighter 5 MB limit on the file itself.
const maxLogoUploadBytes = 6 << 20

// CompanyHandler handles company HTTP requests.
type CompanyHandler struct {
	companies service.CompanyService
	logger    *slog.Logger
}

// NewCompanyHandler creates a new CompanyHandler.
func NewCompanyHandler(companies service.CompanyService, logger *slog.Logger) *CompanyHandler {
	return &CompanyHandler{
		companies: companies,
		logger:    logger,
	}
}

// RegisterRoutes registers company routes on the provided mux.
func (h *CompanyHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/companies", requireUser(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/companies", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/companies/{id}", requireUser(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /api/companies/{id}", requireUser(http.HandlerFunc(h.Update)))
	mux.Handle("POST /api/companies/{id}/logo", requireUser(http.HandlerFunc(h.UploadLogo)))
}

// Create stores a new company.
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	var req struct {
		Name    string `json:"name"`
		CNPJ    string `json:"cnpj"`
		Address string `json:"address"`
		Phone   string `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	company, err := h.companies.Create(r.Context(), domain.CreateCompanyParams{
		UserID:  user.ID,
		Name:    strings.TrimSpace(req.Name),
		CNPJ:    strings.TrimSpace(req.CNPJ),
		Address: req.Address,
		Phone:   req.Phone,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"company": company})
}

// List returns the user's companies.
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	companies, err := h.companies.List(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if companies == nil {
		companies = []domain.Company{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
}

// Get returns one company.
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	company, err := h.companies.Get(r.Context(), id, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"company": company})
}

// Update applies a partial update.
func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req struct {
		Name    *string `json:"name"`
		CNPJ    *string `json:"cnpj"`
		Address *string `json:"address"`
		Phone   *string `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	company, err := h.companies.Update(r.Context(), domain.UpdateCompanyParams{
		ID:      id,
		UserID:  user.ID,
		Name:    req.Name,
		CNPJ:    req.CNPJ,
		Address: req.Address,
		Phone:   req.Phone,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"company": company})
}

// UploadLogo stores a company logo from a multipart form field "logo".
func (h *CompanyHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLogoUploadBytes)
	if err := r.ParseMultipartForm(maxLogoUploadBytes); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("CompanyHandler.UploadLogo", "Invalid upload"))
		return
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("CompanyHandler.UploadLogo", "Missing logo file"))
		return
	}
	defer file.Close()

	company, err := h.companies.UploadLogo(r.Context(), user, id,
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"company": company})
}
