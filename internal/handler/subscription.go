// This file implements subscription and billing endpoints.
//
// Routes handled:
//   - GET  /api/subscription          -> GetSubscription
//   - GET  /api/subscription/plans    -> ListPlans
//   - POST /api/subscription/checkout -> CreateCheckout
//   - POST /api/subscription/portal   -> OpenPortal
package handler

import (
	"log/slog"
	"net/http"

	"github.com/obraguard/obraguard/internal/auth"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/obraguard/obraguard/internal/service"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// SubscriptionHandler handles subscription HTTP requests.
type SubscriptionHandler struct {
	subscriptions service.SubscriptionService
	plans         service.PlanService
	logger        *slog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(subscriptions service.SubscriptionService, plans service.PlanService, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		plans:         plans,
		logger:        logger,
	}
}

// RegisterRoutes registers subscription routes on the provided mux.
// The plan catalog is public; everything else needs a session.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/subscription/plans", h.ListPlans)
	mux.Handle("GET /api/subscription", requireUser(http.HandlerFunc(h.GetSubscription)))
	mux.Handle("POST /api/subscription/checkout", requireUser(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/subscription/portal", requireUser(http.HandlerFunc(h.OpenPortal)))
}

// planResponse is the wire shape for a subscription plan.
type planResponse struct {
	ID            int32  `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	MonthlyLimit  int32  `json:"monthlyLimit"`
	CanUploadLogo bool   `json:"canUploadLogo"`
	Price         int32  `json:"price"`
	PriceDisplay  string `json:"priceDisplay"`
}

// brlPrinter formats prices in Brazilian conventions ("R$ 29,90").
var brlPrinter = message.NewPrinter(language.BrazilianPortuguese)

func formatBRL(centavos int32) string {
	return brlPrinter.Sprintf("R$ %v", number.Decimal(float64(centavos)/100,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

func toPlanResponse(p domain.Plan) planResponse {
	return planResponse{
		ID:            p.ID,
		Name:          p.Name,
		Slug:          p.Slug,
		MonthlyLimit:  p.MonthlyLimit,
		CanUploadLogo: p.CanUploadLogo,
		Price:         p.Price,
		PriceDisplay:  formatBRL(p.Price),
	}
}

// ListPlans returns the plan catalog.
func (h *SubscriptionHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": out})
}

// GetSubscription returns the user's effective plan and live usage.
func (h *SubscriptionHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	ent, err := h.subscriptions.ResolveEntitlement(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"plan": map[string]any{
			"id":            ent.Plan.ID,
			"name":          ent.Plan.Name,
			"slug":          ent.Plan.Slug,
			"monthlyLimit":  ent.Plan.MonthlyLimit,
			"canUploadLogo": ent.Plan.CanUploadLogo,
		},
		"usage": map[string]any{
			"inspectionsThisMonth": ent.InspectionsThisMonth,
			"remaining":            ent.Remaining,
		},
		"isVIP": ent.IsVIP,
	})
}

// CreateCheckout starts a Stripe checkout session for the requested plan.
func (h *SubscriptionHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	var req struct {
		PlanSlug string `json:"planSlug"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	url, err := h.subscriptions.StartCheckout(r.Context(), user, req.PlanSlug)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

// OpenPortal returns a Stripe customer portal URL.
func (h *SubscriptionHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	url, err := h.subscriptions.CreatePortalSession(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}
