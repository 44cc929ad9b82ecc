package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/obraguard/obraguard/internal/auth"
	"github.com/obraguard/obraguard/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withTestUser injects an authenticated user the way the auth middleware does.
func withTestUser(user *domain.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
		})
	}
}

// =============================================================================
// Mock SubscriptionService Implementation
// =============================================================================

type mockSubscriptionService struct {
	ResolveEntitlementFunc  func(ctx context.Context, user *domain.User) (*domain.Entitlement, error)
	UsageThisMonthFunc      func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	CheckQuotaFunc          func(ctx context.Context, user *domain.User) error
	StartCheckoutFunc       func(ctx context.Context, user *domain.User, planSlug string) (string, error)
	CreatePortalSessionFunc func(ctx context.Context, user *domain.User) (string, error)
}

func (m *mockSubscriptionService) ResolveEntitlement(ctx context.Context, user *domain.User) (*domain.Entitlement, error) {
	if m.ResolveEntitlementFunc != nil {
		return m.ResolveEntitlementFunc(ctx, user)
	}
	return nil, errors.New("ResolveEntitlementFunc not implemented")
}

func (m *mockSubscriptionService) UsageThisMonth(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	if m.UsageThisMonthFunc != nil {
		return m.UsageThisMonthFunc(ctx, userID, now)
	}
	return 0, errors.New("UsageThisMonthFunc not implemented")
}

func (m *mockSubscriptionService) CheckQuota(ctx context.Context, user *domain.User) error {
	if m.CheckQuotaFunc != nil {
		return m.CheckQuotaFunc(ctx, user)
	}
	return errors.New("CheckQuotaFunc not implemented")
}

func (m *mockSubscriptionService) StartCheckout(ctx context.Context, user *domain.User, planSlug string) (string, error) {
	if m.StartCheckoutFunc != nil {
		return m.StartCheckoutFunc(ctx, user, planSlug)
	}
	return "", errors.New("StartCheckoutFunc not implemented")
}

func (m *mockSubscriptionService) CreatePortalSession(ctx context.Context, user *domain.User) (string, error) {
	if m.CreatePortalSessionFunc != nil {
		return m.CreatePortalSessionFunc(ctx, user)
	}
	return "", errors.New("CreatePortalSessionFunc not implemented")
}

// =============================================================================
// Mock PlanService Implementation
// =============================================================================

type mockPlanService struct {
	ListFunc      func(ctx context.Context) ([]domain.Plan, error)
	GetBySlugFunc func(ctx context.Context, slug string) (domain.Plan, error)
	SeedFunc      func(ctx context.Context) error
}

func (m *mockPlanService) List(ctx context.Context) ([]domain.Plan, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, errors.New("ListFunc not implemented")
}

func (m *mockPlanService) GetBySlug(ctx context.Context, slug string) (domain.Plan, error) {
	if m.GetBySlugFunc != nil {
		return m.GetBySlugFunc(ctx, slug)
	}
	return domain.Plan{}, errors.New("GetBySlugFunc not implemented")
}

func (m *mockPlanService) Seed(ctx context.Context) error {
	if m.SeedFunc != nil {
		return m.SeedFunc(ctx)
	}
	return errors.New("SeedFunc not implemented")
}

// =============================================================================
// Price Formatting Tests
// =============================================================================

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		centavos int32
		want     string
	}{
		{0, "R$ 0,00"},
		{2990, "R$ 29,90"},
		{14990, "R$ 149,90"},
	}

	for _, tt := range tests {
		if got := formatBRL(tt.centavos); got != tt.want {
			t.Errorf("formatBRL(%d): expected %q, got %q", tt.centavos, tt.want, got)
		}
	}
}

// =============================================================================
// Subscription Endpoint Tests
// =============================================================================

func newSubscriptionTestServer(subs *mockSubscriptionService, plans *mockPlanService, user *domain.User) *http.ServeMux {
	h := NewSubscriptionHandler(subs, plans, testLogger())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, withTestUser(user))
	return mux
}

func TestListPlans(t *testing.T) {
	plans := &mockPlanService{
		ListFunc: func(ctx context.Context) ([]domain.Plan, error) {
			seeded := domain.SeedPlans("price_pro", "price_biz")
			for i := range seeded {
				seeded[i].ID = int32(i + 1)
			}
			return seeded, nil
		},
	}
	mux := newSubscriptionTestServer(&mockSubscriptionService{}, plans, nil)

	req := httptest.NewRequest("GET", "/api/subscription/plans", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Plans []struct {
			Slug         string `json:"slug"`
			MonthlyLimit int32  `json:"monthlyLimit"`
			PriceDisplay string `json:"priceDisplay"`
		} `json:"plans"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Plans) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(body.Plans))
	}
	if body.Plans[1].Slug != "professional" || body.Plans[1].PriceDisplay != "R$ 29,90" {
		t.Errorf("unexpected professional plan: %+v", body.Plans[1])
	}
	if body.Plans[2].MonthlyLimit != domain.UnlimitedMonthly {
		t.Errorf("expected unlimited sentinel on business plan, got %d", body.Plans[2].MonthlyLimit)
	}
}

func TestGetSubscription_WireShape(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	subs := &mockSubscriptionService{
		ResolveEntitlementFunc: func(ctx context.Context, u *domain.User) (*domain.Entitlement, error) {
			return &domain.Entitlement{
				Plan:                 domain.Plan{ID: 2, Name: "Profissional", Slug: "professional", MonthlyLimit: 30, CanUploadLogo: true},
				InspectionsThisMonth: 12,
				Remaining:            18,
			}, nil
		},
	}
	mux := newSubscriptionTestServer(subs, &mockPlanService{}, user)

	req := httptest.NewRequest("GET", "/api/subscription", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Plan struct {
			Slug          string `json:"slug"`
			MonthlyLimit  int32  `json:"monthlyLimit"`
			CanUploadLogo bool   `json:"canUploadLogo"`
		} `json:"plan"`
		Usage struct {
			InspectionsThisMonth int64 `json:"inspectionsThisMonth"`
			Remaining            int64 `json:"remaining"`
		} `json:"usage"`
		IsVIP bool `json:"isVIP"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Plan.Slug != "professional" || !body.Plan.CanUploadLogo {
		t.Errorf("unexpected plan: %+v", body.Plan)
	}
	if body.Usage.InspectionsThisMonth != 12 || body.Usage.Remaining != 18 {
		t.Errorf("unexpected usage: %+v", body.Usage)
	}
	if body.IsVIP {
		t.Error("expected isVIP false")
	}
}

func TestCreateCheckout_InvalidPlan(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	subs := &mockSubscriptionService{
		StartCheckoutFunc: func(ctx context.Context, u *domain.User, planSlug string) (string, error) {
			return "", domain.Invalid("SubscriptionService.StartCheckout", "Invalid plan")
		},
	}
	mux := newSubscriptionTestServer(subs, &mockPlanService{}, user)

	req := httptest.NewRequest("POST", "/api/subscription/checkout", strings.NewReader(`{"planSlug":"free"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != domain.EINVALID || body.Error.Message != "Invalid plan" {
		t.Errorf("unexpected error envelope: %+v", body.Error)
	}
}

func TestCreateCheckout_ReturnsURL(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	subs := &mockSubscriptionService{
		StartCheckoutFunc: func(ctx context.Context, u *domain.User, planSlug string) (string, error) {
			if planSlug != "professional" {
				t.Errorf("expected professional, got %q", planSlug)
			}
			return "https://checkout.stripe.com/pay/cs_123", nil
		},
	}
	mux := newSubscriptionTestServer(subs, &mockPlanService{}, user)

	req := httptest.NewRequest("POST", "/api/subscription/checkout", strings.NewReader(`{"planSlug":"professional"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.URL != "https://checkout.stripe.com/pay/cs_123" {
		t.Errorf("unexpected URL %q", body.URL)
	}
}

func TestOpenPortal_NoBillingAccount(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	subs := &mockSubscriptionService{
		CreatePortalSessionFunc: func(ctx context.Context, u *domain.User) (string, error) {
			return "", domain.Invalid("SubscriptionService.CreatePortalSession", "No billing account found")
		},
	}
	mux := newSubscriptionTestServer(subs, &mockPlanService{}, user)

	req := httptest.NewRequest("POST", "/api/subscription/portal", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
