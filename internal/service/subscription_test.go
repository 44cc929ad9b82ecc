package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/stripe/stripe-go/v79"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Mock billing.Service Implementation
// =============================================================================

type mockBillingService struct {
	CreateCustomerFunc          func(email, name, userID string) (string, error)
	CreateCheckoutSessionFunc   func(customerID, priceID, successURL, cancelURL string) (string, error)
	CreatePortalSessionFunc     func(customerID, returnURL string) (string, error)
	GetCheckoutSessionFunc      func(sessionID string) (*stripe.CheckoutSession, error)
	GetCustomerFunc             func(customerID string) (*stripe.Customer, error)
	GetSubscriptionFunc         func(subscriptionID string) (*stripe.Subscription, error)
	VerifyWebhookSignatureFunc  func(payload []byte, signature string) (stripe.Event, error)
}

func (m *mockBillingService) CreateCustomer(email, name, userID string) (string, error) {
	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(email, name, userID)
	}
	return "", errors.New("CreateCustomerFunc not implemented")
}

func (m *mockBillingService) CreateCheckoutSession(customerID, priceID, successURL, cancelURL string) (string, error) {
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(customerID, priceID, successURL, cancelURL)
	}
	return "", errors.New("CreateCheckoutSessionFunc not implemented")
}

func (m *mockBillingService) CreatePortalSession(customerID, returnURL string) (string, error) {
	if m.CreatePortalSessionFunc != nil {
		return m.CreatePortalSessionFunc(customerID, returnURL)
	}
	return "", errors.New("CreatePortalSessionFunc not implemented")
}

func (m *mockBillingService) GetCheckoutSession(sessionID string) (*stripe.CheckoutSession, error) {
	if m.GetCheckoutSessionFunc != nil {
		return m.GetCheckoutSessionFunc(sessionID)
	}
	return nil, errors.New("GetCheckoutSessionFunc not implemented")
}

func (m *mockBillingService) GetCustomer(customerID string) (*stripe.Customer, error) {
	if m.GetCustomerFunc != nil {
		return m.GetCustomerFunc(customerID)
	}
	return nil, errors.New("GetCustomerFunc not implemented")
}

func (m *mockBillingService) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	if m.GetSubscriptionFunc != nil {
		return m.GetSubscriptionFunc(subscriptionID)
	}
	return nil, errors.New("GetSubscriptionFunc not implemented")
}

func (m *mockBillingService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature)
	}
	return stripe.Event{}, errors.New("VerifyWebhookSignatureFunc not implemented")
}

// =============================================================================
// In-memory SubscriptionStore
// =============================================================================

type fakeSubscriptionStore struct {
	plans       []domain.Plan
	subs        map[uuid.UUID]domain.SubscriptionRecord
	usage       map[uuid.UUID]int64
	nextID      int32
	createCalls int
	events      []string // ordered record of mutating calls
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	plans := domain.SeedPlans("price_pro", "price_biz")
	for i := range plans {
		plans[i].ID = int32(i + 1)
	}
	return &fakeSubscriptionStore{
		plans:  plans,
		subs:   make(map[uuid.UUID]domain.SubscriptionRecord),
		usage:  make(map[uuid.UUID]int64),
		nextID: 1,
	}
}

func (f *fakeSubscriptionStore) GetPlanBySlug(_ context.Context, slug string) (domain.Plan, error) {
	for _, p := range f.plans {
		if p.Slug == slug {
			return p, nil
		}
	}
	return domain.Plan{}, sql.ErrNoRows
}

func (f *fakeSubscriptionStore) GetPlanByID(_ context.Context, id int32) (domain.Plan, error) {
	for _, p := range f.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Plan{}, sql.ErrNoRows
}

func (f *fakeSubscriptionStore) GetSubscriptionByUserID(_ context.Context, userID uuid.UUID) (domain.SubscriptionRecord, error) {
	rec, ok := f.subs[userID]
	if !ok {
		return domain.SubscriptionRecord{}, sql.ErrNoRows
	}
	return rec, nil
}

func (f *fakeSubscriptionStore) CreateSubscriptionIfAbsent(_ context.Context, userID uuid.UUID, planID int32, status domain.SubscriptionStatus) error {
	f.createCalls++
	if _, ok := f.subs[userID]; ok {
		return nil
	}
	f.subs[userID] = domain.SubscriptionRecord{
		ID:     f.nextID,
		UserID: userID,
		PlanID: planID,
		Status: status,
	}
	f.nextID++
	return nil
}

func (f *fakeSubscriptionStore) SetStripeCustomerID(_ context.Context, userID uuid.UUID, customerID string) error {
	rec, ok := f.subs[userID]
	if !ok {
		return sql.ErrNoRows
	}
	rec.StripeCustomerID = customerID
	f.subs[userID] = rec
	f.events = append(f.events, "set_customer")
	return nil
}

func (f *fakeSubscriptionStore) CountInspectionsSince(_ context.Context, userID uuid.UUID, _ time.Time) (int64, error) {
	return f.usage[userID], nil
}

func (f *fakeSubscriptionStore) subscribe(userID uuid.UUID, planSlug string) {
	for _, p := range f.plans {
		if p.Slug == planSlug {
			f.subs[userID] = domain.SubscriptionRecord{
				ID:     f.nextID,
				UserID: userID,
				PlanID: p.ID,
				Status: domain.SubscriptionStatusActive,
			}
			f.nextID++
			return
		}
	}
	panic("unknown plan slug: " + planSlug)
}

// =============================================================================
// Entitlement Resolution Tests
// =============================================================================

func TestResolveEntitlement_LazyFreeEnrollment(t *testing.T) {
	store := newFakeSubscriptionStore()
	svc := NewSubscriptionService(store, nil, nil, "http://localhost:8080", testLogger())
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}

	ent, err := svc.ResolveEntitlement(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ent.Plan.Slug != "free" {
		t.Errorf("expected free plan, got %q", ent.Plan.Slug)
	}
	if ent.Remaining != 1 {
		t.Errorf("expected 1 remaining, got %d", ent.Remaining)
	}
	if ent.IsVIP {
		t.Error("expected non-VIP entitlement")
	}

	rec, ok := store.subs[user.ID]
	if !ok {
		t.Fatal("expected a subscription record to be created")
	}
	if rec.Status != domain.SubscriptionStatusActive {
		t.Errorf("expected active status, got %q", rec.Status)
	}

	// A second lookup reuses the record instead of re-creating it.
	if _, err := svc.ResolveEntitlement(context.Background(), user); err != nil {
		t.Fatalf("unexpected error on second lookup: %v", err)
	}
	if store.createCalls != 1 {
		t.Errorf("expected 1 create call, got %d", store.createCalls)
	}
}

func TestResolveEntitlement_RemainingClampedAtZero(t *testing.T) {
	store := newFakeSubscriptionStore()
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	store.subscribe(user.ID, "free")
	store.usage[user.ID] = 3 // over the limit of 1, e.g. after a downgrade

	svc := NewSubscriptionService(store, nil, nil, "http://localhost:8080", testLogger())
	ent, err := svc.ResolveEntitlement(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ent.Remaining != 0 {
		t.Errorf("expected remaining clamped to 0, got %d", ent.Remaining)
	}
	if ent.InspectionsThisMonth != 3 {
		t.Errorf("expected usage 3, got %d", ent.InspectionsThisMonth)
	}
}

func TestResolveEntitlement_UnlimitedPlan(t *testing.T) {
	store := newFakeSubscriptionStore()
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	store.subscribe(user.ID, "business")
	store.usage[user.ID] = 5000

	svc := NewSubscriptionService(store, nil, nil, "http://localhost:8080", testLogger())
	ent, err := svc.ResolveEntitlement(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ent.Remaining != domain.UnlimitedMonthly {
		t.Errorf("expected unlimited remaining, got %d", ent.Remaining)
	}
	if !ent.Allows() {
		t.Error("unlimited plan should always allow")
	}
}

func TestResolveEntitlement_VIPBypassesStore(t *testing.T) {
	store := newFakeSubscriptionStore()
	svc := NewSubscriptionService(store, nil, []string{"Boss@Example.com "}, "http://localhost:8080", testLogger())

	// Matching is case-insensitive on both sides.
	user := &domain.User{ID: uuid.New(), Email: "BOSS@example.com"}
	ent, err := svc.ResolveEntitlement(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ent.IsVIP {
		t.Error("expected VIP entitlement")
	}
	if ent.Plan.ID != 999 {
		t.Errorf("expected synthetic VIP plan 999, got %d", ent.Plan.ID)
	}
	if ent.Remaining != domain.UnlimitedMonthly {
		t.Errorf("expected unlimited remaining, got %d", ent.Remaining)
	}
	if store.createCalls != 0 {
		t.Errorf("VIP lookup should not touch the store, got %d create calls", store.createCalls)
	}
	if len(store.subs) != 0 {
		t.Error("VIP lookup should not persist a subscription")
	}
}

// =============================================================================
// Quota Gate Tests
// =============================================================================

func TestCheckQuota_DenialCarriesLimit(t *testing.T) {
	store := newFakeSubscriptionStore()
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	store.subscribe(user.ID, "free")
	store.usage[user.ID] = 1

	svc := NewSubscriptionService(store, nil, nil, "http://localhost:8080", testLogger())
	err := svc.CheckQuota(context.Background(), user)
	if err == nil {
		t.Fatal("expected quota error")
	}
	if domain.ErrorCode(err) != domain.EFORBIDDEN {
		t.Errorf("expected %q, got %q", domain.EFORBIDDEN, domain.ErrorCode(err))
	}
	if msg := domain.ErrorMessage(err); !strings.Contains(msg, "Limite de 1") {
		t.Errorf("denial message should carry the numeric limit, got %q", msg)
	}
}

func TestCheckQuota_AllowsUnderLimit(t *testing.T) {
	store := newFakeSubscriptionStore()
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	store.subscribe(user.ID, "professional")
	store.usage[user.ID] = 29

	svc := NewSubscriptionService(store, nil, nil, "http://localhost:8080", testLogger())
	if err := svc.CheckQuota(context.Background(), user); err != nil {
		t.Fatalf("expected quota to allow, got %v", err)
	}

	store.usage[user.ID] = 30
	if err := svc.CheckQuota(context.Background(), user); err == nil {
		t.Fatal("expected quota denial at the limit")
	}
}

func TestCheckQuota_VIPNeverDenied(t *testing.T) {
	store := newFakeSubscriptionStore()
	svc := NewSubscriptionService(store, nil, []string{"vip@example.com"}, "http://localhost:8080", testLogger())
	user := &domain.User{ID: uuid.New(), Email: "vip@example.com"}

	if err := svc.CheckQuota(context.Background(), user); err != nil {
		t.Fatalf("VIP should never be denied, got %v", err)
	}
}

// =============================================================================
// Checkout Tests
// =============================================================================

func TestStartCheckout_InvalidSlug(t *testing.T) {
	store := newFakeSubscriptionStore()
	svc := NewSubscriptionService(store, &mockBillingService{}, nil, "http://localhost:8080", testLogger())
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}

	_, err := svc.StartCheckout(context.Background(), user, "enterprise")
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("expected %q for unknown slug, got %v", domain.EINVALID, err)
	}
}

func TestStartCheckout_FreePlanNotPurchasable(t *testing.T) {
	store := newFakeSubscriptionStore()
	svc := NewSubscriptionService(store, &mockBillingService{}, nil, "http://localhost:8080", testLogger())
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}

	_, err := svc.StartCheckout(context.Background(), user, "free")
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("expected %q for free plan, got %v", domain.EINVALID, err)
	}
}

func TestStartCheckout_BillingNotConfigured(t *testing.T) {
	store := newFakeSubscriptionStore()
	svc := NewSubscriptionService(store, nil, nil, "http://localhost:8080", testLogger())
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}

	_, err := svc.StartCheckout(context.Background(), user, "professional")
	if domain.ErrorCode(err) != domain.ECONFIG {
		t.Errorf("expected %q without billing, got %v", domain.ECONFIG, err)
	}
}

func TestStartCheckout_PersistsCustomerBeforeSession(t *testing.T) {
	store := newFakeSubscriptionStore()
	user := &domain.User{ID: uuid.New(), Email: "user@example.com", Name: "User"}

	customerCalls := 0
	bill := &mockBillingService{
		CreateCustomerFunc: func(email, name, userID string) (string, error) {
			customerCalls++
			if userID != user.ID.String() {
				t.Errorf("expected correlation user ID %s, got %s", user.ID, userID)
			}
			return "cus_123", nil
		},
		CreateCheckoutSessionFunc: func(customerID, priceID, successURL, cancelURL string) (string, error) {
			store.events = append(store.events, "create_session")
			if customerID != "cus_123" {
				t.Errorf("expected customer cus_123, got %s", customerID)
			}
			if priceID != "price_pro" {
				t.Errorf("expected price_pro, got %s", priceID)
			}
			if successURL != "http://localhost:8080/dashboard?success=true" {
				t.Errorf("unexpected success URL %s", successURL)
			}
			if cancelURL != "http://localhost:8080/pricing?canceled=true" {
				t.Errorf("unexpected cancel URL %s", cancelURL)
			}
			return "https://checkout.stripe.com/pay/cs_123", nil
		},
	}

	svc := NewSubscriptionService(store, bill, nil, "http://localhost:8080/", testLogger())

	url, err := svc.StartCheckout(context.Background(), user, "professional")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://checkout.stripe.com/pay/cs_123" {
		t.Errorf("unexpected checkout URL %s", url)
	}

	// The customer reference is stored before the session is created so a
	// retry reuses the same customer.
	if len(store.events) != 2 || store.events[0] != "set_customer" || store.events[1] != "create_session" {
		t.Errorf("expected [set_customer create_session], got %v", store.events)
	}

	// A second checkout reuses the persisted customer.
	if _, err := svc.StartCheckout(context.Background(), user, "professional"); err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if customerCalls != 1 {
		t.Errorf("expected 1 customer creation, got %d", customerCalls)
	}
}

func TestCreatePortalSession_NoBillingAccount(t *testing.T) {
	store := newFakeSubscriptionStore()
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	store.subscribe(user.ID, "free") // record exists but no customer reference

	svc := NewSubscriptionService(store, &mockBillingService{}, nil, "http://localhost:8080", testLogger())
	_, err := svc.CreatePortalSession(context.Background(), user)
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("expected %q without a billing account, got %v", domain.EINVALID, err)
	}
}

// =============================================================================
// Month Boundary Tests
// =============================================================================

func TestMonthStart(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skip("tzdata not available")
	}

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			"mid month utc",
			time.Date(2026, time.August, 28, 15, 4, 5, 0, time.UTC),
			time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			"first of month",
			time.Date(2026, time.March, 1, 0, 0, 0, 1, time.UTC),
			time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			"keeps location",
			time.Date(2026, time.January, 31, 23, 59, 0, 0, loc),
			time.Date(2026, time.January, 1, 0, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := monthStart(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
