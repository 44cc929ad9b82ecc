package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/obraguard/obraguard/internal/billing"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/obraguard/obraguard/internal/metrics"
)

// SubscriptionStore is the subset of repository queries the subscription
// service uses. *repository.Queries satisfies it.
type SubscriptionStore interface {
	GetPlanBySlug(ctx context.Context, slug string) (domain.Plan, error)
	GetPlanByID(ctx context.Context, id int32) (domain.Plan, error)
	GetSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (domain.SubscriptionRecord, error)
	CreateSubscriptionIfAbsent(ctx context.Context, userID uuid.UUID, planID int32, status domain.SubscriptionStatus) error
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
	CountInspectionsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
}

// SubscriptionService resolves entitlements and drives the checkout flow.
type SubscriptionService interface {
	// ResolveEntitlement returns the user's effective plan and live usage.
	// VIP users get an unlimited synthetic plan regardless of any stored
	// subscription record. Everyone else is lazily enrolled on the free
	// tier the first time they are looked up.
	ResolveEntitlement(ctx context.Context, user *domain.User) (*domain.Entitlement, error)

	// UsageThisMonth counts the user's inspections created since the start
	// of the calendar month containing now, in the server's location.
	UsageThisMonth(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)

	// CheckQuota returns a domain.EFORBIDDEN error carrying the numeric
	// limit when the user's monthly allowance is exhausted, nil otherwise.
	CheckQuota(ctx context.Context, user *domain.User) error

	// StartCheckout creates a Stripe checkout session for the given plan
	// slug and returns the hosted payment URL.
	StartCheckout(ctx context.Context, user *domain.User, planSlug string) (string, error)

	// CreatePortalSession returns a Stripe customer portal URL for users
	// who already have a billing relationship.
	CreatePortalSession(ctx context.Context, user *domain.User) (string, error)
}

type subscriptionService struct {
	store     SubscriptionStore
	billing   billing.Service
	vipEmails map[string]struct{}
	baseURL   string
	logger    *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
//
// billingSvc may be nil when Stripe is not configured; entitlement and
// quota checks still work, checkout and portal return ECONFIG.
func NewSubscriptionService(store SubscriptionStore, billingSvc billing.Service, vipEmails []string, baseURL string, logger *slog.Logger) SubscriptionService {
	vips := make(map[string]struct{}, len(vipEmails))
	for _, email := range vipEmails {
		normalized := strings.ToLower(strings.TrimSpace(email))
		if normalized != "" {
			vips[normalized] = struct{}{}
		}
	}
	return &subscriptionService{
		store:     store,
		billing:   billingSvc,
		vipEmails: vips,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}
}

// monthStart returns midnight on the first day of the month containing t,
// in t's location. Usage resets at this boundary.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func (s *subscriptionService) isVIP(email string) bool {
	_, ok := s.vipEmails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// ensureSubscription returns the user's subscription record, creating a
// free-tier one on first access. The insert is ON CONFLICT DO NOTHING so
// concurrent first lookups converge on a single row.
func (s *subscriptionService) ensureSubscription(ctx context.Context, op string, userID uuid.UUID) (domain.SubscriptionRecord, error) {
	rec, err := s.store.GetSubscriptionByUserID(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.SubscriptionRecord{}, domain.Internal(err, op, "failed to load subscription")
	}

	free, err := s.store.GetPlanBySlug(ctx, domain.DefaultPlanSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SubscriptionRecord{}, domain.Internal(err, op, "default plan is not seeded")
	}
	if err != nil {
		return domain.SubscriptionRecord{}, domain.Internal(err, op, "failed to load default plan")
	}

	if err := s.store.CreateSubscriptionIfAbsent(ctx, userID, free.ID, domain.SubscriptionStatusActive); err != nil {
		return domain.SubscriptionRecord{}, domain.Internal(err, op, "failed to create subscription")
	}

	rec, err = s.store.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		return domain.SubscriptionRecord{}, domain.Internal(err, op, "failed to load subscription")
	}
	return rec, nil
}

func (s *subscriptionService) ResolveEntitlement(ctx context.Context, user *domain.User) (*domain.Entitlement, error) {
	const op = "SubscriptionService.ResolveEntitlement"

	if s.isVIP(user.Email) {
		return &domain.Entitlement{
			Plan:      domain.VIPPlan(),
			Remaining: domain.UnlimitedMonthly,
			IsVIP:     true,
		}, nil
	}

	rec, err := s.ensureSubscription(ctx, op, user.ID)
	if err != nil {
		return nil, err
	}

	plan, err := s.store.GetPlanByID(ctx, rec.PlanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "subscription references a missing plan")
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load plan")
	}

	used, err := s.UsageThisMonth(ctx, user.ID, time.Now())
	if err != nil {
		return nil, err
	}

	ent := &domain.Entitlement{
		Plan:                 plan,
		InspectionsThisMonth: used,
	}
	if plan.Unlimited() {
		ent.Remaining = domain.UnlimitedMonthly
	} else {
		remaining := int64(plan.MonthlyLimit) - used
		if remaining < 0 {
			remaining = 0
		}
		ent.Remaining = remaining
	}
	return ent, nil
}

func (s *subscriptionService) UsageThisMonth(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	const op = "SubscriptionService.UsageThisMonth"

	count, err := s.store.CountInspectionsSince(ctx, userID, monthStart(now))
	if err != nil {
		return 0, domain.Internal(err, op, "failed to count monthly usage")
	}
	return count, nil
}

func (s *subscriptionService) CheckQuota(ctx context.Context, user *domain.User) error {
	const op = "SubscriptionService.CheckQuota"

	ent, err := s.ResolveEntitlement(ctx, user)
	if err != nil {
		return err
	}
	if !ent.Allows() {
		metrics.QuotaDenialsTotal.Inc()
		s.logger.Info("monthly quota exhausted",
			"user_id", user.ID,
			"plan", ent.Plan.Slug,
			"limit", ent.Plan.MonthlyLimit,
			"used", ent.InspectionsThisMonth)
		return domain.QuotaExceeded(op, ent.Plan.MonthlyLimit)
	}
	return nil
}

func (s *subscriptionService) StartCheckout(ctx context.Context, user *domain.User, planSlug string) (string, error) {
	const op = "SubscriptionService.StartCheckout"

	if s.billing == nil {
		return "", domain.Configuration(op, "billing is not configured")
	}

	plan, err := s.store.GetPlanBySlug(ctx, planSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.Invalid(op, "Invalid plan")
	}
	if err != nil {
		return "", domain.Internal(err, op, "failed to load plan")
	}
	if !plan.Purchasable() {
		return "", domain.Invalid(op, "Invalid plan")
	}

	rec, err := s.ensureSubscription(ctx, op, user.ID)
	if err != nil {
		return "", err
	}

	customerID := rec.StripeCustomerID
	if customerID == "" {
		customerID, err = s.billing.CreateCustomer(user.Email, user.Name, user.ID.String())
		if err != nil {
			return "", domain.Internal(err, op, "failed to create billing customer")
		}
		// Persist before creating the session so a retry reuses the
		// same customer instead of minting duplicates.
		if err := s.store.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
			return "", domain.Internal(err, op, "failed to store billing customer")
		}
	}

	url, err := s.billing.CreateCheckoutSession(
		customerID,
		plan.StripePriceID,
		s.baseURL+"/dashboard?success=true",
		s.baseURL+"/pricing?canceled=true",
	)
	if err != nil {
		return "", domain.Internal(err, op, "failed to create checkout session")
	}

	metrics.CheckoutSessionsCreated.Inc()
	s.logger.Info("checkout session created", "user_id", user.ID, "plan", plan.Slug)
	return url, nil
}

func (s *subscriptionService) CreatePortalSession(ctx context.Context, user *domain.User) (string, error) {
	const op = "SubscriptionService.CreatePortalSession"

	if s.billing == nil {
		return "", domain.Configuration(op, "billing is not configured")
	}

	rec, err := s.store.GetSubscriptionByUserID(ctx, user.ID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && rec.StripeCustomerID == "") {
		return "", domain.Invalid(op, "No billing account found")
	}
	if err != nil {
		return "", domain.Internal(err, op, "failed to load subscription")
	}

	url, err := s.billing.CreatePortalSession(rec.StripeCustomerID, s.baseURL+"/dashboard")
	if err != nil {
		return "", domain.Internal(err, op, "failed to create portal session")
	}
	return url, nil
}
