// Package domain contains core business types and interfaces.
//
// This file defines subscription plans and the entitlement derived from them.
package domain

// UnlimitedMonthly is the sentinel monthly limit meaning "no quota".
// It is also used on the wire for the remaining count of unlimited plans.
const UnlimitedMonthly = -1

// DefaultPlanSlug is the plan users fall back to when they have no
// subscription record.
const DefaultPlanSlug = "free"

// Plan is a subscription tier.
//
// Slug is the stable join key: the webhook reconciler and the checkout
// initiator both resolve plans by slug or by Stripe price reference, never by
// numeric ID. Slugs are unique and immutable after seeding.
type Plan struct {
	ID            int32
	Name          string
	Slug          string
	MonthlyLimit  int32 // UnlimitedMonthly means no cap
	CanUploadLogo bool
	StripePriceID string // empty when the plan is not purchasable (e.g. free)
	Price         int32  // display price in centavos; Stripe is the billing truth
}

// Unlimited reports whether the plan has no monthly inspection cap.
func (p *Plan) Unlimited() bool {
	return p.MonthlyLimit == UnlimitedMonthly
}

// Purchasable reports whether the plan can be bought through checkout.
func (p *Plan) Purchasable() bool {
	return p.StripePriceID != ""
}

// SeedPlans returns the tiers inserted on first boot. Seeding is idempotent:
// a slug that already exists is left untouched, so manual price edits survive.
func SeedPlans(professionalPriceID, businessPriceID string) []Plan {
	return []Plan{
		{
			Name:         "Grátis",
			Slug:         "free",
			MonthlyLimit: 1,
			Price:        0,
		},
		{
			Name:          "Profissional",
			Slug:          "professional",
			MonthlyLimit:  30,
			CanUploadLogo: true,
			Price:         2990,
			StripePriceID: professionalPriceID,
		},
		{
			Name:          "Negócios",
			Slug:          "business",
			MonthlyLimit:  UnlimitedMonthly,
			CanUploadLogo: true,
			Price:         14990,
			StripePriceID: businessPriceID,
		},
	}
}

// VIPPlan is the synthetic plan reported for allow-listed identities.
// It carries the business tier's feature flags and is never persisted.
func VIPPlan() Plan {
	return Plan{
		ID:            999,
		Name:          "VIP Business",
		Slug:          "business",
		MonthlyLimit:  UnlimitedMonthly,
		CanUploadLogo: true,
	}
}

// Entitlement is the resolved, point-in-time answer to "what can this user
// do right now". It is computed per request and never persisted.
type Entitlement struct {
	Plan                 Plan
	InspectionsThisMonth int64
	Remaining            int64 // UnlimitedMonthly when the plan has no cap
	IsVIP                bool
}

// Unlimited reports whether the entitlement imposes no monthly cap.
func (e *Entitlement) Unlimited() bool {
	return e.Remaining == UnlimitedMonthly
}

// Allows reports whether one more billable action fits in the quota.
func (e *Entitlement) Allows() bool {
	return e.IsVIP || e.Unlimited() || e.Remaining > 0
}
