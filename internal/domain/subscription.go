// Package domain contains core business types and interfaces.
//
// This file defines the per-user subscription record and the normalized
// billing events the webhook reconciler applies to it.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus mirrors the Stripe subscription status vocabulary
// verbatim. The reconciler copies whatever Stripe reports; no local
// reinterpretation happens.
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
)

// SubscriptionRecord binds a user to a plan and to external billing state.
//
// At most one record exists per user. A missing record means the user is
// implicitly on the default (free) plan. Records are never hard-deleted;
// cancellation sets Status to canceled.
type SubscriptionRecord struct {
	ID                   int32
	UserID               uuid.UUID
	PlanID               int32
	StripeCustomerID     string // set lazily on first checkout or webhook
	StripeSubscriptionID string // set once the Stripe subscription exists
	Status               SubscriptionStatus
	CurrentPeriodStart   *time.Time // authoritative only once the reconciler fills it
	CurrentPeriodEnd     *time.Time
	CreatedAt            time.Time
}

// SubscriptionEvent is the normalized payload of a Stripe
// customer.subscription.created/updated notification. The webhook handler
// extracts exactly these fields; anything Stripe did not send stays zero and
// the reconciler leaves the corresponding column alone.
type SubscriptionEvent struct {
	SubscriptionID string
	CustomerID     string
	PriceID        string
	Status         SubscriptionStatus
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
}

// SubscriptionUpsert is the atomic write the reconciler issues for a user.
// Upsert semantics are overwrite-by-key: applying the same upsert twice
// yields the same row.
type SubscriptionUpsert struct {
	UserID               uuid.UUID
	PlanID               int32
	StripeCustomerID     string
	StripeSubscriptionID string
	Status               SubscriptionStatus
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
}

// SubscriptionSync carries the fields refreshed on a record matched by its
// external references (customer or subscription ID). PlanID zero means
// "keep the current plan".
type SubscriptionSync struct {
	PlanID               int32
	StripeCustomerID     string
	StripeSubscriptionID string
	Status               SubscriptionStatus
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
}
