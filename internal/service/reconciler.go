package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/obraguard/obraguard/internal/billing"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/stripe/stripe-go/v79"
)

// ReconcilerStore is the subset of repository queries the webhook
// reconciler uses. *repository.Queries satisfies it.
type ReconcilerStore interface {
	GetPlanByStripePriceID(ctx context.Context, priceID string) (domain.Plan, error)
	GetSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (domain.SubscriptionRecord, error)
	GetSubscriptionByStripeCustomerID(ctx context.Context, customerID string) (domain.SubscriptionRecord, error)
	GetSubscriptionByStripeSubscriptionID(ctx context.Context, subscriptionID string) (domain.SubscriptionRecord, error)
	UpsertSubscription(ctx context.Context, arg domain.SubscriptionUpsert) error
	SyncSubscriptionByID(ctx context.Context, id int32, arg domain.SubscriptionSync) error
	MarkCanceledByStripeCustomerID(ctx context.Context, customerID string) (int64, error)
}

// Reconciler applies Stripe webhook events to local subscription state.
//
// Every method is idempotent: replaying an event converges on the same
// stored row. Events that cannot be correlated to a local user are
// logged and skipped, never turned into partial writes.
type Reconciler interface {
	// ApplyCheckoutCompleted handles checkout.session.completed. The
	// session is re-fetched from Stripe with its subscription and
	// customer expanded; webhook payloads are not trusted to carry the
	// full objects.
	ApplyCheckoutCompleted(ctx context.Context, sessionID string) error

	// ApplySubscriptionEvent handles customer.subscription.created and
	// customer.subscription.updated.
	ApplySubscriptionEvent(ctx context.Context, ev domain.SubscriptionEvent) error

	// ApplySubscriptionDeleted handles customer.subscription.deleted by
	// marking the matching record canceled.
	ApplySubscriptionDeleted(ctx context.Context, customerID string) error

	// ApplyInvoicePaid handles invoice.payment_succeeded by rolling the
	// stored billing period forward.
	ApplyInvoicePaid(ctx context.Context, subscriptionID string) error
}

type reconciler struct {
	store   ReconcilerStore
	billing billing.Service
	logger  *slog.Logger
}

// NewReconciler creates a webhook reconciler.
func NewReconciler(store ReconcilerStore, billingSvc billing.Service, logger *slog.Logger) Reconciler {
	return &reconciler{
		store:   store,
		billing: billingSvc,
		logger:  logger,
	}
}

// unixTime converts a Stripe epoch-seconds timestamp; zero means absent.
func unixTime(v int64) *time.Time {
	if v == 0 {
		return nil
	}
	t := time.Unix(v, 0)
	return &t
}

// userIDFromCustomer extracts the correlation user ID a customer was
// tagged with at creation time.
func userIDFromCustomer(c *stripe.Customer) (uuid.UUID, bool) {
	if c == nil {
		return uuid.Nil, false
	}
	raw, ok := c.Metadata[billing.MetadataUserIDKey]
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// subscriptionPriceID returns the price of the subscription's first item.
func subscriptionPriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return ""
	}
	return sub.Items.Data[0].Price.ID
}

func (r *reconciler) ApplyCheckoutCompleted(ctx context.Context, sessionID string) error {
	sess, err := r.billing.GetCheckoutSession(sessionID)
	if err != nil {
		return err
	}

	if sess.Subscription == nil {
		r.logger.Warn("checkout session has no subscription, skipping", "session_id", sessionID)
		return nil
	}

	userID, ok := userIDFromCustomer(sess.Customer)
	if !ok {
		r.logger.Warn("checkout session customer has no user correlation, skipping", "session_id", sessionID)
		return nil
	}

	priceID := subscriptionPriceID(sess.Subscription)
	plan, err := r.store.GetPlanByStripePriceID(ctx, priceID)
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Warn("checkout price does not match any plan, skipping",
			"session_id", sessionID, "price_id", priceID)
		return nil
	}
	if err != nil {
		return err
	}

	err = r.store.UpsertSubscription(ctx, domain.SubscriptionUpsert{
		UserID:               userID,
		PlanID:               plan.ID,
		StripeCustomerID:     sess.Customer.ID,
		StripeSubscriptionID: sess.Subscription.ID,
		Status:               domain.SubscriptionStatus(sess.Subscription.Status),
		CurrentPeriodStart:   unixTime(sess.Subscription.CurrentPeriodStart),
		CurrentPeriodEnd:     unixTime(sess.Subscription.CurrentPeriodEnd),
	})
	if err != nil {
		return err
	}

	r.logger.Info("checkout completed",
		"user_id", userID, "plan", plan.Slug, "subscription_id", sess.Subscription.ID)
	return nil
}

func (r *reconciler) ApplySubscriptionEvent(ctx context.Context, ev domain.SubscriptionEvent) error {
	// Metadata on the Stripe customer is the primary way back to a local
	// user; a record previously stored under the customer reference is
	// the fallback.
	var userID uuid.UUID
	var haveUser bool
	if ev.CustomerID != "" {
		cust, err := r.billing.GetCustomer(ev.CustomerID)
		if err != nil {
			r.logger.Warn("failed to fetch customer for subscription event",
				"customer_id", ev.CustomerID, "error", err)
		} else {
			userID, haveUser = userIDFromCustomer(cust)
		}
	}

	var planID int32
	if ev.PriceID != "" {
		plan, err := r.store.GetPlanByStripePriceID(ctx, ev.PriceID)
		if err == nil {
			planID = plan.ID
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}

	sync := domain.SubscriptionSync{
		PlanID:               planID,
		StripeCustomerID:     ev.CustomerID,
		StripeSubscriptionID: ev.SubscriptionID,
		Status:               ev.Status,
		CurrentPeriodStart:   ev.PeriodStart,
		CurrentPeriodEnd:     ev.PeriodEnd,
	}

	if haveUser {
		rec, err := r.store.GetSubscriptionByUserID(ctx, userID)
		switch {
		case err == nil:
			return r.store.SyncSubscriptionByID(ctx, rec.ID, sync)
		case errors.Is(err, sql.ErrNoRows):
			if planID == 0 {
				r.logger.Warn("cannot create subscription without a matching plan, skipping",
					"user_id", userID, "subscription_id", ev.SubscriptionID)
				return nil
			}
			return r.store.UpsertSubscription(ctx, domain.SubscriptionUpsert{
				UserID:               userID,
				PlanID:               planID,
				StripeCustomerID:     ev.CustomerID,
				StripeSubscriptionID: ev.SubscriptionID,
				Status:               ev.Status,
				CurrentPeriodStart:   ev.PeriodStart,
				CurrentPeriodEnd:     ev.PeriodEnd,
			})
		default:
			return err
		}
	}

	rec, err := r.store.GetSubscriptionByStripeCustomerID(ctx, ev.CustomerID)
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Warn("subscription event matches no local user, skipping",
			"customer_id", ev.CustomerID, "subscription_id", ev.SubscriptionID)
		return nil
	}
	if err != nil {
		return err
	}
	return r.store.SyncSubscriptionByID(ctx, rec.ID, sync)
}

func (r *reconciler) ApplySubscriptionDeleted(ctx context.Context, customerID string) error {
	rows, err := r.store.MarkCanceledByStripeCustomerID(ctx, customerID)
	if err != nil {
		return err
	}
	if rows == 0 {
		r.logger.Warn("subscription deletion matches no local record, skipping",
			"customer_id", customerID)
		return nil
	}
	r.logger.Info("subscription canceled", "customer_id", customerID)
	return nil
}

func (r *reconciler) ApplyInvoicePaid(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		r.logger.Warn("invoice has no subscription, skipping")
		return nil
	}

	sub, err := r.billing.GetSubscription(subscriptionID)
	if err != nil {
		return err
	}

	rec, err := r.store.GetSubscriptionByStripeSubscriptionID(ctx, subscriptionID)
	if errors.Is(err, sql.ErrNoRows) && sub.Customer != nil {
		rec, err = r.store.GetSubscriptionByStripeCustomerID(ctx, sub.Customer.ID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Warn("paid invoice matches no local record, skipping",
			"subscription_id", subscriptionID)
		return nil
	}
	if err != nil {
		return err
	}

	return r.store.SyncSubscriptionByID(ctx, rec.ID, domain.SubscriptionSync{
		StripeSubscriptionID: subscriptionID,
		Status:               domain.SubscriptionStatus(sub.Status),
		CurrentPeriodStart:   unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:     unixTime(sub.CurrentPeriodEnd),
	})
}
