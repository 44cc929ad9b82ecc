package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/obraguard/obraguard/internal/domain"
)

const subscriptionColumns = `id, user_id, plan_id, stripe_customer_id, stripe_subscription_id,
	status, current_period_start, current_period_end, created_at`

func scanSubscription(row interface{ Scan(dest ...any) error }) (domain.SubscriptionRecord, error) {
	var rec domain.SubscriptionRecord
	var custID, subID sql.NullString
	var periodStart, periodEnd sql.NullTime
	err := row.Scan(&rec.ID, &rec.UserID, &rec.PlanID, &custID, &subID,
		&rec.Status, &periodStart, &periodEnd, &rec.CreatedAt)
	if err != nil {
		return domain.SubscriptionRecord{}, err
	}
	rec.StripeCustomerID = stringValue(custID)
	rec.StripeSubscriptionID = stringValue(subID)
	rec.CurrentPeriodStart = timePtr(periodStart)
	rec.CurrentPeriodEnd = timePtr(periodEnd)
	return rec, nil
}

const getSubscriptionByUserID = `SELECT ` + subscriptionColumns + `
FROM user_subscriptions WHERE user_id = $1`

// GetSubscriptionByUserID returns a user's subscription record.
// Returns sql.ErrNoRows when the user has none (implicitly on the free plan).
func (q *Queries) GetSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (domain.SubscriptionRecord, error) {
	return scanSubscription(q.db.QueryRowContext(ctx, getSubscriptionByUserID, userID))
}

const getSubscriptionByStripeCustomerID = `SELECT ` + subscriptionColumns + `
FROM user_subscriptions WHERE stripe_customer_id = $1`

// GetSubscriptionByStripeCustomerID resolves a record by its Stripe customer reference.
func (q *Queries) GetSubscriptionByStripeCustomerID(ctx context.Context, customerID string) (domain.SubscriptionRecord, error) {
	return scanSubscription(q.db.QueryRowContext(ctx, getSubscriptionByStripeCustomerID, customerID))
}

const getSubscriptionByStripeSubscriptionID = `SELECT ` + subscriptionColumns + `
FROM user_subscriptions WHERE stripe_subscription_id = $1`

// GetSubscriptionByStripeSubscriptionID resolves a record by its Stripe subscription reference.
func (q *Queries) GetSubscriptionByStripeSubscriptionID(ctx context.Context, subscriptionID string) (domain.SubscriptionRecord, error) {
	return scanSubscription(q.db.QueryRowContext(ctx, getSubscriptionByStripeSubscriptionID, subscriptionID))
}

const createSubscriptionIfAbsent = `
INSERT INTO user_subscriptions (user_id, plan_id, status)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO NOTHING`

// CreateSubscriptionIfAbsent lazily binds a user to a plan. A concurrent
// insert for the same user is a no-op, so callers re-read after calling.
func (q *Queries) CreateSubscriptionIfAbsent(ctx context.Context, userID uuid.UUID, planID int32, status domain.SubscriptionStatus) error {
	_, err := q.db.ExecContext(ctx, createSubscriptionIfAbsent, userID, planID, status)
	return err
}

// The upsert only overwrites external references and period bounds with
// values the event actually carried; empty/null inputs keep the stored
// value. Applying the same event twice therefore leaves the row unchanged.
const upsertSubscription = `
INSERT INTO user_subscriptions
	(user_id, plan_id, stripe_customer_id, stripe_subscription_id, status, current_period_start, current_period_end)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id) DO UPDATE SET
	plan_id                = EXCLUDED.plan_id,
	stripe_customer_id     = COALESCE(EXCLUDED.stripe_customer_id, user_subscriptions.stripe_customer_id),
	stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, user_subscriptions.stripe_subscription_id),
	status                 = EXCLUDED.status,
	current_period_start   = COALESCE(EXCLUDED.current_period_start, user_subscriptions.current_period_start),
	current_period_end     = COALESCE(EXCLUDED.current_period_end, user_subscriptions.current_period_end)`

// UpsertSubscription atomically inserts or overwrites a user's subscription
// record, keyed on user_id.
func (q *Queries) UpsertSubscription(ctx context.Context, arg domain.SubscriptionUpsert) error {
	_, err := q.db.ExecContext(ctx, upsertSubscription,
		arg.UserID, arg.PlanID,
		nullString(arg.StripeCustomerID), nullString(arg.StripeSubscriptionID),
		arg.Status, nullTime(arg.CurrentPeriodStart), nullTime(arg.CurrentPeriodEnd))
	return err
}

const syncSubscriptionByID = `
UPDATE user_subscriptions SET
	plan_id                = CASE WHEN $2 = 0 THEN plan_id ELSE $2 END,
	stripe_customer_id     = COALESCE($3, stripe_customer_id),
	stripe_subscription_id = COALESCE($4, stripe_subscription_id),
	status                 = CASE WHEN $5 = '' THEN status ELSE $5 END,
	current_period_start   = COALESCE($6, current_period_start),
	current_period_end     = COALESCE($7, current_period_end)
WHERE id = $1`

// SyncSubscriptionByID refreshes a record matched by primary key with the
// fields a billing event carried. Zero-valued fields keep the stored value.
func (q *Queries) SyncSubscriptionByID(ctx context.Context, id int32, arg domain.SubscriptionSync) error {
	_, err := q.db.ExecContext(ctx, syncSubscriptionByID,
		id, arg.PlanID,
		nullString(arg.StripeCustomerID), nullString(arg.StripeSubscriptionID),
		arg.Status, nullTime(arg.CurrentPeriodStart), nullTime(arg.CurrentPeriodEnd))
	return err
}

const setStripeCustomerID = `
UPDATE user_subscriptions SET stripe_customer_id = $2 WHERE user_id = $1`

// SetStripeCustomerID persists the lazily created Stripe customer reference.
func (q *Queries) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	_, err := q.db.ExecContext(ctx, setStripeCustomerID, userID, customerID)
	return err
}

const markCanceledByStripeCustomerID = `
UPDATE user_subscriptions SET status = 'canceled' WHERE stripe_customer_id = $1`

// MarkCanceledByStripeCustomerID sets status=canceled on the record holding
// the given customer reference. Returns the number of rows affected (0 when
// there is nothing to cancel).
func (q *Queries) MarkCanceledByStripeCustomerID(ctx context.Context, customerID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markCanceledByStripeCustomerID, customerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
