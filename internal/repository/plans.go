package repository

import (
	"context"
	"database/sql"

	"github.com/obraguard/obraguard/internal/domain"
)

const planColumns = `id, name, slug, monthly_limit, can_upload_logo, stripe_price_id, price`

func scanPlan(row interface{ Scan(dest ...any) error }) (domain.Plan, error) {
	var p domain.Plan
	var priceID sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.MonthlyLimit, &p.CanUploadLogo, &priceID, &p.Price)
	if err != nil {
		return domain.Plan{}, err
	}
	p.StripePriceID = stringValue(priceID)
	return p, nil
}

const listPlans = `SELECT ` + planColumns + ` FROM subscription_plans ORDER BY id`

// ListPlans returns all subscription plans in seed order.
func (q *Queries) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	rows, err := q.db.QueryContext(ctx, listPlans)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

const getPlanBySlug = `SELECT ` + planColumns + ` FROM subscription_plans WHERE slug = $1`

// GetPlanBySlug returns the plan with the given slug.
// Returns sql.ErrNoRows when absent.
func (q *Queries) GetPlanBySlug(ctx context.Context, slug string) (domain.Plan, error) {
	return scanPlan(q.db.QueryRowContext(ctx, getPlanBySlug, slug))
}

const getPlanByID = `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1`

// GetPlanByID returns the plan with the given ID.
// Returns sql.ErrNoRows when absent.
func (q *Queries) GetPlanByID(ctx context.Context, id int32) (domain.Plan, error) {
	return scanPlan(q.db.QueryRowContext(ctx, getPlanByID, id))
}

const getPlanByStripePriceID = `SELECT ` + planColumns + ` FROM subscription_plans WHERE stripe_price_id = $1`

// GetPlanByStripePriceID resolves a plan from a Stripe price reference.
// Returns sql.ErrNoRows when no plan carries that price.
func (q *Queries) GetPlanByStripePriceID(ctx context.Context, priceID string) (domain.Plan, error) {
	return scanPlan(q.db.QueryRowContext(ctx, getPlanByStripePriceID, priceID))
}

const insertPlanIfAbsent = `
INSERT INTO subscription_plans (name, slug, monthly_limit, can_upload_logo, stripe_price_id, price)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (slug) DO NOTHING`

// InsertPlanIfAbsent inserts a plan unless its slug already exists.
// Existing rows are never modified, so manual edits survive reseeding.
func (q *Queries) InsertPlanIfAbsent(ctx context.Context, p domain.Plan) error {
	_, err := q.db.ExecContext(ctx, insertPlanIfAbsent,
		p.Name, p.Slug, p.MonthlyLimit, p.CanUploadLogo, nullString(p.StripePriceID), p.Price)
	return err
}
