// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (database errors -> domain errors)
//
// This file implements the plan catalog: the read-only table of
// subscription tiers and its one-time idempotent seed.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/obraguard/obraguard/internal/domain"
)

// PlanStore is the subset of repository queries the plan catalog uses.
// *repository.Queries satisfies it.
type PlanStore interface {
	ListPlans(ctx context.Context) ([]domain.Plan, error)
	GetPlanBySlug(ctx context.Context, slug string) (domain.Plan, error)
	InsertPlanIfAbsent(ctx context.Context, p domain.Plan) error
}

// PlanService defines catalog operations.
type PlanService interface {
	// List returns all subscription plans.
	List(ctx context.Context) ([]domain.Plan, error)

	// GetBySlug returns the plan with the given slug.
	// Returns domain.ENOTFOUND when the slug is unknown; callers treat an
	// absent plan as "feature unavailable", not as data corruption.
	GetBySlug(ctx context.Context, slug string) (domain.Plan, error)

	// Seed inserts the configured tiers. Idempotent: a slug that already
	// exists is left untouched, so administrative price edits survive.
	Seed(ctx context.Context) error
}

type planService struct {
	store  PlanStore
	seeds  []domain.Plan
	logger *slog.Logger
}

// NewPlanService creates a new PlanService seeding the given tiers.
func NewPlanService(store PlanStore, seeds []domain.Plan, logger *slog.Logger) PlanService {
	return &planService{
		store:  store,
		seeds:  seeds,
		logger: logger,
	}
}

func (s *planService) List(ctx context.Context) ([]domain.Plan, error) {
	const op = "PlanService.List"

	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list plans")
	}
	return plans, nil
}

func (s *planService) GetBySlug(ctx context.Context, slug string) (domain.Plan, error) {
	const op = "PlanService.GetBySlug"

	plan, err := s.store.GetPlanBySlug(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Plan{}, domain.NotFound(op, "plan")
	}
	if err != nil {
		return domain.Plan{}, domain.Internal(err, op, "failed to load plan")
	}
	return plan, nil
}

func (s *planService) Seed(ctx context.Context) error {
	const op = "PlanService.Seed"

	for _, plan := range s.seeds {
		if err := s.store.InsertPlanIfAbsent(ctx, plan); err != nil {
			return domain.Internal(err, op, "failed to seed plan "+plan.Slug)
		}
	}

	s.logger.Info("plan catalog seeded", "tiers", len(s.seeds))
	return nil
}
