package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/obraguard/obraguard/internal/domain"
)

// =============================================================================
// In-memory PlanStore
// =============================================================================

type fakePlanStore struct {
	plans   []domain.Plan
	inserts int
}

func (f *fakePlanStore) ListPlans(_ context.Context) ([]domain.Plan, error) {
	return f.plans, nil
}

func (f *fakePlanStore) GetPlanBySlug(_ context.Context, slug string) (domain.Plan, error) {
	for _, p := range f.plans {
		if p.Slug == slug {
			return p, nil
		}
	}
	return domain.Plan{}, sql.ErrNoRows
}

func (f *fakePlanStore) InsertPlanIfAbsent(_ context.Context, plan domain.Plan) error {
	f.inserts++
	for _, p := range f.plans {
		if p.Slug == plan.Slug {
			return nil
		}
	}
	plan.ID = int32(len(f.plans) + 1)
	f.plans = append(f.plans, plan)
	return nil
}

// =============================================================================
// Plan Catalog Tests
// =============================================================================

func TestPlanSeed_Idempotent(t *testing.T) {
	store := &fakePlanStore{}
	svc := NewPlanService(store, domain.SeedPlans("price_pro", "price_biz"), testLogger())

	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.plans) != 3 {
		t.Fatalf("expected 3 seeded plans, got %d", len(store.plans))
	}

	// Re-seeding on restart leaves existing rows untouched.
	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("unexpected error on re-seed: %v", err)
	}
	if len(store.plans) != 3 {
		t.Errorf("expected 3 plans after re-seed, got %d", len(store.plans))
	}
}

func TestPlanSeed_SurvivesManualEdits(t *testing.T) {
	store := &fakePlanStore{
		plans: []domain.Plan{
			{ID: 1, Name: "Grátis", Slug: "free", MonthlyLimit: 5}, // manually raised limit
		},
	}
	svc := NewPlanService(store, domain.SeedPlans("", ""), testLogger())

	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	free, err := store.GetPlanBySlug(context.Background(), "free")
	if err != nil {
		t.Fatal(err)
	}
	if free.MonthlyLimit != 5 {
		t.Errorf("seed must not overwrite an existing plan, got limit %d", free.MonthlyLimit)
	}
}

func TestPlanGetBySlug_NotFound(t *testing.T) {
	svc := NewPlanService(&fakePlanStore{}, nil, testLogger())

	_, err := svc.GetBySlug(context.Background(), "enterprise")
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		t.Errorf("expected %q, got %v", domain.ENOTFOUND, err)
	}
}
