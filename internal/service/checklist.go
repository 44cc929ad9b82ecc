package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/obraguard/obraguard/internal/domain"
)

// ChecklistStore is the subset of repository queries the checklist service
// uses. *repository.Queries satisfies it.
type ChecklistStore interface {
	ListNRChecklists(ctx context.Context) ([]domain.NRChecklist, error)
	GetNRChecklist(ctx context.Context, id int32) (domain.NRChecklist, error)
	CountNRChecklists(ctx context.Context) (int64, error)
	InsertNRChecklist(ctx context.Context, cl domain.NRChecklist) error
}

// ChecklistService serves the NR checklist templates inspections are
// built from.
type ChecklistService interface {
	List(ctx context.Context) ([]domain.NRChecklist, error)
	Get(ctx context.Context, id int32) (*domain.NRChecklist, error)

	// Seed loads the built-in NR templates. No-op when templates exist.
	Seed(ctx context.Context) error
}

type checklistService struct {
	store  ChecklistStore
	logger *slog.Logger
}

// NewChecklistService creates a new ChecklistService.
func NewChecklistService(store ChecklistStore, logger *slog.Logger) ChecklistService {
	return &checklistService{
		store:  store,
		logger: logger,
	}
}

func (s *checklistService) List(ctx context.Context) ([]domain.NRChecklist, error) {
	const op = "ChecklistService.List"

	checklists, err := s.store.ListNRChecklists(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list checklists")
	}
	return checklists, nil
}

func (s *checklistService) Get(ctx context.Context, id int32) (*domain.NRChecklist, error) {
	const op = "ChecklistService.Get"

	cl, err := s.store.GetNRChecklist(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "checklist")
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to retrieve checklist")
	}
	return &cl, nil
}

func (s *checklistService) Seed(ctx context.Context) error {
	const op = "ChecklistService.Seed"

	count, err := s.store.CountNRChecklists(ctx)
	if err != nil {
		return domain.Internal(err, op, "Failed to count checklists")
	}
	if count > 0 {
		return nil
	}

	templates := domain.SeedChecklists()
	for _, cl := range templates {
		if err := s.store.InsertNRChecklist(ctx, cl); err != nil {
			return domain.Internal(err, op, "Failed to seed checklist "+cl.NRNumber)
		}
	}

	s.logger.Info("NR checklist templates seeded", "count", len(templates))
	return nil
}
