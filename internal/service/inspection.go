package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/obraguard/obraguard/internal/metrics"
	"github.com/obraguard/obraguard/internal/repository"
)

// InspectionStore is the subset of repository queries the inspection
// service uses. *repository.Queries satisfies it.
type InspectionStore interface {
	CreateInspection(ctx context.Context, arg repository.CreateInspectionParams) (domain.Inspection, error)
	GetInspection(ctx context.Context, id int32, userID uuid.UUID) (domain.Inspection, error)
	ListInspections(ctx context.Context, userID uuid.UUID, statuses []string) ([]domain.Inspection, error)
	UpdateInspection(ctx context.Context, arg repository.UpdateInspectionParams) (domain.Inspection, error)
	DeleteInspection(ctx context.Context, id int32, userID uuid.UUID) (int64, error)
	SetInspectionStatus(ctx context.Context, id int32, userID uuid.UUID, status domain.InspectionStatus) (domain.Inspection, error)
	GetDashboardStats(ctx context.Context, userID uuid.UUID, monthStart time.Time) (domain.DashboardStats, error)
}

// InspectionService defines inspection lifecycle operations. All reads and
// writes are scoped to the owning user.
type InspectionService interface {
	// Create stores a new inspection. The caller is responsible for the
	// quota check; creation itself does not consult the subscription.
	Create(ctx context.Context, params domain.CreateInspectionParams) (*domain.Inspection, error)

	// Get returns one inspection. Returns domain.ENOTFOUND when absent or
	// owned by someone else.
	Get(ctx context.Context, id int32, userID uuid.UUID) (*domain.Inspection, error)

	// List returns the user's inspections, optionally filtered by status.
	List(ctx context.Context, userID uuid.UUID, statuses []string) ([]domain.Inspection, error)

	// Update applies a partial update.
	Update(ctx context.Context, params domain.UpdateInspectionParams) (*domain.Inspection, error)

	// Delete removes an inspection.
	Delete(ctx context.Context, id int32, userID uuid.UUID) error

	// Complete marks an inspection completed and stores the final score.
	Complete(ctx context.Context, id int32, userID uuid.UUID, overallScore *int32) (*domain.Inspection, error)

	// DashboardStats returns the user's aggregate numbers.
	DashboardStats(ctx context.Context, userID uuid.UUID) (domain.DashboardStats, error)
}

type inspectionService struct {
	store  InspectionStore
	logger *slog.Logger
}

// NewInspectionService creates a new InspectionService.
func NewInspectionService(store InspectionStore, logger *slog.Logger) InspectionService {
	return &inspectionService{
		store:  store,
		logger: logger,
	}
}

func (s *inspectionService) Create(ctx context.Context, params domain.CreateInspectionParams) (*domain.Inspection, error) {
	const op = "InspectionService.Create"

	if err := params.Validate(); err != nil {
		return nil, err
	}

	date := params.InspectionDate
	if date.IsZero() {
		date = time.Now()
	}

	insp, err := s.store.CreateInspection(ctx, repository.CreateInspectionParams{
		UserID:         params.UserID,
		CompanyID:      params.CompanyID,
		Title:          params.Title,
		Location:       params.Location,
		InspectorName:  params.InspectorName,
		InspectionDate: date,
		ChecklistData:  params.ChecklistData,
		Observations:   params.Observations,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create inspection")
	}

	metrics.InspectionsCreated.Inc()
	s.logger.Info("inspection created", "inspection_id", insp.ID, "user_id", params.UserID)
	return &insp, nil
}

func (s *inspectionService) Get(ctx context.Context, id int32, userID uuid.UUID) (*domain.Inspection, error) {
	const op = "InspectionService.Get"

	insp, err := s.store.GetInspection(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "inspection")
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to retrieve inspection")
	}
	return &insp, nil
}

func (s *inspectionService) List(ctx context.Context, userID uuid.UUID, statuses []string) ([]domain.Inspection, error) {
	const op = "InspectionService.List"

	for _, status := range statuses {
		switch domain.InspectionStatus(status) {
		case domain.InspectionStatusDraft, domain.InspectionStatusCompleted:
		default:
			return nil, domain.Invalid(op, "Invalid status filter")
		}
	}

	inspections, err := s.store.ListInspections(ctx, userID, statuses)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list inspections")
	}
	return inspections, nil
}

func (s *inspectionService) Update(ctx context.Context, params domain.UpdateInspectionParams) (*domain.Inspection, error) {
	const op = "InspectionService.Update"

	if params.Title != nil && *params.Title == "" {
		return nil, domain.Invalid(op, "Title cannot be empty")
	}

	insp, err := s.store.UpdateInspection(ctx, repository.UpdateInspectionParams{
		ID:            params.ID,
		UserID:        params.UserID,
		Title:         params.Title,
		Location:      params.Location,
		InspectorName: params.InspectorName,
		ChecklistData: params.ChecklistData,
		OverallScore:  params.OverallScore,
		Observations:  params.Observations,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "inspection")
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to update inspection")
	}
	return &insp, nil
}

func (s *inspectionService) Delete(ctx context.Context, id int32, userID uuid.UUID) error {
	const op = "InspectionService.Delete"

	rows, err := s.store.DeleteInspection(ctx, id, userID)
	if err != nil {
		return domain.Internal(err, op, "Failed to delete inspection")
	}
	if rows == 0 {
		return domain.NotFound(op, "inspection")
	}

	s.logger.Info("inspection deleted", "inspection_id", id, "user_id", userID)
	return nil
}

func (s *inspectionService) Complete(ctx context.Context, id int32, userID uuid.UUID, overallScore *int32) (*domain.Inspection, error) {
	const op = "InspectionService.Complete"

	if overallScore != nil {
		_, err := s.store.UpdateInspection(ctx, repository.UpdateInspectionParams{
			ID:           id,
			UserID:       userID,
			OverallScore: overallScore,
		})
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "inspection")
		}
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to store score")
		}
	}

	insp, err := s.store.SetInspectionStatus(ctx, id, userID, domain.InspectionStatusCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "inspection")
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to complete inspection")
	}

	s.logger.Info("inspection completed", "inspection_id", id, "user_id", userID)
	return &insp, nil
}

func (s *inspectionService) DashboardStats(ctx context.Context, userID uuid.UUID) (domain.DashboardStats, error) {
	const op = "InspectionService.DashboardStats"

	stats, err := s.store.GetDashboardStats(ctx, userID, monthStart(time.Now()))
	if err != nil {
		return domain.DashboardStats{}, domain.Internal(err, op, "Failed to compute dashboard stats")
	}
	return stats, nil
}
