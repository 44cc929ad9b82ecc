package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/sqlc-dev/pqtype"
)

const inspectionColumns = `id, user_id, company_id, title, location, inspector_name,
	inspection_date, status, checklist_data, overall_score, observations, created_at, updated_at`

func scanInspection(row interface{ Scan(dest ...any) error }) (domain.Inspection, error) {
	var insp domain.Inspection
	var companyID sql.NullInt32
	var location, inspectorName, observations sql.NullString
	var checklist pqtype.NullRawMessage
	var score sql.NullInt32
	err := row.Scan(&insp.ID, &insp.UserID, &companyID, &insp.Title, &location, &inspectorName,
		&insp.InspectionDate, &insp.Status, &checklist, &score, &observations,
		&insp.CreatedAt, &insp.UpdatedAt)
	if err != nil {
		return domain.Inspection{}, err
	}
	insp.CompanyID = int32Ptr(companyID)
	insp.Location = stringValue(location)
	insp.InspectorName = stringValue(inspectorName)
	insp.Observations = stringValue(observations)
	insp.OverallScore = int32Ptr(score)
	if checklist.Valid {
		insp.ChecklistData = checklist.RawMessage
	}
	return insp, nil
}

func nullRawMessage(m json.RawMessage) pqtype.NullRawMessage {
	if len(m) == 0 {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: m, Valid: true}
}

// CreateInspectionParams mirrors the insert columns.
type CreateInspectionParams struct {
	UserID         uuid.UUID
	CompanyID      *int32
	Title          string
	Location       string
	InspectorName  string
	InspectionDate time.Time
	ChecklistData  json.RawMessage
	Observations   string
}

const createInspection = `
INSERT INTO inspections
	(user_id, company_id, title, location, inspector_name, inspection_date, checklist_data, observations)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + inspectionColumns

// CreateInspection inserts a new inspection and returns the stored row.
func (q *Queries) CreateInspection(ctx context.Context, arg CreateInspectionParams) (domain.Inspection, error) {
	return scanInspection(q.db.QueryRowContext(ctx, createInspection,
		arg.UserID, nullInt32(arg.CompanyID), arg.Title,
		nullString(arg.Location), nullString(arg.InspectorName), arg.InspectionDate,
		nullRawMessage(arg.ChecklistData), nullString(arg.Observations)))
}

const getInspection = `SELECT ` + inspectionColumns + `
FROM inspections WHERE id = $1 AND user_id = $2`

// GetInspection returns an inspection scoped to its owner.
func (q *Queries) GetInspection(ctx context.Context, id int32, userID uuid.UUID) (domain.Inspection, error) {
	return scanInspection(q.db.QueryRowContext(ctx, getInspection, id, userID))
}

const listInspections = `SELECT ` + inspectionColumns + `
FROM inspections
WHERE user_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
ORDER BY created_at DESC`

// ListInspections returns a user's inspections, newest first, optionally
// filtered to a set of statuses.
func (q *Queries) ListInspections(ctx context.Context, userID uuid.UUID, statuses []string) ([]domain.Inspection, error) {
	if statuses == nil {
		statuses = []string{}
	}
	rows, err := q.db.QueryContext(ctx, listInspections, userID, pq.Array(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inspections []domain.Inspection
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, err
		}
		inspections = append(inspections, insp)
	}
	return inspections, rows.Err()
}

// UpdateInspectionParams mirrors the updatable columns; NULL keeps the
// stored value.
type UpdateInspectionParams struct {
	ID            int32
	UserID        uuid.UUID
	Title         *string
	Location      *string
	InspectorName *string
	ChecklistData json.RawMessage
	OverallScore  *int32
	Observations  *string
}

const updateInspection = `
UPDATE inspections SET
	title          = COALESCE($3, title),
	location       = COALESCE($4, location),
	inspector_name = COALESCE($5, inspector_name),
	checklist_data = COALESCE($6, checklist_data),
	overall_score  = COALESCE($7, overall_score),
	observations   = COALESCE($8, observations),
	updated_at     = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + inspectionColumns

// UpdateInspection applies a partial update scoped to the owner.
func (q *Queries) UpdateInspection(ctx context.Context, arg UpdateInspectionParams) (domain.Inspection, error) {
	var title, location, inspector, observations sql.NullString
	if arg.Title != nil {
		title = sql.NullString{String: *arg.Title, Valid: true}
	}
	if arg.Location != nil {
		location = sql.NullString{String: *arg.Location, Valid: true}
	}
	if arg.InspectorName != nil {
		inspector = sql.NullString{String: *arg.InspectorName, Valid: true}
	}
	if arg.Observations != nil {
		observations = sql.NullString{String: *arg.Observations, Valid: true}
	}
	return scanInspection(q.db.QueryRowContext(ctx, updateInspection,
		arg.ID, arg.UserID, title, location, inspector,
		nullRawMessage(arg.ChecklistData), nullInt32(arg.OverallScore), observations))
}

const deleteInspection = `DELETE FROM inspections WHERE id = $1 AND user_id = $2`

// DeleteInspection removes an inspection scoped to the owner.
// Returns the number of rows deleted.
func (q *Queries) DeleteInspection(ctx context.Context, id int32, userID uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteInspection, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const setInspectionStatus = `
UPDATE inspections SET status = $3, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + inspectionColumns

// SetInspectionStatus updates the lifecycle status scoped to the owner.
func (q *Queries) SetInspectionStatus(ctx context.Context, id int32, userID uuid.UUID, status domain.InspectionStatus) (domain.Inspection, error) {
	return scanInspection(q.db.QueryRowContext(ctx, setInspectionStatus, id, userID, status))
}

const countInspectionsSince = `
SELECT count(*) FROM inspections WHERE user_id = $1 AND created_at >= $2`

// CountInspectionsSince counts a user's inspections created on or after the
// given instant. This is the usage-metering query: it is re-run on every
// entitlement check and never cached.
func (q *Queries) CountInspectionsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countInspectionsSince, userID, since).Scan(&count)
	return count, err
}

const getDashboardStats = `
SELECT
	count(*),
	count(*) FILTER (WHERE status = 'completed' AND created_at >= $2),
	coalesce(avg(overall_score) FILTER (WHERE overall_score IS NOT NULL), 0)::bigint
FROM inspections
WHERE user_id = $1`

// GetDashboardStats computes the dashboard aggregate in one pass.
func (q *Queries) GetDashboardStats(ctx context.Context, userID uuid.UUID, monthStart time.Time) (domain.DashboardStats, error) {
	var stats domain.DashboardStats
	err := q.db.QueryRowContext(ctx, getDashboardStats, userID, monthStart).
		Scan(&stats.TotalInspections, &stats.CompletedThisMonth, &stats.AverageScore)
	return stats, err
}
