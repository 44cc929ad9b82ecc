package repository

import (
	"context"

	"github.com/obraguard/obraguard/internal/domain"
	"github.com/sqlc-dev/pqtype"
)

const checklistColumns = `id, nr_number, nr_name, category, items`

func scanChecklist(row interface{ Scan(dest ...any) error }) (domain.NRChecklist, error) {
	var cl domain.NRChecklist
	var items pqtype.NullRawMessage
	err := row.Scan(&cl.ID, &cl.NRNumber, &cl.NRName, &cl.Category, &items)
	if err != nil {
		return domain.NRChecklist{}, err
	}
	if items.Valid {
		cl.Items = items.RawMessage
	}
	return cl, nil
}

const listNRChecklists = `SELECT ` + checklistColumns + ` FROM nr_checklists ORDER BY id`

// ListNRChecklists returns all NR checklist templates.
func (q *Queries) ListNRChecklists(ctx context.Context) ([]domain.NRChecklist, error) {
	rows, err := q.db.QueryContext(ctx, listNRChecklists)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checklists []domain.NRChecklist
	for rows.Next() {
		cl, err := scanChecklist(rows)
		if err != nil {
			return nil, err
		}
		checklists = append(checklists, cl)
	}
	return checklists, rows.Err()
}

const getNRChecklist = `SELECT ` + checklistColumns + ` FROM nr_checklists WHERE id = $1`

// GetNRChecklist returns one checklist template.
func (q *Queries) GetNRChecklist(ctx context.Context, id int32) (domain.NRChecklist, error) {
	return scanChecklist(q.db.QueryRowContext(ctx, getNRChecklist, id))
}

const countNRChecklists = `SELECT count(*) FROM nr_checklists`

// CountNRChecklists returns the number of stored templates (seed guard).
func (q *Queries) CountNRChecklists(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countNRChecklists).Scan(&count)
	return count, err
}

const insertNRChecklist = `
INSERT INTO nr_checklists (nr_number, nr_name, category, items)
VALUES ($1, $2, $3, $4)`

// InsertNRChecklist stores a checklist template (seeding only).
func (q *Queries) InsertNRChecklist(ctx context.Context, cl domain.NRChecklist) error {
	_, err := q.db.ExecContext(ctx, insertNRChecklist,
		cl.NRNumber, cl.NRName, cl.Category, pqtype.NullRawMessage{RawMessage: cl.Items, Valid: len(cl.Items) > 0})
	return err
}
