package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/obraguard/obraguard/internal/domain"
)

const companyColumns = `id, user_id, name, cnpj, address, phone, logo_url, created_at`

func scanCompany(row interface{ Scan(dest ...any) error }) (domain.Company, error) {
	var c domain.Company
	var cnpj, address, phone, logoURL sql.NullString
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &cnpj, &address, &phone, &logoURL, &c.CreatedAt)
	if err != nil {
		return domain.Company{}, err
	}
	c.CNPJ = stringValue(cnpj)
	c.Address = stringValue(address)
	c.Phone = stringValue(phone)
	c.LogoURL = stringValue(logoURL)
	return c, nil
}

const createCompany = `
INSERT INTO companies (user_id, name, cnpj, address, phone)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + companyColumns

// CreateCompany inserts a new company record.
func (q *Queries) CreateCompany(ctx context.Context, arg domain.CreateCompanyParams) (domain.Company, error) {
	return scanCompany(q.db.QueryRowContext(ctx, createCompany,
		arg.UserID, arg.Name, nullString(arg.CNPJ), nullString(arg.Address), nullString(arg.Phone)))
}

const getCompany = `SELECT ` + companyColumns + ` FROM companies WHERE id = $1 AND user_id = $2`

// GetCompany returns a company scoped to its owner.
func (q *Queries) GetCompany(ctx context.Context, id int32, userID uuid.UUID) (domain.Company, error) {
	return scanCompany(q.db.QueryRowContext(ctx, getCompany, id, userID))
}

const listCompanies = `SELECT ` + companyColumns + `
FROM companies WHERE user_id = $1 ORDER BY created_at DESC`

// ListCompanies returns a user's companies, newest first.
func (q *Queries) ListCompanies(ctx context.Context, userID uuid.UUID) ([]domain.Company, error) {
	rows, err := q.db.QueryContext(ctx, listCompanies, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

const updateCompany = `
UPDATE companies SET
	name    = COALESCE($3, name),
	cnpj    = COALESCE($4, cnpj),
	address = COALESCE($5, address),
	phone   = COALESCE($6, phone)
WHERE id = $1 AND user_id = $2
RETURNING ` + companyColumns

// UpdateCompany applies a partial update scoped to the owner.
func (q *Queries) UpdateCompany(ctx context.Context, arg domain.UpdateCompanyParams) (domain.Company, error) {
	var name, cnpj, address, phone sql.NullString
	if arg.Name != nil {
		name = sql.NullString{String: *arg.Name, Valid: true}
	}
	if arg.CNPJ != nil {
		cnpj = sql.NullString{String: *arg.CNPJ, Valid: true}
	}
	if arg.Address != nil {
		address = sql.NullString{String: *arg.Address, Valid: true}
	}
	if arg.Phone != nil {
		phone = sql.NullString{String: *arg.Phone, Valid: true}
	}
	return scanCompany(q.db.QueryRowContext(ctx, updateCompany,
		arg.ID, arg.UserID, name, cnpj, address, phone))
}

const setCompanyLogoURL = `
UPDATE companies SET logo_url = $3 WHERE id = $1 AND user_id = $2
RETURNING ` + companyColumns

// SetCompanyLogoURL stores the uploaded logo's public URL.
func (q *Queries) SetCompanyLogoURL(ctx context.Context, id int32, userID uuid.UUID, logoURL string) (domain.Company, error) {
	return scanCompany(q.db.QueryRowContext(ctx, setCompanyLogoURL, id, userID, logoURL))
}
