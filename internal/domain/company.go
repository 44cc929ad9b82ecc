package domain

import (
	"time"

	"github.com/google/uuid"
)

// Company is a client record inspections can be attached to.
// Its logo is the one feature gated by the plan's CanUploadLogo flag.
type Company struct {
	ID        int32     `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Name      string    `json:"name"`
	CNPJ      string    `json:"cnpj,omitempty"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	LogoURL   string    `json:"logoUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateCompanyParams contains validated parameters for creating a company.
type CreateCompanyParams struct {
	UserID  uuid.UUID
	Name    string
	CNPJ    string
	Address string
	Phone   string
}

// Validate checks the parameters for creation.
func (p *CreateCompanyParams) Validate() error {
	const op = "company.create"
	if p.UserID == uuid.Nil {
		return Invalid(op, "user is required")
	}
	if p.Name == "" {
		return Invalid(op, "name is required")
	}
	return nil
}

// UpdateCompanyParams contains fields updatable after creation.
// Nil pointers mean "leave unchanged".
type UpdateCompanyParams struct {
	ID      int32
	UserID  uuid.UUID
	Name    *string
	CNPJ    *string
	Address *string
	Phone   *string
}
