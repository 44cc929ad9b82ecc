// Package domain contains core business types and interfaces.
//
// This file defines the Inspection type — the billable unit metered by the
// subscription core — and its parameter structs.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InspectionStatus is the lifecycle state of an inspection.
type InspectionStatus string

const (
	InspectionStatusDraft     InspectionStatus = "draft"
	InspectionStatusCompleted InspectionStatus = "completed"
)

// Inspection is a site safety inspection against one or more NR checklists.
type Inspection struct {
	ID             int32            `json:"id"`
	UserID         uuid.UUID        `json:"userId"`
	CompanyID      *int32           `json:"companyId,omitempty"`
	Title          string           `json:"title"`
	Location       string           `json:"location,omitempty"`
	InspectorName  string           `json:"inspectorName,omitempty"`
	InspectionDate time.Time        `json:"inspectionDate"`
	Status         InspectionStatus `json:"status"`
	ChecklistData  json.RawMessage  `json:"checklistData,omitempty"` // responses keyed by checklist item id
	OverallScore   *int32           `json:"overallScore,omitempty"`  // conformity percentage, set on completion
	Observations   string           `json:"observations,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// CreateInspectionParams contains validated parameters for creating an inspection.
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

// Validate checks the parameters for creation.
func (p *CreateInspectionParams) Validate() error {
	const op = "inspection.create"
	if p.UserID == uuid.Nil {
		return Invalid(op, "user is required")
	}
	if p.Title == "" {
		return Invalid(op, "title is required")
	}
	if len(p.Title) > 200 {
		return Invalid(op, "title must be at most 200 characters")
	}
	return nil
}

// UpdateInspectionParams contains fields updatable after creation.
// Nil pointers mean "leave unchanged".
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

// DashboardStats is the aggregate shown on the dashboard.
type DashboardStats struct {
	TotalInspections   int64 `json:"totalInspections"`
	CompletedThisMonth int64 `json:"completedThisMonth"`
	AverageScore       int64 `json:"averageScore"`
}

// QuotaExceeded builds the user-facing denial for an exhausted plan.
// The message carries the numeric limit so the client can show it verbatim.
func QuotaExceeded(op string, limit int32) *Error {
	return Forbidden(op, fmt.Sprintf("Limite de %d inspeções/mês atingido. Faça upgrade do seu plano.", limit))
}
