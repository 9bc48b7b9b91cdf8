package dto

import "github.com/noah-isme/policy-docs-api/internal/models"

// ProposeChangeRequest proposes an edit to one clause. Clause may be omitted when
// SectionIndex points into inline content.
type ProposeChangeRequest struct {
	Clause         string `json:"clause" validate:"omitempty,max=5000"`
	ProposedChange string `json:"proposedChange" validate:"required,max=5000"`
	Justification  string `json:"justification" validate:"required,max=5000"`
	SectionIndex   *int   `json:"sectionIndex" validate:"omitempty,min=0"`
}

// ReviewChangeRequest is a HOD decision.
type ReviewChangeRequest struct {
	Status          models.ChangeStatus `json:"status" validate:"required"`
	RejectionReason string              `json:"rejectionReason" validate:"omitempty,max=2000"`
}

// ChangeFilterQuery captures list query parameters.
type ChangeFilterQuery struct {
	DocumentID string   `form:"documentId"`
	Status     []string `form:"status"`
	Mine       bool     `form:"mine"`
	Limit      int      `form:"limit"`
	Offset     int      `form:"offset"`
}

// RevisionRequestPayload is the legacy revision-request body accepted by the gateway.
type RevisionRequestPayload struct {
	DocumentID     string `json:"documentId" validate:"required"`
	SectionIndex   *int   `json:"sectionIndex" validate:"omitempty,min=0"`
	CurrentClause  string `json:"currentClause"`
	ProposedClause string `json:"proposedClause" validate:"required"`
	Justification  string `json:"justification" validate:"required"`
}

// ProposeChange translates the legacy payload into a change proposal.
func (p RevisionRequestPayload) ProposeChange() ProposeChangeRequest {
	return ProposeChangeRequest{
		Clause:         p.CurrentClause,
		ProposedChange: p.ProposedClause,
		Justification:  p.Justification,
		SectionIndex:   p.SectionIndex,
	}
}
