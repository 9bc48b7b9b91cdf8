package models

import "time"

// ChangeStatus captures workflow states of a change proposal.
type ChangeStatus string

const (
	ChangeStatusPending     ChangeStatus = "PENDING"
	ChangeStatusApproved    ChangeStatus = "APPROVED"
	ChangeStatusRejected    ChangeStatus = "REJECTED"
	ChangeStatusImplemented ChangeStatus = "IMPLEMENTED"
)

// Change is a proposed edit to one clause of a document.
type Change struct {
	ID              string       `db:"id" json:"id"`
	DocumentID      string       `db:"document_id" json:"documentId"`
	InstitutionID   string       `db:"institution_id" json:"institutionId"`
	SectionIndex    *int         `db:"section_index" json:"sectionIndex,omitempty"`
	Clause          string       `db:"clause" json:"clause"`
	ProposedChange  string       `db:"proposed_change" json:"proposedChange"`
	Justification   string       `db:"justification" json:"justification"`
	Status          ChangeStatus `db:"status" json:"status"`
	ProposerID      string       `db:"proposer_id" json:"proposerId"`
	HODID           *string      `db:"hod_id" json:"hodId,omitempty"`
	RejectionReason *string      `db:"rejection_reason" json:"rejectionReason,omitempty"`
	ImplementorID   *string      `db:"implementor_id" json:"implementorId,omitempty"`
	ReviewedAt      *time.Time   `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ImplementedAt   *time.Time   `db:"implemented_at" json:"implementedAt,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updatedAt"`
}

// ChangeFilter constrains listing queries. InstitutionID is mandatory.
type ChangeFilter struct {
	InstitutionID string
	DocumentID    string
	DocumentIDs   []string
	Status        []ChangeStatus
	ProposerID    string
	Limit         int
	Offset        int
}
