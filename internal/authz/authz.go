// Package authz holds the role capability table shared by the HTTP guard and the services.
package authz

import (
	"github.com/noah-isme/policy-docs-api/internal/models"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
)

// Operation names a guarded action.
type Operation string

const (
	DocumentList   Operation = "document:list"
	DocumentRead   Operation = "document:read"
	DocumentCreate Operation = "document:create"
	DocumentUpdate Operation = "document:update"
	ChangeList     Operation = "change:list"
	ChangeRead     Operation = "change:read"
	ChangePropose  Operation = "change:propose"
	ChangeReview   Operation = "change:review"
	ChangeVerify   Operation = "change:verify"
	ChangeExport   Operation = "change:export"
	UserList       Operation = "user:list"
)

// Capabilities maps each role to the operations it may perform.
var Capabilities = map[models.UserRole]map[Operation]bool{
	models.RoleImplementor: set(DocumentList, DocumentRead, DocumentCreate, DocumentUpdate,
		ChangeList, ChangeRead, ChangeVerify, ChangeExport, UserList),
	models.RoleHOD: set(DocumentList, DocumentRead,
		ChangeList, ChangeRead, ChangeReview, ChangeExport, UserList),
	models.RoleStaff: set(DocumentList, DocumentRead,
		ChangeList, ChangeRead, ChangePropose, UserList),
	models.RoleStudent: set(DocumentList, DocumentRead),
}

func set(ops ...Operation) map[Operation]bool {
	m := make(map[Operation]bool, len(ops))
	for _, op := range ops {
		m[op] = true
	}
	return m
}

// Allowed reports whether role may perform op. Unknown roles are denied everything.
func Allowed(role models.UserRole, op Operation) bool {
	return Capabilities[role][op]
}

// Require returns a Forbidden error when the actor lacks the capability.
func Require(actor models.Actor, op Operation) error {
	if actor.UserID == "" || actor.InstitutionID == "" {
		return appErrors.ErrUnauthorized
	}
	if !Allowed(actor.Role, op) {
		return appErrors.Clone(appErrors.ErrForbidden, "role "+string(actor.Role)+" cannot perform "+string(op))
	}
	return nil
}
