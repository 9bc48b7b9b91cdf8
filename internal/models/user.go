package models

import "time"

// UserRole represents the roles of the capability table.
type UserRole string

const (
	RoleImplementor UserRole = "IMPLEMENTOR"
	RoleHOD         UserRole = "HOD"
	RoleStaff       UserRole = "STAFF"
	RoleStudent     UserRole = "STUDENT"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleImplementor, RoleHOD, RoleStaff, RoleStudent:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID                     string     `db:"id" json:"id"`
	Username               string     `db:"username" json:"username"`
	Email                  string     `db:"email" json:"email"`
	PasswordHash           string     `db:"password_hash" json:"-"`
	FirstName              string     `db:"first_name" json:"firstName"`
	LastName               string     `db:"last_name" json:"lastName"`
	Role                   UserRole   `db:"role" json:"role"`
	InstitutionID          string     `db:"institution_id" json:"institutionId"`
	EmailVerified          bool       `db:"email_verified" json:"emailVerified"`
	EmailVerificationToken *string    `db:"email_verification_token" json:"-"`
	PasswordResetToken     *string    `db:"password_reset_token" json:"-"`
	PasswordResetExpires   *time.Time `db:"password_reset_expires" json:"-"`
	CreatedAt              time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updatedAt"`
}

// Info strips credential fields from the user.
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          u.Role,
		InstitutionID: u.InstitutionID,
		EmailVerified: u.EmailVerified,
	}
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	InstitutionID string
	Roles         []UserRole
}
