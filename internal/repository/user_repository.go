package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/policy-docs-api/internal/models"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, role, institution_id, email_verified,
       email_verification_token, password_reset_token, password_reset_expires, created_at, updated_at`

// UserRepository provides database access for credential records.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) findOne(ctx context.Context, op, column, value string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s = $1 LIMIT 1", userColumns, column)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// FindByUsername returns a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "find user by username", "username", username)
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "find user by email", "email", email)
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "find user by id", "id", id)
}

// FindByVerificationToken returns the user holding an email verification token.
func (r *UserRepository) FindByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(ctx, "find user by verification token", "email_verification_token", token)
}

// FindByResetToken returns the user holding a password reset token.
func (r *UserRepository) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(ctx, "find user by reset token", "password_reset_token", token)
}

// ExistsByUsernameOrEmail reports whether either identifier is taken.
func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, username, email); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// List returns the users of one institution, optionally narrowed to roles.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT " + userColumns + " FROM users WHERE institution_id = $1")
	args := []interface{}{filter.InstitutionID}
	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		args = append(args, pq.Array(roles))
		builder.WriteString(fmt.Sprintf(" AND role = ANY($%d)", len(args)))
	}
	builder.WriteString(" ORDER BY username ASC")

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, username, email, password_hash, first_name, last_name, role, institution_id, email_verified,
	email_verification_token, password_reset_token, password_reset_expires, created_at, updated_at)
	VALUES (:id, :username, :email, :password_hash, :first_name, :last_name, :role, :institution_id, :email_verified,
	:email_verification_token, :password_reset_token, :password_reset_expires, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// MarkEmailVerified consumes a verification token.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id, token string, at time.Time) error {
	const query = `UPDATE users SET email_verified = TRUE, email_verification_token = NULL, updated_at = $3
	WHERE id = $1 AND email_verification_token = $2`
	return r.execOne(ctx, "verify email", query, id, token, at)
}

// SetPasswordResetToken stores a reset token and its expiry.
func (r *UserRepository) SetPasswordResetToken(ctx context.Context, id, token string, expires, at time.Time) error {
	const query = `UPDATE users SET password_reset_token = $2, password_reset_expires = $3, updated_at = $4 WHERE id = $1`
	return r.execOne(ctx, "set password reset token", query, id, token, expires, at)
}

// ResetPassword stores a new hash and consumes the reset token it was issued for.
func (r *UserRepository) ResetPassword(ctx context.Context, id, token, passwordHash string, at time.Time) error {
	const query = `UPDATE users SET password_hash = $3, password_reset_token = NULL, password_reset_expires = NULL, updated_at = $4
	WHERE id = $1 AND password_reset_token = $2`
	return r.execOne(ctx, "reset password", query, id, token, passwordHash, at)
}

func (r *UserRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
