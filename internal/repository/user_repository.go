package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/sukudha/academy-service/internal/domain"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the store's unique email index rejects a write.
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByEmailAndRole(ctx context.Context, email string, role domain.Role) (*domain.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	SetResetOTP(ctx context.Context, id, otp string, expiresAt time.Time) error
	ClearResetOTP(ctx context.Context, id string) error
	// ConsumeResetOTP replaces the password hash and clears the OTP in one
	// update, only when email, otp and expiresAt > now all match.
	ConsumeResetOTP(ctx context.Context, email, otp, newHash string, now time.Time) (*domain.User, error)
	SetActive(ctx context.Context, id string, active bool) (*domain.User, error)
	Ping(ctx context.Context) error
}

// DBTX is the subset of pgxpool.Pool used by the Postgres repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const userColumns = `id, full_name, email, password_hash, role, is_active, last_login,
        reset_otp, reset_otp_expires_at, created_at, updated_at`

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, full_name, email, password_hash, role, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.FullName,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateEmail
		}
		return oops.Code("USER_CREATE_FAILED").With("operation", "insert user").Wrap(err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.getOne(ctx, "get user by id", query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return r.getOne(ctx, "get user by email", query, email)
}

func (r *userRepository) GetByEmailAndRole(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email=$1 AND role=$2`
	return r.getOne(ctx, "get user by email and role", query, email, role)
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_login=$1, updated_at=NOW() WHERE id=$2`
	return r.execOne(ctx, "touch last login", query, at, id)
}

func (r *userRepository) SetResetOTP(ctx context.Context, id, otp string, expiresAt time.Time) error {
	const query = `
        UPDATE users SET reset_otp=$1, reset_otp_expires_at=$2, updated_at=NOW()
        WHERE id=$3`
	return r.execOne(ctx, "set reset otp", query, otp, expiresAt, id)
}

func (r *userRepository) ClearResetOTP(ctx context.Context, id string) error {
	const query = `
        UPDATE users SET reset_otp=NULL, reset_otp_expires_at=NULL, updated_at=NOW()
        WHERE id=$1`
	return r.execOne(ctx, "clear reset otp", query, id)
}

func (r *userRepository) ConsumeResetOTP(ctx context.Context, email, otp, newHash string, now time.Time) (*domain.User, error) {
	const query = `
        UPDATE users SET password_hash=$1, reset_otp=NULL, reset_otp_expires_at=NULL, updated_at=NOW()
        WHERE email=$2 AND reset_otp=$3 AND reset_otp_expires_at > $4
        RETURNING ` + userColumns
	return r.getOne(ctx, "consume reset otp", query, newHash, email, otp, now)
}

func (r *userRepository) SetActive(ctx context.Context, id string, active bool) (*domain.User, error) {
	const query = `
        UPDATE users SET is_active=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING ` + userColumns
	return r.getOne(ctx, "set active", query, active, id)
}

func (r *userRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *userRepository) getOne(ctx context.Context, operation, query string, args ...any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.LastLogin,
		&user.ResetOTP,
		&user.ResetOTPExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return nil, ErrUserNotFound
		}
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", operation).Wrap(err)
	}
	return &user, nil
}

func (r *userRepository) execOne(ctx context.Context, operation, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isMalformedID(err) {
			return ErrUserNotFound
		}
		return oops.Code("USER_UPDATE_FAILED").With("operation", operation).Wrap(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// isMalformedID reports Postgres rejecting a value that is not a uuid; no
// row can carry such an id.
func isMalformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}
