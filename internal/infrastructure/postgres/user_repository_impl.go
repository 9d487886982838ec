package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	"github.com/oksasatya/anaqa-user-service/internal/domain/repository"
	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
)

const emailIndex = "users_email_key"

// Conner hands out the borrowed DB handle. *Manager implements it.
type Conner interface {
	Conn() (DB, error)
}

const userColumns = `id, email, password_hash, name, role, is_email_verified,
	COALESCE(refresh_token_hash, ''), COALESCE(password_reset_token_hash, ''),
	password_reset_expires_at, last_login_at, created_at, updated_at`

type UserRepository struct {
	db     Conner
	hasher entity.PasswordHasher
}

func NewUserRepository(db Conner, hasher entity.PasswordHasher) *UserRepository {
	return &UserRepository{db: db, hasher: hasher}
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &role, &u.IsEmailVerified,
		&u.RefreshTokenHash, &u.PasswordResetTokenHash,
		&u.PasswordResetExpiresAt, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = entity.Role(role)
	return u, nil
}

// findOne returns (nil, nil) on no rows.
func (r *UserRepository) findOne(ctx context.Context, where string, args ...any) (*entity.User, error) {
	db, err := r.db.Conn()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User, password string) error {
	if err := entity.BeforeSaveUser(ctx, u, password, r.hasher); err != nil {
		return err
	}
	db, err := r.db.Conn()
	if err != nil {
		return err
	}
	row := db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, role, is_email_verified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, u.Email, u.Password, u.Name, string(u.Role), u.IsEmailVerified)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err, emailIndex) {
			return repository.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if !validID(id) {
		return nil, nil
	}
	return r.findOne(ctx, `id = $1`, id)
}

func (r *UserRepository) FindByIDOrFail(ctx context.Context, id string) (*entity.User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("User", id)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, `lower(email) = $1`, entity.NormalizeEmail(email))
}

func (r *UserRepository) FindByRefreshToken(ctx context.Context, digest string) (*entity.User, error) {
	return r.findOne(ctx, `refresh_token_hash = $1`, digest)
}

func (r *UserRepository) FindByResetToken(ctx context.Context, digest string, now time.Time) (*entity.User, error) {
	return r.findOne(ctx, `password_reset_token_hash = $1 AND password_reset_expires_at > $2`, digest, now)
}

func (r *UserRepository) FindAll(ctx context.Context, f repository.UserFilter, page, limit int) (repository.UserPage, error) {
	db, err := r.db.Conn()
	if err != nil {
		return repository.UserPage{}, err
	}
	where, args := userWhere(f)

	var total int64
	if err := db.QueryRow(ctx, `SELECT count(*) FROM users`+where, args...).Scan(&total); err != nil {
		return repository.UserPage{}, fmt.Errorf("count users: %w", err)
	}

	skip := (page - 1) * limit
	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, userColumns, where, n+1, n+2)
	rows, err := db.Query(ctx, q, append(args, limit, skip)...)
	if err != nil {
		return repository.UserPage{}, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]*entity.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return repository.UserPage{}, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return repository.UserPage{}, fmt.Errorf("list users: %w", err)
	}
	return repository.UserPage{Items: items, Total: total}, nil
}

// Update merges patch into the stored user, runs BeforeSaveUser and persists it.
func (r *UserRepository) Update(ctx context.Context, id string, patch entity.UserPatch) (*entity.User, error) {
	if !validID(id) {
		return nil, apperror.NotFound("User", id)
	}
	db, err := r.db.Conn()
	if err != nil {
		return nil, err
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("User", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	newPassword := patch.Apply(u)
	if err := entity.BeforeSaveUser(ctx, u, newPassword, r.hasher); err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE users
		SET email = $1, password_hash = $2, name = $3, role = $4, is_email_verified = $5, updated_at = now()
		WHERE id = $6
		RETURNING updated_at
	`, u.Email, u.Password, u.Name, string(u.Role), u.IsEmailVerified, u.ID).Scan(&u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, emailIndex) {
			return nil, repository.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err, emailIndex) {
			return nil, repository.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("commit: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return apperror.NotFound("User", id)
	}
	db, err := r.db.Conn()
	if err != nil {
		return err
	}
	res, err := db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperror.NotFound("User", id)
	}
	return nil
}

func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	db, err := r.db.Conn()
	if err != nil {
		return false, err
	}
	var exists bool
	err = db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = $1)`, entity.NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role entity.Role) (int64, error) {
	db, err := r.db.Conn()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.QueryRow(ctx, `SELECT count(*) FROM users WHERE role = $1`, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count by role: %w", err)
	}
	return n, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "update last login", `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, id)
}

// SetRefreshToken stores the digest; an empty digest clears it.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id, digest string) error {
	return r.exec(ctx, "set refresh token",
		`UPDATE users SET refresh_token_hash = NULLIF($1, ''), updated_at = now() WHERE id = $2`, digest, id)
}

func (r *UserRepository) SetResetToken(ctx context.Context, id, digest string, expiresAt time.Time) error {
	return r.exec(ctx, "set reset token",
		`UPDATE users SET password_reset_token_hash = $1, password_reset_expires_at = $2, updated_at = now() WHERE id = $3`,
		digest, expiresAt, id)
}

func (r *UserRepository) ResetPassword(ctx context.Context, id, password string) error {
	hash, err := r.hasher.Hash(ctx, password)
	if err != nil {
		return err
	}
	return r.exec(ctx, "reset password", `
		UPDATE users
		SET password_hash = $1, password_reset_token_hash = NULL, password_reset_expires_at = NULL,
		    refresh_token_hash = NULL, updated_at = now()
		WHERE id = $2
	`, hash, id)
}

// exec runs a single-row update and maps "no row" to NotFound.
func (r *UserRepository) exec(ctx context.Context, op, sql string, args ...any) error {
	db, err := r.db.Conn()
	if err != nil {
		return err
	}
	res, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.RowsAffected() == 0 {
		return apperror.NotFound("User", fmt.Sprint(args[len(args)-1]))
	}
	return nil
}

// validID rejects ids that cannot be a stored UUID, so they read as "not found"
// instead of a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
