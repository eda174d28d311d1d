package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/family-kitchen/internal/model"
	"github.com/iliyamo/family-kitchen/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = "id,email,password_hash,oauth_provider,oauth_subject,is_active,created_at,updated_at"

// Create inserts a password user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password string, cost int) (string, error) {
	email = normalizeEmail(email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash) VALUES (?,?,?)",
		id, email, hash)
	if err != nil {
		if isDuplicate(err) {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// FindOrCreateOAuth returns the user linked to provider/subject, linking an
// existing account with the same email, or creating a new one.
func (r *UserRepo) FindOrCreateOAuth(ctx context.Context, provider, subject, email string) (model.User, error) {
	email = normalizeEmail(email)
	u, err := r.scanOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE oauth_provider=? AND oauth_subject=? LIMIT 1",
		provider, subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.User{}, err
	}
	if email != "" {
		if u, err = r.GetByEmail(ctx, email); err == nil {
			_, err = r.DB.ExecContext(ctx,
				"UPDATE users SET oauth_provider=?, oauth_subject=? WHERE id=?",
				provider, subject, u.ID)
			if err != nil {
				return model.User{}, err
			}
			u.OAuthProvider, u.OAuthSubject = provider, subject
			return u, nil
		} else if !errors.Is(err, sql.ErrNoRows) {
			return model.User{}, err
		}
	}
	id := uuid.NewString()
	if _, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, oauth_provider, oauth_subject) VALUES (?,?,?,?)",
		id, email, provider, subject); err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	return r.GetByID(ctx, id)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.scanOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		normalizeEmail(email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.scanOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) scanOne(ctx context.Context, q string, args ...any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, q, args...).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.OAuthProvider, &u.OAuthSubject,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
