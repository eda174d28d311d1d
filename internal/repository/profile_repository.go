package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// ProfileRepo reads and writes the `profiles` table. A profile is the only
// entity without a family filter on reads: it is looked up by the
// authenticated identity and is where the family code comes from.
type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// GetByID returns the profile of the given user or ErrNotFound when signup
// has not been completed yet.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	const q = `SELECT id, name, role, avatar_url, language, family_code FROM profiles WHERE id = ?`
	var p model.Profile
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Name, &p.Role, &p.AvatarURL, &p.Language, &p.FamilyCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Save creates the profile, or updates name/role/avatar/language of an
// existing one. The family code is set exactly once: a save that carries a
// different code than the stored one fails with ErrFamilyLocked and changes
// nothing. The returned bool is true when a new row was created.
func (r *ProfileRepo) Save(ctx context.Context, p *model.Profile) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT family_code FROM profiles WHERE id = ? FOR UPDATE`, p.ID).Scan(&current)
	created := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO profiles (id, name, role, avatar_url, language, family_code) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Role, p.AvatarURL, p.Language, p.FamilyCode)
		if err != nil {
			return false, err
		}
		created = true
	case err != nil:
		return false, err
	default:
		if current != p.FamilyCode {
			return false, ErrFamilyLocked
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE profiles SET name = ?, role = ?, avatar_url = ?, language = ? WHERE id = ?`,
			p.Name, p.Role, p.AvatarURL, p.Language, p.ID)
		if err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return created, nil
}

// UpdateLanguage stores the member's UI language preference.
func (r *ProfileRepo) UpdateLanguage(ctx context.Context, id string, lang model.Language) error {
	res, err := r.db.ExecContext(ctx, `UPDATE profiles SET language = ? WHERE id = ?`, lang, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when the value is unchanged, so confirm
	// the row exists before calling it missing.
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
