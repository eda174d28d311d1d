package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// SelectionRepo provides access to `daily_meal_selections`. The table holds
// at most one row per (user_id, meal_date, slot); Upsert relies on that
// unique key as its conflict target.
type SelectionRepo struct {
	db *sql.DB
}

func NewSelectionRepo(db *sql.DB) *SelectionRepo { return &SelectionRepo{db: db} }

const selectionColumns = `id, user_id, meal_id, DATE_FORMAT(meal_date, '%Y-%m-%d'), slot, family_code, profile_data, meal_data`

// ListByFamilyDate returns every member's selections of one family for one
// date.
func (r *SelectionRepo) ListByFamilyDate(ctx context.Context, family, date string) ([]model.MealSelection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectionColumns+` FROM daily_meal_selections WHERE family_code = ? AND meal_date = ? ORDER BY slot, user_id`,
		family, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.MealSelection{}
	for rows.Next() {
		s, err := scanSelection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSelection(s interface{ Scan(...any) error }) (*model.MealSelection, error) {
	var (
		sel              model.MealSelection
		profile, mealRaw sql.NullString
	)
	if err := s.Scan(&sel.ID, &sel.UserID, &sel.MealID, &sel.MealDate, &sel.Slot, &sel.FamilyCode, &profile, &mealRaw); err != nil {
		return nil, err
	}
	sel.ProfileData = decodeSnapshot[model.ProfileSnapshot](profile)
	sel.MealData = decodeSnapshot[model.MealSnapshot](mealRaw)
	return &sel, nil
}

// Upsert inserts the selection or, when the member already picked something
// for that date and slot, overwrites meal and snapshots in place. The stored
// row is returned together with the kind of change that happened.
func (r *SelectionRepo) Upsert(ctx context.Context, sel *model.MealSelection) (*model.MealSelection, model.ChangeType, error) {
	profile, err := encodeSnapshot(sel.ProfileData)
	if err != nil {
		return nil, "", err
	}
	meal, err := encodeSnapshot(sel.MealData)
	if err != nil {
		return nil, "", err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO daily_meal_selections (id, user_id, meal_id, meal_date, slot, family_code, profile_data, meal_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE meal_id = VALUES(meal_id), family_code = VALUES(family_code),
		   profile_data = VALUES(profile_data), meal_data = VALUES(meal_data)`,
		uuid.NewString(), sel.UserID, sel.MealID, sel.MealDate, sel.Slot, sel.FamilyCode, profile, meal)
	if err != nil {
		return nil, "", err
	}
	kind, err := upsertKind(res)
	if err != nil {
		return nil, "", err
	}
	stored, err := scanSelection(r.db.QueryRowContext(ctx,
		`SELECT `+selectionColumns+` FROM daily_meal_selections WHERE user_id = ? AND meal_date = ? AND slot = ?`,
		sel.UserID, sel.MealDate, sel.Slot))
	if err != nil {
		return nil, "", err
	}
	return stored, kind, nil
}

// upsertKind reads MySQL's ON DUPLICATE KEY affected-row convention:
// 1 for a fresh insert, 2 for an update of the existing row, 0 when the
// existing row already held the same values.
func upsertKind(res sql.Result) (model.ChangeType, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 1 {
		return model.ChangeInsert, nil
	}
	return model.ChangeUpdate, nil
}
