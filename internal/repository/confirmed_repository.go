package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// ConfirmedRepo provides access to `confirmed_meals`, the family's binding
// decision per slot and date. The unique key (family_code, meal_date, slot)
// is the upsert conflict target, so whichever member confirms last wins.
type ConfirmedRepo struct {
	db *sql.DB
}

func NewConfirmedRepo(db *sql.DB) *ConfirmedRepo { return &ConfirmedRepo{db: db} }

const confirmedColumns = `id, meal_id, DATE_FORMAT(meal_date, '%Y-%m-%d'), slot, ready_at, family_code, meal_data`

func scanConfirmed(s interface{ Scan(...any) error }) (*model.ConfirmedMeal, error) {
	var (
		c    model.ConfirmedMeal
		meal sql.NullString
	)
	if err := s.Scan(&c.ID, &c.MealID, &c.MealDate, &c.Slot, &c.ReadyAt, &c.FamilyCode, &meal); err != nil {
		return nil, err
	}
	c.MealData = decodeSnapshot[model.MealSnapshot](meal)
	return &c, nil
}

// ListByFamilyDate returns the confirmed meals of one family for one date.
func (r *ConfirmedRepo) ListByFamilyDate(ctx context.Context, family, date string) ([]model.ConfirmedMeal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+confirmedColumns+` FROM confirmed_meals WHERE family_code = ? AND meal_date = ? ORDER BY slot`,
		family, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ConfirmedMeal{}
	for rows.Next() {
		c, err := scanConfirmed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Upsert records the decision for (family, date, slot), replacing meal,
// ready time and snapshot of an earlier decision.
func (r *ConfirmedRepo) Upsert(ctx context.Context, c *model.ConfirmedMeal) (*model.ConfirmedMeal, model.ChangeType, error) {
	meal, err := encodeSnapshot(c.MealData)
	if err != nil {
		return nil, "", err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO confirmed_meals (id, meal_id, meal_date, slot, ready_at, family_code, meal_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE meal_id = VALUES(meal_id), ready_at = VALUES(ready_at), meal_data = VALUES(meal_data)`,
		uuid.NewString(), c.MealID, c.MealDate, c.Slot, c.ReadyAt, c.FamilyCode, meal)
	if err != nil {
		return nil, "", err
	}
	kind, err := upsertKind(res)
	if err != nil {
		return nil, "", err
	}
	stored, err := scanConfirmed(r.db.QueryRowContext(ctx,
		`SELECT `+confirmedColumns+` FROM confirmed_meals WHERE family_code = ? AND meal_date = ? AND slot = ?`,
		c.FamilyCode, c.MealDate, c.Slot))
	if err != nil {
		return nil, "", err
	}
	return stored, kind, nil
}

// UpdateReadyAt changes the ready-by time of an existing decision.
func (r *ConfirmedRepo) UpdateReadyAt(ctx context.Context, family, id, readyAt string) (*model.ConfirmedMeal, error) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE confirmed_meals SET ready_at = ? WHERE id = ? AND family_code = ?`,
		readyAt, id, family); err != nil {
		return nil, err
	}
	c, err := scanConfirmed(r.db.QueryRowContext(ctx,
		`SELECT `+confirmedColumns+` FROM confirmed_meals WHERE id = ? AND family_code = ?`, id, family))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}
