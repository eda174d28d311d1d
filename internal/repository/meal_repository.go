package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// MealRepo encapsulates queries on the `meals` table. Meals are append-only:
// there is no update or delete path.
type MealRepo struct {
	db *sql.DB
}

func NewMealRepo(db *sql.DB) *MealRepo { return &MealRepo{db: db} }

const mealColumns = `id, name, description, category, image_url, created_by, family_code, created_at`

func scanMeal(s interface{ Scan(...any) error }) (*model.Meal, error) {
	m := new(model.Meal)
	if err := s.Scan(&m.ID, &m.Name, &m.Description, &m.Category, &m.ImageURL, &m.CreatedBy, &m.FamilyCode, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// ListByFamily returns the family's meals ordered by name.
func (r *MealRepo) ListByFamily(ctx context.Context, family string) ([]model.Meal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mealColumns+` FROM meals WHERE family_code = ? ORDER BY name, id`, family)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Meal{}
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// GetByID fetches a meal of the given family. A meal of another family is
// reported as ErrNotFound.
func (r *MealRepo) GetByID(ctx context.Context, family, id string) (*model.Meal, error) {
	m, err := scanMeal(r.db.QueryRowContext(ctx,
		`SELECT `+mealColumns+` FROM meals WHERE id = ? AND family_code = ?`, id, family))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// Create inserts a meal. ID and CreatedAt are filled in on success.
func (r *MealRepo) Create(ctx context.Context, m *model.Meal) error {
	m.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO meals (id, name, description, category, image_url, created_by, family_code) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Description, m.Category, m.ImageURL, m.CreatedBy, m.FamilyCode)
	if err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM meals WHERE id = ?`, m.ID).Scan(&m.CreatedAt)
}

// CountByFamily returns how many meals the family has.
func (r *MealRepo) CountByFamily(ctx context.Context, family string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meals WHERE family_code = ?`, family).Scan(&n)
	return n, err
}
