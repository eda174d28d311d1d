package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// CartRepo provides access to the family shopping list.
type CartRepo struct {
	db *sql.DB
}

func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

const cartColumns = `id, item_name, quantity, is_purchased, family_code, created_at`

func scanCart(s interface{ Scan(...any) error }) (*model.CartItem, error) {
	var c model.CartItem
	if err := s.Scan(&c.ID, &c.ItemName, &c.Quantity, &c.IsPurchased, &c.FamilyCode, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByFamily returns the shopping list, newest first.
func (r *CartRepo) ListByFamily(ctx context.Context, family string) ([]model.CartItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cartColumns+` FROM shopping_cart WHERE family_code = ? ORDER BY created_at DESC, id`, family)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CartItem{}
	for rows.Next() {
		c, err := scanCart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create adds an unpurchased item. Quantity defaults to one.
func (r *CartRepo) Create(ctx context.Context, c *model.CartItem) error {
	c.ID = uuid.NewString()
	if c.Quantity < 1 {
		c.Quantity = 1
	}
	c.IsPurchased = false
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO shopping_cart (id, item_name, quantity, is_purchased, family_code) VALUES (?, ?, ?, 0, ?)`,
		c.ID, c.ItemName, c.Quantity, c.FamilyCode); err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM shopping_cart WHERE id = ?`, c.ID).Scan(&c.CreatedAt)
}

// Toggle flips the purchased flag in a single statement so two members
// tapping the same item cannot read a stale value.
func (r *CartRepo) Toggle(ctx context.Context, family, id string) (*model.CartItem, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE shopping_cart SET is_purchased = NOT is_purchased WHERE id = ? AND family_code = ?`, id, family)
	if err != nil {
		return nil, err
	}
	if err := rowsAffectedToFound(res); err != nil {
		return nil, err
	}
	c, err := scanCart(r.db.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM shopping_cart WHERE id = ? AND family_code = ?`, id, family))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// Delete removes an item from the list.
func (r *CartRepo) Delete(ctx context.Context, family, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shopping_cart WHERE id = ? AND family_code = ?`, id, family)
	if err != nil {
		return err
	}
	return rowsAffectedToFound(res)
}
