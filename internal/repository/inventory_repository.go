package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// InventoryRepo provides access to the family pantry. Quantities never go
// below zero: absolute writes are clamped before they reach SQL and
// relative writes are clamped by GREATEST in the statement itself.
type InventoryRepo struct {
	db *sql.DB
}

func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

const inventoryColumns = `id, item_name, quantity, unit, family_code`

func scanInventory(s interface{ Scan(...any) error }) (*model.InventoryItem, error) {
	var it model.InventoryItem
	if err := s.Scan(&it.ID, &it.ItemName, &it.Quantity, &it.Unit, &it.FamilyCode); err != nil {
		return nil, err
	}
	return &it, nil
}

// ListByFamily returns the pantry ordered by item name.
func (r *InventoryRepo) ListByFamily(ctx context.Context, family string) ([]model.InventoryItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+inventoryColumns+` FROM inventory WHERE family_code = ? ORDER BY item_name, id`, family)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.InventoryItem{}
	for rows.Next() {
		it, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// Create adds an item. Quantity is clamped and Unit defaults to pcs.
func (r *InventoryRepo) Create(ctx context.Context, it *model.InventoryItem) error {
	it.ID = uuid.NewString()
	it.Quantity = model.ClampQuantity(it.Quantity)
	if it.Unit == "" {
		it.Unit = model.DefaultUnit
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO inventory (id, item_name, quantity, unit, family_code) VALUES (?, ?, ?, ?, ?)`,
		it.ID, it.ItemName, it.Quantity, it.Unit, it.FamilyCode)
	return err
}

// SetQuantity overwrites the quantity of an item, clamped at zero.
func (r *InventoryRepo) SetQuantity(ctx context.Context, family, id string, qty int) (*model.InventoryItem, error) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE inventory SET quantity = ? WHERE id = ? AND family_code = ?`,
		model.ClampQuantity(qty), id, family); err != nil {
		return nil, err
	}
	return r.get(ctx, family, id)
}

// AdjustQuantity adds delta (which may be negative) to the quantity. The
// result is floored at zero in SQL so concurrent decrements cannot race an
// item below zero.
func (r *InventoryRepo) AdjustQuantity(ctx context.Context, family, id string, delta int) (*model.InventoryItem, error) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE inventory SET quantity = GREATEST(CAST(quantity AS SIGNED) + ?, 0) WHERE id = ? AND family_code = ?`,
		delta, id, family); err != nil {
		return nil, err
	}
	return r.get(ctx, family, id)
}

// Delete removes an item of the family.
func (r *InventoryRepo) Delete(ctx context.Context, family, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM inventory WHERE id = ? AND family_code = ?`, id, family)
	if err != nil {
		return err
	}
	return rowsAffectedToFound(res)
}

func (r *InventoryRepo) get(ctx context.Context, family, id string) (*model.InventoryItem, error) {
	it, err := scanInventory(r.db.QueryRowContext(ctx,
		`SELECT `+inventoryColumns+` FROM inventory WHERE id = ? AND family_code = ?`, id, family))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return it, nil
}
