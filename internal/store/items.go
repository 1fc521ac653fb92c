package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/m3rciful/tabletop/internal/model"
)

const itemColumns = `id, campaign_id, user_id, title, description, quantity, created_at, updated_at`

// Items persists inventory entries.
type Items struct{ s *Store }

// ItemPatch lists optional field updates. Nil fields are left unchanged.
type ItemPatch struct {
	Title       *string
	Description *string
	Quantity    *int
}

// Create inserts a new item.
func (r *Items) Create(ctx context.Context, it model.Item) (model.Item, error) {
	const op = "store.items.create"
	now := r.s.stamp()
	it.ID = r.s.newID()
	it.CreatedAt, it.UpdatedAt = now, now
	_, err := r.s.db.NamedExecContext(ctx, `
		INSERT INTO items (id, campaign_id, user_id, title, description, quantity, created_at, updated_at)
		VALUES (:id, :campaign_id, :user_id, :title, :description, :quantity, :created_at, :updated_at)`, it)
	if err != nil {
		return model.Item{}, mapErr(op, err)
	}
	return r.Get(ctx, it.ID)
}

// Get loads an item by id.
func (r *Items) Get(ctx context.Context, id uuid.UUID) (model.Item, error) {
	var out model.Item
	err := r.s.db.GetContext(ctx, &out, r.s.q(`SELECT `+itemColumns+` FROM items WHERE id = ?`), id)
	return out, mapErr("store.items.get", err)
}

// List returns one inventory in creation order: the items userID holds in
// the campaign, or the campaign stash when userID is nil.
func (r *Items) List(ctx context.Context, campaignID int64, userID *int64) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE campaign_id = ?`
	args := []any{campaignID}
	if userID == nil {
		query += ` AND user_id IS NULL`
	} else {
		query += ` AND user_id = ?`
		args = append(args, *userID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	var out []model.Item
	if err := r.s.db.SelectContext(ctx, &out, r.s.q(query), args...); err != nil {
		return nil, mapErr("store.items.list", err)
	}
	return out, nil
}

// Update applies patch and returns the stored item.
func (r *Items) Update(ctx context.Context, id uuid.UUID, patch ItemPatch) (model.Item, error) {
	const op = "store.items.update"
	res, err := r.s.db.ExecContext(ctx, r.s.q(`
		UPDATE items
		SET title = COALESCE(?, title),
		    description = COALESCE(?, description),
		    quantity = COALESCE(?, quantity),
		    updated_at = ?
		WHERE id = ?`),
		patch.Title, patch.Description, patch.Quantity, r.s.stamp(), id)
	if err != nil {
		return model.Item{}, mapErr(op, err)
	}
	if err := requireOne(res); err != nil {
		return model.Item{}, mapErr(op, err)
	}
	return r.Get(ctx, id)
}

// Delete removes an item.
func (r *Items) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "store.items.delete"
	res, err := r.s.db.ExecContext(ctx, r.s.q(`DELETE FROM items WHERE id = ?`), id)
	if err != nil {
		return mapErr(op, err)
	}
	return mapErr(op, requireOne(res))
}
