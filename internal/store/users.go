package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/tabletop/internal/model"
)

const userColumns = `id, username, admin, rating, created_at, updated_at`

// Users persists Telegram accounts.
type Users struct{ s *Store }

// Upsert creates the user on first contact and refreshes the username afterwards.
// The admin flag is only ever raised here, never cleared.
func (r *Users) Upsert(ctx context.Context, id int64, username string, admin bool) (model.User, error) {
	const op = "store.users.upsert"
	var out model.User
	name := normalizeUsername(username)
	now := r.s.stamp()
	err := r.s.inTx(ctx, func(tx *sqlx.Tx) error {
		if name != nil {
			// Usernames move between accounts on Telegram; the newest holder wins.
			if _, err := tx.ExecContext(ctx, r.s.q(
				`UPDATE users SET username = NULL, updated_at = ? WHERE LOWER(username) = LOWER(?) AND id <> ?`),
				now, *name, id); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, r.s.q(`
			INSERT INTO users (id, username, admin, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE
			SET username = excluded.username,
			    admin = users.admin OR excluded.admin,
			    updated_at = excluded.updated_at`),
			id, name, admin, now, now); err != nil {
			return err
		}
		return sqlx.GetContext(ctx, tx, &out, r.s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	})
	if err != nil {
		return model.User{}, mapErr(op, err)
	}
	return out, nil
}

// Get loads a user by Telegram id.
func (r *Users) Get(ctx context.Context, id int64) (model.User, error) {
	var out model.User
	err := r.s.db.GetContext(ctx, &out, r.s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	return out, mapErr("store.users.get", err)
}

// GetByUsername finds a user by username, case-insensitively and with or without '@'.
func (r *Users) GetByUsername(ctx context.Context, username string) (model.User, error) {
	var out model.User
	name := normalizeUsername(username)
	if name == nil {
		return out, mapErr("store.users.get_by_username", sql.ErrNoRows)
	}
	err := r.s.db.GetContext(ctx, &out, r.s.q(`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER(?)`), *name)
	return out, mapErr("store.users.get_by_username", err)
}

// SetAdmin sets or clears the admin flag.
func (r *Users) SetAdmin(ctx context.Context, id int64, admin bool) error {
	const op = "store.users.set_admin"
	res, err := r.s.db.ExecContext(ctx, r.s.q(`UPDATE users SET admin = ?, updated_at = ? WHERE id = ?`), admin, r.s.stamp(), id)
	if err != nil {
		return mapErr(op, err)
	}
	return mapErr(op, requireOne(res))
}

// SetRating stores an exact rating.
func (r *Users) SetRating(ctx context.Context, id int64, rating int) (model.User, error) {
	const op = "store.users.set_rating"
	res, err := r.s.db.ExecContext(ctx, r.s.q(`UPDATE users SET rating = ?, updated_at = ? WHERE id = ?`), rating, r.s.stamp(), id)
	if err != nil {
		return model.User{}, mapErr(op, err)
	}
	if err := requireOne(res); err != nil {
		return model.User{}, mapErr(op, err)
	}
	return r.Get(ctx, id)
}

// AddRating shifts the rating by delta in one statement, clamping the
// result to [0, ceiling].
func (r *Users) AddRating(ctx context.Context, id int64, delta, ceiling int) (model.User, error) {
	const op = "store.users.add_rating"
	res, err := r.s.db.ExecContext(ctx, r.s.q(`
		UPDATE users
		SET rating = CASE
		        WHEN rating + ? < 0 THEN 0
		        WHEN rating + ? > ? THEN ?
		        ELSE rating + ?
		    END,
		    updated_at = ?
		WHERE id = ?`),
		delta, delta, ceiling, ceiling, delta, r.s.stamp(), id)
	if err != nil {
		return model.User{}, mapErr(op, err)
	}
	if err := requireOne(res); err != nil {
		return model.User{}, mapErr(op, err)
	}
	return r.Get(ctx, id)
}

// TopByRating lists users by rating, highest first. Ties go to the older account id.
func (r *Users) TopByRating(ctx context.Context, limit int) ([]model.User, error) {
	var out []model.User
	err := r.s.db.SelectContext(ctx, &out, r.s.q(
		`SELECT `+userColumns+` FROM users ORDER BY rating DESC, id ASC LIMIT ?`), limit)
	if err != nil {
		return nil, mapErr("store.users.top_by_rating", err)
	}
	return out, nil
}

func normalizeUsername(s string) *string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "@")
	if s == "" {
		return nil
	}
	return &s
}
