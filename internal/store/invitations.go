package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/tabletop/internal/model"
)

const invitationColumns = `id, campaign_id, role, token, consumed, revoked, user_id, created_by, created_at, updated_at`

// Invitations persists invitation tokens.
type Invitations struct{ s *Store }

// Create inserts inv. ID and timestamps are assigned by the store when zero.
func (r *Invitations) Create(ctx context.Context, inv model.Invitation) (model.Invitation, error) {
	if inv.ID == uuid.Nil {
		inv.ID = r.s.newID()
	}
	now := r.s.stamp()
	inv.CreatedAt, inv.UpdatedAt = now, now
	_, err := r.s.db.ExecContext(ctx, r.s.q(`
		INSERT INTO invitations (id, campaign_id, role, token, consumed, revoked, user_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		inv.ID, inv.CampaignID, inv.Role, inv.Token, inv.Consumed, inv.Revoked,
		inv.UserID, inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return model.Invitation{}, mapErr("store.invitations.create", err)
	}
	return r.Get(ctx, inv.ID)
}

// Get loads an invitation by id.
func (r *Invitations) Get(ctx context.Context, id uuid.UUID) (model.Invitation, error) {
	var out model.Invitation
	err := r.s.db.GetContext(ctx, &out, r.s.q(`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`), id)
	return out, mapErr("store.invitations.get", err)
}

// GetByToken loads an invitation by its redemption token.
func (r *Invitations) GetByToken(ctx context.Context, token uuid.UUID) (model.Invitation, error) {
	var out model.Invitation
	err := r.s.db.GetContext(ctx, &out, r.s.q(`SELECT `+invitationColumns+` FROM invitations WHERE token = ?`), token)
	return out, mapErr("store.invitations.get_by_token", err)
}

// Bind reserves an open invitation for userID. Binding to the current holder
// is a no-op. Anything else returns ErrNotConsumable.
func (r *Invitations) Bind(ctx context.Context, id uuid.UUID, userID int64) (model.Invitation, error) {
	const op = "store.invitations.bind"
	res, err := r.s.db.ExecContext(ctx, r.s.q(`
		UPDATE invitations
		SET user_id = ?, updated_at = ?
		WHERE id = ? AND consumed = FALSE AND revoked = FALSE AND (user_id IS NULL OR user_id = ?)`),
		userID, r.s.stamp(), id, userID)
	if err != nil {
		return model.Invitation{}, mapErr(op, err)
	}
	if err := requireOne(res); err != nil {
		return model.Invitation{}, notConsumable(op, err)
	}
	return r.Get(ctx, id)
}

// Revoke disables an unconsumed invitation. Revoking twice is a no-op.
func (r *Invitations) Revoke(ctx context.Context, id uuid.UUID) error {
	const op = "store.invitations.revoke"
	res, err := r.s.db.ExecContext(ctx, r.s.q(
		`UPDATE invitations SET revoked = TRUE, updated_at = ? WHERE id = ? AND consumed = FALSE`),
		r.s.stamp(), id)
	if err != nil {
		return mapErr(op, err)
	}
	return notConsumable(op, requireOne(res))
}

// ConsumeAndJoin atomically marks the invitation consumed by userID and
// ensures the matching participation, inside one transaction. Exactly one
// concurrent caller can win the conditional update; the others receive
// ErrNotConsumable. joined reports whether a participation row was inserted.
func (r *Invitations) ConsumeAndJoin(ctx context.Context, id uuid.UUID, userID int64) (inv model.Invitation, p model.Participation, joined bool, err error) {
	const op = "store.invitations.consume"
	err = r.s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, r.s.q(`
			UPDATE invitations
			SET consumed = TRUE, user_id = COALESCE(user_id, ?), updated_at = ?
			WHERE id = ? AND consumed = FALSE AND revoked = FALSE AND (user_id IS NULL OR user_id = ?)`),
			userID, r.s.stamp(), id, userID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n != 1 {
			return ErrNotConsumable
		}
		if err := sqlx.GetContext(ctx, tx, &inv, r.s.q(`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`), id); err != nil {
			return err
		}
		p, joined, err = getOrCreateParticipation(ctx, r.s, tx, userID, inv.CampaignID, inv.Role)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotConsumable) {
			return model.Invitation{}, model.Participation{}, false, err
		}
		return model.Invitation{}, model.Participation{}, false, mapErr(op, err)
	}
	return inv, p, joined, nil
}

func notConsumable(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotConsumable
	}
	return mapErr(op, err)
}
