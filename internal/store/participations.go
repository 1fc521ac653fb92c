package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
)

const participationColumns = `id, user_id, campaign_id, role, created_at`

// Participations persists campaign memberships.
type Participations struct{ s *Store }

// GetOrCreate returns the membership of user in campaign, inserting it with r
// when absent. An existing membership keeps its role. created reports whether
// a row was inserted.
func (r *Participations) GetOrCreate(ctx context.Context, userID, campaignID int64, rl role.Role) (model.Participation, bool, error) {
	return getOrCreateParticipation(ctx, r.s, r.s.db, userID, campaignID, rl)
}

// getOrCreateParticipation runs on either the pool or an open transaction.
func getOrCreateParticipation(ctx context.Context, s *Store, ext sqlx.ExtContext, userID, campaignID int64, rl role.Role) (model.Participation, bool, error) {
	const op = "store.participations.get_or_create"
	res, err := ext.ExecContext(ctx, s.q(`
		INSERT INTO participations (id, user_id, campaign_id, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, campaign_id) DO NOTHING`),
		s.newID(), userID, campaignID, rl, s.stamp())
	if err != nil {
		return model.Participation{}, false, mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Participation{}, false, mapErr(op, err)
	}
	var out model.Participation
	if err := sqlx.GetContext(ctx, ext, &out, s.q(
		`SELECT `+participationColumns+` FROM participations WHERE user_id = ? AND campaign_id = ?`),
		userID, campaignID); err != nil {
		return model.Participation{}, false, mapErr(op, err)
	}
	return out, n == 1, nil
}

// Get loads a participation by id.
func (r *Participations) Get(ctx context.Context, id uuid.UUID) (model.Participation, error) {
	var out model.Participation
	err := r.s.db.GetContext(ctx, &out, r.s.q(`SELECT `+participationColumns+` FROM participations WHERE id = ?`), id)
	return out, mapErr("store.participations.get", err)
}

// Find loads the membership of user in campaign.
func (r *Participations) Find(ctx context.Context, userID, campaignID int64) (model.Participation, error) {
	var out model.Participation
	err := r.s.db.GetContext(ctx, &out, r.s.q(
		`SELECT `+participationColumns+` FROM participations WHERE user_id = ? AND campaign_id = ?`),
		userID, campaignID)
	return out, mapErr("store.participations.find", err)
}

// ListByCampaign returns the members of a campaign holding exactly rl,
// or every member when rl is nil.
func (r *Participations) ListByCampaign(ctx context.Context, campaignID int64, rl *role.Role) ([]model.Member, error) {
	query := `
		SELECT p.id, p.user_id, p.campaign_id, p.role, p.created_at, u.username
		FROM participations p
		JOIN users u ON u.id = p.user_id
		WHERE p.campaign_id = ?`
	args := []any{campaignID}
	if rl != nil {
		query += ` AND p.role = ?`
		args = append(args, *rl)
	}
	query += ` ORDER BY p.role DESC, p.created_at ASC`

	var out []model.Member
	if err := r.s.db.SelectContext(ctx, &out, r.s.q(query), args...); err != nil {
		return nil, mapErr("store.participations.list_by_campaign", err)
	}
	return out, nil
}

// UpdateRole changes the role of a participation.
func (r *Participations) UpdateRole(ctx context.Context, id uuid.UUID, rl role.Role) (model.Participation, error) {
	const op = "store.participations.update_role"
	res, err := r.s.db.ExecContext(ctx, r.s.q(`UPDATE participations SET role = ? WHERE id = ?`), rl, id)
	if err != nil {
		return model.Participation{}, mapErr(op, err)
	}
	if err := requireOne(res); err != nil {
		return model.Participation{}, mapErr(op, err)
	}
	return r.Get(ctx, id)
}

// Delete removes a participation.
func (r *Participations) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "store.participations.delete"
	res, err := r.s.db.ExecContext(ctx, r.s.q(`DELETE FROM participations WHERE id = ?`), id)
	if err != nil {
		return mapErr(op, err)
	}
	return mapErr(op, requireOne(res))
}
