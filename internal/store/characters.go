package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
)

const characterColumns = `id, user_id, campaign_id, name, level, sheet, created_at, updated_at`

// Characters persists player characters, one per player and campaign.
type Characters struct{ s *Store }

// Save creates the character of user in campaign or replaces its name,
// level and sheet. The id of an existing character is kept.
func (r *Characters) Save(ctx context.Context, c model.Character) (model.Character, error) {
	const op = "store.characters.save"
	now := r.s.stamp()
	var out model.Character
	err := r.s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, r.s.q(`
			INSERT INTO characters (id, user_id, campaign_id, name, level, sheet, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, campaign_id) DO UPDATE
			SET name = excluded.name,
			    level = excluded.level,
			    sheet = excluded.sheet,
			    updated_at = excluded.updated_at`),
			r.s.newID(), c.UserID, c.CampaignID, c.Name, c.Level, c.Sheet, now, now); err != nil {
			return err
		}
		return sqlx.GetContext(ctx, tx, &out, r.s.q(
			`SELECT `+characterColumns+` FROM characters WHERE user_id = ? AND campaign_id = ?`),
			c.UserID, c.CampaignID)
	})
	if err != nil {
		return model.Character{}, mapErr(op, err)
	}
	return out, nil
}

// Get loads a character by id.
func (r *Characters) Get(ctx context.Context, id uuid.UUID) (model.Character, error) {
	var out model.Character
	err := r.s.db.GetContext(ctx, &out, r.s.q(`SELECT `+characterColumns+` FROM characters WHERE id = ?`), id)
	return out, mapErr("store.characters.get", err)
}

// Find loads the character of user in campaign.
func (r *Characters) Find(ctx context.Context, userID, campaignID int64) (model.Character, error) {
	var out model.Character
	err := r.s.db.GetContext(ctx, &out, r.s.q(
		`SELECT `+characterColumns+` FROM characters WHERE user_id = ? AND campaign_id = ?`),
		userID, campaignID)
	return out, mapErr("store.characters.find", err)
}

// SetLevel stores a new level together with the sheet that records it.
func (r *Characters) SetLevel(ctx context.Context, id uuid.UUID, level int, sheet *string) (model.Character, error) {
	const op = "store.characters.set_level"
	res, err := r.s.db.ExecContext(ctx, r.s.q(
		`UPDATE characters SET level = ?, sheet = ?, updated_at = ? WHERE id = ?`),
		level, sheet, r.s.stamp(), id)
	if err != nil {
		return model.Character{}, mapErr(op, err)
	}
	if err := requireOne(res); err != nil {
		return model.Character{}, mapErr(op, err)
	}
	return r.Get(ctx, id)
}

// Roster lists the players of a campaign, each with their character if they
// have one. Players without a character come last.
func (r *Characters) Roster(ctx context.Context, campaignID int64) ([]model.RosterEntry, error) {
	var out []model.RosterEntry
	err := r.s.db.SelectContext(ctx, &out, r.s.q(`
		SELECT p.id AS participation_id, p.user_id, u.username, u.rating,
		       c.id AS character_id, c.name AS character_name, c.level
		FROM participations p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN characters c ON c.user_id = p.user_id AND c.campaign_id = p.campaign_id
		WHERE p.campaign_id = ? AND p.role = ?
		ORDER BY CASE WHEN c.id IS NULL THEN 1 ELSE 0 END, p.created_at ASC`),
		campaignID, role.Participant)
	if err != nil {
		return nil, mapErr("store.characters.roster", err)
	}
	return out, nil
}
