package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
)

const campaignColumns = `id, title, description, icon, verified, private, created_at, updated_at`

// Campaigns persists campaigns.
type Campaigns struct{ s *Store }

// CampaignPatch lists optional field updates. Nil fields are left unchanged.
type CampaignPatch struct {
	Title       *string
	Description *string
}

// Create inserts the campaign and the owner's participation in one transaction.
func (r *Campaigns) Create(ctx context.Context, c model.Campaign, ownerID int64) (model.Campaign, model.Participation, error) {
	const op = "store.campaigns.create"
	now := r.s.stamp()
	var (
		outC model.Campaign
		outP model.Participation
	)
	err := r.s.inTx(ctx, func(tx *sqlx.Tx) error {
		var id int64
		err := tx.QueryRowxContext(ctx, r.s.q(`
			INSERT INTO campaigns (title, description, icon, verified, private, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id`),
			c.Title, c.Description, c.Icon, c.Verified, c.Private, now, now).Scan(&id)
		if err != nil {
			return err
		}
		if err := sqlx.GetContext(ctx, tx, &outC, r.s.q(`SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`), id); err != nil {
			return err
		}
		outP = model.Participation{
			ID:         r.s.newID(),
			UserID:     ownerID,
			CampaignID: outC.ID,
			Role:       role.Owner,
			CreatedAt:  now,
		}
		_, err = tx.ExecContext(ctx, r.s.q(`
			INSERT INTO participations (id, user_id, campaign_id, role, created_at)
			VALUES (?, ?, ?, ?, ?)`),
			outP.ID, outP.UserID, outP.CampaignID, outP.Role, outP.CreatedAt)
		return err
	})
	if err != nil {
		return model.Campaign{}, model.Participation{}, mapErr(op, err)
	}
	return outC, outP, nil
}

// Get loads a campaign by id.
func (r *Campaigns) Get(ctx context.Context, id int64) (model.Campaign, error) {
	var out model.Campaign
	err := r.s.db.GetContext(ctx, &out, r.s.q(`SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`), id)
	return out, mapErr("store.campaigns.get", err)
}

// Update applies patch and returns the stored campaign.
func (r *Campaigns) Update(ctx context.Context, id int64, patch CampaignPatch) (model.Campaign, error) {
	const op = "store.campaigns.update"
	res, err := r.s.db.ExecContext(ctx, r.s.q(`
		UPDATE campaigns
		SET title = COALESCE(?, title),
		    description = COALESCE(?, description),
		    updated_at = ?
		WHERE id = ?`),
		patch.Title, patch.Description, r.s.stamp(), id)
	if err != nil {
		return model.Campaign{}, mapErr(op, err)
	}
	if err := requireOne(res); err != nil {
		return model.Campaign{}, mapErr(op, err)
	}
	return r.Get(ctx, id)
}

// Delete removes the campaign with its members, invitations, characters and items.
func (r *Campaigns) Delete(ctx context.Context, id int64) error {
	const op = "store.campaigns.delete"
	err := r.s.inTx(ctx, func(tx *sqlx.Tx) error {
		// Explicit deletes keep the cascade working on drivers without FK enforcement.
		for _, table := range []string{"items", "characters", "invitations"} {
			if _, err := tx.ExecContext(ctx, r.s.q(`DELETE FROM `+table+` WHERE campaign_id = ?`), id); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, r.s.q(`DELETE FROM participations WHERE campaign_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, r.s.q(`DELETE FROM campaigns WHERE id = ?`), id)
		if err != nil {
			return err
		}
		return requireOne(res)
	})
	return mapErr(op, err)
}

// ListForUser returns every campaign the user participates in, newest first.
func (r *Campaigns) ListForUser(ctx context.Context, userID int64) ([]model.Membership, error) {
	var out []model.Membership
	err := r.s.db.SelectContext(ctx, &out, r.s.q(`
		SELECT c.id, c.title, c.description, c.icon, c.verified, c.private, c.created_at, c.updated_at,
		       p.id AS participation_id, p.role
		FROM participations p
		JOIN campaigns c ON c.id = p.campaign_id
		WHERE p.user_id = ?
		ORDER BY c.created_at DESC, c.id DESC`), userID)
	if err != nil {
		return nil, mapErr("store.campaigns.list_for_user", err)
	}
	return out, nil
}
