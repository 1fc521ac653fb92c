// Package campaign manages campaigns and their members on behalf of the admin bot.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/m3rciful/tabletop/core/logger"
	"github.com/m3rciful/tabletop/core/metrics"
	"github.com/m3rciful/tabletop/core/telegram/format"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/messaging"
	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
	"github.com/m3rciful/tabletop/internal/store"
)

const (
	component = "service.campaigns"

	MaxTitleLen       = 255
	MaxDescriptionLen = 1023
)

// CampaignStore persists campaigns.
type CampaignStore interface {
	Create(ctx context.Context, c model.Campaign, ownerID int64) (model.Campaign, model.Participation, error)
	Get(ctx context.Context, id int64) (model.Campaign, error)
	Update(ctx context.Context, id int64, patch store.CampaignPatch) (model.Campaign, error)
	Delete(ctx context.Context, id int64) error
	ListForUser(ctx context.Context, userID int64) ([]model.Membership, error)
}

// ParticipationStore persists memberships.
type ParticipationStore interface {
	Get(ctx context.Context, id uuid.UUID) (model.Participation, error)
	Find(ctx context.Context, userID, campaignID int64) (model.Participation, error)
	ListByCampaign(ctx context.Context, campaignID int64, r *role.Role) ([]model.Member, error)
	UpdateRole(ctx context.Context, id uuid.UUID, r role.Role) (model.Participation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserGetter loads users.
type UserGetter interface {
	Get(ctx context.Context, id int64) (model.User, error)
}

// Draft is the input for Create.
type Draft struct {
	Title       string
	Description string
	Verified    bool
}

// Patch lists optional edits. Nil fields stay unchanged.
type Patch struct {
	Title       *string
	Description *string
}

// Service implements campaign management.
type Service struct {
	campaigns CampaignStore
	parts     ParticipationStore
	users     UserGetter
	ids       messaging.Identities
	metrics   *metrics.Registry
}

// NewService wires the service. metrics may be nil.
func NewService(campaigns CampaignStore, parts ParticipationStore, users UserGetter, ids messaging.Identities, m *metrics.Registry) (*Service, error) {
	if campaigns == nil || parts == nil || users == nil {
		return nil, apperr.Configuration("campaign.new_service", "store dependency is missing")
	}
	if ids.Admin() == nil || ids.Player() == nil {
		return nil, apperr.Configuration("campaign.new_service", "bot identities are not configured")
	}
	return &Service{campaigns: campaigns, parts: parts, users: users, ids: ids, metrics: m}, nil
}

// ValidateTitle checks a campaign title.
func ValidateTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch n := utf8.RuneCountInString(s); {
	case n == 0:
		return "", apperr.Validation("campaign.title", "title must not be empty")
	case n > MaxTitleLen:
		return "", apperr.Validation("campaign.title", fmt.Sprintf("title is longer than %d characters", MaxTitleLen))
	}
	return s, nil
}

// ValidateDescription checks a campaign description.
func ValidateDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxDescriptionLen {
		return "", apperr.Validation("campaign.description", fmt.Sprintf("description is longer than %d characters", MaxDescriptionLen))
	}
	return s, nil
}

// Create makes ownerID the owner of a new campaign. Only admins may create verified campaigns.
func (s *Service) Create(ctx context.Context, ownerID int64, d Draft) (model.Campaign, error) {
	const op = "campaign.create"
	title, err := ValidateTitle(d.Title)
	if err != nil {
		return model.Campaign{}, err
	}
	desc, err := ValidateDescription(d.Description)
	if err != nil {
		return model.Campaign{}, err
	}
	if d.Verified {
		u, err := s.users.Get(ctx, ownerID)
		if err != nil {
			return model.Campaign{}, err
		}
		if !u.Admin {
			return model.Campaign{}, apperr.Forbidden(op, "only administrators create verified campaigns")
		}
	}
	c, _, err := s.campaigns.Create(ctx, model.Campaign{
		Title:       title,
		Description: desc,
		Verified:    d.Verified,
		Private:     !d.Verified,
	}, ownerID)
	if err != nil {
		return model.Campaign{}, err
	}
	logger.Info(ctx, component, "campaign.create",
		slog.String("status", "ok"),
		slog.Int64("campaign_id", c.ID),
		slog.Int64("user_id", ownerID),
		slog.Bool("verified", c.Verified),
	)
	return c, nil
}

// Get loads a campaign.
func (s *Service) Get(ctx context.Context, id int64) (model.Campaign, error) {
	return s.campaigns.Get(ctx, id)
}

// ListForUser lists the user's campaigns with their roles.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]model.Membership, error) {
	return s.campaigns.ListForUser(ctx, userID)
}

// Membership returns userID's participation in campaignID.
func (s *Service) Membership(ctx context.Context, campaignID, userID int64) (model.Participation, error) {
	return s.parts.Find(ctx, userID, campaignID)
}

// Authorize loads actorID's membership and checks it against action.
func (s *Service) Authorize(ctx context.Context, campaignID, actorID int64, a role.Action) (model.Participation, error) {
	p, err := s.parts.Find(ctx, actorID, campaignID)
	if errors.Is(err, apperr.ErrNotFound) {
		return model.Participation{}, apperr.Forbidden(string(a), "not a member of this campaign")
	}
	if err != nil {
		return model.Participation{}, err
	}
	if !role.Allowed(p, a) {
		return model.Participation{}, apperr.Forbidden(string(a), fmt.Sprintf("requires %s", role.Require(a)))
	}
	return p, nil
}

// UpdateInfo edits title and description.
func (s *Service) UpdateInfo(ctx context.Context, actorID, campaignID int64, p Patch) (model.Campaign, error) {
	if _, err := s.Authorize(ctx, campaignID, actorID, role.ActionEditInfo); err != nil {
		return model.Campaign{}, err
	}
	var patch store.CampaignPatch
	if p.Title != nil {
		t, err := ValidateTitle(*p.Title)
		if err != nil {
			return model.Campaign{}, err
		}
		patch.Title = &t
	}
	if p.Description != nil {
		d, err := ValidateDescription(*p.Description)
		if err != nil {
			return model.Campaign{}, err
		}
		patch.Description = &d
	}
	c, err := s.campaigns.Update(ctx, campaignID, patch)
	if err != nil {
		return model.Campaign{}, err
	}
	logger.Info(ctx, component, "campaign.update",
		slog.String("status", "ok"),
		slog.Int64("campaign_id", campaignID),
		slog.Int64("user_id", actorID),
	)
	return c, nil
}

// Delete removes the campaign with all memberships and invitations.
func (s *Service) Delete(ctx context.Context, actorID, campaignID int64) error {
	if _, err := s.Authorize(ctx, campaignID, actorID, role.ActionDelete); err != nil {
		return err
	}
	if err := s.campaigns.Delete(ctx, campaignID); err != nil {
		return err
	}
	logger.Info(ctx, component, "campaign.delete",
		slog.String("status", "ok"),
		slog.Int64("campaign_id", campaignID),
		slog.Int64("user_id", actorID),
	)
	return nil
}

// Masters lists the masters of a campaign.
func (s *Service) Masters(ctx context.Context, actorID, campaignID int64) ([]model.Member, error) {
	if _, err := s.Authorize(ctx, campaignID, actorID, role.ActionManageMasters); err != nil {
		return nil, err
	}
	masters := role.Master
	return s.parts.ListByCampaign(ctx, campaignID, &masters)
}

// Member loads a participation for display, checking the actor may manage it.
func (s *Service) Member(ctx context.Context, actorID int64, participationID uuid.UUID) (model.Member, error) {
	p, err := s.parts.Get(ctx, participationID)
	if err != nil {
		return model.Member{}, err
	}
	if _, err := s.Authorize(ctx, p.CampaignID, actorID, role.ActionManageMasters); err != nil {
		return model.Member{}, err
	}
	u, err := s.users.Get(ctx, p.UserID)
	if err != nil {
		return model.Member{}, err
	}
	return model.Member{Participation: p, Username: u.Username}, nil
}

// RemoveMember deletes a participation and tells the removed user.
// The owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, actorID int64, participationID uuid.UUID) error {
	const op = "campaign.remove_member"
	target, err := s.parts.Get(ctx, participationID)
	if err != nil {
		return err
	}
	if _, err := s.Authorize(ctx, target.CampaignID, actorID, role.ActionManageMasters); err != nil {
		return err
	}
	if target.Role == role.Owner {
		return apperr.Forbidden(op, "the owner cannot be removed")
	}
	c, err := s.campaigns.Get(ctx, target.CampaignID)
	if err != nil {
		return err
	}
	if err := s.parts.Delete(ctx, target.ID); err != nil {
		return err
	}
	msg := messaging.Message{Text: fmt.Sprintf("You were removed from <b>%s</b>.", format.EscapeHTML(c.Title))}
	if err := s.ids.For(target.Role).Notify(ctx, target.UserID, msg); err != nil {
		s.metrics.IncNotification("removed", "fail")
		logger.Warn(ctx, component, "member.notify",
			slog.String("status", "fail"),
			slog.Int64("campaign_id", c.ID),
			slog.Int64("target_id", target.UserID),
			slog.String("err", err.Error()),
		)
	} else {
		s.metrics.IncNotification("removed", "ok")
	}
	logger.Info(ctx, component, "member.remove",
		slog.String("status", "ok"),
		slog.Int64("campaign_id", c.ID),
		slog.Int64("user_id", actorID),
		slog.Int64("target_id", target.UserID),
		slog.String("role", target.Role.String()),
	)
	return nil
}

// ChangeRole switches a member between player and master.
func (s *Service) ChangeRole(ctx context.Context, actorID int64, participationID uuid.UUID, r role.Role) (model.Participation, error) {
	const op = "campaign.change_role"
	if r != role.Player && r != role.Master {
		return model.Participation{}, apperr.Validation(op, fmt.Sprintf("cannot assign role %s", r))
	}
	target, err := s.parts.Get(ctx, participationID)
	if err != nil {
		return model.Participation{}, err
	}
	if _, err := s.Authorize(ctx, target.CampaignID, actorID, role.ActionChangeRole); err != nil {
		return model.Participation{}, err
	}
	if target.Role == role.Owner {
		return model.Participation{}, apperr.Forbidden(op, "the owner's role cannot be changed")
	}
	if target.Role == r {
		return target, nil
	}
	return s.parts.UpdateRole(ctx, target.ID, r)
}
