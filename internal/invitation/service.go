// Package invitation issues campaign invitations and redeems them exactly once.
package invitation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/tabletop/core/logger"
	"github.com/m3rciful/tabletop/core/metrics"
	"github.com/m3rciful/tabletop/core/telegram/format"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/messaging"
	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/qr"
	"github.com/m3rciful/tabletop/internal/role"
	"github.com/m3rciful/tabletop/internal/store"
)

const component = "service.invitations"

// InvitationStore persists invitations.
type InvitationStore interface {
	Create(ctx context.Context, inv model.Invitation) (model.Invitation, error)
	Get(ctx context.Context, id uuid.UUID) (model.Invitation, error)
	GetByToken(ctx context.Context, token uuid.UUID) (model.Invitation, error)
	Bind(ctx context.Context, id uuid.UUID, userID int64) (model.Invitation, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	ConsumeAndJoin(ctx context.Context, id uuid.UUID, userID int64) (model.Invitation, model.Participation, bool, error)
}

// ParticipationFinder looks up memberships.
type ParticipationFinder interface {
	Find(ctx context.Context, userID, campaignID int64) (model.Participation, error)
}

// CampaignGetter loads campaigns.
type CampaignGetter interface {
	Get(ctx context.Context, id int64) (model.Campaign, error)
}

// UserGetter loads users.
type UserGetter interface {
	Get(ctx context.Context, id int64) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
}

// Deps are the collaborators of Service.
type Deps struct {
	Invitations    InvitationStore
	Participations ParticipationFinder
	Campaigns      CampaignGetter
	Users          UserGetter
	Identities     messaging.Identities
}

// Service implements invitation issuing, delivery and redemption.
type Service struct {
	invites  InvitationStore
	parts    ParticipationFinder
	camps    CampaignGetter
	users    UserGetter
	ids      messaging.Identities
	newToken func() uuid.UUID
	qr       qr.Writer
	metrics  *metrics.Registry
}

// Option customises a Service.
type Option func(*Service)

// WithTokenGenerator overrides the token source.
func WithTokenGenerator(gen func() uuid.UUID) Option {
	return func(s *Service) {
		if gen != nil {
			s.newToken = gen
		}
	}
}

// WithQRDir sets where QR images are written.
func WithQRDir(dir string) Option {
	return func(s *Service) { s.qr.Dir = dir }
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService validates the wiring. A missing collaborator or bot identity is a
// Configuration error.
func NewService(d Deps, opts ...Option) (*Service, error) {
	const op = "invitation.new_service"
	switch {
	case d.Invitations == nil, d.Participations == nil, d.Campaigns == nil, d.Users == nil:
		return nil, apperr.Configuration(op, "store dependency is missing")
	case d.Identities.For(role.Player) == nil, d.Identities.For(role.Master) == nil:
		return nil, apperr.Configuration(op, "bot identities are not configured")
	}
	s := &Service{
		invites:  d.Invitations,
		parts:    d.Participations,
		camps:    d.Campaigns,
		users:    d.Users,
		ids:      d.Identities,
		newToken: uuid.New,
		qr:       qr.Writer{Dir: "qr"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateInvite issues a fresh unbound invitation granting r in campaignID.
// createdBy must be allowed to grant r.
func (s *Service) CreateInvite(ctx context.Context, campaignID int64, r role.Role, createdBy int64) (model.Invitation, error) {
	const op = "invitation.create"
	if r != role.Player && r != role.Master {
		return model.Invitation{}, apperr.Validation(op, fmt.Sprintf("role %s cannot be granted by invitation", r))
	}
	if err := s.authorizeIssuer(ctx, op, campaignID, r, createdBy); err != nil {
		return model.Invitation{}, err
	}
	inv, err := s.invites.Create(ctx, model.Invitation{
		CampaignID: campaignID,
		Role:       r,
		Token:      s.newToken(),
		CreatedBy:  &createdBy,
	})
	if err != nil {
		return model.Invitation{}, err
	}
	s.metrics.IncInviteCreated(r.String())
	logger.Info(ctx, component, "invite.create",
		slog.String("status", "ok"),
		slog.String("invitation_id", inv.ID.String()),
		slog.Int64("campaign_id", campaignID),
		slog.String("role", r.String()),
		slog.Int64("user_id", createdBy),
	)
	return inv, nil
}

// Regenerate issues a replacement for invitationID with the same campaign and
// role, and revokes the original if it was never used.
func (s *Service) Regenerate(ctx context.Context, invitationID uuid.UUID, actorID int64) (model.Invitation, error) {
	const op = "invitation.regenerate"
	old, err := s.invites.Get(ctx, invitationID)
	if err != nil {
		return model.Invitation{}, err
	}
	fresh, err := s.CreateInvite(ctx, old.CampaignID, old.Role, actorID)
	if err != nil {
		return model.Invitation{}, err
	}
	if !old.Consumed && !old.Revoked {
		if err := s.invites.Revoke(ctx, old.ID); err != nil && !errors.Is(err, store.ErrNotConsumable) {
			return model.Invitation{}, fmt.Errorf("%s: revoke previous: %w", op, err)
		}
	}
	logger.Info(ctx, component, "invite.regenerate",
		slog.String("status", "ok"),
		slog.String("invitation_id", fresh.ID.String()),
		slog.String("previous_id", old.ID.String()),
		slog.Int64("campaign_id", old.CampaignID),
	)
	return fresh, nil
}

// Get returns an invitation by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Invitation, error) {
	return s.invites.Get(ctx, id)
}

// GenerateLink builds the deep link for inv on the bot that serves its role:
// https://t.me/<bot>/?start=<token>.
func (s *Service) GenerateLink(inv model.Invitation) (string, error) {
	id := s.ids.For(inv.Role)
	if id == nil || id.Username() == "" {
		return "", apperr.Configuration("invitation.link", fmt.Sprintf("no bot serves role %s", inv.Role))
	}
	return fmt.Sprintf("https://t.me/%s/?start=%s", id.Username(), inv.Token), nil
}

// GenerateQR renders link as a PNG and returns its path. The path depends
// only on the link's token.
func (s *Service) GenerateQR(link string) (string, error) {
	path, err := s.qr.Write(link)
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "invitation.qr", err)
	}
	return path, nil
}

// InviteUser reserves invitationID for the user known by username and sends
// them the link through the bot that serves the invitation's role.
func (s *Service) InviteUser(ctx context.Context, invitationID uuid.UUID, username string, actorID int64) (model.User, error) {
	const op = "invitation.invite_user"
	inv, err := s.invites.Get(ctx, invitationID)
	if err != nil {
		return model.User{}, err
	}
	if err := s.authorizeIssuer(ctx, op, inv.CampaignID, inv.Role, actorID); err != nil {
		return model.User{}, err
	}
	target, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return model.User{}, apperr.NotFound(op, fmt.Sprintf("user %q has not started the bot", strings.TrimPrefix(username, "@")))
		}
		return model.User{}, err
	}
	bound, err := s.invites.Bind(ctx, inv.ID, target.ID)
	if errors.Is(err, store.ErrNotConsumable) {
		if fresh, gerr := s.invites.Get(ctx, inv.ID); gerr == nil {
			inv = fresh
		}
		return model.User{}, classify(op, inv, target.ID, false)
	}
	if err != nil {
		return model.User{}, err
	}
	campaign, err := s.camps.Get(ctx, inv.CampaignID)
	if err != nil {
		return model.User{}, err
	}
	link, err := s.GenerateLink(bound)
	if err != nil {
		return model.User{}, err
	}
	msg := messaging.Message{
		Text:   fmt.Sprintf("You are invited to <b>%s</b> as %s.", format.EscapeHTML(campaign.Title), bound.Role),
		Button: &messaging.LinkButton{Text: "Accept invitation", URL: link},
	}
	if err := s.ids.For(bound.Role).Notify(ctx, target.ID, msg); err != nil {
		s.metrics.IncNotification("invite", "fail")
		return model.User{}, fmt.Errorf("%s: notify: %w", op, err)
	}
	s.metrics.IncNotification("invite", "ok")
	logger.Info(ctx, component, "invite.send",
		slog.String("status", "ok"),
		slog.String("invitation_id", inv.ID.String()),
		slog.Int64("campaign_id", inv.CampaignID),
		slog.Int64("target_id", target.ID),
	)
	return target, nil
}

// authorizeIssuer checks that actorID may grant r in campaignID.
func (s *Service) authorizeIssuer(ctx context.Context, op string, campaignID int64, r role.Role, actorID int64) error {
	actor, err := s.parts.Find(ctx, actorID, campaignID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Forbidden(op, "not a member of this campaign")
	}
	if err != nil {
		return err
	}
	if !role.Allowed(actor, role.InviteAction(r)) {
		return apperr.Forbidden(op, fmt.Sprintf("%s cannot invite a %s", actor.Role, r))
	}
	return nil
}
