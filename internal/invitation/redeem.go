package invitation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/tabletop/core/logger"
	"github.com/m3rciful/tabletop/core/telegram/format"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/messaging"
	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
	"github.com/m3rciful/tabletop/internal/store"
)

// Redemption is the result of a successful Redeem.
type Redemption struct {
	Participation model.Participation
	Invitation    model.Invitation
	Campaign      model.Campaign
	// AlreadyMember is set when the user belonged to the campaign before and
	// nothing was changed.
	AlreadyMember bool
}

// Preview describes what redeeming a token would do, without doing it.
type Preview struct {
	Invitation    model.Invitation
	Campaign      model.Campaign
	AlreadyMember bool
}

// Preview runs every redemption guard for userID without mutating anything.
func (s *Service) Preview(ctx context.Context, token string, userID int64) (Preview, error) {
	const op = "invitation.preview"
	inv, member, err := s.lookup(ctx, op, token, userID)
	if err != nil {
		return Preview{}, err
	}
	if err := classify(op, inv, userID, member != nil); err != nil {
		return Preview{}, err
	}
	campaign, err := s.camps.Get(ctx, inv.CampaignID)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Invitation: inv, Campaign: campaign, AlreadyMember: member != nil}, nil
}

// Redeem turns token into a participation for userID.
//
// Guards run in order: token format, existence, consumed, revoked, bound to
// another user, existing membership. A user who already belongs to the
// campaign gets the existing participation back and the invitation is left
// untouched. Otherwise the invitation is consumed and bound atomically, so of
// any number of concurrent callers exactly one succeeds.
func (s *Service) Redeem(ctx context.Context, token string, userID int64) (red Redemption, err error) {
	const op = "invitation.redeem"
	defer func() { s.observeRedeem(ctx, red, userID, err) }()

	inv, member, err := s.lookup(ctx, op, token, userID)
	if err != nil {
		return Redemption{}, err
	}
	if err := classify(op, inv, userID, member != nil); err != nil {
		return Redemption{}, err
	}
	campaign, err := s.camps.Get(ctx, inv.CampaignID)
	if err != nil {
		return Redemption{}, err
	}
	if member != nil {
		return Redemption{Participation: *member, Invitation: inv, Campaign: campaign, AlreadyMember: true}, nil
	}

	consumed, p, joined, err := s.invites.ConsumeAndJoin(ctx, inv.ID, userID)
	if errors.Is(err, store.ErrNotConsumable) {
		// Lost a race or the row changed since lookup; report its current state.
		latest, gerr := s.invites.Get(ctx, inv.ID)
		if gerr != nil {
			return Redemption{}, gerr
		}
		if cerr := classify(op, latest, userID, false); cerr != nil {
			return Redemption{}, cerr
		}
		return Redemption{}, apperr.AlreadyConsumed(op, "invitation was used concurrently")
	}
	if err != nil {
		return Redemption{}, err
	}
	red = Redemption{Participation: p, Invitation: consumed, Campaign: campaign, AlreadyMember: !joined}
	if joined {
		s.notifyCreator(ctx, consumed, campaign, userID)
	}
	return red, nil
}

func (s *Service) lookup(ctx context.Context, op, token string, userID int64) (model.Invitation, *model.Participation, error) {
	tok, err := uuid.Parse(strings.TrimSpace(token))
	if err != nil {
		return model.Invitation{}, nil, apperr.Validation(op, "malformed invitation token")
	}
	inv, err := s.invites.GetByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return model.Invitation{}, nil, apperr.NotFound(op, "invitation does not exist")
		}
		return model.Invitation{}, nil, err
	}
	p, err := s.parts.Find(ctx, userID, inv.CampaignID)
	switch {
	case err == nil:
		return inv, &p, nil
	case errors.Is(err, apperr.ErrNotFound):
		return inv, nil, nil
	default:
		return model.Invitation{}, nil, err
	}
}

// classify applies the redemption guards to inv. A nil result means userID may
// proceed: either to join, or as an existing member.
//
// Consumption binds the invitation to the redeemer, so consumed and revoked
// are checked before the binding; otherwise every later visitor would be told
// the link is reserved instead of used.
func classify(op string, inv model.Invitation, userID int64, member bool) error {
	switch {
	case inv.Consumed:
		if member {
			return nil
		}
		return apperr.AlreadyConsumed(op, "invitation has already been used")
	case inv.Revoked:
		if member {
			return nil
		}
		return apperr.Revoked(op, "invitation was replaced by a newer link")
	case inv.BoundToOther(userID):
		return apperr.Forbidden(op, "invitation is reserved for another user")
	}
	return nil
}

func (s *Service) notifyCreator(ctx context.Context, inv model.Invitation, campaign model.Campaign, userID int64) {
	if inv.CreatedBy == nil {
		return
	}
	handle := model.User{ID: userID}.Handle()
	if u, err := s.users.Get(ctx, userID); err == nil {
		handle = u.Handle()
	}
	msg := messaging.Message{Text: fmt.Sprintf("%s (%s) accepted the invitation to <b>%s</b>.",
		format.EscapeHTML(handle), inv.Role, format.EscapeHTML(campaign.Title))}
	// Creators are owners and masters, who use the admin bot.
	if err := s.ids.For(role.Editor).Notify(ctx, *inv.CreatedBy, msg); err != nil {
		s.metrics.IncNotification("accepted", "fail")
		logger.Warn(ctx, component, "invite.notify_creator",
			slog.String("status", "fail"),
			slog.String("invitation_id", inv.ID.String()),
			slog.Int64("creator_id", *inv.CreatedBy),
			slog.String("err", err.Error()),
		)
		return
	}
	s.metrics.IncNotification("accepted", "ok")
}

func (s *Service) observeRedeem(ctx context.Context, red Redemption, userID int64, err error) {
	outcome := "joined"
	switch {
	case err != nil:
		outcome = string(apperr.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	case red.AlreadyMember:
		outcome = "already_member"
	}
	s.metrics.IncRedemption(outcome)

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("outcome", outcome),
		slog.Int64("user_id", userID),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Info(ctx, component, "invite.redeem", attrs...)
		return
	}
	attrs = append(attrs,
		slog.String("invitation_id", red.Invitation.ID.String()),
		slog.Int64("campaign_id", red.Campaign.ID),
		slog.String("role", red.Participation.Role.String()),
	)
	logger.Info(ctx, component, "invite.redeem", attrs...)
}
