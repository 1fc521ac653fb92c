// Package character manages player characters, their uploaded sheets and
// player ratings.
package character

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/tabletop/core/logger"
	"github.com/m3rciful/tabletop/core/metrics"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
)

const (
	component = "service.characters"

	MaxLevel      = 20
	MaxRating     = 1000
	MaxSheetBytes = 512 << 10
	TopSize       = 10
)

// CharacterStore persists characters.
type CharacterStore interface {
	Save(ctx context.Context, c model.Character) (model.Character, error)
	Find(ctx context.Context, userID, campaignID int64) (model.Character, error)
	SetLevel(ctx context.Context, id uuid.UUID, level int, sheet *string) (model.Character, error)
	Roster(ctx context.Context, campaignID int64) ([]model.RosterEntry, error)
}

// UserStore reads users and changes ratings.
type UserStore interface {
	Get(ctx context.Context, id int64) (model.User, error)
	SetRating(ctx context.Context, id int64, rating int) (model.User, error)
	AddRating(ctx context.Context, id int64, delta, ceiling int) (model.User, error)
	TopByRating(ctx context.Context, limit int) ([]model.User, error)
}

// Campaigns checks membership and permissions.
type Campaigns interface {
	Authorize(ctx context.Context, campaignID, actorID int64, a role.Action) (model.Participation, error)
	Membership(ctx context.Context, campaignID, userID int64) (model.Participation, error)
}

// Card is one player as seen from a campaign.
type Card struct {
	User      model.User
	Character *model.Character
	Sheet     *Sheet
}

// Service implements character management.
type Service struct {
	chars   CharacterStore
	users   UserStore
	camps   Campaigns
	metrics *metrics.Registry
}

// NewService wires the service. m may be nil.
func NewService(chars CharacterStore, users UserStore, camps Campaigns, m *metrics.Registry) (*Service, error) {
	if chars == nil || users == nil || camps == nil {
		return nil, apperr.Configuration("character.new_service", "store dependency is missing")
	}
	return &Service{chars: chars, users: users, camps: camps, metrics: m}, nil
}

// ValidateLevel checks a character level.
func ValidateLevel(level int) error {
	if level < 1 || level > MaxLevel {
		return apperr.Validation("character.level", fmt.Sprintf("level must be between 1 and %d", MaxLevel))
	}
	return nil
}

// ValidateRating checks an exact rating.
func ValidateRating(rating int) error {
	if rating < 0 || rating > MaxRating {
		return apperr.Validation("character.rating", fmt.Sprintf("rating must be between 0 and %d", MaxRating))
	}
	return nil
}

// ParseNumber reads a whole number typed by a user.
func ParseNumber(op, text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, apperr.Validation(op, "send a whole number")
	}
	return n, nil
}

// Roster lists the players of a campaign for its masters.
func (s *Service) Roster(ctx context.Context, actorID, campaignID int64) ([]model.RosterEntry, error) {
	if _, err := s.camps.Authorize(ctx, campaignID, actorID, role.ActionManagePlayers); err != nil {
		return nil, err
	}
	return s.chars.Roster(ctx, campaignID)
}

// Player loads the card of a campaign player for one of its masters.
func (s *Service) Player(ctx context.Context, actorID, campaignID, userID int64) (Card, error) {
	if err := s.manage(ctx, actorID, campaignID, userID); err != nil {
		return Card{}, err
	}
	return s.card(ctx, campaignID, userID)
}

// Own loads the caller's card in a campaign they belong to.
func (s *Service) Own(ctx context.Context, userID, campaignID int64) (Card, error) {
	if err := s.member(ctx, campaignID, userID); err != nil {
		return Card{}, err
	}
	return s.card(ctx, campaignID, userID)
}

// Upload stores a character sheet for userID in campaignID, creating the
// character on first upload. Name and level are taken from the sheet.
func (s *Service) Upload(ctx context.Context, userID, campaignID int64, raw []byte) (model.Character, error) {
	c, err := s.upload(ctx, userID, campaignID, raw)
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.IncSheetUpload(outcome)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("outcome", outcome),
		slog.Int64("campaign_id", campaignID),
		slog.Int64("user_id", userID),
		slog.Int("bytes", len(raw)),
	}
	if err != nil {
		logger.Info(ctx, component, "sheet.upload", append(attrs, slog.String("err", err.Error()))...)
		return model.Character{}, err
	}
	logger.Info(ctx, component, "sheet.upload", attrs...)
	return c, nil
}

func (s *Service) upload(ctx context.Context, userID, campaignID int64, raw []byte) (model.Character, error) {
	if err := s.member(ctx, campaignID, userID); err != nil {
		return model.Character{}, err
	}
	norm, err := Normalize(raw)
	if err != nil {
		return model.Character{}, err
	}
	sh, err := ParseSheet(norm)
	if err != nil {
		return model.Character{}, err
	}
	level := sh.Level
	if level == 0 {
		level = 1
	}
	if err := ValidateLevel(level); err != nil {
		return model.Character{}, err
	}
	name := strings.TrimSpace(sh.Name)
	if r := []rune(name); len(r) > 255 {
		name = string(r[:255])
	}
	text := string(norm)
	return s.chars.Save(ctx, model.Character{
		UserID:     userID,
		CampaignID: campaignID,
		Name:       name,
		Level:      level,
		Sheet:      &text,
	})
}

// SetLevel changes the level of a player's character and records it in the sheet.
func (s *Service) SetLevel(ctx context.Context, actorID, campaignID, userID int64, level int) (model.Character, error) {
	const op = "character.set_level"
	if err := ValidateLevel(level); err != nil {
		return model.Character{}, err
	}
	if err := s.manage(ctx, actorID, campaignID, userID); err != nil {
		return model.Character{}, err
	}
	c, err := s.chars.Find(ctx, userID, campaignID)
	if errors.Is(err, apperr.ErrNotFound) {
		return model.Character{}, apperr.NotFound(op, "the player has not uploaded a character yet")
	}
	if err != nil {
		return model.Character{}, err
	}
	sheet := c.Sheet
	if sheet != nil {
		b, err := withLevel([]byte(*sheet), level)
		if err != nil {
			return model.Character{}, fmt.Errorf("%s: %w", op, err)
		}
		text := string(b)
		sheet = &text
	}
	updated, err := s.chars.SetLevel(ctx, c.ID, level, sheet)
	if err != nil {
		return model.Character{}, err
	}
	logger.Info(ctx, component, "character.level",
		slog.String("status", "ok"),
		slog.Int64("campaign_id", campaignID),
		slog.Int64("user_id", actorID),
		slog.Int64("target_id", userID),
		slog.Int("level", level),
	)
	return updated, nil
}

// SetRating stores an exact rating for a campaign player.
func (s *Service) SetRating(ctx context.Context, actorID, campaignID, userID int64, rating int) (model.User, error) {
	if err := ValidateRating(rating); err != nil {
		return model.User{}, err
	}
	if err := s.manage(ctx, actorID, campaignID, userID); err != nil {
		return model.User{}, err
	}
	u, err := s.users.SetRating(ctx, userID, rating)
	if err != nil {
		return model.User{}, err
	}
	s.logRating(ctx, actorID, campaignID, u)
	return u, nil
}

// AdjustRating shifts a player's rating by delta, clamped to [0, MaxRating].
func (s *Service) AdjustRating(ctx context.Context, actorID, campaignID, userID int64, delta int) (model.User, error) {
	if err := s.manage(ctx, actorID, campaignID, userID); err != nil {
		return model.User{}, err
	}
	u, err := s.users.AddRating(ctx, userID, delta, MaxRating)
	if err != nil {
		return model.User{}, err
	}
	s.logRating(ctx, actorID, campaignID, u)
	return u, nil
}

func (s *Service) logRating(ctx context.Context, actorID, campaignID int64, u model.User) {
	logger.Info(ctx, component, "character.rating",
		slog.String("status", "ok"),
		slog.Int64("campaign_id", campaignID),
		slog.Int64("user_id", actorID),
		slog.Int64("target_id", u.ID),
		slog.Int("rating", u.Rating),
	)
}

// Top lists the best rated users.
func (s *Service) Top(ctx context.Context) ([]model.User, error) {
	return s.users.TopByRating(ctx, TopSize)
}

// Export returns the stored sheet of a player's character, indented, with
// a file name derived from the character name.
func (s *Service) Export(ctx context.Context, actorID, campaignID, userID int64) (string, []byte, error) {
	const op = "character.export"
	if err := s.manage(ctx, actorID, campaignID, userID); err != nil {
		return "", nil, err
	}
	c, err := s.chars.Find(ctx, userID, campaignID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return "", nil, err
	}
	if err != nil || c.Sheet == nil {
		return "", nil, apperr.NotFound(op, "the player has not uploaded a character sheet")
	}
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(*c.Sheet), "", "  "); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return fileName(c), out.Bytes(), nil
}

func fileName(c model.Character) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '-':
			return '_'
		case r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			return r
		}
		return -1
	}, c.Name)
	if name == "" {
		name = "character_" + strconv.FormatInt(c.UserID, 10)
	}
	return name + ".json"
}

// manage checks actorID may manage players of campaignID and userID is one of them.
func (s *Service) manage(ctx context.Context, actorID, campaignID, userID int64) error {
	const op = "character.player"
	if _, err := s.camps.Authorize(ctx, campaignID, actorID, role.ActionManagePlayers); err != nil {
		return err
	}
	p, err := s.camps.Membership(ctx, campaignID, userID)
	if errors.Is(err, apperr.ErrNotFound) || err == nil && p.Role != role.Player {
		return apperr.NotFound(op, "this user is not a player of the campaign")
	}
	return err
}

func (s *Service) member(ctx context.Context, campaignID, userID int64) error {
	_, err := s.camps.Membership(ctx, campaignID, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Forbidden("character.member", "you are not a member of this campaign")
	}
	return err
}

func (s *Service) card(ctx context.Context, campaignID, userID int64) (Card, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return Card{}, err
	}
	card := Card{User: u}
	c, err := s.chars.Find(ctx, userID, campaignID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return card, nil
	case err != nil:
		return Card{}, err
	}
	card.Character = &c
	if c.Sheet != nil {
		if sh, err := ParseSheet([]byte(*c.Sheet)); err == nil {
			card.Sheet = &sh
		}
	}
	return card, nil
}
