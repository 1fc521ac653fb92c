// Package inventory keeps campaign items: the shared stash and the items
// each player holds.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/m3rciful/tabletop/core/logger"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
	"github.com/m3rciful/tabletop/internal/store"
)

const (
	component = "service.inventory"

	MaxTitleLen       = 255
	MaxDescriptionLen = 1023
	MaxQuantity       = 1000
)

// Stash is the holder id of the campaign stash.
const Stash int64 = 0

// ItemStore persists items.
type ItemStore interface {
	Create(ctx context.Context, it model.Item) (model.Item, error)
	Get(ctx context.Context, id uuid.UUID) (model.Item, error)
	List(ctx context.Context, campaignID int64, userID *int64) ([]model.Item, error)
	Update(ctx context.Context, id uuid.UUID, patch store.ItemPatch) (model.Item, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Campaigns checks membership and permissions.
type Campaigns interface {
	Authorize(ctx context.Context, campaignID, actorID int64, a role.Action) (model.Participation, error)
	Membership(ctx context.Context, campaignID, userID int64) (model.Participation, error)
}

// Draft is the input for Add.
type Draft struct {
	Title       string
	Description string
	Quantity    int
}

// Patch lists optional edits. Nil fields stay unchanged.
type Patch struct {
	Title       *string
	Description *string
	Quantity    *int
}

// Service implements inventories.
type Service struct {
	items ItemStore
	camps Campaigns
}

// NewService wires the service.
func NewService(items ItemStore, camps Campaigns) (*Service, error) {
	if items == nil || camps == nil {
		return nil, apperr.Configuration("inventory.new_service", "store dependency is missing")
	}
	return &Service{items: items, camps: camps}, nil
}

// ValidateTitle checks an item title.
func ValidateTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch n := utf8.RuneCountInString(s); {
	case n == 0:
		return "", apperr.Validation("item.title", "title must not be empty")
	case n > MaxTitleLen:
		return "", apperr.Validation("item.title", fmt.Sprintf("title is longer than %d characters", MaxTitleLen))
	}
	return s, nil
}

// ValidateDescription checks an item description.
func ValidateDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxDescriptionLen {
		return "", apperr.Validation("item.description", fmt.Sprintf("description is longer than %d characters", MaxDescriptionLen))
	}
	return s, nil
}

// ParseQuantity reads and checks a quantity typed by a user.
func ParseQuantity(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, apperr.Validation("item.quantity", "send a whole number")
	}
	return n, ValidateQuantity(n)
}

// ValidateQuantity checks an item quantity.
func ValidateQuantity(n int) error {
	if n < 1 || n > MaxQuantity {
		return apperr.Validation("item.quantity", fmt.Sprintf("quantity must be between 1 and %d", MaxQuantity))
	}
	return nil
}

// List returns the inventory of holderID in campaignID. Masters see every
// inventory; players see their own and the stash.
func (s *Service) List(ctx context.Context, actorID, campaignID, holderID int64) ([]model.Item, error) {
	if err := s.canView(ctx, actorID, campaignID, holderID); err != nil {
		return nil, err
	}
	return s.items.List(ctx, campaignID, holderPtr(holderID))
}

// Get loads one item the actor may see.
func (s *Service) Get(ctx context.Context, actorID int64, id uuid.UUID) (model.Item, error) {
	it, err := s.items.Get(ctx, id)
	if err != nil {
		return model.Item{}, err
	}
	if err := s.canView(ctx, actorID, it.CampaignID, holderOf(it)); err != nil {
		return model.Item{}, err
	}
	return it, nil
}

// Add puts a new item into holderID's inventory.
func (s *Service) Add(ctx context.Context, actorID, campaignID, holderID int64, d Draft) (model.Item, error) {
	title, err := ValidateTitle(d.Title)
	if err != nil {
		return model.Item{}, err
	}
	desc, err := ValidateDescription(d.Description)
	if err != nil {
		return model.Item{}, err
	}
	if d.Quantity == 0 {
		d.Quantity = 1
	}
	if err := ValidateQuantity(d.Quantity); err != nil {
		return model.Item{}, err
	}
	if err := s.manage(ctx, actorID, campaignID, holderID); err != nil {
		return model.Item{}, err
	}
	it, err := s.items.Create(ctx, model.Item{
		CampaignID:  campaignID,
		UserID:      holderPtr(holderID),
		Title:       title,
		Description: desc,
		Quantity:    d.Quantity,
	})
	s.log(ctx, "item.add", actorID, it, err)
	return it, err
}

// Update edits an item.
func (s *Service) Update(ctx context.Context, actorID int64, id uuid.UUID, p Patch) (model.Item, error) {
	var patch store.ItemPatch
	if p.Title != nil {
		t, err := ValidateTitle(*p.Title)
		if err != nil {
			return model.Item{}, err
		}
		patch.Title = &t
	}
	if p.Description != nil {
		d, err := ValidateDescription(*p.Description)
		if err != nil {
			return model.Item{}, err
		}
		patch.Description = &d
	}
	if p.Quantity != nil {
		if err := ValidateQuantity(*p.Quantity); err != nil {
			return model.Item{}, err
		}
		patch.Quantity = p.Quantity
	}
	it, err := s.items.Get(ctx, id)
	if err != nil {
		return model.Item{}, err
	}
	if _, err := s.camps.Authorize(ctx, it.CampaignID, actorID, role.ActionManageItems); err != nil {
		return model.Item{}, err
	}
	it, err = s.items.Update(ctx, id, patch)
	s.log(ctx, "item.update", actorID, it, err)
	return it, err
}

// Delete removes an item.
func (s *Service) Delete(ctx context.Context, actorID int64, id uuid.UUID) error {
	it, err := s.items.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.camps.Authorize(ctx, it.CampaignID, actorID, role.ActionManageItems); err != nil {
		return err
	}
	err = s.items.Delete(ctx, id)
	s.log(ctx, "item.delete", actorID, it, err)
	return err
}

func (s *Service) canView(ctx context.Context, actorID, campaignID, holderID int64) error {
	if holderID == Stash || holderID == actorID {
		if _, err := s.camps.Membership(ctx, campaignID, actorID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.Forbidden("item.view", "you are not a member of this campaign")
			}
			return err
		}
		return nil
	}
	return s.manage(ctx, actorID, campaignID, holderID)
}

// manage checks actorID may manage items of campaignID and holderID is the
// stash or one of its players.
func (s *Service) manage(ctx context.Context, actorID, campaignID, holderID int64) error {
	if _, err := s.camps.Authorize(ctx, campaignID, actorID, role.ActionManageItems); err != nil {
		return err
	}
	if holderID == Stash {
		return nil
	}
	p, err := s.camps.Membership(ctx, campaignID, holderID)
	if errors.Is(err, apperr.ErrNotFound) || err == nil && p.Role != role.Player {
		return apperr.NotFound("item.holder", "this user is not a player of the campaign")
	}
	return err
}

func (s *Service) log(ctx context.Context, event string, actorID int64, it model.Item, err error) {
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Int64("user_id", actorID),
		slog.Int64("campaign_id", it.CampaignID),
		slog.Int64("holder_id", holderOf(it)),
	}
	if err != nil {
		logger.Warn(ctx, component, event, append(attrs, slog.String("err", err.Error()))...)
		return
	}
	logger.Info(ctx, component, event, append(attrs,
		slog.String("item_id", it.ID.String()),
		slog.Int("quantity", it.Quantity),
	)...)
}

func holderPtr(holderID int64) *int64 {
	if holderID == Stash {
		return nil
	}
	return &holderID
}

func holderOf(it model.Item) int64 {
	if it.UserID == nil {
		return Stash
	}
	return *it.UserID
}
