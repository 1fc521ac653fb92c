// Package model holds the persisted entities shared by stores, services and bots.
package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/tabletop/internal/role"
)

// User is a Telegram account known to the bots. ID is the Telegram user id.
type User struct {
	ID        int64     `db:"id"`
	Username  *string   `db:"username"`
	Admin     bool      `db:"admin"`
	Rating    int       `db:"rating"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Handle renders the user as @username, falling back to the numeric id.
func (u User) Handle() string {
	if u.Username != nil && *u.Username != "" {
		return "@" + *u.Username
	}
	return "id" + strconv.FormatInt(u.ID, 10)
}

// Campaign is a tabletop game run by one owner and any number of masters.
type Campaign struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Icon        *string   `db:"icon"`
	Verified    bool      `db:"verified"`
	Private     bool      `db:"private"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Participation links a user to a campaign with a role.
// At most one exists per (UserID, CampaignID).
type Participation struct {
	ID         uuid.UUID `db:"id"`
	UserID     int64     `db:"user_id"`
	CampaignID int64     `db:"campaign_id"`
	Role       role.Role `db:"role"`
	CreatedAt  time.Time `db:"created_at"`
}

// RoleValue implements role.Holder.
func (p Participation) RoleValue() role.Role { return p.Role }

// Member is a participation joined with the member's username.
type Member struct {
	Participation
	Username *string `db:"username"`
}

// Handle renders the member like User.Handle.
func (m Member) Handle() string {
	return User{ID: m.UserID, Username: m.Username}.Handle()
}

// Membership is a campaign seen from one member's side.
type Membership struct {
	Campaign
	ParticipationID uuid.UUID `db:"participation_id"`
	Role            role.Role `db:"role"`
}

// Invitation is a single-use token granting a role in a campaign.
// Rows are never deleted; consumption and revocation are flags.
type Invitation struct {
	ID         uuid.UUID `db:"id"`
	CampaignID int64     `db:"campaign_id"`
	Role       role.Role `db:"role"`
	Token      uuid.UUID `db:"token"`
	Consumed   bool      `db:"consumed"`
	Revoked    bool      `db:"revoked"`
	UserID     *int64    `db:"user_id"`
	CreatedBy  *int64    `db:"created_by"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// BoundToOther reports whether the invitation is reserved for someone other than userID.
func (i Invitation) BoundToOther(userID int64) bool {
	return i.UserID != nil && *i.UserID != userID
}

// Character is a player's hero in one campaign. Sheet holds the uploaded
// character sheet as raw JSON, if any.
type Character struct {
	ID         uuid.UUID `db:"id"`
	UserID     int64     `db:"user_id"`
	CampaignID int64     `db:"campaign_id"`
	Name       string    `db:"name"`
	Level      int       `db:"level"`
	Sheet      *string   `db:"sheet"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// RosterEntry is a player of a campaign with their character, when one exists.
type RosterEntry struct {
	ParticipationID uuid.UUID  `db:"participation_id"`
	UserID          int64      `db:"user_id"`
	Username        *string    `db:"username"`
	Rating          int        `db:"rating"`
	CharacterID     *uuid.UUID `db:"character_id"`
	CharacterName   *string    `db:"character_name"`
	Level           *int       `db:"level"`
}

// Handle renders the player like User.Handle.
func (r RosterEntry) Handle() string {
	return User{ID: r.UserID, Username: r.Username}.Handle()
}

// Item is a stack of identical things in an inventory. A nil UserID puts it
// in the campaign's shared stash.
type Item struct {
	ID          uuid.UUID `db:"id"`
	CampaignID  int64     `db:"campaign_id"`
	UserID      *int64    `db:"user_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Quantity    int       `db:"quantity"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
