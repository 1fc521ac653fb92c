// Package messaging routes outbound notifications through the bot that owns the recipient's role.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/role"
)

// LinkButton is an inline URL button attached to a notification.
type LinkButton struct {
	Text string
	URL  string
}

// Message is an HTML-formatted notification.
type Message struct {
	Text   string
	Button *LinkButton
}

// Identity is one bot as seen by the services: its public username and a way to DM users.
type Identity interface {
	Username() string
	Notify(ctx context.Context, chatID int64, msg Message) error
}

// Identities maps roles to the bot that serves them. It is immutable after construction.
type Identities struct {
	admin  Identity
	player Identity
}

// NewIdentities validates and freezes the role to bot mapping.
// Masters and owners use the admin bot; players use the player bot.
func NewIdentities(admin, player Identity) (Identities, error) {
	const op = "messaging.identities"
	if admin == nil {
		return Identities{}, apperr.Configuration(op, "admin bot identity is missing")
	}
	if player == nil {
		return Identities{}, apperr.Configuration(op, "player bot identity is missing")
	}
	for name, id := range map[string]Identity{"admin": admin, "player": player} {
		if strings.TrimSpace(id.Username()) == "" {
			return Identities{}, apperr.Configuration(op, fmt.Sprintf("%s bot has no username", name))
		}
	}
	return Identities{admin: admin, player: player}, nil
}

// For returns the identity serving r.
func (ids Identities) For(r role.Role) Identity {
	if r >= role.Editor {
		return ids.admin
	}
	return ids.player
}

// Admin returns the admin bot identity.
func (ids Identities) Admin() Identity { return ids.admin }

// Player returns the player bot identity.
func (ids Identities) Player() Identity { return ids.player }
