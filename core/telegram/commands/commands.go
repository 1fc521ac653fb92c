// Package commands describes bot commands registered with a Registry.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its menu description.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are rejected for users outside telegram.admin_ids.
	AdminOnly bool
	Hidden    bool
}
