// Package state runs stacked dialogs for Telegram bots.
//
// A dialog is an ordered list of windows. Each user has a stack of open
// dialogs; the top frame decides which window is shown and which handler
// receives free text. Frames carry immutable start data and private dialog
// data. Sessions live in a Store (memory or Redis) between updates.
package state
