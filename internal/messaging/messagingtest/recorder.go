// Package messagingtest provides a recording Identity for tests.
package messagingtest

import (
	"context"
	"sync"

	"github.com/m3rciful/tabletop/internal/messaging"
)

// Sent is one captured notification.
type Sent struct {
	ChatID  int64
	Message messaging.Message
}

// Recorder is an Identity that keeps every notification in memory.
type Recorder struct {
	Name string
	// Err, when set, is returned from Notify after recording.
	Err error

	mu   sync.Mutex
	sent []Sent
}

// NewRecorder returns a Recorder answering to username.
func NewRecorder(username string) *Recorder {
	return &Recorder{Name: username}
}

// Username implements messaging.Identity.
func (r *Recorder) Username() string { return r.Name }

// Notify implements messaging.Identity.
func (r *Recorder) Notify(_ context.Context, chatID int64, msg messaging.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{ChatID: chatID, Message: msg})
	return r.Err
}

// Sent returns a copy of the captured notifications.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}
