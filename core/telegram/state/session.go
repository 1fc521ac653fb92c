package state

import (
	"context"
	"encoding/json"
)

// Frame is one open dialog on a user's stack.
type Frame struct {
	ID     string `json:"id"`
	Dialog string `json:"dialog"`
	Window int    `json:"window"`
	// StartData is fixed when the frame is pushed.
	StartData json.RawMessage `json:"start_data,omitempty"`
	// Data is private to the frame and dropped when it is popped.
	Data map[string]json.RawMessage `json:"data,omitempty"`
	// Then is the continuation path the frame was started with.
	Then []State `json:"then,omitempty"`
}

// Session is the dialog stack of one user.
type Session struct {
	UserID int64   `json:"user_id"`
	Stack  []Frame `json:"stack"`
}

// Empty reports whether no dialog is open.
func (s *Session) Empty() bool { return s == nil || len(s.Stack) == 0 }

func (s *Session) top() *Frame {
	if s.Empty() {
		return nil
	}
	return &s.Stack[len(s.Stack)-1]
}

// Store keeps sessions between updates. Load returns an empty session for
// unknown users; Save of an empty session removes it.
type Store interface {
	Load(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
}

func encodeSession(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

func decodeSession(userID int64, data []byte) (*Session, error) {
	s := &Session{UserID: userID}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	s.UserID = userID
	return s, nil
}
