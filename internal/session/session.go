// Package session tracks one chat conversation: its message history and
// the single in-flight stream loop the conversation is allowed to own.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Roles for Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one stored chat turn.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session holds an ordered message history and at most one active stream
// context. Activating a new stream cancels the prior one first, so two
// loops can never deliver interleaved events to the same surface.
type Session struct {
	id    string
	model string

	mu       sync.Mutex
	cancel   context.CancelFunc
	messages []Message
}

// New creates a Session for the given model.
func New(model string) *Session {
	return &Session{
		id:    uuid.NewString(),
		model: model,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Model returns the model the session chats with.
func (s *Session) Model() string { return s.model }

// Append records a new message and returns it.
func (s *Session) Append(role, content string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return msg
}

// Messages returns a copy of the history in insertion order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Activate prepares the session for a new stream loop. Any previously
// active loop is cancelled cooperatively before the new context is handed
// out; the loop itself decides when to stop reading.
func (s *Session) Activate(parent context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	return ctx
}

// Release cancels the active stream loop, if any.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
