// Package memory provides an in-memory messenger used by tests and local
// runs without a real messaging channel.
package memory

import (
	"context"
	"sync"
)

// Request is a captured approval request.
type Request struct {
	Text  string
	Token string
}

// Messenger records every message instead of delivering it.
type Messenger struct {
	mu       sync.Mutex
	messages []string
	requests []Request
}

// New creates an empty capturing messenger.
func New() *Messenger {
	return &Messenger{}
}

// Send records a plain notification.
func (m *Messenger) Send(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
	return nil
}

// SendApprovalRequest records an approval request with its token.
func (m *Messenger) SendApprovalRequest(ctx context.Context, text, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, Request{Text: text, Token: token})
	return nil
}

// Messages returns a copy of recorded notifications.
func (m *Messenger) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.messages))
	copy(out, m.messages)
	return out
}

// Requests returns a copy of recorded approval requests.
func (m *Messenger) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
