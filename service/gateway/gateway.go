// Package gateway bridges the correction workflow and the asynchronous
// messaging channel a human decides on. Outbound approval requests are
// fire-and-forget; inbound decisions arrive as callbacks correlated by token
// and are forwarded to the orchestrator. Decisions on unknown or already
// resolved proposals are logged and dropped, never raised to the channel.
package gateway

import (
	"context"

	"github.com/mailmend/mailmend/model/correction"
)

// Messenger delivers human-facing messages over the external channel
// (Telegram in production, an in-memory fake in tests).
type Messenger interface {
	// Send delivers a plain notification.
	Send(ctx context.Context, text string) error

	// SendApprovalRequest delivers a message carrying approve/reject
	// affordances tagged with the correlation token.
	SendApprovalRequest(ctx context.Context, text, token string) error
}

// Resolver resolves a proposal with a human decision. Implemented by the
// orchestrator.
type Resolver interface {
	Resolve(ctx context.Context, id string, decision correction.Decision) error
}

// DecisionHandler receives decoded decision callbacks from a transport.
// Service.OnDecision is the canonical implementation.
type DecisionHandler func(ctx context.Context, token string, decision correction.Decision)
