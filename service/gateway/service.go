package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mailmend/mailmend/model/correction"
	"github.com/mailmend/mailmend/service/proposal"
)

// Service implements the approval gateway over a Messenger transport.
type Service struct {
	messenger Messenger
	store     proposal.Store
	resolver  Resolver
	logger    *slog.Logger
}

// Option customises the gateway service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a gateway over the given transport and proposal store. The
// resolver is attached separately to break the construction cycle with the
// orchestrator.
func New(messenger Messenger, store proposal.Store, options ...Option) *Service {
	s := &Service{
		messenger: messenger,
		store:     store,
		logger:    slog.Default(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// AttachResolver wires the component that resolves decisions. Must be called
// before the first OnDecision callback can arrive.
func (s *Service) AttachResolver(r Resolver) {
	s.resolver = r
}

// RequestApproval renders and dispatches the approval request for a pending
// proposal. It returns as soon as the transport accepted the message; the
// human decision arrives later through OnDecision.
func (s *Service) RequestApproval(ctx context.Context, p *correction.Proposal) error {
	text := renderApprovalRequest(p)
	if err := s.messenger.SendApprovalRequest(ctx, text, p.CorrelationToken); err != nil {
		return fmt.Errorf("failed to request approval for proposal %s: %w", p.ID, err)
	}
	s.logger.Info("approval requested",
		slog.String("proposal", p.ID),
		slog.String("resource", p.TargetResource),
		slog.String("token", p.CorrelationToken))
	return nil
}

// OnDecision handles an inbound decision callback from the messaging
// channel. Unknown tokens, already resolved proposals and lost transition
// races are logged and swallowed: a repeated or stale callback is a no-op for
// the channel, not an error.
func (s *Service) OnDecision(ctx context.Context, token string, decision correction.Decision) {
	p, err := s.store.FindByToken(ctx, token)
	if err != nil {
		s.logger.Warn("decision for unknown token dropped", slog.String("token", token))
		return
	}
	if p.Status != correction.StatusPending {
		s.logger.Info("decision for resolved proposal ignored",
			slog.String("proposal", p.ID),
			slog.String("status", string(p.Status)))
		return
	}
	if err := s.resolver.Resolve(ctx, p.ID, decision); err != nil {
		if errors.Is(err, proposal.ErrConflict) || errors.Is(err, proposal.ErrNotFound) {
			s.logger.Info("decision lost resolution race",
				slog.String("proposal", p.ID),
				slog.String("decision", string(decision)))
			return
		}
		s.logger.Error("failed to resolve proposal",
			slog.String("proposal", p.ID),
			slog.String("error", err.Error()))
	}
}

// NotifyOutcome reports a terminal proposal state back over the same channel
// the approval request used.
func (s *Service) NotifyOutcome(ctx context.Context, p *correction.Proposal) error {
	return s.messenger.Send(ctx, renderOutcome(p))
}

// Notify sends an arbitrary text notification, e.g. an analysis summary.
func (s *Service) Notify(ctx context.Context, text string) error {
	return s.messenger.Send(ctx, text)
}
