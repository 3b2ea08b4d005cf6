// Package orchestrator drives correction proposals through their lifecycle:
// submission, the human decision, application to the target artifact and
// expiry of proposals nobody decided on.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mailmend/mailmend/internal/clock"
	"github.com/mailmend/mailmend/internal/idgen"
	"github.com/mailmend/mailmend/model/correction"
	"github.com/mailmend/mailmend/service/artifact"
	"github.com/mailmend/mailmend/service/messaging"
	"github.com/mailmend/mailmend/service/proposal"
	"github.com/mailmend/mailmend/tracing"
)

// Approvals is the gateway surface the orchestrator needs: soliciting a
// decision and reporting the terminal state.
type Approvals interface {
	RequestApproval(ctx context.Context, p *correction.Proposal) error
	NotifyOutcome(ctx context.Context, p *correction.Proposal) error
}

// Config controls approval timing.
type Config struct {
	// ApprovalTimeout is how long a proposal stays pending before it expires.
	ApprovalTimeout time.Duration `yaml:"approvalTimeout"`
	// SweepInterval is how often pending proposals are checked for expiry.
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// DefaultConfig returns the default approval timing.
func DefaultConfig() Config {
	return Config{
		ApprovalTimeout: 5 * time.Minute,
		SweepInterval:   30 * time.Second,
	}
}

// Outcome records the terminal state of a proposal for downstream consumers.
type Outcome struct {
	ProposalID string            `json:"proposalId"`
	Resource   string            `json:"resource"`
	Status     correction.Status `json:"status"`
	Revision   string            `json:"revision,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

// Service coordinates proposal stores, the approval gateway and the artifact
// applier.
type Service struct {
	config    Config
	store     proposal.Store
	approvals Approvals
	applier   *artifact.Applier
	outcomes  messaging.Queue[Outcome]
	logger    *slog.Logger

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	done         sync.WaitGroup
}

// Option customises the orchestrator.
type Option func(*Service)

// WithConfig overrides the approval timing.
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

// WithOutcomeQueue publishes every terminal outcome to the given queue.
func WithOutcomeQueue(queue messaging.Queue[Outcome]) Option {
	return func(s *Service) { s.outcomes = queue }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates an orchestrator over the given store, gateway and applier.
func New(store proposal.Store, approvals Approvals, applier *artifact.Applier, options ...Option) *Service {
	s := &Service{
		config:     DefaultConfig(),
		store:      store,
		approvals:  approvals,
		applier:    applier,
		logger:     slog.Default(),
		shutdownCh: make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Submit registers a new proposal and solicits a decision. A pending
// proposal for the same resource and issue already exists when the error is
// proposal.ErrDuplicatePending; the caller decides whether that is worth
// reporting.
func (s *Service) Submit(ctx context.Context, resource string, issue correction.Issue, edits []correction.EditOperation) (*correction.Proposal, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Submit", "INTERNAL")
	defer tracing.EndSpan(span, nil)
	span.WithAttributes(map[string]string{"resource": resource})

	if len(edits) == 0 {
		return nil, fmt.Errorf("proposal for %s has no edits", resource)
	}
	p := &correction.Proposal{
		ID:               idgen.New(),
		TargetResource:   resource,
		Issue:            issue,
		Edits:            edits,
		Status:           correction.StatusPending,
		CorrelationToken: idgen.New(),
		CreatedAt:        clock.Now(),
	}
	if err := s.store.Insert(ctx, p); err != nil {
		return nil, err
	}
	if err := s.approvals.RequestApproval(ctx, p); err != nil {
		return nil, fmt.Errorf("proposal %s stored but approval request failed: %w", p.ID, err)
	}
	s.logger.Info("proposal submitted",
		slog.String("proposal", p.ID),
		slog.String("resource", resource),
		slog.String("issue", issue.Summary))
	return p, nil
}

// Resolve applies a human decision to a pending proposal. Exactly one caller
// wins a concurrent resolution; the losers receive proposal.ErrConflict.
func (s *Service) Resolve(ctx context.Context, id string, decision correction.Decision) error {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Resolve", "INTERNAL")
	var err error
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{
		"proposal": id,
		"decision": string(decision),
	})

	switch decision {
	case correction.DecisionReject:
		err = s.reject(ctx, id)
	case correction.DecisionApprove:
		err = s.approve(ctx, id)
	default:
		err = fmt.Errorf("unknown decision: %s", decision)
	}
	return err
}

func (s *Service) reject(ctx context.Context, id string) error {
	now := clock.Now()
	p, err := s.store.Transition(ctx, id, correction.StatusPending, correction.StatusRejected,
		func(p *correction.Proposal) { p.ResolvedAt = &now })
	if err != nil {
		return err
	}
	s.logger.Info("proposal rejected", slog.String("proposal", id))
	s.finish(ctx, p)
	return nil
}

func (s *Service) approve(ctx context.Context, id string) error {
	p, err := s.store.Transition(ctx, id, correction.StatusPending, correction.StatusApproved, nil)
	if err != nil {
		return err
	}
	return s.finishApproved(ctx, p)
}

// finishApproved applies an APPROVED proposal and records the terminal
// state. It also runs during Recover, so re-application after a crash must
// stay safe: the applier's staleness check refuses edits that already landed.
func (s *Service) finishApproved(ctx context.Context, p *correction.Proposal) error {
	id := p.ID
	version, applyErr := s.applier.Apply(ctx, p)
	now := clock.Now()
	if applyErr != nil {
		p, err := s.store.Transition(ctx, id, correction.StatusApproved, correction.StatusFailed,
			func(p *correction.Proposal) {
				p.ResolvedAt = &now
				p.FailureReason = applyErr.Error()
			})
		if err != nil {
			return err
		}
		var stale *artifact.StaleEditError
		if errors.As(applyErr, &stale) {
			s.logger.Warn("proposal stale at apply time",
				slog.String("proposal", id),
				slog.String("cell", stale.Cell),
				slog.String("want", stale.Want),
				slog.String("got", stale.Got))
		} else {
			s.logger.Error("failed to apply proposal",
				slog.String("proposal", id),
				slog.String("error", applyErr.Error()))
		}
		s.finish(ctx, p)
		return nil
	}
	p, err := s.store.Transition(ctx, id, correction.StatusApproved, correction.StatusApplied,
		func(p *correction.Proposal) {
			p.ResolvedAt = &now
			p.RevisionID = version.ID()
		})
	if err != nil {
		return err
	}
	s.logger.Info("proposal applied",
		slog.String("proposal", id),
		slog.String("revision", version.ID()))
	s.finish(ctx, p)
	return nil
}

// SweepExpired expires every proposal that has been pending longer than the
// approval timeout as of now. It returns how many proposals expired.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.store.ListPending(ctx, now.Add(-s.config.ApprovalTimeout))
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, candidate := range stale {
		resolved := now
		p, err := s.store.Transition(ctx, candidate.ID, correction.StatusPending, correction.StatusExpired,
			func(p *correction.Proposal) { p.ResolvedAt = &resolved })
		if err != nil {
			// A decision arrived between the listing and the transition.
			if errors.Is(err, proposal.ErrConflict) || errors.Is(err, proposal.ErrNotFound) {
				continue
			}
			return expired, err
		}
		expired++
		s.logger.Info("proposal expired", slog.String("proposal", p.ID))
		s.finish(ctx, p)
	}
	return expired, nil
}

// finish notifies the channel and publishes the outcome for a proposal that
// just reached a terminal state.
func (s *Service) finish(ctx context.Context, p *correction.Proposal) {
	if err := s.approvals.NotifyOutcome(ctx, p); err != nil {
		s.logger.Warn("failed to notify outcome",
			slog.String("proposal", p.ID),
			slog.String("error", err.Error()))
	}
	if s.outcomes == nil {
		return
	}
	outcome := &Outcome{
		ProposalID: p.ID,
		Resource:   p.TargetResource,
		Status:     p.Status,
		Revision:   p.RevisionID,
		Reason:     p.FailureReason,
	}
	if err := s.outcomes.Publish(ctx, outcome); err != nil {
		s.logger.Warn("failed to publish outcome",
			slog.String("proposal", p.ID),
			slog.String("error", err.Error()))
	}
}

// Recover finishes proposals a previous run left half-resolved. A proposal
// persisted as APPROVED received its decision but crashed before the apply
// completed; without this pass it would be unreachable forever, since
// neither Resolve nor the expiry sweep touches non-PENDING records. The
// apply is simply re-run: an edit set that already landed fails the
// staleness check and the proposal ends FAILED with the reason, never
// applied twice.
func (s *Service) Recover(ctx context.Context) error {
	all, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range all {
		if p.Status != correction.StatusApproved {
			continue
		}
		s.logger.Info("resuming approved proposal",
			slog.String("proposal", p.ID),
			slog.String("resource", p.TargetResource))
		if err := s.finishApproved(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Start recovers half-resolved proposals and launches the periodic expiry
// sweep.
func (s *Service) Start(ctx context.Context) {
	s.done.Add(1)
	go func() {
		defer s.done.Done()
		if err := s.Recover(ctx); err != nil {
			s.logger.Error("recovery failed", slog.String("error", err.Error()))
		}
		ticker := time.NewTicker(s.config.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.shutdownCh:
				return
			case <-ticker.C:
				if _, err := s.SweepExpired(ctx, clock.Now()); err != nil {
					s.logger.Error("expiry sweep failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// Shutdown stops the expiry sweep and waits for it to finish. Safe to call
// more than once.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	s.done.Wait()
}
