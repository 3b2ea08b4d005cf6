package mailmend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/mailmend/mailmend/service/analysis"
	"github.com/mailmend/mailmend/service/artifact"
	"github.com/mailmend/mailmend/service/gateway"
	gwmemory "github.com/mailmend/mailmend/service/gateway/memory"
	"github.com/mailmend/mailmend/service/mailbox"
	"github.com/mailmend/mailmend/service/messaging"
	queuefs "github.com/mailmend/mailmend/service/messaging/fs"
	queuememory "github.com/mailmend/mailmend/service/messaging/memory"
	"github.com/mailmend/mailmend/service/orchestrator"
	"github.com/mailmend/mailmend/service/proposal"
	proposalfs "github.com/mailmend/mailmend/service/proposal/fs"
	proposalmemory "github.com/mailmend/mailmend/service/proposal/memory"
	"github.com/mailmend/mailmend/service/watcher"
	"github.com/mailmend/mailmend/tracing"
)

// Version is the agent version reported by the CLI.
const Version = "0.1.0"

// DecisionSource delivers human decisions; the Telegram client implements it
// via long polling.
type DecisionSource interface {
	Listen(ctx context.Context, handler gateway.DecisionHandler)
}

// Service is the assembled correction agent: artifact store, proposal store,
// approval gateway, orchestrator and the optional mailbox watcher.
type Service struct {
	config *Config
	fs     afs.Service
	logger *slog.Logger

	artifacts    *artifact.Store
	proposals    proposal.Store
	messenger    gateway.Messenger
	approvals    *gateway.Service
	orchestrator *orchestrator.Service
	outcomes     messaging.Queue[orchestrator.Outcome]

	analyzer analysis.Analyzer
	mailbox  mailbox.Client
	watcher  *watcher.Service

	decisions DecisionSource
}

// New assembles a service from options, filling anything not supplied with
// in-memory defaults.
func New(ctx context.Context, options ...Option) (*Service, error) {
	s := &Service{
		config: DefaultConfig(),
		fs:     afs.New(),
		logger: slog.Default(),
	}
	for _, option := range options {
		option(s)
	}
	if err := s.ensureBaseSetup(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ensureBaseSetup(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.config.Tracing.Enabled {
		if err := tracing.Init("mailmend", Version, s.config.Tracing.OutputFile); err != nil {
			return err
		}
	}
	baseURL := s.config.Storage.BaseURL
	if s.artifacts == nil {
		artifactsURL := "mem://localhost/mailmend/artifacts"
		if baseURL != "" {
			artifactsURL = url.Join(baseURL, "artifacts")
		}
		s.artifacts = artifact.NewStore(s.fs, artifactsURL)
	}
	if s.proposals == nil {
		if baseURL == "" {
			s.proposals = proposalmemory.New()
		} else {
			store, err := proposalfs.New(ctx, s.fs, baseURL)
			if err != nil {
				return fmt.Errorf("failed to open proposal store: %w", err)
			}
			s.proposals = store
		}
	}
	if s.outcomes == nil {
		if baseURL == "" {
			s.outcomes = queuememory.NewQueue[orchestrator.Outcome](queuememory.DefaultConfig())
		} else {
			config := queuefs.DefaultConfig()
			config.BasePath = url.Join(baseURL, "outcomes")
			queue, err := queuefs.NewQueue[orchestrator.Outcome](s.fs, config)
			if err != nil {
				return fmt.Errorf("failed to open outcome queue: %w", err)
			}
			s.outcomes = queue
		}
	}
	if s.messenger == nil {
		s.messenger = gwmemory.New()
	}
	s.approvals = gateway.New(s.messenger, s.proposals, gateway.WithLogger(s.logger))
	s.orchestrator = orchestrator.New(s.proposals, s.approvals, artifact.NewApplier(s.artifacts),
		orchestrator.WithConfig(s.config.Approval.orchestrator()),
		orchestrator.WithOutcomeQueue(s.outcomes),
		orchestrator.WithLogger(s.logger))
	s.approvals.AttachResolver(s.orchestrator)

	if s.mailbox != nil && s.analyzer != nil {
		s.watcher = watcher.New(s.mailbox, s.analyzer, s.orchestrator, s.approvals,
			watcher.WithConfig(s.config.Watcher.watcher()),
			watcher.WithUploader(s.artifacts),
			watcher.WithLogger(s.logger))
	}
	return nil
}

// Artifacts returns the artifact store.
func (s *Service) Artifacts() *artifact.Store {
	return s.artifacts
}

// Proposals returns the proposal store.
func (s *Service) Proposals() proposal.Store {
	return s.proposals
}

// Orchestrator returns the correction orchestrator.
func (s *Service) Orchestrator() *orchestrator.Service {
	return s.orchestrator
}

// Gateway returns the approval gateway.
func (s *Service) Gateway() *gateway.Service {
	return s.approvals
}

// Outcomes returns the queue terminal outcomes are published on.
func (s *Service) Outcomes() messaging.Queue[orchestrator.Outcome] {
	return s.outcomes
}

// Start launches the expiry sweep, the decision listener and, when a mailbox
// and analyzer are wired, the watcher loop.
func (s *Service) Start(ctx context.Context) {
	s.orchestrator.Start(ctx)
	if s.decisions != nil {
		go s.decisions.Listen(ctx, s.approvals.OnDecision)
	}
	if s.watcher != nil {
		s.watcher.Start(ctx)
	}
	s.logger.Info("mailmend started", slog.String("version", Version))
}

// Shutdown stops the background loops and waits for them.
func (s *Service) Shutdown() {
	if s.watcher != nil {
		s.watcher.Shutdown()
	}
	s.orchestrator.Shutdown()
}
