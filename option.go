package mailmend

import (
	"log/slog"

	"github.com/viant/afs"

	"github.com/mailmend/mailmend/service/analysis"
	"github.com/mailmend/mailmend/service/artifact"
	"github.com/mailmend/mailmend/service/gateway"
	"github.com/mailmend/mailmend/service/mailbox"
	"github.com/mailmend/mailmend/service/messaging"
	"github.com/mailmend/mailmend/service/orchestrator"
	"github.com/mailmend/mailmend/service/proposal"
)

// Option configures the assembled service.
type Option func(*Service)

// WithConfig supplies the agent configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithFS overrides the afs service backing stores and queues.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithArtifactStore overrides the artifact store.
func WithArtifactStore(store *artifact.Store) Option {
	return func(s *Service) { s.artifacts = store }
}

// WithProposalStore overrides the proposal store.
func WithProposalStore(store proposal.Store) Option {
	return func(s *Service) { s.proposals = store }
}

// WithMessenger sets the messaging channel transport.
func WithMessenger(messenger gateway.Messenger) Option {
	return func(s *Service) { s.messenger = messenger }
}

// WithOutcomeQueue overrides the queue terminal outcomes are published on.
func WithOutcomeQueue(queue messaging.Queue[orchestrator.Outcome]) Option {
	return func(s *Service) { s.outcomes = queue }
}

// WithAnalyzer sets the attachment analyzer; required for the watcher.
func WithAnalyzer(analyzer analysis.Analyzer) Option {
	return func(s *Service) { s.analyzer = analyzer }
}

// WithMailbox sets the mailbox to watch; required for the watcher.
func WithMailbox(client mailbox.Client) Option {
	return func(s *Service) { s.mailbox = client }
}

// WithDecisionSource sets the transport decisions arrive on.
func WithDecisionSource(source DecisionSource) Option {
	return func(s *Service) { s.decisions = source }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}
