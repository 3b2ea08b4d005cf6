// Package watcher runs the agent loop: poll the mailbox, analyze spreadsheet
// attachments, report summaries and submit correction proposals.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mailmend/mailmend/internal/clock"
	"github.com/mailmend/mailmend/model/correction"
	"github.com/mailmend/mailmend/service/analysis"
	"github.com/mailmend/mailmend/service/dao/store"
	"github.com/mailmend/mailmend/service/mailbox"
	"github.com/mailmend/mailmend/service/proposal"
)

// Submitter registers correction proposals; implemented by the orchestrator.
type Submitter interface {
	Submit(ctx context.Context, resource string, issue correction.Issue, edits []correction.EditOperation) (*correction.Proposal, error)
}

// Notifier delivers plain notifications; implemented by the gateway.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Uploader stores an inbound attachment as the first revision of an
// artifact, when it is not versioned yet.
type Uploader interface {
	Ensure(ctx context.Context, name string, data []byte) error
}

// Config controls the poll loop.
type Config struct {
	// PollInterval is the mailbox poll cadence.
	PollInterval time.Duration `yaml:"pollInterval"`
}

// DefaultConfig returns the default poll cadence.
func DefaultConfig() Config {
	return Config{PollInterval: time.Minute}
}

type seenMessage struct {
	ID     string
	SeenAt time.Time
}

// Service is the mailbox watcher.
type Service struct {
	config    Config
	mailbox   mailbox.Client
	analyzer  analysis.Analyzer
	submitter Submitter
	notifier  Notifier
	uploader  Uploader
	seen      *store.MemoryStore[string, seenMessage]
	logger    *slog.Logger

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	done         sync.WaitGroup
}

// Option customises the watcher.
type Option func(*Service)

// WithConfig overrides the poll cadence.
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

// WithUploader stores inbound attachments as artifacts before analysis.
func WithUploader(uploader Uploader) Option {
	return func(s *Service) { s.uploader = uploader }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a watcher over the given mailbox, analyzer and collaborators.
func New(client mailbox.Client, analyzer analysis.Analyzer, submitter Submitter, notifier Notifier, options ...Option) *Service {
	s := &Service{
		config:     DefaultConfig(),
		mailbox:    client,
		analyzer:   analyzer,
		submitter:  submitter,
		notifier:   notifier,
		seen:       store.NewMemoryStore[string, seenMessage](func(m *seenMessage) string { return m.ID }),
		logger:     slog.Default(),
		shutdownCh: make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Poll processes the unread messages currently in the mailbox. One failing
// message never stops the others; the first error is returned after the
// batch completes.
func (s *Service) Poll(ctx context.Context) error {
	messages, err := s.mailbox.ListUnread(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unread messages: %w", err)
	}
	var firstErr error
	for _, message := range messages {
		if err := s.processMessage(ctx, message); err != nil {
			s.logger.Error("failed to process message",
				slog.String("message", message.ID),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Service) processMessage(ctx context.Context, message mailbox.Message) error {
	if _, err := s.seen.Load(ctx, message.ID); err == nil {
		return nil
	}
	attachments, err := s.mailbox.DownloadAttachments(ctx, message.ID)
	if err != nil {
		return fmt.Errorf("failed to download attachments of %s: %w", message.ID, err)
	}
	for _, attachment := range attachments {
		if err := s.processAttachment(ctx, message, attachment); err != nil {
			return err
		}
	}
	if err := s.mailbox.MarkRead(ctx, message.ID); err != nil {
		return fmt.Errorf("failed to mark %s read: %w", message.ID, err)
	}
	return s.seen.Save(ctx, &seenMessage{ID: message.ID, SeenAt: clock.Now()})
}

func (s *Service) processAttachment(ctx context.Context, message mailbox.Message, attachment analysis.Attachment) error {
	if s.uploader != nil {
		if err := s.uploader.Ensure(ctx, attachment.Name, attachment.Data); err != nil {
			return fmt.Errorf("failed to store attachment %s: %w", attachment.Name, err)
		}
	}
	report, err := s.analyzer.Analyze(ctx, attachment)
	if err != nil {
		return fmt.Errorf("failed to analyze %s: %w", attachment.Name, err)
	}
	if report.Summary != "" {
		text := fmt.Sprintf("New attachment %s from %s\n%s", attachment.Name, message.From, report.Summary)
		if err := s.notifier.Notify(ctx, text); err != nil {
			s.logger.Warn("failed to send summary",
				slog.String("attachment", attachment.Name),
				slog.String("error", err.Error()))
		}
	}
	for _, detection := range report.Detections {
		_, err := s.submitter.Submit(ctx, attachment.Name, detection.Issue, detection.Edits)
		if errors.Is(err, proposal.ErrDuplicatePending) {
			s.logger.Debug("detection already awaiting approval",
				slog.String("resource", attachment.Name),
				slog.String("issue", detection.Issue.Summary))
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to submit proposal for %s: %w", attachment.Name, err)
		}
	}
	return nil
}

// Start launches the poll loop. The first poll runs immediately.
func (s *Service) Start(ctx context.Context) {
	s.done.Add(1)
	go func() {
		defer s.done.Done()
		if err := s.Poll(ctx); err != nil {
			s.logger.Error("poll failed", slog.String("error", err.Error()))
		}
		ticker := time.NewTicker(s.config.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.shutdownCh:
				return
			case <-ticker.C:
				if err := s.Poll(ctx); err != nil {
					s.logger.Error("poll failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// Shutdown stops the poll loop and waits for it to finish. Safe to call more
// than once.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	s.done.Wait()
}
