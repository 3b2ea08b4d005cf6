// Package fs implements a durable messaging queue on top of viant/afs. Each
// message is a JSON file that moves between state directories (pending,
// processing, failed, dlq), so undelivered outcomes survive a restart.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"

	"github.com/mailmend/mailmend/internal/idgen"
	"github.com/mailmend/mailmend/service/messaging"
)

// Config holds filesystem queue settings.
type Config struct {
	BasePath   string
	MaxRetries int
}

// DefaultConfig returns the standard filesystem queue configuration.
func DefaultConfig() Config {
	return Config{MaxRetries: 3}
}

// Message is the persisted envelope around a payload.
type Message[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	Error     string    `json:"error,omitempty"`
	Retries   int       `json:"retries"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	queue     *Queue[T]
	mu        sync.Mutex
	processed bool
}

// T returns the message payload.
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack removes the message from the processing directory.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	return m.queue.remove(context.Background(), m.queue.processingDir, m)
}

// Nack records the failure and either requeues the message for retry or moves
// it to the dead-letter directory once the retry budget is spent.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = time.Now()

	dest := m.queue.failedDir
	if m.Retries > m.queue.config.MaxRetries {
		dest = m.queue.dlqDir
	}
	ctx := context.Background()
	if writeErr := m.queue.write(ctx, dest, m); writeErr != nil {
		return writeErr
	}
	return m.queue.remove(ctx, m.queue.processingDir, m)
}

// Queue implements messaging.Queue persisted under a base path.
type Queue[T any] struct {
	fs     afs.Service
	config Config

	pendingDir    string
	processingDir string
	failedDir     string
	dlqDir        string

	mu sync.Mutex
}

// NewQueue creates a filesystem-backed queue and ensures its directory
// structure exists.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    url.Join(config.BasePath, "pending"),
		processingDir: url.Join(config.BasePath, "processing"),
		failedDir:     url.Join(config.BasePath, "failed"),
		dlqDir:        url.Join(config.BasePath, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.failedDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create queue directory %s: %w", dir, err)
			}
		}
	}
	return q, nil
}

// Publish persists a new message in the pending directory.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	message := &Message[T]{
		ID:        idgen.New(),
		Data:      *t,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return q.write(ctx, q.pendingDir, message)
}

// Consume picks up the oldest retriable or pending message, moving it to the
// processing directory. It returns (nil, nil) when the queue is empty.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, dir := range []string{q.failedDir, q.pendingDir} {
		message, err := q.take(ctx, dir)
		if err != nil {
			return nil, err
		}
		if message != nil {
			return message, nil
		}
	}
	return nil, nil
}

// take claims the oldest message file from dir, if any.
func (q *Queue[T]) take(ctx context.Context, dir string) (*Message[T], error) {
	objects, err := q.fs.List(ctx, dir, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var candidate storage.Object
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		if candidate == nil || object.Name() < candidate.Name() {
			candidate = object
		}
	}
	if candidate == nil {
		return nil, nil
	}

	data, err := q.fs.DownloadWithURL(ctx, candidate.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", candidate.URL(), err)
	}
	var message Message[T]
	if err := json.Unmarshal(data, &message); err != nil {
		// Quarantine unreadable messages so they do not block the queue.
		_ = q.fs.Move(ctx, candidate.URL(), url.Join(q.dlqDir, "invalid-"+candidate.Name()))
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", candidate.URL(), err)
	}
	message.queue = q
	message.UpdatedAt = time.Now()

	if err := q.write(ctx, q.processingDir, &message); err != nil {
		return nil, err
	}
	if err := q.fs.Delete(ctx, candidate.URL()); err != nil {
		return nil, fmt.Errorf("failed to claim message %s: %w", candidate.URL(), err)
	}
	return &message, nil
}

func (q *Queue[T]) write(ctx context.Context, dir string, m *Message[T]) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message %s: %w", m.ID, err)
	}
	location := url.Join(dir, fileName(m))
	if err := q.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write message %s: %w", location, err)
	}
	return nil
}

func (q *Queue[T]) remove(ctx context.Context, dir string, m *Message[T]) error {
	location := url.Join(dir, fileName(m))
	if exists, _ := q.fs.Exists(ctx, location); exists {
		return q.fs.Delete(ctx, location)
	}
	return nil
}

// fileName keys a message by publish time so that a lexicographic scan of a
// state directory visits messages oldest first. The id suffix breaks ties.
func fileName[T any](m *Message[T]) string {
	return fmt.Sprintf("%020d-%s.json", m.CreatedAt.UnixNano(), m.ID)
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
