// Package fs provides a filesystem-backed proposal store. Each proposal is a
// JSON document under <basePath>/proposals, so in-flight decisions survive a
// process restart. Fingerprint and correlation-token indexes are rebuilt from
// the persisted records on startup.
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
	"github.com/viant/afs/url"

	"github.com/mailmend/mailmend/model/correction"
	"github.com/mailmend/mailmend/service/proposal"
)

// Service implements proposal.Store on top of viant/afs. A single mutex
// serialises writes, which makes Transition linearizable within the process.
type Service struct {
	fs       afs.Service
	basePath string

	mu      sync.RWMutex
	pending map[string]string // issue fingerprint -> proposal id
	tokens  map[string]string // correlation token -> proposal id
}

// New creates a store rooted at basePath and loads the indexes from any
// records already present.
func New(ctx context.Context, fs afs.Service, basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	s := &Service{
		fs:       fs,
		basePath: url.Join(basePath, "proposals"),
		pending:  make(map[string]string),
		tokens:   make(map[string]string),
	}
	if exists, _ := fs.Exists(ctx, s.basePath); !exists {
		if err := fs.Create(ctx, s.basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create proposal directory %s: %w", s.basePath, err)
		}
	}
	if err := s.reindex(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// reindex rebuilds the fingerprint and token indexes from persisted records.
func (s *Service) reindex(ctx context.Context) error {
	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range records {
		s.tokens[p.CorrelationToken] = p.ID
		if !p.Status.Terminal() {
			s.pending[p.Fingerprint()] = p.ID
		}
	}
	return nil
}

func (s *Service) Insert(ctx context.Context, p *correction.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fingerprint := p.Fingerprint()
	if _, ok := s.pending[fingerprint]; ok {
		return proposal.ErrDuplicatePending
	}
	if err := s.write(ctx, p); err != nil {
		return err
	}
	s.tokens[p.CorrelationToken] = p.ID
	if !p.Status.Terminal() {
		s.pending[fingerprint] = p.ID
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*correction.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(ctx, id)
}

func (s *Service) FindByToken(ctx context.Context, token string) (*correction.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, proposal.ErrNotFound
	}
	return s.read(ctx, id)
}

func (s *Service) Transition(ctx context.Context, id string, from, to correction.Status, mutate proposal.Mutate) (*correction.Proposal, error) {
	if !correction.CanTransition(from, to) {
		return nil, fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != from {
		return nil, proposal.ErrConflict
	}
	p.Status = to
	if mutate != nil {
		mutate(p)
	}
	if err := s.write(ctx, p); err != nil {
		return nil, err
	}
	if to.Terminal() {
		delete(s.pending, p.Fingerprint())
	}
	return p, nil
}

func (s *Service) ListPending(ctx context.Context, olderThan time.Time) ([]*correction.Proposal, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*correction.Proposal
	for _, p := range all {
		if p.Status == correction.StatusPending && p.CreatedAt.Before(olderThan) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) List(ctx context.Context) ([]*correction.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ctx)
}

func (s *Service) load(ctx context.Context) ([]*correction.Proposal, error) {
	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	var out []*correction.Proposal
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.DownloadWithURL(ctx, object.URL())
		if err != nil {
			return nil, fmt.Errorf("failed to read proposal %s: %w", object.URL(), err)
		}
		var p correction.Proposal
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proposal %s: %w", object.URL(), err)
		}
		out = append(out, &p)
	}
	return out, nil
}

func (s *Service) read(ctx context.Context, id string) (*correction.Proposal, error) {
	location := s.recordPath(id)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check proposal %s: %w", id, err)
	}
	if !exists {
		return nil, proposal.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read proposal %s: %w", id, err)
	}
	var p correction.Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proposal %s: %w", id, err)
	}
	return &p, nil
}

func (s *Service) write(ctx context.Context, p *correction.Proposal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal proposal %s: %w", p.ID, err)
	}
	location := s.recordPath(p.ID)
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save proposal to %s: %w", location, err)
	}
	return nil
}

func (s *Service) recordPath(id string) string {
	return url.Join(s.basePath, id+".json")
}

var _ proposal.Store = (*Service)(nil)
