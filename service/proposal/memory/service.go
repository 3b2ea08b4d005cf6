// Package memory provides an in-memory proposal store, useful for unit tests
// and single-run invocations that do not need to survive a restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mailmend/mailmend/model/correction"
	"github.com/mailmend/mailmend/service/proposal"
)

type service struct {
	mu      sync.RWMutex
	records map[string]*correction.Proposal

	// pending maps issue fingerprints of unresolved proposals to their id,
	// enforcing the one-pending-per-issue invariant.
	pending map[string]string

	// tokens maps correlation tokens to proposal ids.
	tokens map[string]string
}

// New creates an empty in-memory proposal store.
func New() proposal.Store {
	return &service{
		records: make(map[string]*correction.Proposal),
		pending: make(map[string]string),
		tokens:  make(map[string]string),
	}
}

func (s *service) Insert(_ context.Context, p *correction.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fingerprint := p.Fingerprint()
	if _, ok := s.pending[fingerprint]; ok {
		return proposal.ErrDuplicatePending
	}
	s.records[p.ID] = p.Clone()
	s.tokens[p.CorrelationToken] = p.ID
	if !p.Status.Terminal() {
		s.pending[fingerprint] = p.ID
	}
	return nil
}

func (s *service) Get(_ context.Context, id string) (*correction.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.records[id]
	if !ok {
		return nil, proposal.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *service) FindByToken(_ context.Context, token string) (*correction.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, proposal.ErrNotFound
	}
	p, ok := s.records[id]
	if !ok {
		return nil, proposal.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *service) Transition(_ context.Context, id string, from, to correction.Status, mutate proposal.Mutate) (*correction.Proposal, error) {
	if !correction.CanTransition(from, to) {
		return nil, fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.records[id]
	if !ok {
		return nil, proposal.ErrNotFound
	}
	if p.Status != from {
		return nil, proposal.ErrConflict
	}
	p.Status = to
	if mutate != nil {
		mutate(p)
	}
	if to.Terminal() {
		delete(s.pending, p.Fingerprint())
	}
	return p.Clone(), nil
}

func (s *service) ListPending(_ context.Context, olderThan time.Time) ([]*correction.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*correction.Proposal
	for _, p := range s.records {
		if p.Status == correction.StatusPending && p.CreatedAt.Before(olderThan) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (s *service) List(_ context.Context) ([]*correction.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*correction.Proposal, 0, len(s.records))
	for _, p := range s.records {
		out = append(out, p.Clone())
	}
	return out, nil
}

var _ proposal.Store = (*service)(nil)
