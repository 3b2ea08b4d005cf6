package proposal

import (
	"context"
	"time"

	"github.com/mailmend/mailmend/model/correction"
)

// Mutate adjusts a proposal's resolution fields while the store lock is held.
// It runs only after the compare-and-set succeeded; implementations must not
// touch ID, Edits or Status.
type Mutate func(p *correction.Proposal)

// Store persists correction proposals. Implementations must be safe for
// concurrent use; returned proposals are snapshots that callers may inspect
// freely without affecting stored state.
type Store interface {
	// Insert persists a new proposal. It fails with ErrDuplicatePending when
	// an unresolved proposal with the same fingerprint already exists.
	Insert(ctx context.Context, p *correction.Proposal) error

	// Get returns the proposal with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*correction.Proposal, error)

	// FindByToken returns the proposal carrying the given correlation token
	// or ErrNotFound.
	FindByToken(ctx context.Context, token string) (*correction.Proposal, error)

	// Transition atomically moves the proposal from -> to, applying mutate
	// (may be nil) under the same critical section. It fails with ErrConflict
	// when the current status differs from from, and with ErrNotFound for an
	// unknown id. The updated snapshot is returned on success.
	Transition(ctx context.Context, id string, from, to correction.Status, mutate Mutate) (*correction.Proposal, error)

	// ListPending returns all PENDING proposals created before olderThan.
	ListPending(ctx context.Context, olderThan time.Time) ([]*correction.Proposal, error)

	// List returns all proposals, regardless of status.
	List(ctx context.Context) ([]*correction.Proposal, error)
}
