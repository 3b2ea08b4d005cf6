package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mailmend/mailmend/model/correction"
	"github.com/mailmend/mailmend/service/proposal"
)

func newProposal(id, token string) *correction.Proposal {
	return &correction.Proposal{
		ID:               id,
		TargetResource:   "report.xlsx",
		Issue:            correction.Issue{Summary: "value out of range", Locator: correction.Locator{Cell: "B4"}},
		Edits:            []correction.EditOperation{{Locator: correction.Locator{Cell: "B4"}, Old: "100", New: "150"}},
		Status:           correction.StatusPending,
		CorrelationToken: token,
		CreatedAt:        time.Now(),
	}
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := New()

	p := newProposal("p1", "tok1")
	assert.NoError(t, store.Insert(ctx, p))

	loaded, err := store.Get(ctx, "p1")
	assert.NoError(t, err)
	assert.Equal(t, p, loaded)

	byToken, err := store.FindByToken(ctx, "tok1")
	assert.NoError(t, err)
	assert.Equal(t, "p1", byToken.ID)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, proposal.ErrNotFound)

	_, err = store.FindByToken(ctx, "missing")
	assert.ErrorIs(t, err, proposal.ErrNotFound)
}

func TestDuplicatePending(t *testing.T) {
	ctx := context.Background()
	store := New()

	assert.NoError(t, store.Insert(ctx, newProposal("p1", "tok1")))

	// Same resource and issue while the first is still pending.
	err := store.Insert(ctx, newProposal("p2", "tok2"))
	assert.ErrorIs(t, err, proposal.ErrDuplicatePending)

	// A different issue on the same resource is fine.
	other := newProposal("p3", "tok3")
	other.Issue.Locator.Cell = "C9"
	assert.NoError(t, store.Insert(ctx, other))
}

func TestDuplicateAllowedAfterResolution(t *testing.T) {
	ctx := context.Background()
	store := New()

	assert.NoError(t, store.Insert(ctx, newProposal("p1", "tok1")))
	_, err := store.Transition(ctx, "p1", correction.StatusPending, correction.StatusRejected, nil)
	assert.NoError(t, err)

	// Once the first proposal reached a terminal state the same detection may
	// be tracked again.
	assert.NoError(t, store.Insert(ctx, newProposal("p2", "tok2")))
}

func TestTransition(t *testing.T) {
	ctx := context.Background()
	store := New()
	assert.NoError(t, store.Insert(ctx, newProposal("p1", "tok1")))

	resolved := time.Now()
	updated, err := store.Transition(ctx, "p1", correction.StatusPending, correction.StatusApproved, nil)
	assert.NoError(t, err)
	assert.Equal(t, correction.StatusApproved, updated.Status)

	updated, err = store.Transition(ctx, "p1", correction.StatusApproved, correction.StatusApplied, func(p *correction.Proposal) {
		p.ResolvedAt = &resolved
		p.RevisionID = "report.xlsx@v2"
	})
	assert.NoError(t, err)
	assert.Equal(t, correction.StatusApplied, updated.Status)
	assert.Equal(t, "report.xlsx@v2", updated.RevisionID)

	// Terminal state, any further transition loses the CAS.
	_, err = store.Transition(ctx, "p1", correction.StatusPending, correction.StatusRejected, nil)
	assert.ErrorIs(t, err, proposal.ErrConflict)

	_, err = store.Transition(ctx, "missing", correction.StatusPending, correction.StatusRejected, nil)
	assert.ErrorIs(t, err, proposal.ErrNotFound)
}

func TestIllegalTransition(t *testing.T) {
	ctx := context.Background()
	store := New()
	assert.NoError(t, store.Insert(ctx, newProposal("p1", "tok1")))

	_, err := store.Transition(ctx, "p1", correction.StatusPending, correction.StatusApplied, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, proposal.ErrConflict)
}

// TestConcurrentResolution verifies that exactly one of two racing transitions
// out of PENDING succeeds and the other observes ErrConflict.
func TestConcurrentResolution(t *testing.T) {
	ctx := context.Background()
	store := New()
	assert.NoError(t, store.Insert(ctx, newProposal("p1", "tok1")))

	targets := []correction.Status{correction.StatusApproved, correction.StatusRejected}
	errs := make([]error, len(targets))

	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to correction.Status) {
			defer wg.Done()
			_, errs[i] = store.Transition(ctx, "p1", correction.StatusPending, to, nil)
		}(i, to)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, proposal.ErrConflict):
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
}

func TestListPending(t *testing.T) {
	ctx := context.Background()
	store := New()

	old := newProposal("p1", "tok1")
	old.CreatedAt = time.Now().Add(-time.Hour)
	assert.NoError(t, store.Insert(ctx, old))

	fresh := newProposal("p2", "tok2")
	fresh.Issue.Locator.Cell = "D2"
	assert.NoError(t, store.Insert(ctx, fresh))

	pending, err := store.ListPending(ctx, time.Now().Add(-time.Minute))
	assert.NoError(t, err)
	if assert.Len(t, pending, 1) {
		assert.Equal(t, "p1", pending[0].ID)
	}

	all, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 2)
}
