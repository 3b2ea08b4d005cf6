package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/mailmend/mailmend/internal/clock"
	"github.com/mailmend/mailmend/model/correction"
	"github.com/mailmend/mailmend/service/artifact"
	"github.com/mailmend/mailmend/service/gateway"
	gwmemory "github.com/mailmend/mailmend/service/gateway/memory"
	qmemory "github.com/mailmend/mailmend/service/messaging/memory"
	"github.com/mailmend/mailmend/service/proposal"
	propfs "github.com/mailmend/mailmend/service/proposal/fs"
	propmemory "github.com/mailmend/mailmend/service/proposal/memory"
)

const reportCSV = "item,amount\nwidgets,40\nbolts,70\ntotal,100\n"

type fixture struct {
	service   *Service
	store     proposal.Store
	artifacts *artifact.Store
	messenger *gwmemory.Messenger
	outcomes  chan Outcome
}

func newFixture(t *testing.T, options ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	artifacts := artifact.NewStore(afs.New(), t.TempDir())
	require.NoError(t, artifacts.Put(ctx, "report.csv", strings.NewReader(reportCSV)))

	messenger := gwmemory.New()
	store := propmemory.New()
	approvals := gateway.New(messenger, store)
	queue := qmemory.NewQueue[Outcome](qmemory.DefaultConfig())

	service := New(store, approvals, artifact.NewApplier(artifacts),
		append([]Option{WithOutcomeQueue(queue)}, options...)...)
	approvals.AttachResolver(service)

	consumeCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	outcomes := make(chan Outcome, 8)
	go func() {
		for {
			message, err := queue.Consume(consumeCtx)
			if err != nil {
				return
			}
			outcomes <- *message.T()
			_ = message.Ack()
		}
	}()

	return &fixture{
		service:   service,
		store:     store,
		artifacts: artifacts,
		messenger: messenger,
		outcomes:  outcomes,
	}
}

func submitReportFix(t *testing.T, f *fixture) *correction.Proposal {
	t.Helper()
	p, err := f.service.Submit(context.Background(), "report.csv",
		correction.Issue{Summary: "total does not match the column", Locator: correction.Locator{Cell: "B4"}},
		[]correction.EditOperation{{Locator: correction.Locator{Cell: "B4"}, Old: "100", New: "110"}})
	require.NoError(t, err)
	return p
}

func waitOutcome(t *testing.T, f *fixture) Outcome {
	t.Helper()
	select {
	case outcome := <-f.outcomes:
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an outcome")
		return Outcome{}
	}
}

func TestApprovedProposalIsApplied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := submitReportFix(t, f)

	requests := f.messenger.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, p.CorrelationToken, requests[0].Token)

	require.NoError(t, f.service.Resolve(ctx, p.ID, correction.DecisionApprove))

	stored, err := f.store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, correction.StatusApplied, stored.Status)
	assert.Equal(t, "report.csv@v2", stored.RevisionID)
	require.NotNil(t, stored.ResolvedAt)

	data, latest, err := f.artifacts.Read(ctx, "report.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Revision)
	table, err := artifact.Decode("report.csv", data)
	require.NoError(t, err)
	value, err := table.Value(correction.Locator{Cell: "B4"})
	require.NoError(t, err)
	assert.Equal(t, "110", value)

	outcome := waitOutcome(t, f)
	assert.Equal(t, correction.StatusApplied, outcome.Status)
	assert.Equal(t, "report.csv@v2", outcome.Revision)

	messages := f.messenger.Messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "report.csv@v2")
}

func TestRejectedProposalLeavesArtifactUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := submitReportFix(t, f)

	require.NoError(t, f.service.Resolve(ctx, p.ID, correction.DecisionReject))

	stored, err := f.store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, correction.StatusRejected, stored.Status)

	latest, err := f.artifacts.Latest(ctx, "report.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Revision)

	outcome := waitOutcome(t, f)
	assert.Equal(t, correction.StatusRejected, outcome.Status)
}

func TestStaleProposalFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := submitReportFix(t, f)

	// The artifact changes underneath the pending proposal.
	edited := strings.Replace(reportCSV, "total,100", "total,999", 1)
	_, err := f.artifacts.WriteNext(ctx, "report.csv", []byte(edited))
	require.NoError(t, err)

	require.NoError(t, f.service.Resolve(ctx, p.ID, correction.DecisionApprove))

	stored, err := f.store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, correction.StatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "B4")

	latest, err := f.artifacts.Latest(ctx, "report.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Revision)

	outcome := waitOutcome(t, f)
	assert.Equal(t, correction.StatusFailed, outcome.Status)
}

func TestDuplicateSubmitRejected(t *testing.T) {
	f := newFixture(t)
	submitReportFix(t, f)

	_, err := f.service.Submit(context.Background(), "report.csv",
		correction.Issue{Summary: "total does not match the column", Locator: correction.Locator{Cell: "B4"}},
		[]correction.EditOperation{{Locator: correction.Locator{Cell: "B4"}, Old: "100", New: "120"}})
	assert.ErrorIs(t, err, proposal.ErrDuplicatePending)
	assert.Len(t, f.messenger.Requests(), 1)
}

func TestSweepExpiresOldProposals(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock.NowFunc = func() time.Time { return base }
	defer func() { clock.NowFunc = time.Now }()

	f := newFixture(t)
	p := submitReportFix(t, f)

	expired, err := f.service.SweepExpired(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	expired, err = f.service.SweepExpired(ctx, base.Add(6*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	stored, err := f.store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, correction.StatusExpired, stored.Status)

	outcome := waitOutcome(t, f)
	assert.Equal(t, correction.StatusExpired, outcome.Status)
}

func TestLateDecisionAfterExpiryIgnored(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock.NowFunc = func() time.Time { return base }
	defer func() { clock.NowFunc = time.Now }()

	f := newFixture(t)
	p := submitReportFix(t, f)

	_, err := f.service.SweepExpired(ctx, base.Add(6*time.Minute))
	require.NoError(t, err)

	err = f.service.Resolve(ctx, p.ID, correction.DecisionApprove)
	assert.ErrorIs(t, err, proposal.ErrConflict)

	latest, err := f.artifacts.Latest(ctx, "report.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Revision)
}

func approvedOnDisk(t *testing.T, baseDir string) *correction.Proposal {
	t.Helper()
	ctx := context.Background()
	store, err := propfs.New(ctx, afs.New(), baseDir)
	require.NoError(t, err)

	p := &correction.Proposal{
		ID:             "p-crash",
		TargetResource: "report.csv",
		Issue: correction.Issue{
			Summary: "total does not match the column",
			Locator: correction.Locator{Cell: "B4"},
		},
		Edits:            []correction.EditOperation{{Locator: correction.Locator{Cell: "B4"}, Old: "100", New: "110"}},
		Status:           correction.StatusPending,
		CorrelationToken: "tok-crash",
		CreatedAt:        clock.Now(),
	}
	require.NoError(t, store.Insert(ctx, p))
	_, err = store.Transition(ctx, p.ID, correction.StatusPending, correction.StatusApproved, nil)
	require.NoError(t, err)
	return p
}

// A decision can be persisted as APPROVED and the process die before the
// apply completes; a restarted service must finish the job.
func TestRecoverResumesApprovedAfterRestart(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()
	p := approvedOnDisk(t, baseDir)

	artifacts := artifact.NewStore(afs.New(), t.TempDir())
	require.NoError(t, artifacts.Put(ctx, "report.csv", strings.NewReader(reportCSV)))

	reopened, err := propfs.New(ctx, afs.New(), baseDir)
	require.NoError(t, err)
	messenger := gwmemory.New()
	approvals := gateway.New(messenger, reopened)
	service := New(reopened, approvals, artifact.NewApplier(artifacts))
	approvals.AttachResolver(service)

	require.NoError(t, service.Recover(ctx))

	stored, err := reopened.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, correction.StatusApplied, stored.Status)
	assert.Equal(t, "report.csv@v2", stored.RevisionID)

	latest, err := artifacts.Latest(ctx, "report.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Revision)

	messages := messenger.Messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "report.csv@v2")

	// The issue is resolved, so the same detection may be tracked again.
	again := *p
	again.ID = "p-again"
	again.CorrelationToken = "tok-again"
	again.Status = correction.StatusPending
	assert.NoError(t, reopened.Insert(ctx, &again))
}

// A crash after the revision was written but before the APPLIED transition
// must not write the edit a second time; the staleness check turns the
// resumed apply into a FAILED terminal state instead.
func TestRecoverNeverAppliesTwice(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()
	p := approvedOnDisk(t, baseDir)

	artifacts := artifact.NewStore(afs.New(), t.TempDir())
	require.NoError(t, artifacts.Put(ctx, "report.csv", strings.NewReader(reportCSV)))
	edited := strings.Replace(reportCSV, "total,100", "total,110", 1)
	_, err := artifacts.WriteNext(ctx, "report.csv", []byte(edited))
	require.NoError(t, err)

	reopened, err := propfs.New(ctx, afs.New(), baseDir)
	require.NoError(t, err)
	messenger := gwmemory.New()
	approvals := gateway.New(messenger, reopened)
	service := New(reopened, approvals, artifact.NewApplier(artifacts))
	approvals.AttachResolver(service)

	require.NoError(t, service.Recover(ctx))

	stored, err := reopened.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, correction.StatusFailed, stored.Status)

	latest, err := artifacts.Latest(ctx, "report.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Revision)
}

func TestSubmitGeneratesDistinctTokens(t *testing.T) {
	f := newFixture(t)
	p1 := submitReportFix(t, f)

	p2, err := f.service.Submit(context.Background(), "budget.csv",
		correction.Issue{Summary: "misplaced decimal", Locator: correction.Locator{Cell: "C2"}},
		[]correction.EditOperation{{Locator: correction.Locator{Cell: "C2"}, Old: "1.5", New: "15"}})
	require.NoError(t, err)

	assert.NotEmpty(t, p1.CorrelationToken)
	assert.NotEqual(t, p1.CorrelationToken, p2.CorrelationToken)
	assert.NotEqual(t, p1.ID, p1.CorrelationToken)
}
