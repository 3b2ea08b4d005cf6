package correction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	type testCase struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}

	tests := []testCase{
		{name: "pending to approved", from: StatusPending, to: StatusApproved, allowed: true},
		{name: "pending to rejected", from: StatusPending, to: StatusRejected, allowed: true},
		{name: "pending to expired", from: StatusPending, to: StatusExpired, allowed: true},
		{name: "pending to applied skips approval", from: StatusPending, to: StatusApplied, allowed: false},
		{name: "approved to applied", from: StatusApproved, to: StatusApplied, allowed: true},
		{name: "approved to failed", from: StatusApproved, to: StatusFailed, allowed: true},
		{name: "approved back to pending", from: StatusApproved, to: StatusPending, allowed: false},
		{name: "rejected is terminal", from: StatusRejected, to: StatusApproved, allowed: false},
		{name: "expired is terminal", from: StatusExpired, to: StatusApproved, allowed: false},
		{name: "applied is terminal", from: StatusApplied, to: StatusFailed, allowed: false},
		{name: "failed is terminal", from: StatusFailed, to: StatusApplied, allowed: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusApproved.Terminal())
	for _, s := range []Status{StatusRejected, StatusExpired, StatusApplied, StatusFailed} {
		assert.True(t, s.Terminal(), string(s))
	}
}

func TestIssueFingerprint(t *testing.T) {
	issue := Issue{Summary: "value out of range", Locator: Locator{Cell: "B4"}}

	assert.Equal(t, issue.Fingerprint("report.xlsx"), issue.Fingerprint("report.xlsx"))
	assert.NotEqual(t, issue.Fingerprint("report.xlsx"), issue.Fingerprint("other.xlsx"))

	shifted := Issue{Summary: "value out of range", Locator: Locator{Cell: "B5"}}
	assert.NotEqual(t, issue.Fingerprint("report.xlsx"), shifted.Fingerprint("report.xlsx"))
}

func TestParseDecision(t *testing.T) {
	dec, err := ParseDecision(" Approve ")
	assert.NoError(t, err)
	assert.Equal(t, DecisionApprove, dec)

	dec, err = ParseDecision("reject")
	assert.NoError(t, err)
	assert.Equal(t, DecisionReject, dec)

	_, err = ParseDecision("maybe")
	assert.Error(t, err)
}

func TestProposalClone(t *testing.T) {
	resolved := time.Now()
	p := &Proposal{
		ID:     "p1",
		Status: StatusApplied,
		Edits: []EditOperation{
			{Locator: Locator{Cell: "B4"}, Old: "100", New: "150"},
		},
		ResolvedAt: &resolved,
	}

	clone := p.Clone()
	clone.Edits[0].New = "999"
	clone.Status = StatusFailed
	*clone.ResolvedAt = resolved.Add(time.Hour)

	assert.Equal(t, "150", p.Edits[0].New)
	assert.Equal(t, StatusApplied, p.Status)
	assert.Equal(t, resolved, *p.ResolvedAt)
}
