package correction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a correction proposal.
type Status string

// Proposal lifecycle states. Transitions only ever move forward, see
// CanTransition.
const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
	StatusApplied  Status = "APPLIED"
	StatusFailed   Status = "FAILED"
)

// Terminal reports whether no further transition is allowed from s. Terminal
// records are retained for audit and never mutated again.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusExpired, StatusApplied, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows moving from -> to:
// PENDING -> {APPROVED, REJECTED, EXPIRED} and APPROVED -> {APPLIED, FAILED}.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected || to == StatusExpired
	case StatusApproved:
		return to == StatusApplied || to == StatusFailed
	}
	return false
}

// Decision is a human verdict on a pending proposal.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision converts wire text into a Decision.
func ParseDecision(text string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(text))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	}
	return "", fmt.Errorf("unknown decision %q", text)
}

// Locator addresses a single cell within an optional sheet using A1-style
// references.
type Locator struct {
	Sheet string `json:"sheet,omitempty" yaml:"sheet,omitempty"`
	Cell  string `json:"cell" yaml:"cell"`
}

func (l Locator) String() string {
	if l.Sheet == "" {
		return l.Cell
	}
	return l.Sheet + "!" + l.Cell
}

// Issue describes one detected anomaly within a target resource.
type Issue struct {
	Summary string  `json:"summary" yaml:"summary"`
	Locator Locator `json:"locator" yaml:"locator"`
}

// Fingerprint derives the duplicate-suppression key for an issue detected on
// the given resource. Two detections of the same anomaly on the same resource
// share a fingerprint, so at most one of them can be pending at a time.
func (i Issue) Fingerprint(resource string) string {
	h := sha256.New()
	h.Write([]byte(resource))
	h.Write([]byte{0})
	h.Write([]byte(i.Locator.String()))
	h.Write([]byte{0})
	h.Write([]byte(i.Summary))
	return hex.EncodeToString(h.Sum(nil)[:12])
}

// EditOperation is one concrete cell mutation. Old holds the value observed
// at detection time; application re-validates it before writing New.
type EditOperation struct {
	Locator Locator `json:"locator" yaml:"locator"`
	Old     string  `json:"old" yaml:"old"`
	New     string  `json:"new" yaml:"new"`
}

// Proposal tracks a single proposed correction awaiting a human decision.
// ID and Edits are immutable once assigned; a re-analysis creates a new
// proposal rather than amending an existing one.
type Proposal struct {
	ID               string          `json:"id"`
	TargetResource   string          `json:"targetResource"`
	Issue            Issue           `json:"issue"`
	Edits            []EditOperation `json:"edits"`
	Status           Status          `json:"status"`
	CorrelationToken string          `json:"correlationToken"`
	CreatedAt        time.Time       `json:"createdAt"`
	ResolvedAt       *time.Time      `json:"resolvedAt,omitempty"`

	// RevisionID identifies the artifact version produced by a successful
	// apply, e.g. "report.xlsx@v2".
	RevisionID string `json:"revisionId,omitempty"`

	// FailureReason carries the human-readable cause when Status is FAILED.
	FailureReason string `json:"failureReason,omitempty"`
}

// Fingerprint returns the duplicate-suppression key of the proposal.
func (p *Proposal) Fingerprint() string {
	return p.Issue.Fingerprint(p.TargetResource)
}

// Clone returns a deep copy so that stored state cannot be mutated through a
// returned snapshot.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	ret := *p
	ret.Edits = append([]EditOperation(nil), p.Edits...)
	if p.ResolvedAt != nil {
		resolved := *p.ResolvedAt
		ret.ResolvedAt = &resolved
	}
	return &ret
}
