package gateway

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/mailmend/mailmend/model/correction"
)

// renderApprovalRequest builds the human-readable text of an approval
// request: the detected issue, the proposed edits and a unified diff of the
// affected cells.
func renderApprovalRequest(p *correction.Proposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Correction proposed for %s\n", p.TargetResource)
	fmt.Fprintf(&b, "Issue: %s (%s)\n\n", p.Issue.Summary, p.Issue.Locator)

	before := make([]string, 0, len(p.Edits))
	after := make([]string, 0, len(p.Edits))
	for _, edit := range p.Edits {
		before = append(before, fmt.Sprintf("%s: %s", edit.Locator, edit.Old))
		after = append(after, fmt.Sprintf("%s: %s", edit.Locator, edit.New))
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.Join(before, "\n") + "\n"),
		B:        difflib.SplitLines(strings.Join(after, "\n") + "\n"),
		FromFile: p.TargetResource,
		ToFile:   p.TargetResource + " (proposed)",
		Context:  1,
	})
	if err == nil && diff != "" {
		b.WriteString(diff)
	}
	b.WriteString("\nApprove to apply the edit, reject to leave the file as is.")
	return b.String()
}

// renderOutcome builds the notification sent once a proposal reached a
// terminal state, so the requester never sees a silent failure.
func renderOutcome(p *correction.Proposal) string {
	switch p.Status {
	case correction.StatusApplied:
		return fmt.Sprintf("Correction applied to %s, new version %s", p.TargetResource, p.RevisionID)
	case correction.StatusRejected:
		return fmt.Sprintf("Correction for %s was declined; the file is unchanged", p.TargetResource)
	case correction.StatusExpired:
		return fmt.Sprintf("Correction for %s expired without a decision; the file is unchanged", p.TargetResource)
	case correction.StatusFailed:
		return fmt.Sprintf("Correction for %s failed: %s", p.TargetResource, p.FailureReason)
	}
	return fmt.Sprintf("Correction for %s is %s", p.TargetResource, strings.ToLower(string(p.Status)))
}
