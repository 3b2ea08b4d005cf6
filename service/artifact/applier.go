package artifact

import (
	"context"
	"fmt"

	"github.com/mailmend/mailmend/model/correction"
	"github.com/mailmend/mailmend/tracing"
)

// StaleEditError reports that the target cell no longer holds the value the
// edit was proposed against. The artifact has not been modified.
type StaleEditError struct {
	Resource string
	Cell     string
	Want     string
	Got      string
}

func (e *StaleEditError) Error() string {
	return fmt.Sprintf("stale edit: %s cell %s changed from %q to %q since detection", e.Resource, e.Cell, e.Want, e.Got)
}

// Applier applies approved correction proposals. It never mutates an artifact
// in place; a successful apply yields a new revision.
type Applier struct {
	artifacts *Store
}

// NewApplier creates an applier over the given artifact store.
func NewApplier(artifacts *Store) *Applier {
	return &Applier{artifacts: artifacts}
}

// Apply validates and applies all edit operations of an APPROVED proposal as
// a single unit. Every edit's Old value is checked against the current
// revision first; any mismatch aborts with *StaleEditError before any write
// happens.
func (a *Applier) Apply(ctx context.Context, p *correction.Proposal) (version *Version, err error) {
	ctx, span := tracing.StartSpan(ctx, "artifact.apply", "INTERNAL")
	span.WithAttributes(map[string]string{"proposal.id": p.ID, "artifact.resource": p.TargetResource})
	defer func() { tracing.EndSpan(span, err) }()

	if p.Status != correction.StatusApproved {
		return nil, fmt.Errorf("proposal %s is not approved (status %s)", p.ID, p.Status)
	}
	if len(p.Edits) == 0 {
		return nil, fmt.Errorf("proposal %s has no edit operations", p.ID)
	}

	data, _, err := a.artifacts.Read(ctx, p.TargetResource)
	if err != nil {
		return nil, err
	}
	table, err := Decode(p.TargetResource, data)
	if err != nil {
		return nil, err
	}

	// Validate the whole set before the first mutation.
	for _, edit := range p.Edits {
		current, err := table.Value(edit.Locator)
		if err != nil {
			return nil, err
		}
		if current != edit.Old {
			return nil, &StaleEditError{
				Resource: p.TargetResource,
				Cell:     edit.Locator.String(),
				Want:     edit.Old,
				Got:      current,
			}
		}
	}

	for _, edit := range p.Edits {
		if err := table.Set(edit.Locator, edit.New); err != nil {
			return nil, err
		}
	}

	encoded, err := table.Encode()
	if err != nil {
		return nil, err
	}
	return a.artifacts.WriteNext(ctx, p.TargetResource, encoded)
}
