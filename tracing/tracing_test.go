package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartAndEndSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "orchestrator.submit", "INTERNAL")
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)

	span.WithAttributes(map[string]string{"proposal.id": "p1"})
	EndSpan(span, nil)

	// Spans with error status must not panic either.
	_, failing := StartSpan(context.Background(), "artifact.apply", "CLIENT")
	EndSpan(failing, errors.New("stale edit"))
}
