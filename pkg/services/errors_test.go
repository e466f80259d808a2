package services_test

import (
	"fmt"
	"testing"

	"github.com/dukex/lexflow/pkg/appstate"
	"github.com/dukex/lexflow/pkg/backend"
	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/persistence"
	"github.com/dukex/lexflow/pkg/sequencer"
	"github.com/dukex/lexflow/pkg/services"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		validation bool
		conflict   bool
		notFound   bool
		upstream   bool
	}{
		{name: "unknown field", err: fmt.Errorf("wrap: %w", models.ErrUnknownField), validation: true},
		{name: "invalid modal", err: appstate.ErrInvalidModal, validation: true},
		{name: "step not visited", err: &sequencer.FlowError{Op: "JumpTo", Err: sequencer.ErrStepNotVisited}, validation: true},
		{name: "pending", err: &sequencer.FlowError{Op: "GoBack", Err: sequencer.ErrSubmissionPending}, conflict: true},
		{name: "finished", err: sequencer.ErrFlowFinished, conflict: true},
		{name: "flow not found", err: persistence.NewFlowError("ByID", "f", persistence.ErrFlowNotFound), notFound: true},
		{name: "walkthrough not found", err: services.ErrWalkthroughNotFound, notFound: true},
		{name: "backend", err: &backend.HTTPError{StatusCode: 500}, upstream: true},
		{name: "internal", err: fmt.Errorf("disk full")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := &services.ServiceError{Op: "Test", ID: "x", Err: tc.err}

			assert.Equal(t, tc.validation, services.IsValidationError(err))
			assert.Equal(t, tc.conflict, services.IsConflictError(err))
			assert.Equal(t, tc.notFound, services.IsNotFound(err))
			assert.Equal(t, tc.upstream, services.IsUpstreamError(err))
		})
	}
}
