package runnode

import (
	"context"
	"fmt"

	contractx "github.com/warrantix/warrantix/agent/contract"
)

// Aggregate turns the collected analyzer results into the user-facing
// response text. A reporter error is fatal for the run.
func Aggregate(ctx context.Context, in *GraphState, reporter contractx.Reporter) (*GraphState, error) {
	if in == nil || in.Run == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}
	if reporter == nil {
		return nil, fmt.Errorf("%w: reporter is not configured", contractx.ErrValidation)
	}

	run := in.Run
	text, err := reporter.Aggregate(ctx, run.Request, run.Classification(), run.Results())
	if err != nil {
		return nil, fmt.Errorf("aggregate results: %w", err)
	}

	in.Response = text
	run.MarkStep(contractx.StepAggregator)
	return in, nil
}
