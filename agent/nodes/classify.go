package runnode

import (
	"context"
	"fmt"

	contractx "github.com/warrantix/warrantix/agent/contract"
)

// Classify runs the classification stage. Unlike analyzer failures, a
// classifier error is fatal to the run.
func Classify(ctx context.Context, in *GraphState, classifier contractx.Classifier) (*GraphState, error) {
	if in == nil || in.Run == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	cls, err := classifier.Classify(ctx, in.Run.Request)
	if err != nil {
		return nil, fmt.Errorf("classify query: %w", err)
	}

	in.Run.SetClassification(cls)
	in.Run.MarkStep(contractx.StepClassifier)
	return in, nil
}
