package runnode

import (
	"fmt"
	"time"

	contractx "github.com/warrantix/warrantix/agent/contract"
)

// FinalizeReport assembles the run report from the accumulated state. The
// run counts as successful when zero analyzers were activated, or when at
// least one activated analyzer reported back on its own; a run where every
// result had to be fabricated for a timeout or crash is not a success, but a
// tool failure an analyzer reported itself is.
func FinalizeReport(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Run == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	run := in.Run
	run.Finish(time.Now().UTC())

	results := run.Results()
	agentsUsed := make([]string, 0, len(results))
	errs := make([]string, 0)
	for _, res := range results {
		if res.Success {
			agentsUsed = append(agentsUsed, res.AgentName)
			continue
		}
		errs = append(errs, fmt.Sprintf("%s: %s", res.AgentName, res.Error))
	}

	report := &contractx.RunReport{
		Success:              len(results) == 0 || run.AnyProduced(),
		Response:             in.Response,
		AgentsUsed:           agentsUsed,
		AgentResults:         results,
		ExecutionTimeSeconds: run.FinishedAt.Sub(run.StartedAt).Seconds(),
		StepsCompleted:       run.Steps(),
		Errors:               errs,
		Notes:                run.Notes(),
		StartTime:            run.StartedAt,
		EndTime:              run.FinishedAt,
	}
	return GraphOutput{Report: report}, nil
}
