package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	runnode "github.com/warrantix/warrantix/agent/nodes"
)

func (o *Orchestrator) compileRunGraph(
	ctx context.Context,
) (compose.Runnable[runnode.GraphInput, runnode.GraphOutput], error) {
	graph := compose.NewGraph[runnode.GraphInput, runnode.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in runnode.GraphInput) (*runnode.GraphState, error) {
			return runnode.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("classify",
		compose.InvokableLambda(func(ctx context.Context, in *runnode.GraphState) (*runnode.GraphState, error) {
			return runnode.Classify(ctx, in, o.classifier)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch_analyzers",
		compose.InvokableLambda(func(ctx context.Context, in *runnode.GraphState) (*runnode.GraphState, error) {
			return runnode.DispatchAnalyzers(ctx, in, o.analyzers, runnode.DispatchConfig{
				AnalyzerTimeout: o.cfg.AnalyzerTimeout,
				BarrierTimeout:  o.cfg.BarrierTimeout,
			})
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_analyzers: %w", err)
	}

	if err := graph.AddLambdaNode("aggregate",
		compose.InvokableLambda(func(ctx context.Context, in *runnode.GraphState) (*runnode.GraphState, error) {
			return runnode.Aggregate(ctx, in, o.reporter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node aggregate: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_report",
		compose.InvokableLambda(func(ctx context.Context, in *runnode.GraphState) (runnode.GraphOutput, error) {
			return runnode.FinalizeReport(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_report: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "classify"},
		{"classify", "dispatch_analyzers"},
		{"dispatch_analyzers", "aggregate"},
		{"aggregate", "finalize_report"},
		{"finalize_report", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.run"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
