package contract

import "context"

// Classifier decides which analyzers a query needs. An error return is fatal
// to the run; an empty Classification is the valid "nothing to do" outcome.
type Classifier interface {
	Classify(ctx context.Context, req AnalysisRequest) (Classification, error)
}

// Analyzer is one specialist. Analyze never returns an error: failures are
// reported as AnalyzerResult{Success: false}. Implementations must honor ctx
// cancellation.
type Analyzer interface {
	Name() string
	RequiresVIN() bool
	Analyze(ctx context.Context, req AnalysisRequest, cls Classification) AnalyzerResult
}

// ToolInvoker executes a named tool against the remote data service.
type ToolInvoker interface {
	Invoke(ctx context.Context, tool string, args map[string]any) (map[string]any, error)
}

// Reporter merges the per-analyzer results into the final response text.
// An error return is fatal to the run.
type Reporter interface {
	Aggregate(ctx context.Context, req AnalysisRequest, cls Classification, results []AnalyzerResult) (string, error)
}
