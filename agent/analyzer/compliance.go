package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/warrantix/warrantix/agent/contract"
	"github.com/warrantix/warrantix/agent/toolclient"
	logx "github.com/warrantix/warrantix/pkg/logger"
)

const complianceTopK = 3

type compliance struct {
	base
}

var _ contractx.Analyzer = (*compliance)(nil)

func newCompliance(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, tools contractx.ToolInvoker) (*compliance, error) {
	runner, err := compileAnalysisGraph(ctx, chatModel, systemPrompt, "analyzer.compliance_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	return &compliance{
		base: base{
			name:        contractx.AgentCompliance,
			requiresVIN: false,
			tools:       tools,
			runner:      runner,
			log:         logx.Component(contractx.AgentCompliance),
			now:         time.Now,
		},
	}, nil
}

func (a *compliance) Analyze(ctx context.Context, req contractx.AnalysisRequest, _ contractx.Classification) contractx.AnalyzerResult {
	searchQuery := buildSearchQuery(req.Query)

	payload, err := a.tools.Invoke(ctx, toolclient.ToolComplianceRAG, map[string]any{
		"query": searchQuery,
		"top_k": complianceTopK,
	})
	if err != nil {
		return a.fail(fmt.Errorf("search compliance documents: %w", err))
	}

	documents := payload["documents"]
	data := map[string]any{
		"search_query": searchQuery,
		"documents":    documents,
	}

	if analysis, ok := a.interpret(ctx, map[string]any{
		"query":     req.Query,
		"documents": documents,
	}); ok {
		data["analysis"] = analysis
	} else {
		data["note"] = analysisUnavailableNote
	}

	return a.succeed(data)
}

var limitSignals = []string{
	"30", "лимит", "превы", "срок ремонта", "exceed", "limit",
}

// buildSearchQuery derives the retrieval query from the request text alone;
// analyzers never read each other's results. Questions about the repair time
// limit get the escalation angle added.
func buildSearchQuery(query string) string {
	query = strings.TrimSpace(query)
	lower := strings.ToLower(query)
	for _, signal := range limitSignals {
		if strings.Contains(lower, signal) {
			return query + " права потребителя при превышении срока гарантийного ремонта"
		}
	}
	return query
}
