package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/warrantix/warrantix/agent/contract"
	"github.com/warrantix/warrantix/agent/toolclient"
	logx "github.com/warrantix/warrantix/pkg/logger"
)

type dealerInsights struct {
	base
}

var _ contractx.Analyzer = (*dealerInsights)(nil)

// historySources are fetched in a fixed order; the analyzer still produces a
// result when some of them fail.
var historySources = []struct {
	name string
	tool string
}{
	{name: "warranty_history", tool: toolclient.ToolWarrantyHistory},
	{name: "maintenance_history", tool: toolclient.ToolMaintenanceHistory},
	{name: "repair_orders", tool: toolclient.ToolVehicleRepairsHistory},
}

func newDealerInsights(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, tools contractx.ToolInvoker) (*dealerInsights, error) {
	runner, err := compileAnalysisGraph(ctx, chatModel, systemPrompt, "analyzer.dealer_insights_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	return &dealerInsights{
		base: base{
			name:        contractx.AgentDealerInsights,
			requiresVIN: true,
			tools:       tools,
			runner:      runner,
			log:         logx.Component(contractx.AgentDealerInsights),
			now:         time.Now,
		},
	}, nil
}

func (a *dealerInsights) Analyze(ctx context.Context, req contractx.AnalysisRequest, cls contractx.Classification) contractx.AnalyzerResult {
	vin := resolveRequestVIN(req, cls)
	if vin == "" {
		return a.fail(errors.New("vin is required"))
	}

	collected := map[string]any{}
	var unavailable []string
	var lastErr error

	for _, source := range historySources {
		payload, err := a.tools.Invoke(ctx, source.tool, map[string]any{"vin": vin})
		if err != nil {
			a.log.Warn().Str("source", source.name).Err(err).Msg("history source unavailable")
			unavailable = append(unavailable, source.name)
			lastErr = err
			continue
		}
		collected[source.name] = payload
	}

	// Missing one source degrades the analysis; missing all of them means
	// there is nothing to say about this vehicle.
	if len(collected) == 0 {
		return a.fail(fmt.Errorf("all history sources unavailable (%s): %w",
			strings.Join(unavailable, ", "), lastErr))
	}

	data := map[string]any{
		"vin":     vin,
		"sources": collected,
	}
	if len(unavailable) > 0 {
		data["unavailable_sources"] = unavailable
	}

	if analysis, ok := a.interpret(ctx, map[string]any{
		"query":   req.Query,
		"history": collected,
	}); ok {
		data["analysis"] = analysis
	} else {
		data["note"] = analysisUnavailableNote
	}

	return a.succeed(data)
}
