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

// annualRepairLimitDays is the in-repair day budget per warranty year.
// Exceeding it entitles the owner to escalate a claim.
const annualRepairLimitDays = 30

type repairDays struct {
	base
}

var _ contractx.Analyzer = (*repairDays)(nil)

func newRepairDays(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, tools contractx.ToolInvoker) (*repairDays, error) {
	runner, err := compileAnalysisGraph(ctx, chatModel, systemPrompt, "analyzer.repair_days_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	return &repairDays{
		base: base{
			name:        contractx.AgentRepairDays,
			requiresVIN: true,
			tools:       tools,
			runner:      runner,
			log:         logx.Component(contractx.AgentRepairDays),
			now:         time.Now,
		},
	}, nil
}

func (a *repairDays) Analyze(ctx context.Context, req contractx.AnalysisRequest, cls contractx.Classification) contractx.AnalyzerResult {
	vin := resolveRequestVIN(req, cls)
	if vin == "" {
		return a.fail(errors.New("vin is required"))
	}

	payload, err := a.tools.Invoke(ctx, toolclient.ToolWarrantyDays, map[string]any{"vin": vin})
	if err != nil {
		return a.fail(fmt.Errorf("fetch warranty days: %w", err))
	}

	data := map[string]any{
		"vin":      vin,
		"raw_data": payload,
	}

	if currentDays, ok := asFloat(payload["current_year_days"]); ok {
		remaining := annualRepairLimitDays - currentDays
		if remaining < 0 {
			remaining = 0
		}
		data["current_year_days"] = currentDays
		data["days_remaining"] = remaining
		data["limit_exceeded"] = currentDays > annualRepairLimitDays
	}

	if analysis, ok := a.interpret(ctx, map[string]any{
		"query": req.Query,
		"data":  payload,
	}); ok {
		data["analysis"] = analysis
	} else {
		data["note"] = analysisUnavailableNote
	}

	return a.succeed(data)
}

// resolveRequestVIN prefers the classifier's resolved VIN, which covers VINs
// found inside the query text.
func resolveRequestVIN(req contractx.AnalysisRequest, cls contractx.Classification) string {
	if vin := strings.TrimSpace(cls.VIN); vin != "" {
		return vin
	}
	return strings.TrimSpace(req.VIN)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
