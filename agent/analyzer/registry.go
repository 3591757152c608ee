package analyzer

import (
	"context"
	"fmt"

	contractx "github.com/warrantix/warrantix/agent/contract"
	llmx "github.com/warrantix/warrantix/agent/llm"
	promptx "github.com/warrantix/warrantix/agent/prompt"
)

// NewRegistry builds the three specialists in priority order, each with its
// own compiled model pipeline.
func NewRegistry(ctx context.Context, cfg llmx.Config, tools contractx.ToolInvoker) ([]contractx.Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tools == nil {
		return nil, fmt.Errorf("%w: tool invoker is required", contractx.ErrValidation)
	}

	prompts := promptx.LoadPromptSet()
	for name, text := range map[string]string{
		"repair_days":     prompts.RepairDays,
		"compliance":      prompts.Compliance,
		"dealer_insights": prompts.DealerInsights,
	} {
		if text == "" {
			return nil, fmt.Errorf("%w: %s prompt", contractx.ErrPromptMissing, name)
		}
	}

	modelCfg := cfg.GigaChatFor(llmx.RoleAnalyzer)

	repairModel, err := modelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create repair days model: %v", contractx.ErrModelInvoke, err)
	}
	complianceModel, err := modelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create compliance model: %v", contractx.ErrModelInvoke, err)
	}
	dealerModel, err := modelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create dealer insights model: %v", contractx.ErrModelInvoke, err)
	}

	repair, err := newRepairDays(ctx, repairModel, prompts.RepairDays, tools)
	if err != nil {
		return nil, err
	}
	compliance, err := newCompliance(ctx, complianceModel, prompts.Compliance, tools)
	if err != nil {
		return nil, err
	}
	dealer, err := newDealerInsights(ctx, dealerModel, prompts.DealerInsights, tools)
	if err != nil {
		return nil, err
	}

	return []contractx.Analyzer{repair, compliance, dealer}, nil
}
