package contract

import (
	"strings"
	"time"
)

const (
	AgentRepairDays     = "repair-days"
	AgentCompliance     = "compliance"
	AgentDealerInsights = "dealer-insights"
)

const (
	StepClassifier = "classifier"
	StepAggregator = "aggregator"
)

// AnalyzerPriority is the fixed presentation order for analyzer output.
// Aggregation and error reporting follow this order, never completion order.
var AnalyzerPriority = []string{
	AgentRepairDays,
	AgentCompliance,
	AgentDealerInsights,
}

// AnalysisRequest is the admitted form of a user query. It is immutable for
// the lifetime of a run; analyzers receive it read-only.
type AnalysisRequest struct {
	RequestID string         `json:"request_id"`
	Query     string         `json:"query"`
	VIN       string         `json:"vin,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

func (r AnalysisRequest) HasVIN() bool {
	return strings.TrimSpace(r.VIN) != ""
}

// Classification is the classifier's routing decision. The zero value (no
// analyzer activated) is a valid outcome, not an error.
type Classification struct {
	NeedsRepairDays     bool   `json:"needs_repair_days"`
	NeedsCompliance     bool   `json:"needs_compliance"`
	NeedsDealerInsights bool   `json:"needs_dealer_insights"`
	VIN                 string `json:"vin,omitempty"`
	Reasoning           string `json:"reasoning,omitempty"`
}

// Activated returns the activated analyzer names in priority order.
func (c Classification) Activated() []string {
	names := make([]string, 0, len(AnalyzerPriority))
	if c.NeedsRepairDays {
		names = append(names, AgentRepairDays)
	}
	if c.NeedsCompliance {
		names = append(names, AgentCompliance)
	}
	if c.NeedsDealerInsights {
		names = append(names, AgentDealerInsights)
	}
	return names
}

func (c Classification) Activates(name string) bool {
	switch name {
	case AgentRepairDays:
		return c.NeedsRepairDays
	case AgentCompliance:
		return c.NeedsCompliance
	case AgentDealerInsights:
		return c.NeedsDealerInsights
	}
	return false
}

// AnalyzerResult is the outcome of one analyzer. Failures are data, not
// control flow: Success=false with Error set never aborts a run.
type AnalyzerResult struct {
	AgentName string         `json:"name"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// RunReport is the final outcome of a run, mirrored by the HTTP response.
type RunReport struct {
	Success              bool             `json:"success"`
	Response             string           `json:"response"`
	AgentsUsed           []string         `json:"agentsUsed"`
	AgentResults         []AnalyzerResult `json:"agentResults"`
	ExecutionTimeSeconds float64          `json:"executionTimeSeconds"`
	StepsCompleted       []string         `json:"stepsCompleted"`
	Errors               []string         `json:"errors"`
	Notes                []string         `json:"notes,omitempty"`
	StartTime            time.Time        `json:"startTime"`
	EndTime              time.Time        `json:"endTime"`
}
