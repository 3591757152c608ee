package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/repair_days.txt
	repairDaysRaw string

	//go:embed template/compliance.txt
	complianceRaw string

	//go:embed template/dealer_insights.txt
	dealerInsightsRaw string

	//go:embed template/report.txt
	reportRaw string
)

// PromptSet holds the system prompts for every model-backed stage.
type PromptSet struct {
	Classifier     string
	RepairDays     string
	Compliance     string
	DealerInsights string
	Report         string
}

// LoadPromptSet returns the embedded prompt texts, trimmed.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Classifier:     strings.TrimSpace(classifierRaw),
		RepairDays:     strings.TrimSpace(repairDaysRaw),
		Compliance:     strings.TrimSpace(complianceRaw),
		DealerInsights: strings.TrimSpace(dealerInsightsRaw),
		Report:         strings.TrimSpace(reportRaw),
	}
}
