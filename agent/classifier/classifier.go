package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	contractx "github.com/warrantix/warrantix/agent/contract"
	vinx "github.com/warrantix/warrantix/agent/vin"
	gigachatx "github.com/warrantix/warrantix/pkg/gigachat"
	logx "github.com/warrantix/warrantix/pkg/logger"
)

// modelRunner is the compiled prompt->model pipeline. Declared as a local
// interface so tests can stub the model out.
type modelRunner interface {
	Invoke(ctx context.Context, in map[string]any, opts ...compose.Option) (*schema.Message, error)
}

type decision struct {
	NeedsRepairDays     bool   `json:"needs_repair_days"`
	NeedsCompliance     bool   `json:"needs_compliance"`
	NeedsDealerInsights bool   `json:"needs_dealer_insights"`
	Reasoning           string `json:"reasoning"`
}

// Classifier routes a query to the analyzers it needs. It degrades instead
// of failing: an unreachable model yields the empty classification, and an
// unparseable model reply falls back to keyword inference.
type Classifier struct {
	runner modelRunner
	log    zerolog.Logger
}

var _ contractx.Classifier = (*Classifier)(nil)

func New(ctx context.Context, builder gigachatx.LLMBuilder, systemPrompt string) (*Classifier, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: classifier prompt", contractx.ErrPromptMissing)
	}

	chatModel, err := builder.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create classifier model: %v", contractx.ErrModelInvoke, err)
	}

	runner, err := compileClassifierGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	return &Classifier{
		runner: runner,
		log:    logx.Component("classifier"),
	}, nil
}

func (c *Classifier) Classify(ctx context.Context, req contractx.AnalysisRequest) (contractx.Classification, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return contractx.Classification{}, fmt.Errorf("%w: query is empty", contractx.ErrValidation)
	}

	vin := resolveVIN(req.VIN, query)

	payload, err := json.Marshal(map[string]any{
		"query": query,
		"vin":   vin,
	})
	if err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: marshal classifier payload: %v", contractx.ErrValidation, err)
	}

	msg, err := c.runner.Invoke(ctx, map[string]any{"input": string(payload)})
	if err != nil {
		// The model being down must not fail the run. No analyzers activate,
		// which the aggregator turns into the capabilities hint.
		c.log.Error().Err(err).Msg("classifier model unavailable, activating nothing")
		return contractx.Classification{
			VIN:       vin,
			Reasoning: "classification unavailable, no analyzers activated",
		}, nil
	}

	content := ""
	if msg != nil {
		content = msg.Content
	}

	dec, err := parseDecision(content)
	if err != nil {
		c.log.Warn().Err(err).Msg("classifier reply is not valid JSON, falling back to keywords")
		dec = inferFromText(content)
	}

	// Vehicle-data analyzers are useless without a VIN; the dispatcher also
	// enforces this, but not activating them keeps the reasoning honest.
	if vin == "" {
		dec.NeedsDealerInsights = false
	}

	return contractx.Classification{
		NeedsRepairDays:     dec.NeedsRepairDays,
		NeedsCompliance:     dec.NeedsCompliance,
		NeedsDealerInsights: dec.NeedsDealerInsights,
		VIN:                 vin,
		Reasoning:           strings.TrimSpace(dec.Reasoning),
	}, nil
}

// resolveVIN prefers the explicit request VIN and falls back to scanning the
// query text. An unparseable explicit VIN is ignored rather than fatal; the
// API layer already rejects malformed ones.
func resolveVIN(explicit string, query string) string {
	if candidate := vinx.Normalize(explicit); candidate != "" {
		if err := vinx.Validate(candidate); err == nil {
			return candidate
		}
	}
	return vinx.Extract(query)
}

// parseDecision extracts the decision JSON from a model reply, tolerating
// markdown code fences and surrounding prose.
func parseDecision(content string) (decision, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return decision{}, errors.New("empty classifier reply")
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return decision{}, errors.New("no JSON object in classifier reply")
	}

	var dec decision
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &dec); err != nil {
		return decision{}, fmt.Errorf("decode classifier reply: %w", err)
	}
	return dec, nil
}

var (
	repairDaysKeywords = []string{
		"дней", "простой", "лимит", "30", "repair_days", "days in repair", "how long",
	}
	complianceKeywords = []string{
		"закон", "право", "компенсац", "гарантийная политика", "политика",
		"служба", "процедур", "документ", "стандарт", "что делать",
		"rights", "law", "compensation", "refund", "policy", "claim",
	}
	dealerKeywords = []string{
		"история обслуживания", "история ремонт", "покажи ремонт",
		"какие ремонты были", "dealer", "service history", "repair history",
	}
)

// inferFromText is the last-resort classification over the model's raw reply,
// which normally echoes the query terms.
func inferFromText(content string) decision {
	lower := strings.ToLower(content)

	return decision{
		NeedsRepairDays:     containsAny(lower, repairDaysKeywords),
		NeedsCompliance:     containsAny(lower, complianceKeywords),
		NeedsDealerInsights: containsAny(lower, dealerKeywords),
		Reasoning:           "keyword based classification",
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
