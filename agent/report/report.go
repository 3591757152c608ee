package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	contractx "github.com/warrantix/warrantix/agent/contract"
	gigachatx "github.com/warrantix/warrantix/pkg/gigachat"
	logx "github.com/warrantix/warrantix/pkg/logger"
)

// modelRunner is the compiled prompt->model pipeline. Declared as a local
// interface so tests can stub the model out.
type modelRunner interface {
	Invoke(ctx context.Context, in map[string]any, opts ...compose.Option) (*schema.Message, error)
}

var sectionTitles = map[string]string{
	contractx.AgentRepairDays:     "Repair Days",
	contractx.AgentCompliance:     "Consumer Rights & Compliance",
	contractx.AgentDealerInsights: "Dealer Service History",
}

const capabilitiesHint = `I could not match your question to any of my analysis capabilities.

I can help with:
- how many days your vehicle spent in warranty repair this year and whether the 30-day annual limit is exceeded
- your rights and compensation options when a warranty repair takes too long
- insights from your vehicle's service and repair history (VIN required)

Try rephrasing your question, and include the 17-character VIN for vehicle-specific answers.`

// Reporter composes the final response from the analyzer results. The model
// polishes the wording; when it is unavailable the deterministic section
// digest is returned as-is.
type Reporter struct {
	runner modelRunner
	log    zerolog.Logger
}

var _ contractx.Reporter = (*Reporter)(nil)

func New(ctx context.Context, builder gigachatx.LLMBuilder, systemPrompt string) (*Reporter, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: report prompt", contractx.ErrPromptMissing)
	}

	chatModel, err := builder.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create report model: %v", contractx.ErrModelInvoke, err)
	}

	runner, err := compileReportGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	return &Reporter{
		runner: runner,
		log:    logx.Component("report"),
	}, nil
}

func (r *Reporter) Aggregate(
	ctx context.Context,
	req contractx.AnalysisRequest,
	cls contractx.Classification,
	results []contractx.AnalyzerResult,
) (string, error) {
	if len(results) == 0 {
		return capabilitiesHint, nil
	}

	digest, err := renderDigest(results)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"query":    req.Query,
		"vin":      cls.VIN,
		"sections": digest,
	})
	if err != nil {
		return "", fmt.Errorf("marshal report payload: %w", err)
	}

	msg, err := r.runner.Invoke(ctx, map[string]any{"input": string(payload)})
	if err != nil {
		r.log.Warn().Err(err).Msg("report model unavailable, returning section digest")
		return digest, nil
	}

	content := ""
	if msg != nil {
		content = strings.TrimSpace(msg.Content)
	}
	if content == "" {
		r.log.Warn().Msg("report model returned empty reply, returning section digest")
		return digest, nil
	}
	return content, nil
}

// renderDigest lays the analyzer results out as markdown sections in the
// fixed priority order. A failed analyzer keeps its slot in the layout as an
// unavailability marker; analyzers that never ran produce no section.
func renderDigest(results []contractx.AnalyzerResult) (string, error) {
	byName := make(map[string]contractx.AnalyzerResult, len(results))
	for _, res := range results {
		byName[res.AgentName] = res
	}

	var b strings.Builder
	for _, name := range contractx.AnalyzerPriority {
		res, ok := byName[name]
		if !ok {
			continue
		}

		title := sectionTitles[name]
		if title == "" {
			title = name
		}
		fmt.Fprintf(&b, "## %s\n\n", title)

		if !res.Success {
			reason := strings.TrimSpace(res.Error)
			if reason == "" {
				reason = "no result"
			}
			fmt.Fprintf(&b, "Section unavailable (%s).\n\n", reason)
			continue
		}

		data, err := json.MarshalIndent(res.Data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode %s section: %w", name, err)
		}
		fmt.Fprintf(&b, "```json\n%s\n```\n\n", data)
	}
	return strings.TrimSpace(b.String()), nil
}
