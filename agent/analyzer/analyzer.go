package analyzer

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	contractx "github.com/warrantix/warrantix/agent/contract"
)

// analysisRunner is the compiled prompt->model pipeline shared by all
// specialists. Tests substitute a stub.
type analysisRunner interface {
	Invoke(ctx context.Context, in map[string]any, opts ...compose.Option) (*schema.Message, error)
}

// base carries what every specialist needs: identity, the tool client, the
// interpretation model and result constructors.
type base struct {
	name        string
	requiresVIN bool
	tools       contractx.ToolInvoker
	runner      analysisRunner
	log         zerolog.Logger
	now         func() time.Time
}

func (b *base) Name() string {
	return b.name
}

func (b *base) RequiresVIN() bool {
	return b.requiresVIN
}

func (b *base) succeed(data map[string]any) contractx.AnalyzerResult {
	return contractx.AnalyzerResult{
		AgentName: b.name,
		Success:   true,
		Data:      data,
		Timestamp: b.now().UTC(),
	}
}

func (b *base) fail(err error) contractx.AnalyzerResult {
	msg := "unknown failure"
	if err != nil {
		msg = err.Error()
	}
	return contractx.AnalyzerResult{
		AgentName: b.name,
		Success:   false,
		Error:     msg,
		Timestamp: b.now().UTC(),
	}
}

// interpret asks the model to narrate the fetched data. One retry, then the
// caller degrades to a data-only result; interpretation is never worth
// failing an analyzer that already has its data.
func (b *base) interpret(ctx context.Context, payload map[string]any) (string, bool) {
	if b.runner == nil {
		return "", false
	}

	input, err := json.Marshal(payload)
	if err != nil {
		b.log.Warn().Err(err).Msg("marshal interpretation payload")
		return "", false
	}

	for attempt := 1; attempt <= 2; attempt++ {
		msg, err := b.runner.Invoke(ctx, map[string]any{"input": string(input)})
		if err != nil {
			b.log.Warn().Int("attempt", attempt).Err(err).Msg("interpretation model failed")
			if ctx.Err() != nil {
				return "", false
			}
			continue
		}
		if msg == nil {
			return "", false
		}
		if content := strings.TrimSpace(msg.Content); content != "" {
			return content, true
		}
		return "", false
	}
	return "", false
}

const analysisUnavailableNote = "analysis unavailable, returning raw data"
