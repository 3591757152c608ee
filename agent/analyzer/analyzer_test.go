package analyzer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/warrantix/warrantix/agent/contract"
	"github.com/warrantix/warrantix/agent/toolclient"
	logx "github.com/warrantix/warrantix/pkg/logger"
)

const testVIN = "XTA21099012345678"

type toolCall struct {
	tool string
	args map[string]any
}

type fakeInvoker struct {
	mu       sync.Mutex
	payloads map[string]map[string]any
	errs     map[string]error
	calls    []toolCall
}

func (f *fakeInvoker) Invoke(_ context.Context, tool string, args map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, toolCall{tool: tool, args: args})
	if err, ok := f.errs[tool]; ok {
		return nil, err
	}
	if payload, ok := f.payloads[tool]; ok {
		return payload, nil
	}
	return map[string]any{}, nil
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeInvoker) lastCall(t *testing.T) toolCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no tool calls recorded")
	}
	return f.calls[len(f.calls)-1]
}

type modelReply struct {
	content string
	err     error
}

type fakeAnalysisRunner struct {
	mu      sync.Mutex
	replies []modelReply
	calls   int
}

func (f *fakeAnalysisRunner) Invoke(_ context.Context, _ map[string]any, _ ...compose.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if len(f.replies) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return schema.AssistantMessage(r.content, nil), nil
}

func newTestBase(name string, requiresVIN bool, tools contractx.ToolInvoker, runner analysisRunner) base {
	return base{
		name:        name,
		requiresVIN: requiresVIN,
		tools:       tools,
		runner:      runner,
		log:         logx.Component(name),
		now:         func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestRepairDaysRequiresVIN(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{}
	a := &repairDays{base: newTestBase(contractx.AgentRepairDays, true, inv, nil)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "repair days?"}, contractx.Classification{})

	if res.Success {
		t.Fatal("expected failure without a vin")
	}
	if res.Error != "vin is required" {
		t.Fatalf("unexpected error: %q", res.Error)
	}
	if res.AgentName != contractx.AgentRepairDays {
		t.Fatalf("unexpected agent name: %q", res.AgentName)
	}
	if inv.callCount() != 0 {
		t.Fatalf("expected no tool calls, got %d", inv.callCount())
	}
}

func TestRepairDaysToolFailure(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{
		errs: map[string]error{toolclient.ToolWarrantyDays: errors.New("http status=503")},
	}
	a := &repairDays{base: newTestBase(contractx.AgentRepairDays, true, inv, nil)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "days", VIN: testVIN}, contractx.Classification{})

	if res.Success {
		t.Fatal("expected failure when the tool call fails")
	}
	if !strings.Contains(res.Error, "fetch warranty days") {
		t.Fatalf("unexpected error: %q", res.Error)
	}
}

func TestRepairDaysLimitExceeded(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{
		payloads: map[string]map[string]any{
			toolclient.ToolWarrantyDays: {"current_year_days": float64(35), "total_days": float64(41)},
		},
	}
	runner := &fakeAnalysisRunner{replies: []modelReply{{content: "Лимит превышен, вы вправе требовать замены."}}}
	a := &repairDays{base: newTestBase(contractx.AgentRepairDays, true, inv, runner)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "сколько дней в ремонте?", VIN: testVIN}, contractx.Classification{})

	if !res.Success {
		t.Fatalf("Analyze() failed: %s", res.Error)
	}
	if got := res.Data["limit_exceeded"]; got != true {
		t.Fatalf("limit_exceeded = %v, want true", got)
	}
	if got := res.Data["days_remaining"]; got != float64(0) {
		t.Fatalf("days_remaining = %v, want 0", got)
	}
	if got := res.Data["current_year_days"]; got != float64(35) {
		t.Fatalf("current_year_days = %v, want 35", got)
	}
	if _, ok := res.Data["raw_data"]; !ok {
		t.Fatal("expected raw_data to be kept")
	}
	if got := res.Data["analysis"]; got != "Лимит превышен, вы вправе требовать замены." {
		t.Fatalf("analysis = %v", got)
	}
	if !res.Timestamp.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp: %v", res.Timestamp)
	}
}

func TestRepairDaysUnderLimit(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{
		payloads: map[string]map[string]any{
			toolclient.ToolWarrantyDays: {"current_year_days": float64(12)},
		},
	}
	a := &repairDays{base: newTestBase(contractx.AgentRepairDays, true, inv, nil)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "days", VIN: testVIN}, contractx.Classification{})

	if !res.Success {
		t.Fatalf("Analyze() failed: %s", res.Error)
	}
	if got := res.Data["limit_exceeded"]; got != false {
		t.Fatalf("limit_exceeded = %v, want false", got)
	}
	if got := res.Data["days_remaining"]; got != float64(18) {
		t.Fatalf("days_remaining = %v, want 18", got)
	}
}

func TestRepairDaysDegradesWithoutModel(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{
		payloads: map[string]map[string]any{
			toolclient.ToolWarrantyDays: {"current_year_days": float64(3)},
		},
	}
	a := &repairDays{base: newTestBase(contractx.AgentRepairDays, true, inv, nil)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "days", VIN: testVIN}, contractx.Classification{})

	if !res.Success {
		t.Fatalf("Analyze() failed: %s", res.Error)
	}
	if got := res.Data["note"]; got != analysisUnavailableNote {
		t.Fatalf("note = %v, want %q", got, analysisUnavailableNote)
	}
	if _, ok := res.Data["analysis"]; ok {
		t.Fatal("analysis must be absent when the model is not configured")
	}
}

func TestRepairDaysPrefersClassifierVIN(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{
		payloads: map[string]map[string]any{
			toolclient.ToolWarrantyDays: {"current_year_days": float64(1)},
		},
	}
	a := &repairDays{base: newTestBase(contractx.AgentRepairDays, true, inv, nil)}

	res := a.Analyze(context.Background(),
		contractx.AnalysisRequest{Query: "repair days for " + testVIN},
		contractx.Classification{VIN: testVIN})

	if !res.Success {
		t.Fatalf("Analyze() failed: %s", res.Error)
	}
	if got := inv.lastCall(t).args["vin"]; got != testVIN {
		t.Fatalf("tool called with vin %v, want %s", got, testVIN)
	}
}

func TestInterpretRetriesOnce(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{
		payloads: map[string]map[string]any{
			toolclient.ToolWarrantyDays: {"current_year_days": float64(5)},
		},
	}
	runner := &fakeAnalysisRunner{replies: []modelReply{
		{err: errors.New("timeout")},
		{content: "Всё в пределах нормы."},
	}}
	a := &repairDays{base: newTestBase(contractx.AgentRepairDays, true, inv, runner)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "days", VIN: testVIN}, contractx.Classification{})

	if !res.Success {
		t.Fatalf("Analyze() failed: %s", res.Error)
	}
	if got := res.Data["analysis"]; got != "Всё в пределах нормы." {
		t.Fatalf("analysis = %v", got)
	}
	if runner.calls != 2 {
		t.Fatalf("expected one retry, got %d calls", runner.calls)
	}
}

func TestComplianceWorksWithoutVIN(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{
		payloads: map[string]map[string]any{
			toolclient.ToolComplianceRAG: {"documents": []any{map[string]any{"text": "статья 20"}}},
		},
	}
	a := &compliance{base: newTestBase(contractx.AgentCompliance, false, inv, nil)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "what are my rights?"}, contractx.Classification{})

	if !res.Success {
		t.Fatalf("Analyze() failed: %s", res.Error)
	}
	if _, ok := res.Data["documents"]; !ok {
		t.Fatal("expected documents in result data")
	}

	call := inv.lastCall(t)
	if call.tool != toolclient.ToolComplianceRAG {
		t.Fatalf("unexpected tool: %s", call.tool)
	}
	if got := call.args["top_k"]; got != complianceTopK {
		t.Fatalf("top_k = %v, want %d", got, complianceTopK)
	}
}

func TestComplianceExpandsLimitQueries(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{
		payloads: map[string]map[string]any{
			toolclient.ToolComplianceRAG: {"documents": []any{}},
		},
	}
	a := &compliance{base: newTestBase(contractx.AgentCompliance, false, inv, nil)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "машина в ремонте больше 30 дней, что делать?"}, contractx.Classification{})

	if !res.Success {
		t.Fatalf("Analyze() failed: %s", res.Error)
	}

	sent, _ := inv.lastCall(t).args["query"].(string)
	if !strings.Contains(sent, "права потребителя при превышении срока гарантийного ремонта") {
		t.Fatalf("limit query was not expanded: %q", sent)
	}
	if !strings.HasPrefix(sent, "машина в ремонте больше 30 дней") {
		t.Fatalf("original query must be kept: %q", sent)
	}
}

func TestComplianceKeepsPlainQueries(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{
		payloads: map[string]map[string]any{
			toolclient.ToolComplianceRAG: {"documents": []any{}},
		},
	}
	a := &compliance{base: newTestBase(contractx.AgentCompliance, false, inv, nil)}

	query := "какие документы нужны для гарантии?"
	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: query}, contractx.Classification{})
	if !res.Success {
		t.Fatalf("Analyze() failed: %s", res.Error)
	}

	if got := inv.lastCall(t).args["query"]; got != query {
		t.Fatalf("query was rewritten: %v", got)
	}
}

func TestComplianceToolFailure(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{
		errs: map[string]error{toolclient.ToolComplianceRAG: errors.New("http status=500")},
	}
	a := &compliance{base: newTestBase(contractx.AgentCompliance, false, inv, nil)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "rights?"}, contractx.Classification{})

	if res.Success {
		t.Fatal("expected failure when the search fails")
	}
	if !strings.Contains(res.Error, "search compliance documents") {
		t.Fatalf("unexpected error: %q", res.Error)
	}
}

func TestDealerInsightsAggregatesAllSources(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{
		payloads: map[string]map[string]any{
			toolclient.ToolWarrantyHistory:       {"claims": []any{}},
			toolclient.ToolMaintenanceHistory:    {"visits": []any{}},
			toolclient.ToolVehicleRepairsHistory: {"orders": []any{}},
		},
	}
	a := &dealerInsights{base: newTestBase(contractx.AgentDealerInsights, true, inv, nil)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "history", VIN: testVIN}, contractx.Classification{})

	if !res.Success {
		t.Fatalf("Analyze() failed: %s", res.Error)
	}
	sources, ok := res.Data["sources"].(map[string]any)
	if !ok {
		t.Fatalf("sources missing: %+v", res.Data)
	}
	for _, name := range []string{"warranty_history", "maintenance_history", "repair_orders"} {
		if _, ok := sources[name]; !ok {
			t.Fatalf("source %s missing", name)
		}
	}
	if _, ok := res.Data["unavailable_sources"]; ok {
		t.Fatal("unavailable_sources must be absent when every source responds")
	}
	if inv.callCount() != 3 {
		t.Fatalf("expected 3 tool calls, got %d", inv.callCount())
	}
}

func TestDealerInsightsToleratesPartialSources(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{
		payloads: map[string]map[string]any{
			toolclient.ToolMaintenanceHistory:    {"visits": []any{}},
			toolclient.ToolVehicleRepairsHistory: {"orders": []any{}},
		},
		errs: map[string]error{toolclient.ToolWarrantyHistory: errors.New("http status=502")},
	}
	a := &dealerInsights{base: newTestBase(contractx.AgentDealerInsights, true, inv, nil)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "history", VIN: testVIN}, contractx.Classification{})

	if !res.Success {
		t.Fatalf("partial data must still succeed, got: %s", res.Error)
	}
	unavailable, ok := res.Data["unavailable_sources"].([]string)
	if !ok || len(unavailable) != 1 || unavailable[0] != "warranty_history" {
		t.Fatalf("unavailable_sources = %v", res.Data["unavailable_sources"])
	}
}

func TestDealerInsightsFailsWhenAllSourcesDown(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")
	inv := &fakeInvoker{
		errs: map[string]error{
			toolclient.ToolWarrantyHistory:       down,
			toolclient.ToolMaintenanceHistory:    down,
			toolclient.ToolVehicleRepairsHistory: down,
		},
	}
	a := &dealerInsights{base: newTestBase(contractx.AgentDealerInsights, true, inv, nil)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "history", VIN: testVIN}, contractx.Classification{})

	if res.Success {
		t.Fatal("expected failure when every source is down")
	}
	if !strings.Contains(res.Error, "all history sources unavailable") {
		t.Fatalf("unexpected error: %q", res.Error)
	}
	if !strings.Contains(res.Error, "warranty_history") {
		t.Fatalf("error must list the failed sources: %q", res.Error)
	}
}

func TestDealerInsightsRequiresVIN(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{}
	a := &dealerInsights{base: newTestBase(contractx.AgentDealerInsights, true, inv, nil)}

	res := a.Analyze(context.Background(), contractx.AnalysisRequest{Query: "history"}, contractx.Classification{})

	if res.Success {
		t.Fatal("expected failure without a vin")
	}
	if res.Error != "vin is required" {
		t.Fatalf("unexpected error: %q", res.Error)
	}
	if inv.callCount() != 0 {
		t.Fatalf("expected no tool calls, got %d", inv.callCount())
	}
}
