package runnode

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/warrantix/warrantix/agent/contract"
)

type fakeReporter struct {
	text    string
	err     error
	calls   int
	lastCls contractx.Classification
	lastRes []contractx.AnalyzerResult
}

func (f *fakeReporter) Aggregate(_ context.Context, _ contractx.AnalysisRequest, cls contractx.Classification, results []contractx.AnalyzerResult) (string, error) {
	f.calls++
	f.lastCls = cls
	f.lastRes = results
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func TestAggregateWritesResponse(t *testing.T) {
	t.Parallel()

	state := newFinalizeState(t)
	state.Run.SetClassification(contractx.Classification{NeedsCompliance: true})
	slots := state.Run.OpenSlots([]string{contractx.AgentCompliance})
	slots[0].Fill(contractx.AnalyzerResult{
		AgentName: contractx.AgentCompliance,
		Success:   true,
		Data:      map[string]any{"documents": []any{}},
		Timestamp: time.Now().UTC(),
	})

	reporter := &fakeReporter{text: "вот что говорит закон"}
	out, err := Aggregate(context.Background(), state, reporter)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	if out.Response != "вот что говорит закон" {
		t.Fatalf("unexpected response: %q", out.Response)
	}
	if reporter.calls != 1 {
		t.Fatalf("expected one reporter call, got %d", reporter.calls)
	}
	if len(reporter.lastRes) != 1 || reporter.lastRes[0].AgentName != contractx.AgentCompliance {
		t.Fatalf("reporter got wrong results: %+v", reporter.lastRes)
	}
	if !reporter.lastCls.NeedsCompliance {
		t.Fatalf("reporter got wrong classification: %+v", reporter.lastCls)
	}

	steps := out.Run.Steps()
	if len(steps) != 1 || steps[0] != contractx.StepAggregator {
		t.Fatalf("unexpected steps: %v", steps)
	}
}

func TestAggregateReporterErrorIsFatal(t *testing.T) {
	t.Parallel()

	boom := errors.New("digest failed")
	state := newFinalizeState(t)

	_, err := Aggregate(context.Background(), state, &fakeReporter{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the reporter error, got %v", err)
	}
	if !strings.Contains(err.Error(), "aggregate results") {
		t.Fatalf("expected an aggregate wrap, got %v", err)
	}
}

func TestAggregateRejectsMissingReporter(t *testing.T) {
	t.Parallel()

	state := newFinalizeState(t)
	_, err := Aggregate(context.Background(), state, nil)
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
