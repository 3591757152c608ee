package runnode

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	contractx "github.com/warrantix/warrantix/agent/contract"
	statex "github.com/warrantix/warrantix/agent/state"
	logx "github.com/warrantix/warrantix/pkg/logger"
	"github.com/warrantix/warrantix/pkg/metrics"
)

// DispatchConfig bounds the fan-out stage.
type DispatchConfig struct {
	// AnalyzerTimeout caps each analyzer individually.
	AnalyzerTimeout time.Duration
	// BarrierTimeout caps the whole fan-out; stragglers past it are
	// abandoned with a timed-out result.
	BarrierTimeout time.Duration
}

// DispatchAnalyzers runs the activated analyzers concurrently and blocks
// until every one of them has produced a result or been abandoned. Analyzer
// failure is never an error here: each outcome lands in its own slot and the
// run always proceeds to aggregation.
func DispatchAnalyzers(ctx context.Context, in *GraphState, analyzers []contractx.Analyzer, cfg DispatchConfig) (*GraphState, error) {
	if in == nil || in.Run == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	run := in.Run
	cls := run.Classification()
	log := logx.Component("orchestrator")

	hasVIN := strings.TrimSpace(cls.VIN) != "" || run.Request.HasVIN()

	active := make([]contractx.Analyzer, 0, len(analyzers))
	for _, a := range analyzers {
		if !cls.Activates(a.Name()) {
			continue
		}
		if a.RequiresVIN() && !hasVIN {
			// Orchestrator-enforced precondition: activation without the data
			// the analyzer needs is withdrawn, not failed.
			note := fmt.Sprintf("%s: skipped, VIN required but not provided", a.Name())
			run.AddNote(note)
			log.Info().Str("analyzer", a.Name()).Msg("deactivated, vin missing")
			continue
		}
		active = append(active, a)
	}

	if len(active) == 0 {
		return in, nil
	}

	names := make([]string, len(active))
	for i, a := range active {
		names[i] = a.Name()
	}
	slots := run.OpenSlots(names)

	// errgroup would cancel the siblings on the first error; analyzer
	// failures are results, not errors, so a plain WaitGroup is the barrier.
	var wg sync.WaitGroup
	for i, a := range active {
		wg.Add(1)
		go func(a contractx.Analyzer, slot *statex.Slot) {
			defer wg.Done()
			res, produced := runAnalyzer(ctx, a, run.Request, cls, cfg.AnalyzerTimeout)
			if produced {
				slot.Fill(res)
				return
			}
			slot.Abandon(res)
		}(a, slots[i])
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if cfg.BarrierTimeout > 0 {
		barrier := time.NewTimer(cfg.BarrierTimeout)
		defer barrier.Stop()

		select {
		case <-done:
		case <-barrier.C:
			abandonStragglers(slots, fmt.Sprintf("abandoned after %s", cfg.BarrierTimeout))
			log.Warn().Dur("barrier_timeout", cfg.BarrierTimeout).Msg("fan-out barrier timed out, aggregating partial results")
		case <-ctx.Done():
			abandonStragglers(slots, fmt.Sprintf("run canceled: %v", ctx.Err()))
		}
	} else {
		select {
		case <-done:
		case <-ctx.Done():
			abandonStragglers(slots, fmt.Sprintf("run canceled: %v", ctx.Err()))
		}
	}

	for _, name := range names {
		run.MarkStep(name)
	}
	return in, nil
}

// abandonStragglers writes a failed result into every still-empty slot. Slot
// writes are first-write-wins, so a straggler finishing later is dropped.
func abandonStragglers(slots []*statex.Slot, reason string) {
	for _, slot := range slots {
		slot.Abandon(contractx.AnalyzerResult{
			AgentName: slot.Name,
			Success:   false,
			Error:     reason,
			Timestamp: time.Now().UTC(),
		})
	}
}

// runAnalyzer executes one analyzer under its own deadline. The second return
// distinguishes results the analyzer produced itself from ones fabricated
// here for a timeout or panic.
func runAnalyzer(ctx context.Context, a contractx.Analyzer, req contractx.AnalysisRequest, cls contractx.Classification, timeout time.Duration) (contractx.AnalyzerResult, bool) {
	actx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	type outcome struct {
		res      contractx.AnalyzerResult
		produced bool
	}
	resCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- outcome{res: contractx.AnalyzerResult{
					AgentName: a.Name(),
					Success:   false,
					Error:     fmt.Sprintf("analyzer panicked: %v", r),
					Timestamp: time.Now().UTC(),
				}}
			}
		}()
		resCh <- outcome{res: a.Analyze(actx, req, cls), produced: true}
	}()

	select {
	case out := <-resCh:
		metrics.RecordAnalyzer(a.Name(), out.res.Success, time.Since(start))
		return out.res, out.produced
	case <-actx.Done():
		metrics.RecordAnalyzer(a.Name(), false, time.Since(start))
		msg := fmt.Sprintf("timed out after %s", timeout)
		if ctx.Err() != nil {
			msg = fmt.Sprintf("canceled: %v", ctx.Err())
		}
		return contractx.AnalyzerResult{
			AgentName: a.Name(),
			Success:   false,
			Error:     msg,
			Timestamp: time.Now().UTC(),
		}, false
	}
}
