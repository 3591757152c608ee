package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	contractx "github.com/warrantix/warrantix/agent/contract"
	runnode "github.com/warrantix/warrantix/agent/nodes"
	statex "github.com/warrantix/warrantix/agent/state"
	logx "github.com/warrantix/warrantix/pkg/logger"
	"github.com/warrantix/warrantix/pkg/metrics"
)

var (
	ErrEmptyQuery   = runnode.ErrEmptyQuery
	ErrQueryTooLong = runnode.ErrQueryTooLong
)

// Config bounds a single query run.
type Config struct {
	// RunTimeout caps the whole pipeline from classification to report.
	RunTimeout time.Duration `split_words:"true" default:"120s"`
	// AnalyzerTimeout caps each analyzer individually.
	AnalyzerTimeout time.Duration `split_words:"true" default:"120s"`
	// BarrierTimeout optionally caps the fan-out barrier as a whole;
	// zero disables it and the barrier waits for every analyzer.
	BarrierTimeout time.Duration `split_words:"true" default:"0"`
}

// Orchestrator drives a query through classification, concurrent analysis
// and aggregation, and reports the outcome of every stage.
type Orchestrator struct {
	classifier contractx.Classifier
	analyzers  []contractx.Analyzer
	reporter   contractx.Reporter
	archive    statex.Archiver

	graphRunner compose.Runnable[runnode.GraphInput, runnode.GraphOutput]

	cfg Config
	now func() time.Time
}

func New(
	classifier contractx.Classifier,
	analyzers []contractx.Analyzer,
	reporter contractx.Reporter,
	archive statex.Archiver,
	cfg Config,
) (*Orchestrator, error) {
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if reporter == nil {
		return nil, errors.New("reporter is required")
	}
	if archive == nil {
		archive = statex.NoopArchive{}
	}

	seen := make(map[string]struct{}, len(analyzers))
	for _, a := range analyzers {
		if a == nil {
			return nil, errors.New("nil analyzer in registry")
		}
		if _, dup := seen[a.Name()]; dup {
			return nil, fmt.Errorf("duplicate analyzer name %q", a.Name())
		}
		seen[a.Name()] = struct{}{}
	}

	o := &Orchestrator{
		classifier: classifier,
		analyzers:  analyzers,
		reporter:   reporter,
		archive:    archive,
		cfg:        cfg,
		now:        time.Now,
	}

	graphRunner, err := o.compileRunGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Run executes one query end to end. The returned report is non-nil on
// success; an error means the pipeline itself broke, not that an analyzer
// failed.
func (o *Orchestrator) Run(ctx context.Context, req contractx.AnalysisRequest) (*contractx.RunReport, error) {
	// Assigned here rather than in the graph so the archive row carries the
	// same id the run logs under.
	if strings.TrimSpace(req.RequestID) == "" {
		req.RequestID = uuid.NewString()
	}

	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	start := o.now()
	out, err := o.graphRunner.Invoke(ctx, runnode.GraphInput{Request: req})
	if err != nil {
		metrics.RecordRun(false, time.Since(start))
		return nil, err
	}

	metrics.RecordRun(out.Report.Success, time.Since(start))
	o.archiveRun(ctx, req, out.Report)
	return out.Report, nil
}

// archiveRun persists the finished run for offline analysis. Archive
// failures never fail the run.
func (o *Orchestrator) archiveRun(ctx context.Context, req contractx.AnalysisRequest, report *contractx.RunReport) {
	rec := statex.NewRunRecord(req, report)
	if err := o.archive.SaveRun(context.WithoutCancel(ctx), rec); err != nil {
		logx.Component("orchestrator").Warn().Err(err).Str("request_id", req.RequestID).Msg("archive run failed")
	}
}
