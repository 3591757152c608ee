package state

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/warrantix/warrantix/agent/contract"
)

// Archiver persists finished runs for offline inspection. Archiving is best
// effort: a failure is logged by the caller, never surfaced to the user.
type Archiver interface {
	SaveRun(ctx context.Context, rec *RunRecord) error
}

// RunRecord is the persisted shape of a finished run.
type RunRecord struct {
	bun.BaseModel `bun:"table:agent_runs,alias:run"`

	ID         int64     `bun:"id,pk,autoincrement"`
	RequestID  string    `bun:"request_id,notnull"`
	Query      string    `bun:"query,notnull"`
	VIN        string    `bun:"vin"`
	Success    bool      `bun:"success"`
	AgentsUsed []string  `bun:"agents_used,array"`
	ErrorCount int       `bun:"error_count"`
	DurationMS int64     `bun:"duration_ms"`
	Response   string    `bun:"response"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// NewRunRecord flattens a finished report into its archive row.
func NewRunRecord(req contractx.AnalysisRequest, report *contractx.RunReport) *RunRecord {
	if report == nil {
		return nil
	}
	return &RunRecord{
		RequestID:  req.RequestID,
		Query:      req.Query,
		VIN:        req.VIN,
		Success:    report.Success,
		AgentsUsed: append([]string(nil), report.AgentsUsed...),
		ErrorCount: len(report.Errors),
		DurationMS: int64(report.ExecutionTimeSeconds * 1000),
		Response:   report.Response,
	}
}

type ArchiveConfig struct {
	Enabled bool          `envconfig:"ENABLED" split_words:"true" default:"false"`
	DSN     string        `envconfig:"DSN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
}

// PostgresArchive stores run records through bun.
type PostgresArchive struct {
	db      *bun.DB
	timeout time.Duration
}

func NewPostgresArchive(cfg ArchiveConfig) (*PostgresArchive, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("archive dsn is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &PostgresArchive{
		db:      db,
		timeout: timeout,
	}, nil
}

// EnsureSchema creates the run table when it does not exist yet.
func (a *PostgresArchive) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err := a.db.NewCreateTable().
		Model((*RunRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (a *PostgresArchive) SaveRun(ctx context.Context, rec *RunRecord) error {
	if rec == nil {
		return errors.New("nil run record")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err := a.db.NewInsert().Model(rec).Exec(ctx)
	return err
}

func (a *PostgresArchive) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.db.PingContext(ctx)
}

func (a *PostgresArchive) Close() error {
	return a.db.Close()
}

// NoopArchive is wired when archiving is disabled.
type NoopArchive struct{}

func (NoopArchive) SaveRun(context.Context, *RunRecord) error {
	return nil
}
