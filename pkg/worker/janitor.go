package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/outflowhq/outflow/pkg/idempotency"
)

// DefaultStuckAge is how long a reservation may stay open before the janitor
// reports it. Completion normally follows reservation within seconds.
const DefaultStuckAge = 10 * time.Minute

// Janitor periodically scans the idempotency ledger for reservations that
// never completed. A stuck reservation marks a crash between reserve and
// complete; it is surfaced for operator inspection, never retried or cleared
// automatically.
type Janitor struct {
	ledger   idempotency.Ledger
	cron     *cron.Cron
	stuckAge time.Duration
	logger   *slog.Logger
}

func NewJanitor(ledger idempotency.Ledger, stuckAge time.Duration, logger *slog.Logger) *Janitor {
	if stuckAge <= 0 {
		stuckAge = DefaultStuckAge
	}

	return &Janitor{
		ledger:   ledger,
		cron:     cron.New(),
		stuckAge: stuckAge,
		logger:   logger.With("module", "janitor"),
	}
}

func (j *Janitor) Start(ctx context.Context, cronExpr string) error {
	if cronExpr == "" {
		cronExpr = "*/5 * * * *"
	}

	_, err := j.cron.AddFunc(cronExpr, func() {
		j.Scan(ctx)
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(ctx, "janitor started", "cron", cronExpr, "stuck_age", j.stuckAge)

	return nil
}

// Scan logs every reservation older than the stuck age.
func (j *Janitor) Scan(ctx context.Context) {
	records, err := j.ledger.StuckReservations(ctx, j.stuckAge)
	if err != nil {
		j.logger.ErrorContext(ctx, "failed to scan for stuck reservations", "error", err)

		return
	}

	for _, record := range records {
		j.logger.WarnContext(ctx, "stuck idempotency reservation",
			"tenant_id", record.TenantID,
			"execution_id", record.ExecutionID,
			"node_id", record.NodeID,
			"action_key", record.ActionKey,
			"reserved_at", record.ReservedAt,
		)
	}
}

func (j *Janitor) Stop() {
	j.cron.Stop()
}
