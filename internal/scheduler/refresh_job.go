package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-analytics/internal/events"
	"github.com/aristath/portfolio-analytics/internal/modules/portfolio"
)

// ReportRefresher recomputes and stores the latest portfolio report
type ReportRefresher interface {
	Refresh(ctx context.Context) (portfolio.Report, error)
}

// ReportExporter uploads a report and returns its location
type ReportExporter interface {
	Enabled() bool
	Export(ctx context.Context, report portfolio.Report) (string, error)
}

// RefreshJob recomputes the portfolio report, announces it on the event bus
// and exports it
type RefreshJob struct {
	refresher ReportRefresher
	exporter  ReportExporter
	events    *events.Manager
	timeout   time.Duration
	log       zerolog.Logger
}

// NewRefreshJob creates a new RefreshJob. exporter may be nil.
func NewRefreshJob(refresher ReportRefresher, exporter ReportExporter, eventManager *events.Manager, timeout time.Duration, log zerolog.Logger) *RefreshJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &RefreshJob{
		refresher: refresher,
		exporter:  exporter,
		events:    eventManager,
		timeout:   timeout,
		log:       log.With().Str("job", "refresh_analytics").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "refresh_analytics"
}

// Run executes the refresh
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	report, err := j.refresher.Refresh(ctx)
	if err != nil {
		j.events.Emit("scheduler", &events.RefreshFailedData{Error: err.Error()})
		return fmt.Errorf("failed to refresh analytics: %w", err)
	}

	j.events.Emit("scheduler", &events.ReportReadyData{
		ReportID:    report.ID,
		AsOf:        report.Snapshot.AsOf,
		Assets:      len(report.Snapshot.Holdings),
		Diagnostics: len(report.Diagnostics),
		Report:      report,
	})

	if j.exporter != nil && j.exporter.Enabled() {
		location, err := j.exporter.Export(ctx, report)
		if err != nil {
			// the report stays available locally; the next run uploads again
			j.log.Error().Err(err).Str("report_id", report.ID).Msg("Report export failed")
		} else {
			j.events.Emit("scheduler", &events.ReportExportedData{ReportID: report.ID, Location: location})
		}
	}

	j.log.Info().
		Str("report_id", report.ID).
		Int("holdings", len(report.Snapshot.Holdings)).
		Int("diagnostics", len(report.Diagnostics)).
		Dur("duration", time.Since(start)).
		Msg("Analytics refreshed")
	return nil
}
