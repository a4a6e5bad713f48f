package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-analytics/internal/modules/insights"
	"github.com/aristath/portfolio-analytics/internal/modules/portfolio"
)

// Document is the exported object: the full report plus the insight
// payload and prompt built from it
type Document struct {
	ExportedAt time.Time        `json:"exported_at"`
	Report     portfolio.Report `json:"report"`
	Insights   insights.Payload `json:"insights"`
	Prompt     string           `json:"prompt"`
}

// ExportInfo describes one exported report
type ExportInfo struct {
	Key       string    `json:"key"`
	AsOf      time.Time `json:"as_of"`
	SizeBytes int64     `json:"size_bytes"`
}

// Exporter writes reports to <prefix>/<as_of>/<id>.json. An exporter
// without a store is disabled and every call is a no-op.
type Exporter struct {
	store  ObjectStore
	prefix string
	log    zerolog.Logger
}

// NewExporter creates a new exporter. store may be nil.
func NewExporter(store ObjectStore, prefix string, log zerolog.Logger) *Exporter {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "reports"
	}
	return &Exporter{
		store:  store,
		prefix: prefix,
		log:    log.With().Str("service", "export").Logger(),
	}
}

// Enabled reports whether exports are uploaded anywhere
func (e *Exporter) Enabled() bool {
	return e.store != nil
}

// Key returns the object key of a report
func (e *Exporter) Key(report portfolio.Report) string {
	return path.Join(e.prefix, report.Snapshot.AsOf.UTC().Format("2006-01-02"), report.ID+".json")
}

// Export uploads report and returns its location, or "" when disabled
func (e *Exporter) Export(ctx context.Context, report portfolio.Report) (string, error) {
	if !e.Enabled() {
		return "", nil
	}
	if report.ID == "" {
		return "", fmt.Errorf("report has no id")
	}

	payload := insights.BuildPayload(report)
	doc := Document{
		ExportedAt: time.Now().UTC(),
		Report:     report,
		Insights:   payload,
		Prompt:     insights.Prompt(payload),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report %s: %w", report.ID, err)
	}

	key := e.Key(report)
	location, err := e.store.Upload(ctx, key, bytes.NewReader(data), "application/json")
	if err != nil {
		return "", fmt.Errorf("failed to export report %s: %w", report.ID, err)
	}

	e.log.Info().
		Str("report_id", report.ID).
		Str("key", key).
		Int("size_bytes", len(data)).
		Msg("Report exported")
	return location, nil
}

// List returns exported reports, newest first
func (e *Exporter) List(ctx context.Context) ([]ExportInfo, error) {
	if !e.Enabled() {
		return []ExportInfo{}, nil
	}

	objects, err := e.store.List(ctx, e.prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	out := make([]ExportInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil || !strings.HasSuffix(*obj.Key, ".json") {
			continue
		}
		// <prefix>/<date>/<id>.json
		rel := strings.TrimPrefix(*obj.Key, e.prefix+"/")
		date, _, ok := strings.Cut(rel, "/")
		if !ok {
			continue
		}
		asOf, err := time.Parse("2006-01-02", date)
		if err != nil {
			e.log.Warn().Str("key", *obj.Key).Msg("Failed to parse date from export key")
			continue
		}
		info := ExportInfo{Key: *obj.Key, AsOf: asOf}
		if obj.Size != nil {
			info.SizeBytes = *obj.Size
		}
		out = append(out, info)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AsOf.Equal(out[j].AsOf) {
			return out[i].Key > out[j].Key
		}
		return out[i].AsOf.After(out[j].AsOf)
	})
	return out, nil
}

// Rotate deletes exports older than retentionDays, always keeping the newest
// keep exports
func (e *Exporter) Rotate(ctx context.Context, retentionDays, keep int) (int, error) {
	if !e.Enabled() || retentionDays <= 0 {
		return 0, nil
	}

	exports, err := e.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, info := range exports {
		if i < keep || !info.AsOf.Before(cutoff) {
			continue
		}
		if err := e.store.Delete(ctx, info.Key); err != nil {
			e.log.Error().Err(err).Str("key", info.Key).Msg("Failed to delete old export")
			continue
		}
		deleted++
	}

	e.log.Info().Int("deleted", deleted).Int("remaining", len(exports)-deleted).Msg("Export rotation completed")
	return deleted, nil
}
