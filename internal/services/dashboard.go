package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
	"github.com/bobby-s-dev/air-quality-dashboard/internal/pipeline"
)

var ErrInvalidSpec = errors.New("invalid filter")

type DatasetStore interface {
	Get(ctx context.Context) (*models.Dataset, uint64, error)
	Reload(ctx context.Context) error
	Modified() (bool, error)
	LastLoadTime() time.Time
	GetStats() map[string]interface{}
}

type Options struct {
	PreviewRows   int
	CacheDuration time.Duration
	MaxCacheSize  int
}

// Dashboard answers filter requests against the shared dataset snapshot.
type Dashboard struct {
	store       DatasetStore
	cache       *ResultCache
	metrics     *Metrics
	validate    *validator.Validate
	logger      *zap.Logger
	previewRows int

	mu             sync.RWMutex
	lastRunTime    time.Time
	successCount   int
	failureCount   int
	summary        *models.DatasetSummary
	summaryVersion uint64
}

func NewDashboard(store DatasetStore, opts Options, metrics *Metrics, logger *zap.Logger) *Dashboard {
	if opts.PreviewRows < 0 {
		opts.PreviewRows = pipeline.DefaultPreviewRows
	}
	if opts.MaxCacheSize <= 0 {
		opts.MaxCacheSize = 256
	}
	if opts.CacheDuration <= 0 {
		opts.CacheDuration = 10 * time.Minute
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	return &Dashboard{
		store:       store,
		cache:       NewResultCache(opts.CacheDuration, opts.MaxCacheSize, logger),
		metrics:     metrics,
		validate:    validator.New(),
		logger:      logger,
		previewRows: opts.PreviewRows,
	}
}

func (d *Dashboard) Cache() *ResultCache {
	return d.cache
}

func (d *Dashboard) Metrics() *Metrics {
	return d.metrics
}

func (d *Dashboard) DefaultPreviewRows() int {
	return d.previewRows
}

// Run filters, cleans and aggregates the current dataset. A negative
// previewRows uses the configured default. Empty results are not errors.
func (d *Dashboard) Run(ctx context.Context, spec models.FilterSpec, previewRows int) (pipeline.Output, error) {
	if err := d.validate.Struct(spec); err != nil {
		d.metrics.pipelineRuns.WithLabelValues(OutcomeInvalid).Inc()
		return pipeline.Output{}, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if previewRows < 0 {
		previewRows = d.previewRows
	}

	ds, version, err := d.store.Get(ctx)
	if err != nil {
		d.recordRun(false)
		d.logger.Error("Failed to get dataset", zap.Error(err))
		return pipeline.Output{}, err
	}
	d.metrics.datasetRows.Set(float64(ds.Len()))

	spec = spec.Canonical()
	key, err := CacheKey(version, spec, previewRows)
	if err != nil {
		d.recordRun(false)
		return pipeline.Output{}, err
	}

	if cached, ok := d.cache.Get(key); ok {
		d.logger.Debug("Cache hit for dashboard", zap.String("key", key))
		d.metrics.cacheHits.Inc()
		d.recordRun(true)
		return cached, nil
	}

	startTime := time.Now()
	out := pipeline.Run(ds, spec, pipeline.Options{
		PreviewRows: previewRows,
		Version:     version,
	})
	duration := time.Since(startTime)

	d.metrics.pipelineDuration.Observe(duration.Seconds())
	report := out.Result.Cleaning
	d.metrics.rowsRemoved.WithLabelValues("filter").Add(float64(ds.Len() - out.Result.FilteredRows))
	d.metrics.rowsRemoved.WithLabelValues("missing").Add(float64(report.RowsInput - report.RowsBefore))
	d.metrics.rowsRemoved.WithLabelValues("outliers").Add(float64(report.RowsBefore - report.RowsAfter))

	d.cache.Set(key, out)
	d.recordRun(true)

	d.logger.Info("Dashboard pipeline completed",
		zap.Uint64("dataset_version", version),
		zap.Int("rows", ds.Len()),
		zap.Int("filtered", out.Result.FilteredRows),
		zap.Int("cleaned", report.RowsAfter),
		zap.Strings("warnings", out.Result.Warnings),
		zap.Duration("duration", duration))

	return out, nil
}

func (d *Dashboard) recordRun(ok bool) {
	outcome := OutcomeSuccess
	d.mu.Lock()
	d.lastRunTime = time.Now()
	if ok {
		d.successCount++
	} else {
		d.failureCount++
		outcome = OutcomeFailure
	}
	d.mu.Unlock()
	d.metrics.pipelineRuns.WithLabelValues(outcome).Inc()
}

// Summary describes the current dataset; it is computed once per version.
func (d *Dashboard) Summary(ctx context.Context) (models.DatasetSummary, error) {
	ds, version, err := d.store.Get(ctx)
	if err != nil {
		return models.DatasetSummary{}, err
	}

	d.mu.RLock()
	if d.summary != nil && d.summaryVersion == version {
		summary := *d.summary
		d.mu.RUnlock()
		return summary, nil
	}
	d.mu.RUnlock()

	summary := Summarize(ds, version)

	d.mu.Lock()
	d.summary = &summary
	d.summaryVersion = version
	d.mu.Unlock()

	return summary, nil
}

// Summarize computes per-variable bounds and null counts over ds.
func Summarize(ds *models.Dataset, version uint64) models.DatasetSummary {
	summary := models.DatasetSummary{
		Source:    ds.Source(),
		Version:   version,
		Rows:      ds.Len(),
		LoadedAt:  ds.LoadedAt(),
		Variables: make([]models.VariableSummary, 0, len(models.AllVariables)),
	}
	if ds.Len() > 0 {
		summary.First = ds.At(0).Time
		summary.Last = ds.At(ds.Len() - 1).Time
	}

	for _, v := range models.AllVariables {
		vs := models.VariableSummary{Variable: v, Description: v.Description()}
		for i := 0; i < ds.Len(); i++ {
			f := ds.At(i).Value(v)
			if !f.Finite() {
				vs.NullCount++
				continue
			}
			if !vs.Min.Valid || f.Value < vs.Min.Value {
				vs.Min = models.Some(f.Value)
			}
			if !vs.Max.Valid || f.Value > vs.Max.Value {
				vs.Max = models.Some(f.Value)
			}
		}
		summary.Variables = append(summary.Variables, vs)
	}

	for i := 0; i < ds.Len(); i++ {
		t := ds.At(i).Time
		if t.Before(summary.First) {
			summary.First = t
		}
		if t.After(summary.Last) {
			summary.Last = t
		}
	}
	return summary
}

// Reload re-reads the dataset and drops every cached result.
func (d *Dashboard) Reload(ctx context.Context) error {
	startTime := time.Now()
	if err := d.store.Reload(ctx); err != nil {
		d.metrics.datasetReloads.WithLabelValues(OutcomeFailure).Inc()
		d.logger.Error("Dataset reload failed", zap.Error(err))
		return err
	}

	d.metrics.datasetReloads.WithLabelValues(OutcomeSuccess).Inc()
	d.cache.Purge()

	if ds, _, err := d.store.Get(ctx); err == nil {
		d.metrics.datasetRows.Set(float64(ds.Len()))
	}

	d.logger.Info("Dataset reloaded", zap.Duration("duration", time.Since(startTime)))
	return nil
}

// ReloadIfModified reloads only when the store reports a newer source.
func (d *Dashboard) ReloadIfModified(ctx context.Context) (bool, error) {
	modified, err := d.store.Modified()
	if err != nil {
		return false, err
	}
	if !modified {
		return false, nil
	}
	if err := d.Reload(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Dashboard) LastLoadTime() time.Time {
	return d.store.LastLoadTime()
}

func (d *Dashboard) GetLastRunTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastRunTime
}

func (d *Dashboard) GetStats() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return map[string]interface{}{
		"last_run_time": d.lastRunTime,
		"success_count": d.successCount,
		"failure_count": d.failureCount,
		"preview_rows":  d.previewRows,
		"dataset":       d.store.GetStats(),
		"cache_stats":   d.cache.GetStats(),
	}
}
