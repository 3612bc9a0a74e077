package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

type fakeStore struct {
	mu        sync.Mutex
	ds        *models.Dataset
	version   uint64
	getErr    error
	reloadErr error
	modified  bool
	gets      int
	reloads   int
}

func (s *fakeStore) Get(context.Context) (*models.Dataset, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, 0, s.getErr
	}
	return s.ds, s.version, nil
}

func (s *fakeStore) Reload(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	if s.reloadErr != nil {
		return s.reloadErr
	}
	s.version++
	s.modified = false
	return nil
}

func (s *fakeStore) Modified() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified, nil
}

func (s *fakeStore) LastLoadTime() time.Time { return time.Time{} }

func (s *fakeStore) GetStats() map[string]interface{} {
	return map[string]interface{}{"version": s.version}
}

func sampleDataset() *models.Dataset {
	records := make([]models.Record, 0, 24)
	for i := 0; i < 24; i++ {
		month := 1 + i%3
		rec := models.Record{
			Year:  2014,
			Month: month,
			Day:   1 + i,
			Hour:  0,
			Time:  time.Date(2014, time.Month(month), 1+i, 0, 0, 0, 0, time.UTC),
		}
		rec.Set(models.PM25, models.Some(float64(10+i)))
		rec.Set(models.PM10, models.Some(float64(20+2*i)))
		rec.Set(models.TEMP, models.Some(float64(i%5)))
		if i == 3 {
			rec.Set(models.TEMP, models.Null())
		}
		records = append(records, rec)
	}
	return models.NewDataset("sample.csv", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), records)
}

func newDashboard(store DatasetStore) *Dashboard {
	return NewDashboard(store, Options{PreviewRows: 5, CacheDuration: time.Minute, MaxCacheSize: 8}, NewMetrics(), zap.NewNop())
}

func TestDashboard_RunCachesPerVersion(t *testing.T) {
	store := &fakeStore{ds: sampleDataset(), version: 1}
	d := newDashboard(store)
	spec := models.FilterSpec{Months: []int{2, 1}, Variables: models.Pollutants}

	first, err := d.Run(context.Background(), spec, -1)
	require.NoError(t, err)
	assert.Len(t, first.Result.Preview, 5)
	assert.Equal(t, uint64(1), first.Result.DatasetVersion)
	assert.Equal(t, []int{1, 2}, first.Result.Spec.Months)

	reordered := models.FilterSpec{Months: []int{1, 2, 2}, Variables: []models.Variable{models.PM10, models.PM25}}
	second, err := d.Run(context.Background(), reordered, 5)
	require.NoError(t, err)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.cacheHits))

	require.NoError(t, d.Reload(context.Background()))
	assert.Equal(t, 0, d.Cache().Len())

	third, err := d.Run(context.Background(), spec, -1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), third.Result.DatasetVersion)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.cacheHits))
	assert.Equal(t, 3.0, testutil.ToFloat64(d.metrics.pipelineRuns.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 24.0, testutil.ToFloat64(d.metrics.datasetRows))
}

func TestDashboard_RunRejectsInvalidSpec(t *testing.T) {
	store := &fakeStore{ds: sampleDataset(), version: 1}
	d := newDashboard(store)

	tests := []struct {
		name string
		spec models.FilterSpec
	}{
		{name: "month out of range", spec: models.FilterSpec{Months: []int{13}, Variables: models.Pollutants}},
		{name: "unknown variable", spec: models.FilterSpec{Months: []int{1}, Variables: []models.Variable{"SO2"}}},
		{name: "range on unknown variable", spec: models.FilterSpec{
			Months:    []int{1},
			Variables: models.Pollutants,
			Ranges:    map[models.Variable]models.Range{"CO": {Low: 0, High: 1}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Run(context.Background(), tt.spec, -1)
			assert.ErrorIs(t, err, ErrInvalidSpec)
		})
	}
	assert.Equal(t, 0, store.gets, "invalid filters never touch the dataset")
}

func TestDashboard_RunEmptySelectionIsNotAnError(t *testing.T) {
	d := newDashboard(&fakeStore{ds: sampleDataset(), version: 1})

	out, err := d.Run(context.Background(), models.FilterSpec{Months: []int{7}, Variables: models.Pollutants}, -1)

	require.NoError(t, err)
	assert.True(t, out.Result.Empty)
	assert.NotEmpty(t, out.Result.Warnings)
}

func TestDashboard_RunPropagatesLoadErrors(t *testing.T) {
	loadErr := errors.New("disk gone")
	d := newDashboard(&fakeStore{getErr: loadErr})

	_, err := d.Run(context.Background(), models.DefaultFilterSpec(), -1)

	assert.ErrorIs(t, err, loadErr)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.pipelineRuns.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1, d.GetStats()["failure_count"])
}

func TestDashboard_Summary(t *testing.T) {
	store := &fakeStore{ds: sampleDataset(), version: 4}
	d := newDashboard(store)

	summary, err := d.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(4), summary.Version)
	assert.Equal(t, 24, summary.Rows)
	assert.Equal(t, time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC), summary.First)
	assert.Equal(t, time.Date(2014, 3, 24, 0, 0, 0, 0, time.UTC), summary.Last)
	require.Len(t, summary.Variables, len(models.AllVariables))

	pm25 := summary.Variables[0]
	assert.Equal(t, models.PM25, pm25.Variable)
	assert.Equal(t, models.Some(10), pm25.Min)
	assert.Equal(t, models.Some(33), pm25.Max)
	assert.Equal(t, 0, pm25.NullCount)
	assert.Equal(t, 1, summary.Variables[2].NullCount)
	assert.Equal(t, 24, summary.Variables[3].NullCount, "PRES is absent from the sample")
	assert.False(t, summary.Variables[3].Min.Valid)

	_, err = d.Summary(context.Background())
	require.NoError(t, err)
}

func TestDashboard_ReloadIfModified(t *testing.T) {
	store := &fakeStore{ds: sampleDataset(), version: 1}
	d := newDashboard(store)

	reloaded, err := d.ReloadIfModified(context.Background())
	require.NoError(t, err)
	assert.False(t, reloaded)

	store.modified = true
	reloaded, err = d.ReloadIfModified(context.Background())
	require.NoError(t, err)
	assert.True(t, reloaded)
	assert.Equal(t, 1, store.reloads)

	store.modified = true
	store.reloadErr = errors.New("bad csv")
	_, err = d.ReloadIfModified(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.datasetReloads.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.datasetReloads.WithLabelValues(OutcomeSuccess)))
}
