package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

type countingLoader struct {
	inner DatasetLoader
	calls int32
	delay time.Duration
}

func (l *countingLoader) Load(ctx context.Context, source string) (*models.Dataset, error) {
	atomic.AddInt32(&l.calls, 1)
	time.Sleep(l.delay)
	return l.inner.Load(ctx, source)
}

func TestStore_LazyLoadOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wanliu.csv")
	writeCSV(t, path, "2014,1,2,3,4,5,6,7,8,9,10")

	loader := &countingLoader{inner: NewLoader(nil, zap.NewNop()), delay: 20 * time.Millisecond}
	store := NewStore(loader, path, zap.NewNop())
	assert.False(t, store.Loaded())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, version, err := store.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 1, ds.Len())
			assert.Equal(t, uint64(1), version)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))
	assert.True(t, store.Loaded())
}

func TestStore_FailedLoadIsRetried(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wanliu.csv")
	store := NewStore(NewLoader(nil, zap.NewNop()), path, zap.NewNop())

	_, _, err := store.Get(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))
	assert.Contains(t, store.GetStats(), "last_error")

	writeCSV(t, path, "2014,1,2,3,4,5,6,7,8,9,10")
	ds, version, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, uint64(1), version)
}

func TestStore_ReloadSwapsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wanliu.csv")
	writeCSV(t, path, "2014,1,2,3,4,5,6,7,8,9,10")
	store := NewStore(NewLoader(nil, zap.NewNop()), path, zap.NewNop())

	old, _, err := store.Get(context.Background())
	require.NoError(t, err)

	writeCSV(t, path, "2014,1,2,3,4,5,6,7,8,9,10", "2014,1,2,4,4,5,6,7,8,9,10")
	require.NoError(t, store.Reload(context.Background()))

	current, version, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	assert.Equal(t, 2, current.Len())
	assert.Equal(t, 1, old.Len(), "previous snapshot must stay intact")
}

func TestStore_ReloadFailureKeepsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wanliu.csv")
	writeCSV(t, path, "2014,1,2,3,4,5,6,7,8,9,10")
	store := NewStore(NewLoader(nil, zap.NewNop()), path, zap.NewNop())

	_, _, err := store.Get(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("garbage\n1,2\n"), 0644))
	err = store.Reload(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)

	ds, version, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
	assert.Equal(t, 1, ds.Len())
}

func TestStore_Modified(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wanliu.csv")
	writeCSV(t, path, "2014,1,2,3,4,5,6,7,8,9,10")
	store := NewStore(NewLoader(nil, zap.NewNop()), path, zap.NewNop())

	modified, err := store.Modified()
	require.NoError(t, err)
	assert.False(t, modified, "unloaded store reports unmodified")

	_, _, err = store.Get(context.Background())
	require.NoError(t, err)

	modified, err = store.Modified()
	require.NoError(t, err)
	assert.False(t, modified)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	modified, err = store.Modified()
	require.NoError(t, err)
	assert.True(t, modified)
}

func TestStore_RemoteNeverModified(t *testing.T) {
	store := NewStore(NewLoader(&stubFetcher{}, zap.NewNop()), "https://example.org/x.csv", zap.NewNop())

	modified, err := store.Modified()
	require.NoError(t, err)
	assert.False(t, modified)
}

type gatedLoader struct {
	release chan struct{}
	started chan struct{}
	ctxErr  atomic.Value
}

func (l *gatedLoader) Load(ctx context.Context, source string) (*models.Dataset, error) {
	close(l.started)
	<-l.release
	if err := ctx.Err(); err != nil {
		l.ctxErr.Store(err)
		return nil, err
	}
	return models.NewDataset(source, time.Now(), []models.Record{{Year: 2014, Month: 1, Day: 1}}), nil
}

func TestStore_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	loader := &gatedLoader{release: make(chan struct{}), started: make(chan struct{})}
	store := NewStore(loader, "wanliu.csv", zap.NewNop())

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := store.Get(first)
		firstErr <- err
	}()
	<-loader.started

	type result struct {
		ds  *models.Dataset
		err error
	}
	second := make(chan result, 1)
	go func() {
		ds, _, err := store.Get(context.Background())
		second <- result{ds: ds, err: err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(loader.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 1, got.ds.Len())
	assert.Nil(t, loader.ctxErr.Load())
	assert.True(t, store.Loaded())
}
