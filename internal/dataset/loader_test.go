package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

const header = "year,month,day,hour,PM2.5,PM10,TEMP,PRES,DEWP,RAIN,WSPM\n"

type stubFetcher struct {
	data []byte
	err  error
	urls []string
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	return f.data, f.err
}

func TestLoader_LoadSampleFile(t *testing.T) {
	loader := NewLoader(nil, zap.NewNop())

	ds, err := loader.Load(context.Background(), filepath.Join("testdata", "wanliu_sample.csv"))
	require.NoError(t, err)
	require.Equal(t, 6, ds.Len())

	first := ds.At(0)
	assert.Equal(t, time.Date(2013, 3, 1, 0, 0, 0, 0, time.UTC), first.Time)
	assert.Equal(t, models.Some(8), first.Value(models.PM25))
	assert.Equal(t, models.Some(-0.7), first.Value(models.TEMP))
	assert.Equal(t, models.Some(4.4), first.Value(models.WSPM))

	assert.False(t, ds.At(4).Value(models.PM25).Valid, "NA must load as null")
	assert.False(t, ds.At(5).Value(models.PM10).Valid)
	assert.Equal(t, 4, ds.At(5).Month)
	assert.Equal(t, filepath.Join("testdata", "wanliu_sample.csv"), ds.Source())
}

func TestLoader_Parse(t *testing.T) {
	loader := NewLoader(nil, zap.NewNop())

	tests := []struct {
		name       string
		input      string
		wantRows   int
		wantErr    error
		wantColumn string
		wantRow    int
	}{
		{
			name:     "empty and NA cells are null",
			input:    header + "2014,1,2,3,,NA,1,2,3,4,5\n",
			wantRows: 1,
		},
		{
			name:     "header only is an empty dataset",
			input:    header,
			wantRows: 0,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: ErrParse,
		},
		{
			name:    "missing required column",
			input:   "year,month,day,hour,PM2.5\n2014,1,1,0,3\n",
			wantErr: ErrParse,
		},
		{
			name:       "non numeric pollutant",
			input:      header + "2014,1,2,3,4,5,6,7,8,9,10\n2014,1,2,4,abc,5,6,7,8,9,10\n",
			wantErr:    ErrParse,
			wantColumn: "PM2.5",
			wantRow:    3,
		},
		{
			name:       "missing hour",
			input:      header + "2014,1,2,NA,4,5,6,7,8,9,10\n",
			wantErr:    ErrParse,
			wantColumn: "hour",
			wantRow:    2,
		},
		{
			name:       "impossible calendar day",
			input:      header + "2014,2,30,1,4,5,6,7,8,9,10\n",
			wantErr:    ErrParse,
			wantColumn: "day",
			wantRow:    2,
		},
		{
			name:       "month out of range",
			input:      header + "2014,13,1,1,4,5,6,7,8,9,10\n",
			wantErr:    ErrParse,
			wantColumn: "day",
			wantRow:    2,
		},
		{
			name:    "ragged row",
			input:   header + "2014,1,2,3,4\n",
			wantErr: ErrParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := loader.Parse(strings.NewReader(tt.input), "test.csv")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				if tt.wantColumn != "" {
					var parseErr *ParseError
					require.True(t, errors.As(err, &parseErr))
					assert.Equal(t, tt.wantColumn, parseErr.Column)
					assert.Equal(t, tt.wantRow, parseErr.Row)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantRows, ds.Len())
		})
	}
}

func TestLoader_ParseInfinity(t *testing.T) {
	loader := NewLoader(nil, zap.NewNop())

	ds, err := loader.Parse(strings.NewReader(header+"2014,1,2,3,inf,1e400,6,7,8,9,10\n"), "inf.csv")
	require.NoError(t, err)

	pm25 := ds.At(0).Value(models.PM25)
	assert.True(t, pm25.Valid)
	assert.False(t, pm25.Finite())
	assert.False(t, ds.At(0).Value(models.PM10).Finite())
}

func TestLoader_MissingFile(t *testing.T) {
	loader := NewLoader(nil, zap.NewNop())

	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
}

func TestLoader_Remote(t *testing.T) {
	fetcher := &stubFetcher{data: []byte(header + "2014,1,2,3,4,5,6,7,8,9,10\n")}
	loader := NewLoader(fetcher, zap.NewNop())

	ds, err := loader.Load(context.Background(), "https://example.org/wanliu.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, []string{"https://example.org/wanliu.csv"}, fetcher.urls)

	fetcher.err = errors.New("connection refused")
	_, err = loader.Load(context.Background(), "https://example.org/wanliu.csv")
	assert.ErrorIs(t, err, ErrIO)
}

func TestLoader_RemoteWithoutClient(t *testing.T) {
	loader := NewLoader(nil, zap.NewNop())

	_, err := loader.Load(context.Background(), "http://example.org/wanliu.csv")
	assert.ErrorIs(t, err, ErrIO)
}

func writeCSV(t *testing.T, path string, rows ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(header+strings.Join(rows, "\n")+"\n"), 0644))
}
