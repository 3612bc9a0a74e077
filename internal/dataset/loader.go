package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

const (
	ColYear  = "year"
	ColMonth = "month"
	ColDay   = "day"
	ColHour  = "hour"
)

var timeColumns = []string{ColYear, ColMonth, ColDay, ColHour}

// Tokens read as a missing value, compared case-insensitively after trimming.
var nullTokens = map[string]bool{
	"":     true,
	"na":   true,
	"nan":  true,
	"null": true,
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Loader struct {
	fetcher Fetcher
	logger  *zap.Logger
	now     func() time.Time
}

// NewLoader returns a loader for local files. fetcher may be nil when no
// remote source is configured.
func NewLoader(fetcher Fetcher, logger *zap.Logger) *Loader {
	return &Loader{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (l *Loader) Load(ctx context.Context, source string) (*models.Dataset, error) {
	startTime := time.Now()

	data, err := l.read(ctx, source)
	if err != nil {
		l.logger.Error("Failed to read dataset",
			zap.String("source", source),
			zap.Error(err))
		return nil, err
	}

	ds, err := l.Parse(bytes.NewReader(data), source)
	if err != nil {
		l.logger.Error("Failed to parse dataset",
			zap.String("source", source),
			zap.Error(err))
		return nil, err
	}

	l.logger.Info("Dataset loaded",
		zap.String("source", source),
		zap.Int("rows", ds.Len()),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(startTime)))

	return ds, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if IsRemote(source) {
		if l.fetcher == nil {
			return nil, fmt.Errorf("%w: no client configured for %s", ErrIO, source)
		}
		data, err := l.fetcher.Fetch(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		return data, nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return data, nil
}

// Parse reads a station CSV. Every column is framed as a string so that
// malformed cells surface as ParseError instead of silently becoming NaN.
func (l *Loader) Parse(r io.Reader, source string) (*models.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Err: errors.New("missing header row")}
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{"NA", "NaN", "nan", "null", ""}),
	)
	if df.Err != nil {
		if headerOnly(df.Err) {
			header, herr := csv.NewReader(bytes.NewReader(data)).Read()
			if herr != nil {
				return nil, &ParseError{Err: herr}
			}
			if err := checkColumns(header); err != nil {
				return nil, err
			}
			return models.NewDataset(source, l.now(), nil), nil
		}
		return nil, &ParseError{Err: df.Err}
	}

	if err := checkColumns(df.Names()); err != nil {
		return nil, err
	}

	n := df.Nrow()
	timeCols := make(map[string][]string, len(timeColumns))
	for _, name := range timeColumns {
		timeCols[name] = df.Col(name).Records()
	}
	valueCols := make([][]string, len(models.AllVariables))
	for i, v := range models.AllVariables {
		valueCols[i] = df.Col(string(v)).Records()
	}

	records := make([]models.Record, n)
	for i := 0; i < n; i++ {
		line := i + 2
		rec := &records[i]

		fields := [4]*int{&rec.Year, &rec.Month, &rec.Day, &rec.Hour}
		for j, name := range timeColumns {
			val, err := parseInt(timeCols[name][i])
			if err != nil {
				return nil, &ParseError{Row: line, Column: name, Value: timeCols[name][i], Err: err}
			}
			*fields[j] = val
		}

		t, err := recordTime(rec.Year, rec.Month, rec.Day, rec.Hour)
		if err != nil {
			return nil, &ParseError{Row: line, Column: ColDay, Value: fmt.Sprintf("%d-%d-%d %d", rec.Year, rec.Month, rec.Day, rec.Hour), Err: err}
		}
		rec.Time = t

		for j, v := range models.AllVariables {
			f, err := parseFloat(valueCols[j][i])
			if err != nil {
				return nil, &ParseError{Row: line, Column: string(v), Value: valueCols[j][i], Err: err}
			}
			rec.Values[j] = f
		}
	}

	return models.NewDataset(source, l.now(), records), nil
}

func headerOnly(err error) bool {
	return strings.Contains(err.Error(), "empty DataFrame")
}

func checkColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}

	var missing []string
	for _, name := range timeColumns {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	for _, v := range models.AllVariables {
		if !present[string(v)] {
			missing = append(missing, string(v))
		}
	}
	if len(missing) > 0 {
		return &ParseError{Err: fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))}
	}
	return nil
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if nullTokens[strings.ToLower(s)] {
		return 0, errors.New("timestamp component is missing")
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	// Some exports write integral columns as 2013.0.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer")
	}
	return int(f), nil
}

func parseFloat(s string) (models.Float, error) {
	s = strings.TrimSpace(s)
	if nullTokens[strings.ToLower(s)] {
		return models.Null(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		// ParseFloat returns ±Inf with ErrRange for overflowing literals; keep them.
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return models.Some(f), nil
		}
		return models.Float{}, fmt.Errorf("not a number")
	}
	return models.Some(f), nil
}

func recordTime(year, month, day, hour int) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range", month)
	}
	if hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("hour %d out of range", hour)
	}
	t := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("day %d is not a valid day of %d-%02d", day, year, month)
	}
	return t, nil
}
