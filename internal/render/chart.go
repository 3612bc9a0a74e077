package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data")

const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

var seriesColors = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	chart.ColorOrange,
	chart.ColorAlternateGray,
	chart.ColorCyan,
	chart.ColorAlternateYellow,
}

type ChartOptions struct {
	Width  int
	Height int
	Title  string
}

func (o ChartOptions) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

// MonthlyTrendPNG draws one line per variable across the aggregated months.
// Null means are left out of their line.
func MonthlyTrendPNG(w io.Writer, agg models.MonthlyAggregate, opts ChartOptions) error {
	if len(agg.Rows) == 0 || len(agg.Variables) == 0 {
		return ErrNoData
	}

	yMin, yMax := math.Inf(1), math.Inf(-1)
	series := make([]chart.Series, 0, len(agg.Variables))
	for j, v := range agg.Variables {
		xs := make([]float64, 0, len(agg.Rows))
		ys := make([]float64, 0, len(agg.Rows))
		for _, row := range agg.Rows {
			mean := row.Means[j]
			if !mean.Finite() {
				continue
			}
			xs = append(xs, float64(row.Month))
			ys = append(ys, mean.Value)
			yMin = math.Min(yMin, mean.Value)
			yMax = math.Max(yMax, mean.Value)
		}
		if len(xs) == 0 {
			continue
		}

		col := seriesColors[j%len(seriesColors)]
		series = append(series, chart.ContinuousSeries{
			Name: string(v),
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    4,
			},
			XValues: xs,
			YValues: ys,
		})
	}
	if len(series) == 0 {
		return ErrNoData
	}

	first, last := agg.Rows[0].Month, agg.Rows[len(agg.Rows)-1].Month
	ticks := make([]chart.Tick, 0, len(agg.Rows))
	for _, row := range agg.Rows {
		ticks = append(ticks, chart.Tick{
			Value: float64(row.Month),
			Label: time.Month(row.Month).String()[:3],
		})
	}

	// go-chart rejects zero-width ranges, so single months and flat lines get padding.
	pad := (yMax - yMin) * 0.1
	if pad == 0 {
		pad = math.Max(1, math.Abs(yMax)*0.1)
	}

	title := opts.Title
	if title == "" {
		title = "Monthly mean"
	}
	width, height := opts.size()

	ch := chart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  "Month",
			Ticks: ticks,
			Range: &chart.ContinuousRange{Min: float64(first) - 0.5, Max: float64(last) + 0.5},
		},
		YAxis: chart.YAxis{
			Name:  "Mean",
			Range: &chart.ContinuousRange{Min: yMin - pad, Max: yMax + pad},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render monthly chart: %w", err)
	}
	return nil
}
