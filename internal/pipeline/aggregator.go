package pipeline

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

// MonthlyMeans groups rows by month number and averages every variable
// within each group. Months without rows are omitted; rows are in ascending
// month order. Non-finite values are skipped, so a group whose values are all
// missing for a variable reports null for it.
func MonthlyMeans(ds *models.Dataset, vars []models.Variable) models.MonthlyAggregate {
	vars = validVariables(vars)
	agg := models.MonthlyAggregate{
		Variables: vars,
		Rows:      []models.MonthlyMean{},
	}
	if ds.Len() == 0 || len(vars) == 0 {
		return agg
	}

	groups := make(map[int][]int)
	for i := 0; i < ds.Len(); i++ {
		m := ds.At(i).Month
		groups[m] = append(groups[m], i)
	}

	months := make([]int, 0, len(groups))
	for m := range groups {
		months = append(months, m)
	}
	sort.Ints(months)

	for _, m := range months {
		rows := groups[m]
		means := make([]models.Float, len(vars))
		for j, v := range vars {
			values := make([]float64, 0, len(rows))
			for _, i := range rows {
				if f := ds.At(i).Value(v); f.Finite() {
					values = append(values, f.Value)
				}
			}
			if len(values) == 0 {
				means[j] = models.Null()
				continue
			}
			means[j] = models.Some(stat.Mean(values, nil))
		}
		agg.Rows = append(agg.Rows, models.MonthlyMean{
			Month: m,
			Count: len(rows),
			Means: means,
		})
	}

	return agg
}

// Correlate computes the pairwise Pearson correlation of vars over the rows
// in which all of vars are finite. Pairs involving a zero-variance variable
// are null; with fewer than two rows the whole matrix is unavailable.
func Correlate(ds *models.Dataset, vars []models.Variable) models.CorrelationMatrix {
	vars = validVariables(vars)
	k := len(vars)

	matrix := models.CorrelationMatrix{
		Variables: vars,
		Values:    make([][]models.Float, k),
	}
	for i := range matrix.Values {
		matrix.Values[i] = make([]models.Float, k)
	}

	columns := make([][]float64, k)
	for i := 0; i < ds.Len(); i++ {
		rec := ds.At(i)
		complete := true
		for _, v := range vars {
			if !rec.Value(v).Finite() {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for j, v := range vars {
			columns[j] = append(columns[j], rec.Value(v).Value)
		}
	}

	n := 0
	if k > 0 {
		n = len(columns[0])
	}
	matrix.Rows = n
	if n < 2 || k == 0 {
		return matrix
	}
	matrix.Available = true

	varying := make([]bool, k)
	for j := range columns {
		varying[j] = !constant(columns[j])
	}

	for a := 0; a < k; a++ {
		if !varying[a] {
			continue
		}
		matrix.Values[a][a] = models.Some(1)
		for b := a + 1; b < k; b++ {
			if !varying[b] {
				continue
			}
			r := stat.Correlation(columns[a], columns[b], nil)
			if math.IsNaN(r) {
				continue
			}
			r = math.Max(-1, math.Min(1, r))
			matrix.Values[a][b] = models.Some(r)
			matrix.Values[b][a] = models.Some(r)
		}
	}

	return matrix
}

func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
