package pipeline

import (
	"sort"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

// FenceMultiplier scales the IQR on both sides of the quartiles.
const FenceMultiplier = 1.5

// RemoveMissing drops every row in which any of vars is null, NaN or
// infinite. The returned counts are taken per variable before removal.
func RemoveMissing(ds *models.Dataset, vars []models.Variable) (*models.Dataset, map[models.Variable]int) {
	vars = validVariables(vars)
	counts := make(map[models.Variable]int, len(vars))
	for _, v := range vars {
		counts[v] = 0
	}

	kept := make([]models.Record, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		rec := ds.At(i)
		complete := true
		for _, v := range vars {
			if !rec.Value(v).Finite() {
				counts[v]++
				complete = false
			}
		}
		if complete {
			kept = append(kept, rec)
		}
	}

	return ds.Derive(kept), counts
}

// ComputeFences computes the IQR fence of each variable over the finite
// values of ds. Variables without any finite value get no fence.
func ComputeFences(ds *models.Dataset, vars []models.Variable) map[models.Variable]models.Fence {
	vars = validVariables(vars)
	fences := make(map[models.Variable]models.Fence, len(vars))

	for _, v := range vars {
		values := make([]float64, 0, ds.Len())
		for i := 0; i < ds.Len(); i++ {
			if f := ds.At(i).Value(v); f.Finite() {
				values = append(values, f.Value)
			}
		}
		if len(values) == 0 {
			continue
		}

		sort.Float64s(values)
		q1 := sortedQuantile(values, 0.25)
		q3 := sortedQuantile(values, 0.75)
		iqr := q3 - q1
		fences[v] = models.Fence{
			Q1:    q1,
			Q3:    q3,
			IQR:   iqr,
			Lower: q1 - FenceMultiplier*iqr,
			Upper: q3 + FenceMultiplier*iqr,
		}
	}

	return fences
}

// ApplyFences drops a row when ANY of vars lies outside its fence. A
// variable without a fence does not constrain rows.
func ApplyFences(ds *models.Dataset, vars []models.Variable, fences map[models.Variable]models.Fence) *models.Dataset {
	vars = validVariables(vars)

	kept := make([]models.Record, 0, ds.Len())
rows:
	for i := 0; i < ds.Len(); i++ {
		rec := ds.At(i)
		for _, v := range vars {
			fence, ok := fences[v]
			if !ok {
				continue
			}
			val := rec.Value(v)
			if !val.Finite() || !fence.Contains(val.Value) {
				continue rows
			}
		}
		kept = append(kept, rec)
	}

	return ds.Derive(kept)
}

func RemoveOutliers(ds *models.Dataset, vars []models.Variable) (*models.Dataset, map[models.Variable]models.Fence) {
	fences := ComputeFences(ds, vars)
	return ApplyFences(ds, vars, fences), fences
}

// Clean runs missing-value removal followed by outlier removal.
func Clean(ds *models.Dataset, vars []models.Variable) models.CleanedDataset {
	complete, missing := RemoveMissing(ds, vars)
	cleaned, fences := RemoveOutliers(complete, vars)

	return models.CleanedDataset{
		Data: cleaned,
		Report: models.CleaningReport{
			MissingCounts: missing,
			RowsInput:     ds.Len(),
			RowsBefore:    complete.Len(),
			RowsAfter:     cleaned.Len(),
			Fences:        fences,
		},
	}
}

func validVariables(vars []models.Variable) []models.Variable {
	out := make([]models.Variable, 0, len(vars))
	seen := make(map[models.Variable]bool, len(vars))
	for _, v := range vars {
		if v.Valid() && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
