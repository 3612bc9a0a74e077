package pipeline

import (
	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

// Filter keeps the rows that satisfy every predicate of spec. It never fails:
// contradictory or empty selections simply yield an empty dataset.
func Filter(ds *models.Dataset, spec models.FilterSpec) *models.Dataset {
	if ds.Len() == 0 || len(spec.Months) == 0 || len(spec.Variables) == 0 {
		return ds.Derive([]models.Record{})
	}

	type bound struct {
		index int
		rng   models.Range
	}
	// Ranges constrain rows whether or not their variable is selected.
	var bounds []bound
	for _, v := range models.AllVariables {
		rng, ok := spec.Ranges[v]
		if !ok {
			continue
		}
		if !rng.Valid() {
			return ds.Derive([]models.Record{})
		}
		bounds = append(bounds, bound{index: v.Index(), rng: rng})
	}

	months := make(map[int]bool, len(spec.Months))
	for _, m := range spec.Months {
		months[m] = true
	}

	kept := make([]models.Record, 0, ds.Len())
rows:
	for i := 0; i < ds.Len(); i++ {
		rec := ds.At(i)

		if !spec.Start.IsZero() && rec.Time.Before(spec.Start) {
			continue
		}
		if !spec.End.IsZero() && rec.Time.After(spec.End) {
			continue
		}
		if !months[rec.Month] {
			continue
		}
		for _, b := range bounds {
			val := rec.Values[b.index]
			if !val.Finite() || !b.rng.Contains(val.Value) {
				continue rows
			}
		}
		kept = append(kept, rec)
	}

	return ds.Derive(kept)
}
