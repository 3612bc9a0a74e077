package pipeline

import (
	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

const DefaultPreviewRows = 5

const (
	WarnFilterEmpty            = "filter produced no rows"
	WarnCleaningEmpty          = "cleaning produced no rows"
	WarnCorrelationUnavailable = "correlation unavailable"
)

type Options struct {
	PreviewRows int
	Version     uint64
}

// Output carries the JSON-facing result together with the intermediate
// datasets needed by exporters.
type Output struct {
	Result   models.Result
	Filtered *models.Dataset
	Cleaned  *models.Dataset
}

// Run executes Filter, Clean and Aggregate once. It is a pure function of
// its arguments.
func Run(ds *models.Dataset, spec models.FilterSpec, opts Options) Output {
	spec = spec.Canonical()
	vars := validVariables(spec.Variables)

	filtered := Filter(ds, spec)
	cleaned := Clean(filtered, vars)

	result := models.Result{
		Spec:           spec,
		DatasetVersion: opts.Version,
		FilteredRows:   filtered.Len(),
		Preview:        cleaned.Data.Head(opts.PreviewRows),
		Cleaning:       cleaned.Report,
		Monthly:        MonthlyMeans(cleaned.Data, vars),
		Correlation:    Correlate(cleaned.Data, vars),
		Warnings:       []string{},
		Empty:          cleaned.Data.Len() == 0,
	}

	if filtered.Len() == 0 {
		result.Warnings = append(result.Warnings, WarnFilterEmpty)
	} else if cleaned.Data.Len() == 0 {
		result.Warnings = append(result.Warnings, WarnCleaningEmpty)
	}
	if !result.Correlation.Available {
		result.Warnings = append(result.Warnings, WarnCorrelationUnavailable)
	}

	return Output{
		Result:   result,
		Filtered: filtered,
		Cleaned:  cleaned.Data,
	}
}
