package models

import (
	"time"
)

type Fence struct {
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	IQR   float64 `json:"iqr"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

func (f Fence) Contains(v float64) bool {
	return v >= f.Lower && v <= f.Upper
}

type CleaningReport struct {
	MissingCounts map[Variable]int   `json:"missing_counts"`
	RowsInput     int                `json:"rows_input"`
	RowsBefore    int                `json:"rows_before"`
	RowsAfter     int                `json:"rows_after"`
	Fences        map[Variable]Fence `json:"fences"`
}

type CleanedDataset struct {
	Data   *Dataset
	Report CleaningReport
}

type MonthlyMean struct {
	Month int     `json:"month"`
	Count int     `json:"count"`
	Means []Float `json:"means"`
}

// MonthlyAggregate rows are in ascending month order; Means align with Variables.
type MonthlyAggregate struct {
	Variables []Variable    `json:"variables"`
	Rows      []MonthlyMean `json:"rows"`
}

func (m MonthlyAggregate) Mean(month int, v Variable) (Float, bool) {
	col := -1
	for i, mv := range m.Variables {
		if mv == v {
			col = i
			break
		}
	}
	if col < 0 {
		return Float{}, false
	}
	for _, row := range m.Rows {
		if row.Month == month {
			return row.Means[col], true
		}
	}
	return Float{}, false
}

type CorrelationMatrix struct {
	Variables []Variable `json:"variables"`
	Values    [][]Float  `json:"values"`
	Available bool       `json:"available"`
	Rows      int        `json:"rows"`
}

func (c CorrelationMatrix) Get(a, b Variable) Float {
	ia, ib := -1, -1
	for i, v := range c.Variables {
		if v == a {
			ia = i
		}
		if v == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return Float{}
	}
	return c.Values[ia][ib]
}

type Result struct {
	Spec           FilterSpec        `json:"spec"`
	DatasetVersion uint64            `json:"dataset_version"`
	FilteredRows   int               `json:"filtered_rows"`
	Preview        []Record          `json:"preview"`
	Cleaning       CleaningReport    `json:"cleaning"`
	Monthly        MonthlyAggregate  `json:"monthly"`
	Correlation    CorrelationMatrix `json:"correlation"`
	Warnings       []string          `json:"warnings"`
	Empty          bool              `json:"empty"`
}

type VariableSummary struct {
	Variable    Variable `json:"variable"`
	Description string   `json:"description"`
	Min         Float    `json:"min"`
	Max         Float    `json:"max"`
	NullCount   int      `json:"null_count"`
}

type DatasetSummary struct {
	Source    string            `json:"source"`
	Version   uint64            `json:"version"`
	Rows      int               `json:"rows"`
	First     time.Time         `json:"first"`
	Last      time.Time         `json:"last"`
	LoadedAt  time.Time         `json:"loaded_at"`
	Variables []VariableSummary `json:"variables"`
}
