package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

const (
	SheetCleaned     = "Cleaned"
	SheetMonthly     = "Monthly"
	SheetCorrelation = "Correlation"
	SheetMissing     = "Missing"
)

const dateLayout = "2006-01-02 15:04"

func formatFloat(f models.Float) string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}

// Frame converts ds into a string-typed gota DataFrame with one column per
// time field and variable. Nulls are empty cells.
func Frame(ds *models.Dataset) dataframe.DataFrame {
	n := ds.Len()
	dates := make([]string, n)
	years := make([]string, n)
	months := make([]string, n)
	days := make([]string, n)
	hours := make([]string, n)
	values := make([][]string, len(models.AllVariables))
	for j := range values {
		values[j] = make([]string, n)
	}

	for i := 0; i < n; i++ {
		rec := ds.At(i)
		dates[i] = rec.Time.Format(dateLayout)
		years[i] = strconv.Itoa(rec.Year)
		months[i] = strconv.Itoa(rec.Month)
		days[i] = strconv.Itoa(rec.Day)
		hours[i] = strconv.Itoa(rec.Hour)
		for j := range models.AllVariables {
			values[j][i] = formatFloat(rec.Values[j])
		}
	}

	columns := []series.Series{
		series.New(dates, series.String, "date"),
		series.New(years, series.String, "year"),
		series.New(months, series.String, "month"),
		series.New(days, series.String, "day"),
		series.New(hours, series.String, "hour"),
	}
	for j, v := range models.AllVariables {
		columns = append(columns, series.New(values[j], series.String, string(v)))
	}
	return dataframe.New(columns...)
}

// WriteCSV writes ds with a header row, even when ds is empty.
func WriteCSV(w io.Writer, ds *models.Dataset) error {
	df := Frame(ds)
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes a workbook with the cleaned rows, monthly means, the
// correlation matrix and the missing-value counts of result.
func WriteXLSX(w io.Writer, result models.Result, cleaned *models.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCleaned); err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	for _, sheet := range []string{SheetMonthly, SheetCorrelation, SheetMissing} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	writers := []func(*excelize.File, int) error{
		func(f *excelize.File, style int) error { return writeCleanedSheet(f, style, cleaned) },
		func(f *excelize.File, style int) error { return writeMonthlySheet(f, style, result.Monthly) },
		func(f *excelize.File, style int) error { return writeCorrelationSheet(f, style, result.Correlation) },
		func(f *excelize.File, style int) error { return writeMissingSheet(f, style, result.Cleaning) },
	}
	for _, write := range writers {
		if err := write(f, header); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, style int, names []interface{}) error {
	if err := writeRow(f, sheet, 1, names); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(names), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func cellValue(f models.Float) interface{} {
	if !f.Finite() {
		return nil
	}
	return f.Value
}

func writeCleanedSheet(f *excelize.File, style int, ds *models.Dataset) error {
	names := []interface{}{"date", "year", "month", "day", "hour"}
	for _, v := range models.AllVariables {
		names = append(names, string(v))
	}
	if err := writeHeader(f, SheetCleaned, style, names); err != nil {
		return err
	}

	for i := 0; i < ds.Len(); i++ {
		rec := ds.At(i)
		row := []interface{}{rec.Time.Format(dateLayout), rec.Year, rec.Month, rec.Day, rec.Hour}
		for j := range models.AllVariables {
			row = append(row, cellValue(rec.Values[j]))
		}
		if err := writeRow(f, SheetCleaned, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetCleaned, "A", "A", 18)
}

func writeMonthlySheet(f *excelize.File, style int, agg models.MonthlyAggregate) error {
	names := []interface{}{"month", "count"}
	for _, v := range agg.Variables {
		names = append(names, string(v))
	}
	if err := writeHeader(f, SheetMonthly, style, names); err != nil {
		return err
	}

	for i, m := range agg.Rows {
		row := []interface{}{m.Month, m.Count}
		for _, mean := range m.Means {
			row = append(row, cellValue(mean))
		}
		if err := writeRow(f, SheetMonthly, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeCorrelationSheet(f *excelize.File, style int, m models.CorrelationMatrix) error {
	names := []interface{}{""}
	for _, v := range m.Variables {
		names = append(names, string(v))
	}
	if err := writeHeader(f, SheetCorrelation, style, names); err != nil {
		return err
	}

	for i, v := range m.Variables {
		row := []interface{}{string(v)}
		for _, value := range m.Values[i] {
			row = append(row, cellValue(value))
		}
		if err := writeRow(f, SheetCorrelation, i+2, row); err != nil {
			return err
		}
	}

	if len(m.Variables) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(m.Variables)+1, len(m.Variables)+1)
	if err != nil {
		return err
	}
	return f.SetConditionalFormat(SheetCorrelation, "B2:"+last, []excelize.ConditionalFormatOptions{{
		Type:     "3_color_scale",
		Criteria: "=",
		MinType:  "num",
		MidType:  "num",
		MaxType:  "num",
		MinValue: "-1",
		MidValue: "0",
		MaxValue: "1",
		MinColor: "#3B4CC0",
		MidColor: "#DDDDDD",
		MaxColor: "#B40426",
	}})
}

func writeMissingSheet(f *excelize.File, style int, report models.CleaningReport) error {
	if err := writeHeader(f, SheetMissing, style, []interface{}{"variable", "missing"}); err != nil {
		return err
	}

	row := 2
	for _, v := range models.AllVariables {
		count, ok := report.MissingCounts[v]
		if !ok {
			continue
		}
		if err := writeRow(f, SheetMissing, row, []interface{}{string(v), count}); err != nil {
			return err
		}
		row++
	}

	summary := [][]interface{}{
		{"rows_input", report.RowsInput},
		{"rows_before_outliers", report.RowsBefore},
		{"rows_after", report.RowsAfter},
	}
	row++
	for _, values := range summary {
		if err := writeRow(f, SheetMissing, row, values); err != nil {
			return err
		}
		row++
	}
	return nil
}
