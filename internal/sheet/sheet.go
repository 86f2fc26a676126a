// Package sheet exports a page record to an xlsx workbook, one sheet per
// region.
package sheet

import (
	"errors"
	"fmt"

	"github.com/AlfredBerg/docs-table-scraper/internal/record"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ErrNothingWritten is returned when no region of a record could be written.
var ErrNothingWritten = errors.New("no region written")

const defaultSheet = "Sheet1"

// Result lists what happened to each region of a record.
type Result struct {
	Path    string
	Written []record.Region
	Skipped []record.Region
}

// Writer writes page records to disk.
type Writer struct {
	Log *zap.Logger
}

// region is the tabular form of one region about to become a sheet.
type region struct {
	name    record.Region
	headers []string
	rows    [][]string
}

func regions(rec record.PageRecord) []region {
	out := []region{
		{name: record.RegionHeader, headers: []string{"Header"}, rows: [][]string{{rec.Header}}},
	}
	details := make([][]string, 0, len(rec.Details))
	for _, d := range rec.Details {
		details = append(details, []string{d})
	}
	out = append(out, region{name: record.RegionDetails, headers: []string{"Details"}, rows: details})

	for _, name := range record.Regions[2:] {
		t, ok := rec.Table(name)
		if !ok {
			continue
		}
		out = append(out, region{name: name, headers: t.Headers, rows: t.Rows})
	}
	return out
}

// Write writes rec to path. The Header sheet is always written. Other
// regions without rows, or whose rows do not match their headers, are
// skipped. A region that fails midway is removed
// and the remaining regions are still written.
func (w *Writer) Write(rec record.PageRecord, path string) (Result, error) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	res := Result{Path: path}

	f := excelize.NewFile()
	defer f.Close()

	for _, r := range regions(rec) {
		if len(r.rows) == 0 {
			res.Skipped = append(res.Skipped, r.name)
			continue
		}
		if !(record.Table{Headers: r.headers, Rows: r.rows}).Shaped() {
			log.Warn("row shape mismatch, skipping sheet",
				zap.String("sheet", string(r.name)), zap.Int("columns", len(r.headers)))
			res.Skipped = append(res.Skipped, r.name)
			continue
		}
		if err := writeRegion(f, r); err != nil {
			log.Warn("failed writing sheet", zap.String("sheet", string(r.name)), zap.Error(err))
			_ = f.DeleteSheet(string(r.name))
			res.Skipped = append(res.Skipped, r.name)
			continue
		}
		res.Written = append(res.Written, r.name)
	}

	if len(res.Written) == 0 {
		return res, fmt.Errorf("%s: %w", path, ErrNothingWritten)
	}

	if err := f.DeleteSheet(defaultSheet); err != nil {
		return res, fmt.Errorf("removing default sheet: %w", err)
	}
	idx, err := f.GetSheetIndex(string(res.Written[0]))
	if err != nil {
		return res, err
	}
	f.SetActiveSheet(idx)

	if err := f.SaveAs(path); err != nil {
		return res, fmt.Errorf("saving %s: %w", path, err)
	}
	return res, nil
}

func writeRegion(f *excelize.File, r region) error {
	sheet := string(r.name)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	next := 1
	if len(r.headers) > 0 {
		if err := setRow(f, sheet, next, r.headers); err != nil {
			return err
		}
		next++
	}
	for _, row := range r.rows {
		if err := setRow(f, sheet, next, row); err != nil {
			return err
		}
		next++
	}
	return nil
}

func setRow(f *excelize.File, sheet string, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(sheet, cell, &row)
}
