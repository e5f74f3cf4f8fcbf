// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/geomdc/geomdc/consensus"
	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet = "Sheet1"
	rankingSheet = "ranking"
)

// Sheet is a worksheet held in memory. Rows exclude the header and hold raw
// cell values, without number formats applied.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string

	// typed values of the cells stored as numbers or booleans, by row and
	// column
	typed map[[2]int]any
}

// value returns the cell as written back: numbers and booleans keep their
// type, everything else is text.
func (sh *Sheet) value(row []string, i, col int) any {
	if v, ok := sh.typed[[2]int{i, col}]; ok {
		return v
	}

	return sh.cell(row, col)
}

func (sh *Sheet) cell(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}

	return ""
}

// ReadXLSX reads a worksheet, the first one when name is empty, and extracts
// one record per data row.
func ReadXLSX(path, name string, m ColumnMapping, logf func(string, ...any)) (*Sheet, []consensus.Record, error) {
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if name == "" {
		name = f.GetSheetName(0)
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", name, err)
	}

	if len(rows) == 0 {
		return nil, nil, consensus.InvalidInput("sheet %q has no header row", name)
	}

	sh := &Sheet{Name: name, Header: rows[0], Rows: rows[1:]}
	if err := sh.loadTypes(f); err != nil {
		return nil, nil, err
	}

	idx := make(map[string]int, len(sh.Header))
	for i, h := range sh.Header {
		idx[strings.TrimSpace(h)] = i
	}

	for _, col := range m.Columns() {
		if _, ok := idx[col]; !ok {
			return nil, nil, consensus.InvalidInput("column %q not found in sheet %q", col, name)
		}
	}

	for _, col := range m.AddressColumns() {
		if err := checkTextColumn(f, sh, idx[col], col); err != nil {
			return nil, nil, err
		}
	}

	stats := coordStats{}
	records := make([]consensus.Record, len(sh.Rows))

	for i, row := range sh.Rows {
		r := consensus.Record{Index: i, InputAddress: sh.cell(row, idx[m.InputAddress])}
		for j := range consensus.NumServices {
			latCol, lonCol := m.Latitudes[j], m.Longitudes[j]
			r.Candidates[j] = consensus.Candidate{
				Address: sh.cell(row, idx[m.OutputAddresses[j]]),
				Point:   stats.point(latCol, lonCol, sh.cell(row, idx[latCol]), sh.cell(row, idx[lonCol])),
			}
		}

		records[i] = r
	}

	if logf != nil {
		stats.log(logf)
	}

	return sh, records, nil
}

// loadTypes records the cells stored as numbers or booleans.
func (sh *Sheet) loadTypes(f *excelize.File) error {
	sh.typed = map[[2]int]any{}

	for i, row := range sh.Rows {
		for col, raw := range row {
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}

			ref, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}

			t, err := f.GetCellType(sh.Name, ref)
			if err != nil {
				return fmt.Errorf("cell %s: %w", ref, err)
			}

			switch t {
			case excelize.CellTypeUnset, excelize.CellTypeNumber:
				sh.typed[[2]int{i, col}] = n
			case excelize.CellTypeBool:
				sh.typed[[2]int{i, col}] = raw == "1"
			}
		}
	}

	return nil
}

// checkTextColumn fails on the first non-empty cell that is stored as a
// number, boolean or date.
func checkTextColumn(f *excelize.File, sh *Sheet, col int, name string) error {
	for i, row := range sh.Rows {
		if strings.TrimSpace(sh.cell(row, col)) == "" {
			continue
		}

		ref, err := excelize.CoordinatesToCellName(col+1, i+2)
		if err != nil {
			return err
		}

		t, err := f.GetCellType(sh.Name, ref)
		if err != nil {
			return fmt.Errorf("cell %s: %w", ref, err)
		}

		switch t {
		case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		default:
			return consensus.InvalidInput("address column %q must be text, cell %s is not", name, ref)
		}
	}

	return nil
}

// WriteXLSX writes the sheet followed by the output columns, and the
// dataset-wide ranking on a second sheet.
func WriteXLSX(path string, sh *Sheet, results []consensus.Result, ranking consensus.Ranking, opts consensus.Options) error {
	name := sh.Name
	if name == "" {
		name = defaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(name); err != nil {
		return err
	}

	outCols := OutputColumns(opts)

	replaced := make(map[string]bool, len(outCols))
	for _, c := range outCols {
		replaced[c.Name] = true
	}

	var keep []int

	header := make([]any, 0, len(sh.Header)+len(outCols))

	for i, h := range sh.Header {
		if !replaced[h] {
			keep = append(keep, i)
			header = append(header, h)
		}
	}

	for _, c := range outCols {
		header = append(header, c.Name)
	}

	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return err
	}

	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	byIndex := make(map[int]*consensus.Result, len(results))
	for i := range results {
		byIndex[results[i].Index] = &results[i]
	}

	for i, row := range sh.Rows {
		vals := make([]any, 0, len(header))
		for _, k := range keep {
			vals = append(vals, sh.value(row, i, k))
		}

		if res, ok := byIndex[i]; ok {
			vals = append(vals, OutputValues(res, opts)...)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		if err := sw.SetRow(cell, vals); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}

	if err := writeRanking(f, ranking); err != nil {
		return err
	}

	if name != defaultSheet {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return err
		}
	}

	index, err := f.GetSheetIndex(name)
	if err != nil {
		return err
	}

	f.SetActiveSheet(index)

	return f.SaveAs(path)
}

func writeRanking(f *excelize.File, ranking consensus.Ranking) error {
	if _, err := f.NewSheet(rankingSheet); err != nil {
		return err
	}

	if err := f.SetSheetRow(rankingSheet, "A1", &[]any{"service", "mdc_total", "service_rank"}); err != nil {
		return err
	}

	for i, svc := range consensus.Services {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		row := []any{int(svc), ranking.Totals[i], int(ranking.Rank(svc))}
		if err := f.SetSheetRow(rankingSheet, cell, &row); err != nil {
			return err
		}
	}

	return nil
}
