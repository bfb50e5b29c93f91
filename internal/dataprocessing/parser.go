package dataprocessing

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"co2forecast/pkg/contracts/domain"
)

// Column names the template must provide on the header row.
const (
	ColumnRegion   = "Region"
	ColumnCategory = "Category"
	ColumnProduct  = "Product"
	ColumnFlow     = "Flow"
	ColumnUnit     = "Unit"
)

var requiredColumns = []string{ColumnRegion, ColumnCategory, ColumnProduct, ColumnFlow, ColumnUnit}

// Sheet is the parsed content of the data sheet.
type Sheet struct {
	Records []domain.RawRecord
	// Years lists the year columns in sheet order.
	Years []int
}

// ParseWorkbook reads the configured sheet of an xlsx workbook.
// Only numeric header cells holding an integral value are treated as year columns.
func ParseWorkbook(r io.Reader, opts Options) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(opts.SheetName); err != nil || idx == -1 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, opts.SheetName)
	}

	rows, err := f.GetRows(opts.SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if opts.HeaderRow < 1 || len(rows) < opts.HeaderRow {
		return nil, fmt.Errorf("%w: sheet has %d rows, header expected on row %d", ErrHeaderNotFound, len(rows), opts.HeaderRow)
	}

	header := rows[opts.HeaderRow-1]
	columns := make(map[string]int, len(header))
	for j, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := columns[name]; !dup {
			columns[name] = j
		}
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	type yearColumn struct {
		year  int
		index int
	}
	var yearCols []yearColumn
	seenYears := make(map[int]bool)
	for j, name := range header {
		year, ok := yearHeader(f, opts, j, name)
		if !ok || seenYears[year] {
			continue
		}
		seenYears[year] = true
		yearCols = append(yearCols, yearColumn{year: year, index: j})
	}

	sheet := &Sheet{Years: make([]int, 0, len(yearCols))}
	for _, yc := range yearCols {
		sheet.Years = append(sheet.Years, yc.year)
	}

	cell := func(row []string, name string) string {
		j := columns[name]
		if j < len(row) {
			return row[j]
		}
		return ""
	}

	for i := opts.HeaderRow; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}
		rec := domain.RawRecord{
			Region:   cell(row, ColumnRegion),
			Category: cell(row, ColumnCategory),
			Product:  cell(row, ColumnProduct),
			Flow:     cell(row, ColumnFlow),
			Unit:     cell(row, ColumnUnit),
			Values:   make(map[int]*float64, len(yearCols)),
			Row:      i + 1,
		}
		for _, yc := range yearCols {
			if yc.index >= len(row) {
				rec.Values[yc.year] = nil
				continue
			}
			rec.Values[yc.year] = parseValue(row[yc.index])
		}
		sheet.Records = append(sheet.Records, rec)
	}

	return sheet, nil
}

// yearHeader reports whether header cell j is a numeric cell holding a whole year.
func yearHeader(f *excelize.File, opts Options, j int, raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	axis, err := excelize.CoordinatesToCellName(j+1, opts.HeaderRow)
	if err != nil {
		return 0, false
	}
	typ, err := f.GetCellType(opts.SheetName, axis)
	if err != nil {
		return 0, false
	}
	if typ != excelize.CellTypeUnset && typ != excelize.CellTypeNumber {
		return 0, false
	}
	if year, err := strconv.Atoi(raw); err == nil {
		return year, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

// parseValue converts a raw cell to a CO2 value; nil marks a missing value.
func parseValue(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
