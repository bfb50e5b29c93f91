package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Template values of a total energy-supply CO2 row.
const (
	Category = "CO2 combustion and process"
	Product  = "Total"
	Flow     = "Total energy supply"
	Unit     = "Mt CO2"
)

// RegionSeries is one region's total row keyed by year.
type RegionSeries struct {
	Region string
	Values map[int]float64
}

// Workbook describes an emissions workbook fixture.
type Workbook struct {
	Sheet  string
	Years  []int
	Series []RegionSeries
	// Extra rows are appended verbatim after the total rows.
	Extra [][]interface{}
}

// DefaultWorkbook has two regions with linear histories over 2019..2024.
func DefaultWorkbook() Workbook {
	return Workbook{
		Sheet: "World",
		Years: []int{2019, 2020, 2021, 2022, 2023, 2024},
		Series: []RegionSeries{
			{Region: "Europe", Values: map[int]float64{2019: 100, 2020: 110, 2021: 120, 2022: 130, 2023: 140, 2024: 150}},
			{Region: "Africa", Values: map[int]float64{2019: 50, 2020: 48, 2021: 46, 2022: 44, 2023: 42, 2024: 40}},
		},
		Extra: [][]interface{}{
			{"Europe", Category, "Coal", Flow, Unit, 1, 2, 3, 4, 5, 6},
		},
	}
}

// Bytes renders the workbook with a title on row 1, the header on row 2 and
// data from row 3.
func (wb Workbook) Bytes(t testing.TB) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := wb.Sheet
	if sheet == "" {
		sheet = "World"
	}
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))
	require.NoError(t, f.SetCellValue(sheet, "A1", "CO2 emissions by region"))

	header := []interface{}{"Region", "Category", "Product", "Flow", "Unit"}
	for _, y := range wb.Years {
		header = append(header, y)
	}
	require.NoError(t, f.SetSheetRow(sheet, "A2", &header))

	row := 3
	for _, s := range wb.Series {
		cells := []interface{}{s.Region, Category, Product, Flow, Unit}
		for _, y := range wb.Years {
			if v, ok := s.Values[y]; ok {
				cells = append(cells, v)
			} else {
				cells = append(cells, nil)
			}
		}
		setRow(t, f, sheet, row, cells)
		row++
	}
	for _, cells := range wb.Extra {
		setRow(t, f, sheet, row, cells)
		row++
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

// WriteFile saves the workbook under dir and returns its path.
func (wb Workbook) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, wb.Bytes(t), 0644))
	return path
}

func setRow(t testing.TB, f *excelize.File, sheet string, row int, cells []interface{}) {
	t.Helper()

	cell, err := excelize.CoordinatesToCellName(1, row)
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow(sheet, cell, &cells))
}
