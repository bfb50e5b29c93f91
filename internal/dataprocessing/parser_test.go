package dataprocessing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var templateHeader = []interface{}{"Region", "Category", "Product", "Flow", "Unit", 2022, 2023, 2024}

// buildWorkbook writes a workbook whose sheet has a title on row 1, header on
// row 2 and data from row 3.
func buildWorkbook(t *testing.T, sheet string, header []interface{}, rows [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))
	require.NoError(t, f.SetCellValue(sheet, "A1", "CO2 emissions by region"))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &header))
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &rows[i]))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func totalRow(region string, values ...interface{}) []interface{} {
	row := []interface{}{region, "CO2 combustion and process", "Total", "Total energy supply", "Mt CO2"}
	return append(row, values...)
}

func TestParseWorkbook(t *testing.T) {
	buf := buildWorkbook(t, "World", templateHeader, [][]interface{}{
		totalRow("Europe", 100.5, 110, 120),
		totalRow("Africa", 50, "", 70),
	})

	sheet, err := ParseWorkbook(buf, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []int{2022, 2023, 2024}, sheet.Years)
	require.Len(t, sheet.Records, 2)

	europe := sheet.Records[0]
	assert.Equal(t, "Europe", europe.Region)
	assert.Equal(t, "Total energy supply", europe.Flow)
	assert.Equal(t, 3, europe.Row)
	require.NotNil(t, europe.Values[2022])
	assert.InDelta(t, 100.5, *europe.Values[2022], 1e-9)

	africa := sheet.Records[1]
	assert.Nil(t, africa.Values[2023], "empty cell must be missing")
	require.NotNil(t, africa.Values[2024])
	assert.InDelta(t, 70.0, *africa.Values[2024], 1e-9)
}

func TestParseWorkbook_TextHeadersAreNotYears(t *testing.T) {
	header := []interface{}{"Region", "Category", "Product", "Flow", "Unit", "2022", 2023, "Notes"}
	buf := buildWorkbook(t, "World", header, [][]interface{}{
		totalRow("Europe", 1, 2, "n/a"),
	})

	sheet, err := ParseWorkbook(buf, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{2023}, sheet.Years)
}

func TestParseWorkbook_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   func(t *testing.T) *bytes.Buffer
		wantErr error
	}{
		{
			name: "missing World sheet",
			input: func(t *testing.T) *bytes.Buffer {
				return buildWorkbook(t, "Data", templateHeader, [][]interface{}{totalRow("Europe", 1, 2, 3)})
			},
			wantErr: ErrSheetNotFound,
		},
		{
			name: "missing Category column",
			input: func(t *testing.T) *bytes.Buffer {
				header := []interface{}{"Region", "Product", "Flow", "Unit", 2022}
				return buildWorkbook(t, "World", header, nil)
			},
			wantErr: ErrMissingColumn,
		},
		{
			name: "header row absent",
			input: func(t *testing.T) *bytes.Buffer {
				f := excelize.NewFile()
				defer f.Close()
				require.NoError(t, f.SetSheetName(f.GetSheetName(0), "World"))
				require.NoError(t, f.SetCellValue("World", "A1", "only a title"))
				buf, err := f.WriteToBuffer()
				require.NoError(t, err)
				return buf
			},
			wantErr: ErrHeaderNotFound,
		},
		{
			name: "not a workbook",
			input: func(t *testing.T) *bytes.Buffer {
				return bytes.NewBufferString("Region,Category\nEurope,CO2")
			},
			wantErr: ErrUnreadable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorkbook(tt.input(t), DefaultOptions())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{raw: "", want: nil},
		{raw: "  ", want: nil},
		{raw: "..", want: nil},
		{raw: "NaN", want: nil},
		{raw: "12.25", want: ptr(12.25)},
		{raw: " -3 ", want: ptr(-3)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := parseValue(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func ptr(v float64) *float64 { return &v }
