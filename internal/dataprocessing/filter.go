package dataprocessing

import (
	"fmt"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"co2forecast/pkg/contracts/domain"
)

// Criteria are the fixed values a row must carry to count as total
// energy-supply CO2.
type Criteria struct {
	Category string `yaml:"category" envconfig:"CATEGORY"`
	Product  string `yaml:"product" envconfig:"PRODUCT"`
	Flow     string `yaml:"flow" envconfig:"FLOW"`
	Unit     string `yaml:"unit" envconfig:"UNIT"`
}

// DefaultCriteria returns the template's filter values.
func DefaultCriteria() Criteria {
	return Criteria{
		Category: "CO2 combustion and process",
		Product:  "Total",
		Flow:     "Total energy supply",
		Unit:     "Mt CO2",
	}
}

const rowIndexColumn = "__row"

// FilterRecords keeps the records whose Category, Product, Flow and Unit all
// equal the criteria exactly. Record order is preserved.
func FilterRecords(records []domain.RawRecord, c Criteria) ([]domain.RawRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	table := make([][]string, 0, len(records)+1)
	table = append(table, []string{ColumnRegion, ColumnCategory, ColumnProduct, ColumnFlow, ColumnUnit, rowIndexColumn})
	for i, rec := range records {
		table = append(table, []string{rec.Region, rec.Category, rec.Product, rec.Flow, rec.Unit, strconv.Itoa(i)})
	}

	df := dataframe.LoadRecords(table,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("load filter frame: %w", df.Err)
	}

	// Applied one after another, like successive row selections.
	df = df.
		Filter(dataframe.F{Colname: ColumnCategory, Comparator: series.Eq, Comparando: c.Category}).
		Filter(dataframe.F{Colname: ColumnProduct, Comparator: series.Eq, Comparando: c.Product}).
		Filter(dataframe.F{Colname: ColumnFlow, Comparator: series.Eq, Comparando: c.Flow}).
		Filter(dataframe.F{Colname: ColumnUnit, Comparator: series.Eq, Comparando: c.Unit})
	if df.Err != nil {
		return nil, fmt.Errorf("filter frame: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return nil, nil
	}

	kept := make([]domain.RawRecord, 0, df.Nrow())
	for _, idx := range df.Col(rowIndexColumn).Records() {
		i, err := strconv.Atoi(idx)
		if err != nil || i < 0 || i >= len(records) {
			return nil, fmt.Errorf("filter frame: bad row index %q", idx)
		}
		kept = append(kept, records[i])
	}
	return kept, nil
}
