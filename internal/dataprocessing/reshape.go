package dataprocessing

import (
	"co2forecast/pkg/contracts/domain"
)

// Reshape melts the year columns of records into long form.
// Output is column-major: every region for the first year, then the next year.
// Rows without a region and missing values are dropped, and when two rows
// describe the same (Region, Year) only the first is kept.
func Reshape(records []domain.RawRecord, years []int) domain.EmissionTable {
	type key struct {
		region string
		year   int
	}
	seen := make(map[key]bool)
	table := make(domain.EmissionTable, 0, len(records)*len(years))

	for _, year := range years {
		for _, rec := range records {
			if rec.Region == "" {
				continue
			}
			v := rec.Values[year]
			if v == nil {
				continue
			}
			k := key{region: rec.Region, year: year}
			if seen[k] {
				continue
			}
			seen[k] = true
			table = append(table, domain.EmissionRecord{Region: rec.Region, Year: year, CO2: *v})
		}
	}
	return table
}
