package domain

import "sort"

// RawRecord is one row of the source "World" sheet.
// Values maps a year column to its cell; nil means the cell was empty.
type RawRecord struct {
	Region   string           `json:"region"`
	Category string           `json:"category"`
	Product  string           `json:"product"`
	Flow     string           `json:"flow"`
	Unit     string           `json:"unit"`
	Values   map[int]*float64 `json:"values"`
	Row      int              `json:"row"` // 1-based sheet row
}

// EmissionRecord is a long-format observation: one CO2 value for a region and year.
type EmissionRecord struct {
	Region string  `json:"region"`
	Year   int     `json:"year"`
	CO2    float64 `json:"co2_mt"`
}

// ForecastPoint is a predicted CO2 value for a future year.
type ForecastPoint struct {
	Year int     `json:"year"`
	CO2  float64 `json:"co2_mt"`
}

// EmissionTable is the long table produced by reshaping filtered records.
type EmissionTable []EmissionRecord

// Regions returns the distinct non-empty regions in sorted order.
func (t EmissionTable) Regions() []string {
	seen := make(map[string]struct{})
	regions := make([]string, 0)
	for _, rec := range t {
		if rec.Region == "" {
			continue
		}
		if _, ok := seen[rec.Region]; ok {
			continue
		}
		seen[rec.Region] = struct{}{}
		regions = append(regions, rec.Region)
	}
	sort.Strings(regions)
	return regions
}

// HasRegion reports whether any record belongs to region.
func (t EmissionTable) HasRegion(region string) bool {
	for _, rec := range t {
		if rec.Region == region {
			return true
		}
	}
	return false
}

// ForRegion returns a copy of the records belonging to region only.
func (t EmissionTable) ForRegion(region string) EmissionTable {
	out := make(EmissionTable, 0)
	for _, rec := range t {
		if rec.Region == region {
			out = append(out, rec)
		}
	}
	return out
}

// Before returns the records whose year is strictly less than year.
func (t EmissionTable) Before(year int) EmissionTable {
	out := make(EmissionTable, 0, len(t))
	for _, rec := range t {
		if rec.Year < year {
			out = append(out, rec)
		}
	}
	return out
}

// SortByYear orders the table by year, keeping the original order for equal years.
func (t EmissionTable) SortByYear() {
	sort.SliceStable(t, func(i, j int) bool { return t[i].Year < t[j].Year })
}

// Clone returns an independent copy of the table.
func (t EmissionTable) Clone() EmissionTable {
	if t == nil {
		return nil
	}
	out := make(EmissionTable, len(t))
	copy(out, t)
	return out
}
