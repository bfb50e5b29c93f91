// Package dataprocessing turns an uploaded emissions workbook into a long table
// of (Region, Year, CO2) observations.
//
// # Pipeline
//
// The package is organized into three steps:
//
//  1. Parser: reads the "World" sheet with the header on row 2 (ParseWorkbook)
//  2. Filter: keeps total-energy-supply CO2 rows (FilterRecords)
//  3. Reshaper: melts the year columns into long records (Reshape)
//
// Preprocess runs all three and reports the result as a domain.Outcome:
//
//	outcome := dataprocessing.Preprocess(ctx, file, dataprocessing.DefaultOptions(), logger)
//	if !outcome.Ok() {
//	    // errors.Is(outcome.Err, dataprocessing.ErrFormatMismatch) is always true here
//	}
//
// # Data Flow
//
//	xlsx → Parser → RawRecords → Filter → RawRecords → Reshaper → EmissionTable
//
// # Error Handling
//
// Parser failures are reported with wrapped sentinels (ErrUnreadable,
// ErrSheetNotFound, ErrHeaderNotFound, ErrMissingColumn) so they can be logged
// precisely. At the Preprocess boundary every failure, and an empty result,
// collapses into ErrFormatMismatch; users only ever see FormatMismatchMessage.
package dataprocessing
