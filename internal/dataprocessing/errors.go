package dataprocessing

import "errors"

// FormatMismatchMessage is the only failure text shown to users for a bad upload.
const FormatMismatchMessage = "The uploaded file does not match the required template format. Please check your file or download the sample template."

var (
	// ErrFormatMismatch is returned by Preprocess for any load, filter or reshape failure.
	ErrFormatMismatch = errors.New("file does not match required template")

	ErrUnreadable     = errors.New("workbook could not be read")
	ErrSheetNotFound  = errors.New("sheet not found")
	ErrHeaderNotFound = errors.New("header row not found")
	ErrMissingColumn  = errors.New("required column missing")
	ErrNoYearColumns  = errors.New("no year columns")
	ErrNoMatchingRows = errors.New("no rows match the emission filters")
)
