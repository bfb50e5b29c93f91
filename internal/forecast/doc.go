// Package forecast fits an ordinary least-squares trend line to a region's
// yearly CO2 history and projects it onto 2026–2030.
//
// 2025 is a gap year: it is neither editable history nor a forecast target.
package forecast
