// Package services implements the business logic layer between the HTTP
// handlers and the processing packages.
//
// ForecastService owns the upload workflow: a workbook is preprocessed into
// a long emission table, stored as a workspace, and each region's editable
// history is fitted and projected over the forecast horizon on demand.
// Edits publish a forecast:updated event to WebSocket clients watching the
// workspace.
//
// HealthService reports liveness, readiness and version information.
//
// Services take a context as their first argument and return sentinel errors
// from the packages they call (session, dataprocessing, forecast, exporter)
// wrapped with %w. The HTTP layer maps them with errors.Is.
package services
