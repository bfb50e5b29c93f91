// Package http implements the HTTP handlers of the forecast web service.
// Handlers stay thin: they parse path parameters and bodies, call a
// service, and leave error mapping to the shared RFC 7807 ErrorHandler.
package http
