// Package config loads the application configuration.
//
// Values are layered, lowest precedence first:
//
//  1. Default()
//  2. a YAML file (CO2_CONFIG_FILE, or config.yaml / configs/config.yaml)
//  3. environment variables prefixed with CO2_
//
// Environment keys follow the struct nesting, for example:
//
//	CO2_SERVER_PORT=9090
//	CO2_UPLOAD_SESSION_TTL=30m
//	CO2_PROCESSING_SHEET_NAME=World
//	CO2_PROCESSING_CRITERIA_FLOW="Total energy supply"
//	CO2_TELEMETRY_TRACE_EXPORTER=stdout
package config
