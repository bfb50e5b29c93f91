// Package api contains the request and response contracts of the HTTP API.
package api

import (
	"co2forecast/pkg/contracts/domain"
)

// HistoryRow is one editable grid row.
type HistoryRow struct {
	Year int     `json:"year" validate:"gte=1900,lt=2025"`
	CO2  float64 `json:"co2_mt" validate:"finite"`
}

// HistoryUpdateRequest replaces the editable history of a region.
// Rows may be added or removed, mirroring a dynamic grid.
type HistoryUpdateRequest struct {
	Rows []HistoryRow `json:"rows" validate:"max=500,dive"`
}

// Records converts the request rows into long records for region.
func (r HistoryUpdateRequest) Records(region string) domain.EmissionTable {
	out := make(domain.EmissionTable, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, domain.EmissionRecord{Region: region, Year: row.Year, CO2: row.CO2})
	}
	return out
}

// UploadResponse is returned after a workbook has been accepted.
type UploadResponse struct {
	WorkspaceID string   `json:"workspace_id"`
	Filename    string   `json:"filename"`
	Regions     []string `json:"regions"`
	Records     int      `json:"records"`
}

// RegionsResponse lists the selectable regions of a workspace.
type RegionsResponse struct {
	WorkspaceID string   `json:"workspace_id"`
	Regions     []string `json:"regions"`
}

// HistoryResponse carries the editable rows of one region.
type HistoryResponse struct {
	WorkspaceID string               `json:"workspace_id"`
	Region      string               `json:"region"`
	Edited      bool                 `json:"edited"`
	Rows        domain.EmissionTable `json:"rows"`
}

// ClientLogRequest is a log line forwarded by the browser UI.
type ClientLogRequest struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message" validate:"required,max=2000"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Source  string                 `json:"source,omitempty" validate:"max=200"`
}
