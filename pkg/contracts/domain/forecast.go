package domain

// RegressionSummary describes the fitted trend line.
type RegressionSummary struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	Points    int     `json:"points"`
}

// ForecastView is everything the presenter needs for one region.
type ForecastView struct {
	WorkspaceID string            `json:"workspace_id"`
	Region      string            `json:"region"`
	Title       string            `json:"title"`
	Historical  EmissionTable     `json:"historical"`
	Forecast    []ForecastPoint   `json:"forecast"`
	Regression  RegressionSummary `json:"regression"`
}
