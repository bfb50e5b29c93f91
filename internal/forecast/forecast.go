package forecast

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"co2forecast/pkg/contracts/domain"
)

const (
	// HistoryBefore is the first year excluded from editable history.
	HistoryBefore = 2025
	// FirstYear and LastYear bound the forecast horizon, inclusive.
	FirstYear = 2026
	LastYear  = 2030
)

var (
	// ErrInsufficientData is returned when fewer than two observations are supplied.
	ErrInsufficientData = errors.New("at least two historical points are required")
	// ErrDegenerateFit is returned when every observation shares the same year.
	ErrDegenerateFit = errors.New("historical points must span at least two distinct years")
	// ErrInvalidValue is returned for NaN or infinite CO2 values.
	ErrInvalidValue = errors.New("historical values must be finite")
)

// Line is a fitted y = Intercept + Slope*year trend.
type Line struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	Points    int
}

// At evaluates the line at year.
func (l Line) At(year int) float64 {
	return l.Intercept + l.Slope*float64(year)
}

// Summary converts the line for API responses.
func (l Line) Summary() domain.RegressionSummary {
	return domain.RegressionSummary{
		Slope:     l.Slope,
		Intercept: l.Intercept,
		RSquared:  l.RSquared,
		Points:    l.Points,
	}
}

// Years returns the forecast horizon in ascending order.
func Years() []int {
	years := make([]int, 0, LastYear-FirstYear+1)
	for y := FirstYear; y <= LastYear; y++ {
		years = append(years, y)
	}
	return years
}

// Fit regresses CO2 on year with an intercept.
// Duplicate years are accepted as independent observations.
func Fit(history []domain.EmissionRecord) (Line, error) {
	if len(history) < 2 {
		return Line{}, fmt.Errorf("%w: got %d", ErrInsufficientData, len(history))
	}

	xs := make([]float64, len(history))
	ys := make([]float64, len(history))
	distinct := make(map[int]struct{}, len(history))
	for i, rec := range history {
		if math.IsNaN(rec.CO2) || math.IsInf(rec.CO2, 0) {
			return Line{}, fmt.Errorf("%w: year %d", ErrInvalidValue, rec.Year)
		}
		xs[i] = float64(rec.Year)
		ys[i] = rec.CO2
		distinct[rec.Year] = struct{}{}
	}
	if len(distinct) < 2 {
		return Line{}, ErrDegenerateFit
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(r2) {
		// Constant series: the line explains everything there is to explain.
		r2 = 1
	}

	return Line{Slope: beta, Intercept: alpha, RSquared: r2, Points: len(history)}, nil
}

// Predict evaluates line over the forecast horizon.
func Predict(line Line) []domain.ForecastPoint {
	years := Years()
	points := make([]domain.ForecastPoint, 0, len(years))
	for _, y := range years {
		points = append(points, domain.ForecastPoint{Year: y, CO2: line.At(y)})
	}
	return points
}

// Forecast fits history and predicts 2026 through 2030.
func Forecast(history []domain.EmissionRecord) ([]domain.ForecastPoint, Line, error) {
	line, err := Fit(history)
	if err != nil {
		return nil, Line{}, err
	}
	return Predict(line), line, nil
}
