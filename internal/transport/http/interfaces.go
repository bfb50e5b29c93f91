package http

import (
	"context"
	"errors"
	"io"

	"co2forecast/internal/exporter"
	"co2forecast/internal/services"
	"co2forecast/pkg/contracts"
	v1 "co2forecast/pkg/contracts/api/v1"
	"co2forecast/pkg/contracts/domain"
)

// ForecastService is the upload and forecast workflow used by ForecastHandler.
type ForecastService interface {
	Upload(ctx context.Context, filename string, r io.Reader) (v1.UploadResponse, error)
	Regions(ctx context.Context, id string) (v1.RegionsResponse, error)
	History(ctx context.Context, id, region string) (v1.HistoryResponse, error)
	UpdateHistory(ctx context.Context, id, region string, req v1.HistoryUpdateRequest) (domain.ForecastView, error)
	ResetHistory(ctx context.Context, id, region string) (domain.ForecastView, error)
	Forecast(ctx context.Context, id, region string) (domain.ForecastView, error)
	Chart(ctx context.Context, id, region string, format exporter.Format, w io.Writer) error
	Table(ctx context.Context, id, region string, kind exporter.TableKind, w io.Writer) error
	Delete(ctx context.Context, id string) error
}

// HealthService reports service health.
type HealthService interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() contracts.VersionInfo
}

var errMissingParam = errors.New("parameter is required")
