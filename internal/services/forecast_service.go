package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"co2forecast/internal/dataprocessing"
	"co2forecast/internal/exporter"
	"co2forecast/internal/forecast"
	"co2forecast/internal/infrastructure"
	"co2forecast/internal/session"
	"co2forecast/internal/validation"
	v1 "co2forecast/pkg/contracts/api/v1"
	"co2forecast/pkg/contracts/domain"
	"co2forecast/pkg/contracts/events"
)

const tracerName = "co2forecast/services"

// Publisher delivers events to the clients watching a workspace.
type Publisher interface {
	Publish(msg events.Message)
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Message) {}

// ForecastService ties the upload pipeline, the workspace store and the
// forecaster together.
type ForecastService struct {
	store     *session.Store
	options   dataprocessing.Options
	metrics   *infrastructure.BusinessMetrics
	publisher Publisher
	tracer    trace.Tracer
	logger    *slog.Logger
}

// ForecastServiceOption customizes a ForecastService.
type ForecastServiceOption func(*ForecastService)

// WithMetrics records business metrics on m.
func WithMetrics(m *infrastructure.BusinessMetrics) ForecastServiceOption {
	return func(s *ForecastService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithPublisher sends forecast events to p.
func WithPublisher(p Publisher) ForecastServiceOption {
	return func(s *ForecastService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// NewForecastService creates a forecast service over store.
func NewForecastService(store *session.Store, options dataprocessing.Options, logger *slog.Logger, opts ...ForecastServiceOption) *ForecastService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ForecastService{
		store:     store,
		options:   options,
		metrics:   infrastructure.NoopBusinessMetrics(),
		publisher: nopPublisher{},
		tracer:    otel.Tracer(tracerName),
		logger:    logger.With(slog.String("component", "forecast_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload validates and preprocesses a workbook and opens a workspace for it.
// Every rejection, including a bad file name, wraps
// dataprocessing.ErrFormatMismatch.
func (s *ForecastService) Upload(ctx context.Context, filename string, r io.Reader) (v1.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ForecastService.Upload",
		trace.WithAttributes(attribute.String("upload.filename", filename)))
	defer span.End()

	start := time.Now()
	logger := infrastructure.LoggerWithContext(ctx).With(slog.String("component", "forecast_service"))

	if err := validation.CheckWorkbookName(filename); err != nil {
		err = fmt.Errorf("%w: %w", dataprocessing.ErrFormatMismatch, err)
		logger.WarnContext(ctx, "upload rejected", slog.String("filename", filename), slog.String("error", err.Error()))
		s.metrics.RecordUpload(ctx, time.Since(start), err)
		span.RecordError(err)
		return v1.UploadResponse{}, err
	}

	table, err := dataprocessing.Preprocess(ctx, r, s.options, logger).Unwrap()
	s.metrics.RecordUpload(ctx, time.Since(start), err)
	if err != nil {
		logger.WarnContext(ctx, "upload rejected", slog.String("filename", filename), slog.String("error", err.Error()))
		span.RecordError(err)
		return v1.UploadResponse{}, err
	}

	ws := s.store.Create(filename, table)
	s.metrics.ActiveWorkspaces.Add(ctx, 1)

	logger.InfoContext(ctx, "upload accepted",
		slog.String("workspace_id", ws.ID),
		slog.String("filename", filename),
		slog.Int("records", len(table)),
		slog.Int("regions", len(ws.Regions)),
		slog.Duration("duration", time.Since(start)))

	return v1.UploadResponse{
		WorkspaceID: ws.ID,
		Filename:    ws.Filename,
		Regions:     ws.Regions,
		Records:     len(ws.Table),
	}, nil
}

// Regions lists the regions of a workspace in sorted order.
func (s *ForecastService) Regions(ctx context.Context, id string) (v1.RegionsResponse, error) {
	ws, err := s.store.Get(id)
	if err != nil {
		return v1.RegionsResponse{}, err
	}
	return v1.RegionsResponse{WorkspaceID: ws.ID, Regions: ws.Regions}, nil
}

// History returns the editable rows of region, sorted by year.
func (s *ForecastService) History(ctx context.Context, id, region string) (v1.HistoryResponse, error) {
	rows, edited, err := s.store.History(id, region, forecast.HistoryBefore)
	if err != nil {
		return v1.HistoryResponse{}, err
	}
	rows.SortByYear()
	if rows == nil {
		rows = domain.EmissionTable{}
	}
	return v1.HistoryResponse{WorkspaceID: id, Region: region, Edited: edited, Rows: rows}, nil
}

// UpdateHistory replaces the editable rows of region and publishes the
// recomputed forecast. The request must already be validated.
func (s *ForecastService) UpdateHistory(ctx context.Context, id, region string, req v1.HistoryUpdateRequest) (domain.ForecastView, error) {
	ctx, span := s.tracer.Start(ctx, "ForecastService.UpdateHistory",
		trace.WithAttributes(attribute.String("emissions.region", region)))
	defer span.End()

	if err := s.store.SetHistory(id, region, req.Records(region)); err != nil {
		return domain.ForecastView{}, err
	}
	s.metrics.HistoryEditsTotal.Add(ctx, 1)

	s.logger.InfoContext(ctx, "history updated",
		slog.String("workspace_id", id),
		slog.String("region", region),
		slog.Int("rows", len(req.Rows)))

	view, err := s.Forecast(ctx, id, region)
	if err != nil {
		if isForecastUnavailable(err) {
			s.publish(ctx, id, events.TypeForecastFailed, events.ForecastFailed{Region: region, Reason: err.Error()})
		}
		return domain.ForecastView{}, err
	}

	s.publish(ctx, id, events.TypeForecastUpdated, events.ForecastUpdated{Region: region, Forecast: view.Forecast})
	return view, nil
}

// ResetHistory restores the uploaded rows of region.
func (s *ForecastService) ResetHistory(ctx context.Context, id, region string) (domain.ForecastView, error) {
	if err := s.store.ResetHistory(id, region); err != nil {
		return domain.ForecastView{}, err
	}

	view, err := s.Forecast(ctx, id, region)
	if err != nil {
		return domain.ForecastView{}, err
	}
	s.publish(ctx, id, events.TypeForecastUpdated, events.ForecastUpdated{Region: region, Forecast: view.Forecast})
	return view, nil
}

// Forecast fits the region's editable history and predicts the horizon.
func (s *ForecastService) Forecast(ctx context.Context, id, region string) (domain.ForecastView, error) {
	ctx, span := s.tracer.Start(ctx, "ForecastService.Forecast",
		trace.WithAttributes(attribute.String("emissions.region", region)))
	defer span.End()

	history, _, err := s.store.History(id, region, forecast.HistoryBefore)
	if err != nil {
		return domain.ForecastView{}, err
	}
	history.SortByYear()

	points, line, err := forecast.Forecast(history)
	s.metrics.RecordForecast(ctx, region, err)
	if err != nil {
		span.RecordError(err)
		s.logger.WarnContext(ctx, "forecast unavailable",
			slog.String("workspace_id", id),
			slog.String("region", region),
			slog.Int("points", len(history)),
			slog.String("error", err.Error()))
		return domain.ForecastView{}, fmt.Errorf("forecast %s: %w", region, err)
	}

	return domain.ForecastView{
		WorkspaceID: id,
		Region:      region,
		Title:       exporter.Title(region),
		Historical:  history,
		Forecast:    points,
		Regression:  line.Summary(),
	}, nil
}

// Chart renders the region's forecast chart to w.
func (s *ForecastService) Chart(ctx context.Context, id, region string, format exporter.Format, w io.Writer) error {
	view, err := s.Forecast(ctx, id, region)
	if err != nil {
		return err
	}

	_, span := s.tracer.Start(ctx, "exporter.RenderChart",
		trace.WithAttributes(attribute.String("chart.format", string(format))))
	defer span.End()

	if err := exporter.RenderChart(w, exporter.ChartData{
		Region:     region,
		Historical: view.Historical,
		Forecast:   view.Forecast,
	}, format); err != nil {
		span.RecordError(err)
		return fmt.Errorf("render chart: %w", err)
	}
	s.metrics.RecordExport(ctx, "chart", string(format))
	return nil
}

// Table writes the historical or forecast table of region as CSV.
func (s *ForecastService) Table(ctx context.Context, id, region string, kind exporter.TableKind, w io.Writer) error {
	var opts exporter.WriteOptions
	switch kind {
	case exporter.TableHistorical:
		history, _, err := s.store.History(id, region, forecast.HistoryBefore)
		if err != nil {
			return err
		}
		history.SortByYear()
		opts = exporter.HistoricalTable(history)
	case exporter.TableForecast:
		view, err := s.Forecast(ctx, id, region)
		if err != nil {
			return err
		}
		opts = exporter.ForecastTable(view.Forecast)
	default:
		return fmt.Errorf("%w: %q", exporter.ErrUnknownTable, kind)
	}

	if err := exporter.WriteCSV(w, opts); err != nil {
		return fmt.Errorf("write %s table: %w", kind, err)
	}
	s.metrics.RecordExport(ctx, string(kind), "csv")
	return nil
}

// Delete closes a workspace and notifies its watchers.
func (s *ForecastService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.metrics.ActiveWorkspaces.Add(ctx, -1)
	s.publish(ctx, id, events.TypeWorkspaceClosed, nil)
	s.logger.InfoContext(ctx, "workspace deleted", slog.String("workspace_id", id))
	return nil
}

// Sweep expires idle workspaces and notifies their watchers.
func (s *ForecastService) Sweep(ctx context.Context) []string {
	expired := s.store.Sweep()
	for _, id := range expired {
		s.metrics.ActiveWorkspaces.Add(ctx, -1)
		s.publish(ctx, id, events.TypeWorkspaceClosed, nil)
	}
	return expired
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *ForecastService) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// ActiveWorkspaces returns the number of open workspaces.
func (s *ForecastService) ActiveWorkspaces() int {
	return s.store.Len()
}

func (s *ForecastService) publish(ctx context.Context, id string, typ events.MessageType, data interface{}) {
	s.publisher.Publish(events.Message{
		Type:        typ,
		WorkspaceID: id,
		Data:        data,
		Timestamp:   time.Now().UTC(),
		TraceID:     infrastructure.GetTraceID(ctx),
	})
}

func isForecastUnavailable(err error) bool {
	return errors.Is(err, forecast.ErrInsufficientData) ||
		errors.Is(err, forecast.ErrDegenerateFit) ||
		errors.Is(err, forecast.ErrInvalidValue)
}
