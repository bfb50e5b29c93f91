package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"co2forecast/internal/config"
	apierrors "co2forecast/internal/errors"
	"co2forecast/internal/infrastructure"
	"co2forecast/internal/middleware"
	"co2forecast/internal/services"
	"co2forecast/internal/session"
	handlers "co2forecast/internal/transport/http"
	ws "co2forecast/internal/websocket"
	"co2forecast/pkg/contracts"
)

// Application is the wired web server and its background workers.
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	WebSocketHub  *ws.Hub
	Store         *session.Store
	Forecasts     *services.ForecastService
	HealthService *services.HealthService
	Metrics       *infrastructure.BusinessMetrics
	OTelProviders *infrastructure.OTelProviders
	Logger        *slog.Logger

	errorHandler *apierrors.ErrorHandler
}

// New wires every component from cfg. Nothing is started until Run.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	a := &Application{
		Config:       cfg,
		Paths:        paths,
		Logger:       logger,
		errorHandler: apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := a.initializeTelemetry(); err != nil {
		return nil, err
	}
	if err := a.initializeServices(); err != nil {
		return nil, err
	}
	a.setupRouter()
	a.createServer()

	return a, nil
}

func (a *Application) initializeTelemetry() error {
	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(a.Config.Telemetry), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers

	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("failed to create business metrics: %w", err)
	}
	a.Metrics = metrics
	return nil
}

func (a *Application) initializeServices() error {
	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}

	a.WebSocketHub = ws.NewHub(a.Logger, wsMetrics)
	a.Store = session.NewStore(a.Config.Upload.SessionTTL, a.Logger)
	a.Forecasts = services.NewForecastService(a.Store, a.Config.Processing, a.Logger,
		services.WithMetrics(a.Metrics),
		services.WithPublisher(a.WebSocketHub),
	)
	a.HealthService = services.NewHealthService(a.Forecasts, a.WebSocketHub, a.Paths.ExportsDir, a.Logger)
	return nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(a.errorHandler))
	r.Use(middleware.NewOTelMiddleware(a.Metrics).Handler)
	r.Use(middleware.SecurityHeaders)

	sec := a.Config.Security
	if sec.EnableCORS {
		r.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: sec.AllowedOrigins,
			ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
			Logger:         a.Logger,
		}))
	}
	if sec.RateLimit.Enabled {
		r.Use(middleware.NewRateLimiter(sec.RateLimit.RPS, sec.RateLimit.Burst, a.Logger).Handler)
	}

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	r.Get("/", handlers.ServeMainApp(a.Config.Upload.MaxBytes, a.Logger))
	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.errorHandler))
	r.Handle("/ws", handlers.NewWebSocketHandler(
		a.WebSocketHub,
		a.Forecasts,
		sec.AllowedOrigins,
		a.Config.WebSocket.ReadBufferSize,
		ws.Options{
			PingPeriod: a.Config.WebSocket.PingPeriod,
			PongWait:   a.Config.WebSocket.PongWait,
		},
		a.Logger,
		a.errorHandler,
	))

	a.setupAPIRoutes(r)
	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router) {
	health := handlers.NewHealthHandler(a.HealthService, a.Logger)
	forecasts := handlers.NewForecastHandler(a.Forecasts, a.Config.Upload.MaxBytes, a.Logger, a.errorHandler)
	clientLogs := handlers.NewClientLogHandler(a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/health", health.Routes())
		r.Get("/version", health.Version)
		r.With(middleware.MaxBodySize(64<<10)).Post("/client-logs", clientLogs.Handle)
		r.Mount("/uploads", forecasts.Routes())
	})
}

func (a *Application) createServer() {
	srv := a.Config.Server
	a.Server = &http.Server{
		Addr:           srv.Addr(),
		Handler:        a.Router,
		ReadTimeout:    srv.ReadTimeout,
		WriteTimeout:   srv.WriteTimeout,
		IdleTimeout:    srv.IdleTimeout,
		MaxHeaderBytes: srv.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Handler returns the root HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.Router
}

// Run serves HTTP, the WebSocket hub and the workspace sweeper until ctx is
// cancelled or one of them fails, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("address", ln.Addr().String()),
		slog.Any("paths", a.Paths))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.WebSocketHub.Run(gctx)
	})
	g.Go(func() error {
		return a.Forecasts.RunSweeper(gctx, a.Config.Upload.SweepInterval)
	})
	g.Go(func() error {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	err := g.Wait()
	a.Logger.Info("application stopped")
	return err
}

func (a *Application) shutdown() error {
	a.Logger.Info("shutting down application")

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.Error("error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}
	return errors.Join(errs...)
}

// Addr is the URL the server listens on, for logs and the CLI.
func (a *Application) Addr() string {
	host := a.Config.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, a.Config.Server.Port)
}
