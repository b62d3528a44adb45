package serving

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
)

// Server exposes the scoring API over HTTP.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	loader  *Loader
	echo    *echo.Echo
	metrics *metrics
	started time.Time
}

// NewServer wires the HTTP surface around a model loader.
func NewServer(cfg *config.Config, loader *Loader, logger *slog.Logger) *Server {
	serverLogger := logger
	if serverLogger != nil {
		serverLogger = serverLogger.With(logging.String(logging.FieldComponent, "serving"))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(cfg.Serving.ReadTimeout) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.Serving.WriteTimeout) * time.Second

	s := &Server{
		cfg:     cfg,
		logger:  serverLogger,
		loader:  loader,
		echo:    e,
		metrics: newMetrics(),
		started: time.Now(),
	}

	e.Use(middleware.Recover())
	e.Use(s.observe)

	e.GET("/", s.handleRoot)
	e.GET("/health", s.handleHealth)
	e.POST("/predict", s.handlePredict)
	e.POST("/predict/batch", s.handlePredictBatch)
	e.GET("/model/info", s.handleModelInfo)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	return s
}

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Info("serving scoring API", logging.String("bind", s.cfg.Serving.Bind))
	}
	err := s.echo.Start(s.cfg.Serving.Bind)
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve scoring API: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	grace := time.Duration(s.cfg.Serving.ShutdownTimeout) * time.Second
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ObserveDrift records the outcome of the latest drift check on the metrics
// endpoint.
func (s *Server) ObserveDrift(driftShare float64, driftedColumns int) {
	s.metrics.driftScore.Set(driftShare)
	s.metrics.driftedColumns.Set(float64(driftedColumns))
}

// observe wraps every request with the prometheus collectors and a debug log.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		endpoint := c.Path()
		s.metrics.activeRequests.Inc()
		start := time.Now()
		err := next(c)
		elapsed := time.Since(start)
		s.metrics.activeRequests.Dec()

		status := c.Response().Status
		if err != nil {
			if httpErr, ok := err.(*echo.HTTPError); ok {
				status = httpErr.Code
			} else {
				status = http.StatusInternalServerError
			}
		}
		s.metrics.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
		s.metrics.requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())

		if s.logger != nil {
			s.logger.Debug("request handled",
				logging.String("method", c.Request().Method),
				logging.String("endpoint", endpoint),
				logging.Int("status", status),
				logging.Duration("elapsed", elapsed))
		}
		return err
	}
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service": "credit-scoring-api",
		"endpoints": []string{
			"/health", "/predict", "/predict/batch", "/model/info", "/metrics",
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	served := s.loader.Current()
	body := map[string]any{
		"status":         "healthy",
		"model_loaded":   served != nil,
		"scaler_loaded":  served != nil && served.Scaler != nil,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	}
	if served == nil {
		body["status"] = "degraded"
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	body["model_version"] = served.Version
	body["quantized"] = served.Quantized
	return c.JSON(http.StatusOK, body)
}

func (s *Server) handlePredict(c echo.Context) error {
	served := s.loader.Current()
	if served == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no model promoted")
	}
	var applicant Applicant
	if err := c.Bind(&applicant); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	prediction, err := s.score(served, applicant)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, prediction)
}

func (s *Server) handlePredictBatch(c echo.Context) error {
	served := s.loader.Current()
	if served == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no model promoted")
	}
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Applications) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "batch has no applications")
	}
	if len(req.Applications) > s.cfg.Serving.MaxBatchSize {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("batch size %d exceeds maximum %d", len(req.Applications), s.cfg.Serving.MaxBatchSize))
	}

	predictions := make([]Prediction, len(req.Applications))
	for i, applicant := range req.Applications {
		prediction, err := s.score(served, applicant)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("application %d: %v", i, err))
		}
		predictions[i] = prediction
	}
	return c.JSON(http.StatusOK, BatchResponse{Predictions: predictions, BatchSize: len(predictions)})
}

func (s *Server) handleModelInfo(c echo.Context) error {
	served := s.loader.Current()
	if served == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no model promoted")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"model_version":   served.Version,
		"promoted_at":     served.Entry.PromotedAt,
		"trigger":         served.Entry.Trigger,
		"accuracy":        served.Entry.Accuracy,
		"auc":             served.Entry.AUC,
		"quantized":       served.Quantized,
		"loaded_at":       served.LoadedAt,
		"risk_thresholds": s.cfg.Training.RiskThresholds,
	})
}

func (s *Server) score(served *LoadedModel, applicant Applicant) (Prediction, error) {
	row, err := featureRow(applicant)
	if err != nil {
		return Prediction{}, err
	}
	standardized, err := served.Scaler.Transform(row)
	if err != nil {
		return Prediction{}, err
	}
	probability, err := served.Predictor.Predict(standardized)
	if err != nil {
		return Prediction{}, err
	}

	level := riskLevel(probability, s.cfg.Training.RiskThresholds)
	s.metrics.predictions.WithLabelValues(level).Inc()

	predicted := 0
	if probability >= 0.5 {
		predicted = 1
	}
	return Prediction{
		Prediction:   predicted,
		Probability:  probability,
		RiskLevel:    level,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		ModelVersion: served.Version,
	}, nil
}
