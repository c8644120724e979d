package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/wa-notifier/internal/config"
	"github.com/jmehdipour/wa-notifier/internal/http/middleware"
	"github.com/jmehdipour/wa-notifier/internal/logger"
	"github.com/jmehdipour/wa-notifier/internal/metrics"
	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/jmehdipour/wa-notifier/internal/repository"
	"github.com/jmehdipour/wa-notifier/internal/session"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BatchProcessor runs one uploaded sheet to completion. *broadcast.Service implements it.
type BatchProcessor interface {
	Process(ctx context.Context, path string) (model.BatchResult, error)
}

type Server struct{ e *echo.Echo }

// NewServer wires the routes. Batches run on baseCtx rather than the request context, so
// a client disconnect does not cut a batch short but cancelling baseCtx does.
// outcomes and rds may be nil.
func NewServer(
	baseCtx context.Context,
	cfg config.Config,
	proc BatchProcessor,
	tracker *session.Tracker,
	outcomes repository.OutcomesRepository,
	rds *redis.Client,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLogLevel(cfg.Log.Level))
	e.Renderer = newRenderer()
	e.Use(echoMid.Recover(), requestLogger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		Limit:          cfg.RateLimit.UploadsPerMinute,
		KeyPrefix:      "rl:upload:",
		Window:         time.Minute,
		RetryAfterHint: true,
	})
	maxMB := cfg.HTTP.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 10
	}
	bodyMW := echoMid.BodyLimit(fmt.Sprintf("%dM", maxMB))

	mode := cfg.HTTP.Mode
	if mode != ModeJSON {
		mode = ModePage
	}
	e.HTTPErrorHandler = uploadErrorHandler(e, mode, tracker)

	// routes
	e.GET("/", indexHandler(mode, tracker))
	e.POST("/upload", uploadHandler(baseCtx, proc, tracker, mode, cfg.HTTP.UploadDir), bodyMW, rlMW)

	s := e.Group("/session")
	s.GET("", sessionStatusHandler(tracker))
	s.GET("/qr.png", sessionQRHandler(tracker))
	s.GET("/stream", sessionStreamHandler(tracker))
	s.POST("/events", sessionEventHandler(tracker))

	e.GET("/reports/outcomes", listOutcomesHandler(outcomes))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

func echoLogLevel(level string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

func requestLogger() echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Log.Info("request", fields...)
			return nil
		},
	})
}
