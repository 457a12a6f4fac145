package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/device"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
	metricsvc "github.com/TTR-x/ttr-gestion-sub002/services/metrics"
)

const defaultRateLimit = "30-M"

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		MemberSvc  member.Service
		DeviceSvc  device.Service
		LedgerSvc  ledger.Service
		Validate   *validator.Validate
		Translator ut.Translator

		Metrics  *metricsvc.Metrics
		Gatherer prometheus.Gatherer

		// RateLimitStore backs the per-IP limits of the override endpoints; in-memory if nil.
		RateLimitStore limiter.Store
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		*Deps
		addr     string
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API. shutdown receives OS signals; a private channel is used if nil.
func NewServer(addr string, shutdown chan os.Signal, deps *Deps) Server {
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
	}
	s := &server{
		Deps:     deps,
		addr:     addr,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: shutdown,
	}
	s.setup()
	return s
}

func (s *server) setup() {
	if s.Metrics == nil {
		reg := prometheus.NewRegistry()
		s.Metrics, _ = metricsvc.NewPrometheusMetrics(reg)
		s.Gatherer = reg
	}
	if s.Gatherer == nil {
		s.Gatherer = prometheus.DefaultGatherer
	}

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.Conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)
	s.app.Renderer = pages
	s.app.Debug = s.Conf.Debug
	s.app.HideBanner = true

	s.app.GET("/health", health)
	s.app.GET("/metrics", echo.WrapHandler(metricsvc.Handler(s.Gatherer)))

	jwt := middleware.JWTWithConfig(newJWTConfig(s.Conf))
	limit := s.rateLimitMiddleware()

	registerDeviceConfirmPage(s.app, s.DeviceSvc, s.Conf, s.Logger, s.Metrics, limit)

	v1 := s.app.Group("/v1")
	registerMemberAPI(v1, jwt, s.MemberSvc, s.Conf, s.Validate)
	registerDeviceAPI(v1, jwt, limit, s.DeviceSvc, s.MemberSvc, s.Validate, s.Metrics)
	registerLedgerAPI(v1, jwt, s.LedgerSvc, s.MemberSvc, s.Validate, s.Metrics)
}

func (s *server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) rateLimitMiddleware() echo.MiddlewareFunc {
	rate, err := limiter.NewRateFromFormatted(s.Conf.Server.RateLimit)
	if err != nil {
		s.Logger.Warn("invalid rate limit, using default", err, map[string]interface{}{"rate_limit": s.Conf.Server.RateLimit})
		rate, _ = limiter.NewRateFromFormatted(defaultRateLimit)
	}
	store := s.RateLimitStore
	if store == nil {
		store = memory.NewStore()
	}
	return newRateLimitMiddleware(limiter.New(store, rate))
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
