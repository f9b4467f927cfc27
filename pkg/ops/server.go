// Package ops serves operational endpoints of services:
// health checks, and the receiver of registry webhooks.
package ops

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	kdb "github.com/opst/pht-central/pkg/db"
	"github.com/opst/pht-central/pkg/mq"
	"github.com/sirupsen/logrus"
)

// Probe checks a dependency is ready. It returns nil when ready.
type Probe func(ctx context.Context) error

type Config struct {
	// address to listen, like ":8080".
	Listen string

	// grace period of shutdown. default = 15s
	ShutdownTimeout time.Duration
}

type Server struct {
	conf   Config
	echo   *echo.Echo
	probes map[string]Probe
	logger logrus.FieldLogger
}

type Option func(*Server) *Server

// WithProbe adds a readiness probe.
func WithProbe(name string, probe Probe) Option {
	return func(s *Server) *Server {
		s.probes[name] = probe
		return s
	}
}

// WithRegistryHook enables the receiver of registry webhooks.
//
// Requests are authenticated with the credential of the registry client,
// and their payloads are emitted as registry.event.
func WithRegistryHook(clients kdb.ClientInterface, pub mq.Publisher) Option {
	return func(s *Server) *Server {
		h := &registryHook{clients: clients, pub: pub, logger: s.logger}
		s.echo.POST("/services/:service/hook", h.Handle)
		return s
	}
}

func New(conf Config, logger logrus.FieldLogger, options ...Option) *Server {
	if conf.ShutdownTimeout <= 0 {
		conf.ShutdownTimeout = 15 * time.Second
	}
	logger = logger.WithField("component", "ops")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if l, ok := logger.(*logrus.Entry); ok {
		SetLevel(e, l.Logger.GetLevel())
	}
	e.HTTPErrorHandler = ErrorHandler(e)
	e.Use(middleware.Recover())
	e.Use(LogHandlerFunc(logger))

	s := &Server{conf: conf, echo: e, probes: map[string]Probe{}, logger: logger}
	e.GET("/healthz", s.health)
	e.GET("/readyz", s.ready)

	for _, opt := range options {
		s = opt(s)
	}
	return s
}

// Echo exposes routes of the server.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("listen", s.conf.Listen).Info("ops server is starting")
		errCh <- s.echo.Start(s.conf.Listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	graceful, cancel := context.WithTimeout(context.Background(), s.conf.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(graceful); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthResponse struct {
	Status string            `json:"status"`
	Probes map[string]string `json:"probes,omitempty"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) ready(c echo.Context) error {
	names := make([]string, 0, len(s.probes))
	for n := range s.probes {
		names = append(names, n)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Probes: map[string]string{}}
	status := http.StatusOK
	for _, n := range names {
		if err := s.probes[n](c.Request().Context()); err != nil {
			s.logger.WithError(err).WithField("probe", n).Warn("not ready")
			resp.Probes[n] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Probes[n] = "ok"
	}
	return c.JSON(status, resp)
}
