package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/caseindex/app"
	"github.com/meghashyamc/caseindex/config"
	"github.com/meghashyamc/caseindex/logger"
	"github.com/meghashyamc/caseindex/validation"
)

const shutdownTimeout = 10 * time.Second

type server struct {
	router     *gin.Engine
	httpServer *http.Server
	app        *app.App
	validator  *validation.Validator
	logger     logger.Logger
	cfg        *config.Config
}

// Run serves HTTP until ctx is cancelled or the process is interrupted.
func Run(ctx context.Context, cfg *config.Config, logger logger.Logger) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s := &server{
		logger: logger,
		cfg:    cfg,
	}
	if err := s.setupDependencies(ctx); err != nil {
		return err
	}
	s.setupRouter()

	errC := make(chan error, 1)
	s.setupHTTPServer(errC)

	return s.waitForShutdown(ctx, errC)
}

func (s *server) setupDependencies(ctx context.Context) error {
	var err error
	s.app, err = app.New(ctx, s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		s.app.Close()
		return err
	}

	return nil

}

func (s *server) setupRouter() {
	router := newRouter()

	router.Use(loggingMiddleware(s.logger))
	router.Use(rateLimitMiddleware(s.logger, newRateLimiter(s.cfg.GetRateLimit(), s.cfg.GetRateBurst())))

	setupRoutes(router, s.app, s.validator, s.cfg.GetAdminToken())

	s.router = router
}

func (s *server) setupHTTPServer(errC chan<- error) {

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler:           s.router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpServer
	go func() {
		s.logger.Info("starting http server", "addr", httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "err", err.Error())
			errC <- err
		}
	}()
}

func (s *server) waitForShutdown(ctx context.Context, errC <-chan error) error {
	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errC:
	}

	s.logger.Info("starting to shut down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error shutting down http server", "err", err.Error())
	}
	if err := s.app.Close(); err != nil {
		s.logger.Error("error closing storage", "err", err.Error())
	}
	s.logger.Info("shut down http server successfully")

	return serveErr
}
