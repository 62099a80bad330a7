package assistant

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	httpopts "github.com/kart-io/studyrag/pkg/options/server/http"
)

// 优雅关停的最长等待时间。
const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server with graceful shutdown handling.
type Server struct {
	srv     *http.Server
	cleanup []func()
}

// NewServer creates a Server from the gin engine and HTTP options.
func NewServer(engine *gin.Engine, opts *httpopts.Options) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         opts.Addr,
			Handler:      engine,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
			IdleTimeout:  opts.IdleTimeout,
		},
	}
}

// OnShutdown registers a cleanup function to run after the server stops.
func (s *Server) OnShutdown(fn func()) {
	s.cleanup = append(s.cleanup, fn)
}

// Run starts the server and blocks until a termination signal arrives.
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.runCleanup()
		return err
	case sig := <-quit:
		logger.Infow("shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	s.runCleanup()
	if err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

func (s *Server) runCleanup() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}
