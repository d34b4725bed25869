// Package keepalive serves the fixed liveness endpoint hosting platforms
// probe to keep the process alive. It carries no application semantics.
package keepalive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erbtraffic/licensebot/core/logger"
)

// Body is the constant response returned on every request.
const Body = "ERB Traffic Bot is Alive!"

const shutdownTimeout = 5 * time.Second

// Handler returns the liveness handler.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(Body))
	})
}

// Server wraps the liveness HTTP listener.
type Server struct {
	srv *http.Server
}

// New builds a Server listening on the given port.
func New(port int) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start begins serving in a background goroutine and returns immediately.
// Listener errors other than a clean close are logged, not fatal: the bot
// keeps running even if the probe port is taken.
func (s *Server) Start(ctx context.Context) {
	logger.Info(ctx, "keepalive", "listen",
		slog.String("status", "ok"),
		slog.String("listen", s.srv.Addr),
	)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "keepalive", "serve.fail",
				slog.String("err", err.Error()),
			)
		}
	}()
}

// Stop shuts the listener down, waiting briefly for in-flight probes.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("keepalive shutdown: %w", err)
	}
	return nil
}
