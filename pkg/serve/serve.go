// Package serve exposes the data directory over HTTP, so the aggregate,
// the individual exports and the analysis CSV can be browsed locally.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"reg-scraper/pkg/config"
)

const shutdownGrace = 5 * time.Second

// Server is a static file server over the data directory.
type Server struct {
	addr string
	dir  string
	log  *logrus.Entry
}

func NewServer(cfg config.ServeConfig, log *logrus.Entry) *Server {
	return &Server{
		addr: cfg.Addr,
		dir:  cfg.Dir,
		log:  log.WithField("component", "server"),
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to five seconds before returning.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.logRequests(http.FileServer(http.Dir(s.dir))),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithFields(logrus.Fields{
			"addr": s.addr,
			"dir":  s.dir,
		}).Info("Serving data directory")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh // ListenAndServe returns ErrServerClosed once Shutdown begins
		s.log.Info("Server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   recorder.status,
			"duration": time.Since(start).Round(time.Millisecond).String(),
		}).Info("Request served")
	})
}

// statusRecorder captures the status code written by the file server, for
// the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
