package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	handlers *Handlers
	gatherer prometheus.Gatherer
	log      logrus.FieldLogger
}

func NewServer(handlers *Handlers, gatherer prometheus.Gatherer, log logrus.FieldLogger) *Server {
	return &Server{
		handlers: handlers,
		gatherer: gatherer,
		log:      log,
	}
}

func html(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>"))
		next.ServeHTTP(w, r)
		w.Write([]byte("</body></html>"))
	})
}

// Routes builds http handler for status pages
func (s *Server) Routes() http.Handler {
	mux := chi.NewMux()
	mux.With(html).Get("/", s.handlers.Index)
	mux.Get("/status", s.handlers.Status)
	mux.Get("/reviewers/{id}", s.handlers.Reviewer)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Listen serves until ctx is cancelled
func (s *Server) Listen(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("web server started")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "web server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "web server shutdown")
	}
	return nil
}
