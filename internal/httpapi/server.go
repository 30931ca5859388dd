// Package httpapi exposes the simulation engine over HTTP with JSON
// bodies. Every route is a thin adapter over app.Context.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/san-kum/trainsim/internal/app"
)

const Version = "0.1.0"

type Server struct {
	app     *app.Context
	logger  *log.Logger
	router  chi.Router
	started time.Time
}

func New(c *app.Context, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{app: c, logger: logger, started: time.Now()}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(corsMiddleware)

	r.Get("/status", s.serverStatus)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Route("/parameters", func(r chi.Router) {
			r.Get("/", s.getParameters)
			r.Post("/", s.setParameters)
			r.Get("/train", getGroup(s.app.Params.Train))
			r.Post("/train", setGroup(s, "train", s.app.Params.SetTrain, s.app.Params.Train))
			r.Get("/electrical", getGroup(s.app.Params.Electrical))
			r.Post("/electrical", setGroup(s, "electrical", s.app.Params.SetElectrical, s.app.Params.Electrical))
			r.Get("/running", getGroup(s.app.Params.Running))
			r.Post("/running", setGroup(s, "running", s.app.Params.SetRunning, s.app.Params.Running))
			r.Get("/track", getGroup(s.app.Params.Track))
			r.Post("/track", setGroup(s, "track", s.app.Params.SetTrack, s.app.Params.Track))
		})

		r.Get("/presets", s.listPresets)
		r.Post("/presets/{name}", s.loadPreset)

		r.Route("/simulation", func(r chi.Router) {
			r.Post("/start", s.startSimulation)
			r.Get("/status", s.simulationStatus)
			r.Get("/results", s.simulationResults)
			r.Post("/cancel", s.cancelSimulation)
			r.Post("/reset", s.resetSimulation)
		})

		r.Route("/export", func(r chi.Router) {
			r.Get("/results", s.exportResults)
			r.Post("/results", s.exportResults)
			r.Get("/chart.{format}", s.exportChart)
		})

		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
		r.Get("/runs/{id}/samples.csv", s.getRunSamples)
	})
	return r
}

// Routes lists every registered route as "METHOD /path", sorted by path.
func (s *Server) Routes() []string {
	var out []string
	_ = chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		out = append(out, fmt.Sprintf("%-4s %s", method, strings.TrimSuffix(route, "/")))
		return nil
	})
	slices.SortFunc(out, func(a, b string) int {
		if c := strings.Compare(a[5:], b[5:]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return out
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	cfg := s.app.Config.Server
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start),
			"req", middleware.GetReqID(r.Context()))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
