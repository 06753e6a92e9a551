package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"medassist/internal/db"
	"medassist/internal/metrics"
)

// Server exposes the patient records read-only over HTTP for reporting
// dashboards.  It never writes to the store.
type Server struct {
	Store   db.Store
	Metrics *metrics.Recorder
	Origins []string
	log     zerolog.Logger
}

// NewServer constructs a Server.  origins lists the browser origins allowed
// by CORS; "*" allows any.
func NewServer(store db.Store, rec *metrics.Recorder, origins []string, logger zerolog.Logger) *Server {
	return &Server{
		Store:   store,
		Metrics: rec,
		Origins: origins,
		log:     logger.With().Str("component", "http").Logger(),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.Origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/patients", s.handlePatients)
	r.Get("/healthz", s.handleHealth)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}
	return r
}

// handlePatients returns the stored records as a JSON array in store order.
func (s *Server) handlePatients(w http.ResponseWriter, r *http.Request) {
	all, err := s.Store.LoadAll(r.Context())
	if errors.Is(err, db.ErrStoreCorrupt) {
		s.log.Error().Err(err).Msg("patient store is corrupt")
		writeDetail(w, http.StatusInternalServerError, "Invalid JSON format in file")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load patients")
		writeDetail(w, http.StatusInternalServerError, "Could not read patient records")
		return
	}
	body, err := db.Encode(all)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// requestLogger logs every request to zerolog and records it in the metrics.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		s.Metrics.HTTPRequest(r.Method, endpoint, status, elapsed)
		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Msg("request")
	})
}
