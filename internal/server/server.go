// Package server exposes the document pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/urfave/negroni"

	"github.com/joseph-ayodele/docforge/internal/common"
	"github.com/joseph-ayodele/docforge/internal/entity"
	"github.com/joseph-ayodele/docforge/internal/ingest"
	"github.com/joseph-ayodele/docforge/internal/pipeline"
)

// DocumentService is the pipeline surface the handlers need;
// *pipeline.Orchestrator implements it.
type DocumentService interface {
	Ingest(ctx context.Context, uploads []pipeline.Upload) []pipeline.FileOutcome
	IngestEnhanced(ctx context.Context, u pipeline.Upload) pipeline.FileOutcome
	Get(ctx context.Context, id int64) (*entity.Document, error)
	List(ctx context.Context) ([]*entity.Document, error)
	Delete(ctx context.Context, id int64) (*entity.Document, error)
}

// Pinger reports backing store health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Config struct {
	UploadDir   string
	MaxFiles    int
	MaxBytes    int64
	CORSOrigins []string
}

type Server struct {
	cfg     Config
	svc     DocumentService
	uploads *ingest.Store
	pinger  Pinger
	logger  *slog.Logger
}

type Option func(*Server)

func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

func New(cfg Config, svc DocumentService, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 50
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 100 << 20
	}
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		uploads: ingest.NewStore(cfg.UploadDir),
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes registers the document API on a fresh router.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	d := r.PathPrefix("/documents").Subrouter()
	d.HandleFunc("", s.listDocuments).Methods(http.MethodGet)
	d.HandleFunc("/upload", s.uploadDocuments).Methods(http.MethodPost)
	d.HandleFunc("/upload-and-convert", s.uploadAndConvert).Methods(http.MethodPost)
	d.HandleFunc("/{id:[0-9]+}", s.getDocument).Methods(http.MethodGet)
	d.HandleFunc("/{id:[0-9]+}", s.deleteDocument).Methods(http.MethodDelete)
	d.HandleFunc("/{id:[0-9]+}/pdf", s.downloadPDF).Methods(http.MethodGet)
	d.HandleFunc("/{id:[0-9]+}/json", s.downloadJSON).Methods(http.MethodGet)
	d.HandleFunc("/{id:[0-9]+}/xlsx", s.downloadXLSX).Methods(http.MethodGet)
	return r
}

// Handler wraps the routes with recovery, access logging, request ids and CORS.
func (s *Server) Handler() http.Handler {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	n.Use(negroni.HandlerFunc(s.requestID))
	n.UseHandler(s.Routes())

	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
	}).Handler(n)
}

// HTTPServer builds the listener-side server with the timeouts used in production.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}
}

func (s *Server) requestID(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	id := r.Header.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", id)
	ctx := common.WithRequestID(r.Context(), id)
	ctx = common.WithLogger(ctx, s.logger.With("request_id", id))
	next(w, r.WithContext(ctx))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			common.LoggerFromContext(r.Context(), s.logger).Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}
