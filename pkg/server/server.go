// Package server is a local gallery backend. It serves a directory tree of
// adapter files over the same HTTP contract the panel's api.Client speaks,
// with sidecar metadata, preview discovery, an external metadata sync, UI
// state and presets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pluqqy/lora-gallery/internal/logger"
)

const DefaultPrefix = "/LocalLoraGalleryRemix"

// Options configures a Server
type Options struct {
	LoraDirs   []string
	Prefix     string
	Store      Store
	CivitaiURL string
	HTTPClient *http.Client
	Logger     *slog.Logger
	// AccessLog enables chi's request logger
	AccessLog bool
}

// Server holds the backend state shared by all handlers
type Server struct {
	prefix  string
	catalog *Catalog
	store   Store
	civitai *Civitai
	hub     *Hub
	metrics *metrics
	log     *slog.Logger

	accessLog bool
}

// New builds a backend. The store is owned by the caller.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server needs a store")
	}
	if len(opts.LoraDirs) == 0 {
		return nil, errors.New("server needs at least one lora directory")
	}

	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	log = log.With("component", "server")

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	prefix = "/" + strings.Trim(prefix, "/")

	s := &Server{
		prefix:  prefix,
		catalog: NewCatalog(opts.LoraDirs, prefix, log),
		store:   opts.Store,
		civitai: NewCivitai(opts.CivitaiURL, opts.HTTPClient, log),
		hub:     NewHub(log),
		metrics: newMetrics(),
		log:     log,

		accessLog: opts.AccessLog,
	}
	s.hub.onCount = func(n int) { s.metrics.subscribers.Set(float64(n)) }
	return s, nil
}

// Catalog exposes the scanned catalog
func (s *Server) Catalog() *Catalog {
	return s.catalog
}

// Handler returns the router with every route mounted under the prefix
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	if s.accessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.instrument)

	r.Route(s.prefix, func(r chi.Router) {
		r.Get("/get_loras", s.getLoras)
		r.Get("/get_all_tags", s.getAllTags)
		r.Get("/preview", s.getPreview)
		r.Post("/update_metadata", s.updateMetadata)
		r.Post("/sync_civitai", s.syncCivitai)
		r.Post("/get_lora_training_info", s.trainingInfo)

		r.Get("/get_ui_state", s.getUIState)
		r.Post("/set_ui_state", s.setUIState)

		r.Get("/get_presets", s.getPresets)
		r.Post("/save_preset", s.savePreset)
		r.Post("/delete_preset", s.deletePreset)

		r.Get("/events", s.hub.ServeHTTP)
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	return r
}

// ListenAndServe runs the backend on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gallery backend listening", "addr", addr, "prefix", s.prefix)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down gallery backend")
		return srv.Shutdown(shutdownCtx)
	}
}
