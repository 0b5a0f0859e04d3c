// Package server wires the services, the REST and editor routes, static
// files and the PMTiles file server into one http.Handler.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/geoform/internal/api"
	"github.com/joeblew999/geoform/internal/api/editor"
	"github.com/joeblew999/geoform/internal/baselayer"
	"github.com/joeblew999/geoform/internal/config"
	"github.com/joeblew999/geoform/internal/db"
	"github.com/joeblew999/geoform/internal/featurestore"
	"github.com/joeblew999/geoform/internal/humastar"
	"github.com/joeblew999/geoform/internal/logger"
	"github.com/joeblew999/geoform/internal/projection"
	"github.com/joeblew999/geoform/internal/service"
	"github.com/joeblew999/geoform/internal/templates"
	"github.com/joeblew999/geoform/internal/widget"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// TilesURL is where the tiles directory is served.
const TilesURL = "/tiles"

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string

	// TemplatesDir overrides the embedded fragments. With Dev set, edits
	// are picked up without a restart.
	TemplatesDir string
	StaticDir    string
	// ConfigFile is the YAML startup file. Empty skips it.
	ConfigFile string

	// BaseURL resolves relative feature collection URLs. Defaults to
	// http://Host:Port.
	BaseURL      string
	FetchTimeout time.Duration
	CacheTTL     time.Duration

	// Extensions are DuckDB extensions to install and load.
	Extensions []string

	Dev    bool
	Logger *slog.Logger
}

// Server is the geoform HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	links    *humastar.Links
	db       *sql.DB
	services *api.Services
	renderer *templates.Renderer
	log      *slog.Logger
	cancel   context.CancelFunc
}

// New creates the server. A DuckDB failure only disables the feature
// store; a broken startup config or template set is an error.
func New(ctx context.Context, cfg Config) (*Server, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.L()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port)
	}

	mux := http.NewServeMux()
	links := humastar.NewLinks()

	humaConfig := huma.DefaultConfig("geoform API", Version)
	humaConfig.Info.Description = "Map geometry widgets for forms: editable widgets, read-only feature maps, projections and base layers."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())
	humaAPI := humago.New(mux, humaConfig)

	presets, err := service.NewPresetService(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	tiles := service.NewTileService(cfg.DataDir)
	fetcher := widget.NewHTTPFetcher(cfg.BaseURL, cfg.CacheTTL)

	mgr := widget.NewManager(widget.Config{
		Projections: projection.NewRegistry(),
		BaseLayers: &baselayer.Factory{
			TilesDir: tiles.TilesDir(),
			TilesURL: TilesURL,
			Presets:  presets,
		},
		Fetcher:      fetcher,
		Bus:          service.NewEventBus(),
		Logger:       log,
		FetchTimeout: cfg.FetchTimeout,
	})

	if cfg.ConfigFile != "" {
		startup, err := config.Load(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		if err := startup.Apply(mgr, presets); err != nil {
			return nil, err
		}
	}

	renderer, err := templates.New(cfg.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		links:    links,
		renderer: renderer,
		log:      log,
		cancel:   cancel,
		services: &api.Services{
			Widgets:    mgr,
			Presets:    presets,
			Sources:    service.NewSourceService(cfg.DataDir),
			Tiles:      tiles,
			Logger:     log,
			Invalidate: fetcher.Invalidate,
			DataDir:    cfg.DataDir,
			Version:    Version,
		},
	}

	conn, err := db.Open(ctx, db.Config{
		DataDir:    cfg.DataDir,
		DBName:     "geoform",
		Extensions: cfg.Extensions,
		Logger:     log,
	})
	if err != nil {
		log.Warn("feature store disabled", "error", err)
	} else if store, err := featurestore.New(ctx, conn); err != nil {
		log.Warn("feature store disabled", "error", err)
		conn.Close()
	} else {
		s.db = conn
		s.services.DB = conn
		s.services.Features = store
	}

	if cfg.Dev && cfg.TemplatesDir != "" {
		go func() {
			err := renderer.Watch(ctx, templates.DefaultDebounce, log, func(err error) {
				if err != nil {
					log.Error("template reload failed", "error", err)
					return
				}
				log.Info("templates reloaded", "dir", cfg.TemplatesDir)
			})
			if err != nil {
				log.Warn("template watch stopped", "error", err)
			}
		}()
	}

	s.routes()
	links.Derive(humaAPI)
	s.handler = logger.AccessMiddleware(log)(mux)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// API returns the Huma API, for exporting the OpenAPI document.
func (s *Server) API() huma.API { return s.humaAPI }

// Widgets returns the widget manager.
func (s *Server) Widgets() *widget.Manager { return s.services.Widgets }

// Features returns the feature store, or nil when DuckDB is unavailable.
func (s *Server) Features() *featurestore.Store { return s.services.Features }

// Close stops the template watcher, closes the open maps and the database.
func (s *Server) Close() error {
	s.cancel()
	for _, id := range s.services.Widgets.MapIDs() {
		s.services.Widgets.CloseMap(id)
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services)

	editor.New(editor.Config{
		Renderer:   s.renderer,
		Logger:     s.log,
		Widgets:    s.services.Widgets,
		Presets:    s.services.Presets,
		Sources:    s.services.Sources,
		Tiles:      s.services.Tiles,
		Features:   s.services.Features,
		Invalidate: s.services.Invalidate,
	}).RegisterRoutes(s.humaAPI)

	if s.config.StaticDir != "" {
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.config.StaticDir))))
	}
	s.mux.Handle(TilesURL+"/", http.StripPrefix(TilesURL+"/", s.handleTiles(s.services.Tiles.TilesDir())))

	s.mux.HandleFunc("/", s.handleRoot)
}

// handleRoot is the hypermedia entry point: the links of /health.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.Root() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "geoform",
		"version": Version,
		"status":  "running",
	})
}

// handleTiles serves PMTiles archives with the CORS and Range headers
// browser PMTiles readers need.
func (s *Server) handleTiles(tilesDir string) http.Handler {
	files := http.FileServer(http.Dir(tilesDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		files.ServeHTTP(w, r)
	})
}
