package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/geoform/internal/logger"
	"github.com/joeblew999/geoform/internal/server"
)

// Options defines all CLI flags and env vars for the geoform server.
// Flags: --host, --port, --data-dir, --config, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_CONFIG, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir      string `doc:"Directory for presets, sources, tiles and the feature store" default:".data"`
	Config       string `doc:"YAML startup file with projections, base layer presets and the item icon" short:"c"`
	TemplatesDir string `doc:"Directory overriding the embedded HTML fragments"`
	StaticDir    string `doc:"Directory served under /static/"`
	BaseURL      string `doc:"Base for relative feature collection URLs (default http://host:port)"`
	FetchTimeout string `doc:"Timeout for feature collection fetches, 0s for none" default:"0s"`
	CacheTTL     string `doc:"How long fetched feature collections are cached" default:"1m"`
	Dev          bool   `doc:"Reload templates from --templates-dir on change"`
	LogLevel     string `doc:"debug, info, warn or error" default:"info"`
	LogFormat    string `doc:"text or json" default:"text"`
}

func newServer(ctx context.Context, opts *Options) (*server.Server, *slog.Logger, error) {
	log := logger.Setup(logger.Options{Level: opts.LogLevel, Format: opts.LogFormat})
	fetchTimeout, err := time.ParseDuration(opts.FetchTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("--fetch-timeout: %w", err)
	}
	cacheTTL, err := time.ParseDuration(opts.CacheTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("--cache-ttl: %w", err)
	}
	srv, err := server.New(ctx, server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		DataDir:      opts.DataDir,
		TemplatesDir: opts.TemplatesDir,
		StaticDir:    opts.StaticDir,
		ConfigFile:   opts.Config,
		BaseURL:      opts.BaseURL,
		FetchTimeout: fetchTimeout,
		CacheTTL:     cacheTTL,
		Dev:          opts.Dev,
		Logger:       log,
	})
	return srv, log, err
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// withServer builds a server for a one-shot command and closes it before
// returning fn's error, so callers can exit without skipping the close.
func withServer(ctx context.Context, opts *Options, fn func(*server.Server) error) error {
	srv, _, err := newServer(ctx, opts)
	if err != nil {
		return err
	}
	defer srv.Close()
	return fn(srv)
}

func serve(opts *Options, started func(*http.Server)) error {
	srv, _, err := newServer(context.Background(), opts)
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	defer srv.Close()

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	displayHost := opts.Host
	if displayHost == "0.0.0.0" {
		displayHost = "localhost"
	}
	baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

	fmt.Println()
	fmt.Printf("geoform server starting...\n")
	fmt.Printf("  Server:  %s\n", baseURL)
	fmt.Printf("  Data:    %s\n", opts.DataDir)
	if opts.Config != "" {
		fmt.Printf("  Config:  %s\n", opts.Config)
	}
	fmt.Println()
	fmt.Printf("  Docs:    %s/docs\n", baseURL)
	fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
	fmt.Printf("  Events:  %s/api/v1/editor/events\n", baseURL)
	fmt.Println()

	httpServer := &http.Server{Addr: addr, Handler: srv}
	started(httpServer)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func exportSpec(ctx context.Context, opts *Options, asYAML bool, w io.Writer) error {
	return withServer(ctx, opts, func(srv *server.Server) error {
		spec := srv.API().OpenAPI()
		var (
			output []byte
			err    error
		)
		if asYAML {
			output, err = yaml.Marshal(spec)
		} else {
			output, err = json.MarshalIndent(spec, "", "  ")
		}
		if err != nil {
			return fmt.Errorf("marshaling spec: %w", err)
		}
		_, err = fmt.Fprintln(w, string(output))
		return err
	})
}

func importFile(ctx context.Context, opts *Options, file, collection string, w io.Writer) error {
	return withServer(ctx, opts, func(srv *server.Server) error {
		store := srv.Features()
		if store == nil {
			return errors.New("feature store unavailable")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
		if collection == "" {
			collection = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
		n, err := store.Import(ctx, collection, data)
		if err != nil {
			return fmt.Errorf("importing: %w", err)
		}
		_, err = fmt.Fprintf(w, "Imported %d features into %q\n", n, collection)
		return err
	})
}

func listProjections(ctx context.Context, opts *Options, w io.Writer) error {
	return withServer(ctx, opts, func(srv *server.Server) error {
		reg := srv.Widgets().Projections()
		for _, code := range reg.Codes() {
			p, err := reg.Get(code)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "%-12s %-10v %-8s %s\n", p.Code, p.Family, p.Units, p.Definition)
		}
		return nil
	})
}

func main() {
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpServer *http.Server

		hooks.OnStart(func() {
			if err := serve(opts, func(s *http.Server) { httpServer = s }); err != nil {
				fatal("Error: %v", err)
			}
		})

		hooks.OnStop(func() {
			if httpServer == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(ctx)
		})
	})

	cli.Root().Use = "geoform"
	cli.Root().Short = "Map geometry widgets for forms"
	cli.Root().Version = server.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			useYAML, _ := cmd.Flags().GetBool("yaml")
			if err := exportSpec(cmd.Context(), opts, useYAML, os.Stdout); err != nil {
				fatal("Error: %v", err)
			}
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// import subcommand: load a GeoJSON file into the feature store
	importCmd := &cobra.Command{
		Use:   "import <file.geojson>",
		Short: "Import a GeoJSON FeatureCollection into a feature store collection",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			collection, _ := cmd.Flags().GetString("collection")
			if err := importFile(cmd.Context(), opts, args[0], collection, os.Stdout); err != nil {
				fatal("Error: %v", err)
			}
		}),
	}
	importCmd.Flags().String("collection", "", "Collection name (default: file name without extension)")
	cli.Root().AddCommand(importCmd)

	// projections subcommand: list the registered projections after --config
	projectionsCmd := &cobra.Command{
		Use:   "projections",
		Short: "List registered projections",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			if err := listProjections(cmd.Context(), opts, os.Stdout); err != nil {
				fatal("Error: %v", err)
			}
		}),
	}
	cli.Root().AddCommand(projectionsCmd)

	cli.Run()
}
