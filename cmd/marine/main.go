package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-marine/internal/logging"
	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/server"
	"github.com/joeblew999/plat-marine/internal/style"
)

// Options defines all CLI flags and env vars for the marine server.
// Flags: --host, --port, --data-dir, --dtn-url, --theme, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_DTN_URL, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir      string `doc:"Directory for snapshots and the database" default:".data"`
	TemplatesDir string `doc:"Directory of fragment templates overriding the embedded ones"`
	Catalog      string `doc:"Overlay catalogue YAML overriding the embedded one"`
	Store        string `doc:"Snapshot store backend (file or duckdb)" default:"file"`

	DtnURL string `doc:"Tile and metadata service base URL" default:"https://map.api.dtn.com"`
	EcaURL string `doc:"GeoJSON endpoint for emission control areas"`
	Token  string `doc:"Access token for the tile service"`

	Theme      string `doc:"Initial theme (light or dark)" default:"light"`
	LightStyle string `doc:"Base style URL for the light theme"`
	DarkStyle  string `doc:"Base style URL for the dark theme"`

	LogLevel  string `doc:"Log level (debug, info, warn, error)" default:"info"`
	LogFormat string `doc:"Log format (text or json)" default:"text"`

	Timeout      string `doc:"Remote fetch timeout" default:"15s"`
	Fps          int    `doc:"Frame rate of the animation driver" default:"30"`
	StyleLatency string `doc:"Simulated base style load time" default:"100ms"`
	Autosave     string `doc:"Delay before changes are persisted" default:"1s"`
}

func duration(name, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func serverConfig(opts *Options, log *slog.Logger) (server.Config, error) {
	theme, err := style.ParseTheme(opts.Theme)
	if err != nil {
		return server.Config{}, fmt.Errorf("--theme: %w", err)
	}
	timeout, err := duration("timeout", opts.Timeout)
	if err != nil {
		return server.Config{}, err
	}
	latency, err := duration("style-latency", opts.StyleLatency)
	if err != nil {
		return server.Config{}, err
	}
	autosave, err := duration("autosave", opts.Autosave)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Host:          opts.Host,
		Port:          strconv.Itoa(opts.Port),
		DataDir:       opts.DataDir,
		TemplatesDir:  opts.TemplatesDir,
		Catalog:       opts.Catalog,
		Store:         opts.Store,
		DTNURL:        opts.DtnURL,
		ECAURL:        opts.EcaURL,
		Token:         opts.Token,
		Theme:         theme,
		LightStyle:    opts.LightStyle,
		DarkStyle:     opts.DarkStyle,
		Timeout:       timeout,
		FPS:           opts.Fps,
		StyleLatency:  latency,
		AutosaveDelay: autosave,
		Logger:        log,
	}, nil
}

func newServer(opts *Options, log *slog.Logger) *server.Server {
	cfg, err := serverConfig(opts, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	srv, err := server.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return srv
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		hooks.OnStart(func() {
			log := logging.InitLogger(opts.LogLevel, opts.LogFormat)
			srv := newServer(opts, log)

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-marine API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s (%s)\n", opts.DataDir, opts.Store)
			fmt.Println()
			fmt.Printf("  Events:  %s/api/v1/editor/events\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-hup:
						if err := srv.ReloadTemplates(); err != nil {
							log.Warn("Template reload failed", "error", err)
						}
					}
				}
			}()
			if err := srv.Run(ctx); err != nil {
				log.Error("Server error", "error", err)
				os.Exit(1)
			}
			log.Info("Server stopped")
		})
	})

	cli.Root().Use = "marine"
	cli.Root().Short = "Weather and maritime overlay orchestration service"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			log := logging.InitLogger("error", opts.LogFormat)
			srv := newServer(opts, log)
			defer srv.Stop()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// catalog subcommand: print the overlay catalogue
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the overlay catalogue as YAML",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cat, err := loadCatalog(opts.Catalog)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			output, err := yaml.Marshal(map[string]any{"overlays": cat.List()})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling catalogue: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(string(output))
		}),
	}
	cli.Root().AddCommand(catalogCmd)

	cli.Run()
}

func loadCatalog(path string) (*registry.Catalog, error) {
	if path == "" {
		return registry.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return registry.Load(f)
}
