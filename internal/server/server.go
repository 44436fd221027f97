package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeblew999/plat-marine/internal/api"
	"github.com/joeblew999/plat-marine/internal/api/editor"
	"github.com/joeblew999/plat-marine/internal/db"
	"github.com/joeblew999/plat-marine/internal/dtn"
	"github.com/joeblew999/plat-marine/internal/humastar"
	"github.com/joeblew999/plat-marine/internal/loop"
	"github.com/joeblew999/plat-marine/internal/overlay"
	"github.com/joeblew999/plat-marine/internal/query"
	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/service"
	"github.com/joeblew999/plat-marine/internal/session"
	"github.com/joeblew999/plat-marine/internal/style"
	"github.com/joeblew999/plat-marine/internal/surface"
	"github.com/joeblew999/plat-marine/internal/templates"
)

// Snapshot store backends.
const (
	StoreFile   = "file"
	StoreDuckDB = "duckdb"
)

// Config holds the server configuration.
type Config struct {
	Host         string
	Port         string
	DataDir      string
	TemplatesDir string // overrides the embedded fragments when set
	Catalog      string // overlay catalogue file; the embedded one when empty
	Store        string // StoreFile or StoreDuckDB

	DTNURL string
	ECAURL string
	Token  string

	Theme      style.Theme
	LightStyle string
	DarkStyle  string

	Timeout       time.Duration // remote fetch timeout
	FPS           int
	StyleLatency  time.Duration // simulated base style load time
	AutosaveDelay time.Duration

	Logger *slog.Logger
	Clock  clockwork.Clock
}

// Server is the marine HTTP server. It owns the engine loop and everything
// that runs on it.
type Server struct {
	config   Config
	log      *slog.Logger
	clock    clockwork.Clock
	mux      *http.ServeMux
	humaAPI  huma.API
	links    *humastar.Links
	db       *sql.DB
	services *api.Services
	renderer *templates.Renderer
	frames   *surface.FrameDriver
	restore  service.Snapshot

	stop     context.CancelFunc
	loopDone chan struct{}
	saveDone chan struct{}
}

// New wires the engine and the HTTP API. Nothing runs until Start.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Store == "" {
		cfg.Store = StoreFile
	}
	if cfg.AutosaveDelay <= 0 {
		cfg.AutosaveDelay = time.Second
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config: cfg,
		log:    cfg.Logger.With("component", "server"),
		clock:  cfg.Clock,
		mux:    http.NewServeMux(),
	}

	snapshots, err := s.openStore()
	if err != nil {
		return nil, err
	}
	snap, err := snapshots.Load(context.Background())
	if err != nil {
		s.log.Warn("Failed to load snapshot, starting empty", "error", err)
		snap = service.Snapshot{}
	}
	theme := cfg.Theme
	if snap.Theme != "" {
		if t, err := style.ParseTheme(snap.Theme); err == nil {
			theme = t
		}
	}
	s.restore = snap

	var token string
	if cfg.Token != "" {
		token = dtn.BearerToken(cfg.Token)
	}
	tokens := dtn.NewTokenStore(token)
	sess, err := session.New(session.Config{
		Theme:         theme,
		LightStyleURL: cfg.LightStyle,
		DarkStyleURL:  cfg.DarkStyle,
		Tokens:        tokens,
		Logger:        cfg.Logger,
	})
	if err != nil {
		s.closeDB()
		return nil, err
	}

	l := loop.New()
	mem := surface.NewMemory(sess.StyleURL(sess.Theme()))
	mem.Loader = surface.DelayedLoader(mem, l, cfg.Clock, cfg.StyleLatency)
	s.frames = surface.NewFrameDriver(mem, l, cfg.Clock, cfg.FPS)

	remote := dtn.NewClient(dtn.Options{
		BaseURL: cfg.DTNURL,
		Timeout: cfg.Timeout,
		Logger:  cfg.Logger,
	})
	bus := service.NewEventBus()
	store := service.NewConfigStore(style.DefaultsFunc(cat))
	store.Subscribe(func(id string, _ service.LayerConfig) {
		bus.Publish(service.Event{Resource: "config", Action: "updated", Target: id})
	})
	mgr := overlay.New(overlay.Config{
		Surface: mem,
		Poster:  l,
		Catalog: cat,
		Store:   store,
		Remote:  remote,
		Session: sess,
		Bus:     bus,
	})
	mgr.Attach()

	s.services = &api.Services{
		Loop:     l,
		Overlays: mgr,
		Catalog:  cat,
		Store:    store,
		Session:  sess,
		Tokens:   tokens,
		Query: query.New(query.Config{
			Surface:   mem,
			Catalog:   cat,
			Owners:    mgr,
			Theme:     sess.Theme,
			Annotator: query.BusAnnotator{Bus: bus},
			Logger:    cfg.Logger,
		}),
		Surface:   mem,
		Snapshots: snapshots,
		Bus:       bus,
		Remote:    remote,
	}

	if cfg.TemplatesDir != "" {
		s.renderer, err = templates.New(os.DirFS(cfg.TemplatesDir))
		if err == nil {
			s.log.Info("Loaded fragment templates", "dir", cfg.TemplatesDir)
		}
	} else {
		s.renderer, err = templates.Default()
	}
	if err != nil {
		s.closeDB()
		return nil, fmt.Errorf("templates: %w", err)
	}

	humaConfig := huma.DefaultConfig("plat-marine API", "1.0.0")
	humaConfig.Info.Description = "Overlay orchestration engine for weather and maritime map layers."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s", net.JoinHostPort(displayHost(cfg.Host), cfg.Port)), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	s.links = humastar.NewLinks("/health")
	humaConfig.Transformers = append(humaConfig.Transformers, s.links.Transformer())
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes()
	return s, nil
}

func loadCatalog(cfg Config) (*registry.Catalog, error) {
	var (
		cat *registry.Catalog
		err error
	)
	if cfg.Catalog != "" {
		f, ferr := os.Open(cfg.Catalog)
		if ferr != nil {
			return nil, fmt.Errorf("catalog: %w", ferr)
		}
		defer f.Close()
		cat, err = registry.Load(f)
	} else {
		cat, err = registry.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if cfg.ECAURL != "" && cat.Has("eca") {
		return cat.WithDataURL("eca", cfg.ECAURL)
	}
	return cat, nil
}

func (s *Server) openStore() (service.SnapshotStore, error) {
	switch s.config.Store {
	case StoreFile:
		return service.NewFileStore(s.config.DataDir), nil
	case StoreDuckDB:
		conn, err := db.Open(db.Config{DataDir: s.config.DataDir, DBName: "marine"})
		if err != nil {
			return nil, fmt.Errorf("duckdb: %w", err)
		}
		s.db = conn
		return db.NewSnapshotStore(conn), nil
	}
	return nil, fmt.Errorf("unknown store %q", s.config.Store)
}

func (s *Server) routes() {
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))
	huma.AutoRegister(s.humaAPI, api.NewInfoHandler(s.config.DataDir, s.config.Store, s.services.Remote))

	var tables api.TableLister
	if s.db != nil {
		tables = func(ctx context.Context) ([]string, error) { return db.Tables(ctx, s.db) }
	}
	huma.AutoRegister(s.humaAPI, api.NewDBHandler(tables))

	// Editor SSE routes (Huma + Datastar)
	huma.AutoRegister(s.humaAPI, editor.NewOverlayHandler(s.services, s.renderer))
	huma.AutoRegister(s.humaAPI, editor.NewConfigHandler(s.services, s.renderer))
	huma.AutoRegister(s.humaAPI, editor.NewThemeHandler(s.services, s.renderer))
	huma.AutoRegister(s.humaAPI, editor.NewClickHandler(s.services, s.renderer))
	huma.AutoRegister(s.humaAPI, editor.NewEventHandler(s.services, s.renderer))

	// Must run after every route is registered.
	s.links.Build(s.humaAPI)

	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.Entry() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-marine",
		"status":  "running",
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// ReloadTemplates re-reads the fragment templates from TemplatesDir. It is a
// no-op when the embedded fragments are in use.
func (s *Server) ReloadTemplates() error {
	if s.config.TemplatesDir == "" {
		return nil
	}
	if err := s.renderer.Reload(os.DirFS(s.config.TemplatesDir)); err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	s.log.Info("Reloaded fragment templates", "dir", s.config.TemplatesDir)
	return nil
}

// Services exposes the engine wiring.
func (s *Server) Services() *api.Services {
	return s.services
}

// Start runs the engine loop, the frame driver and the autosave worker,
// restores the persisted overlays and requests the initial base style. The
// engine keeps running after ctx is cancelled until Stop is called; ctx
// only bounds autosave.
func (s *Server) Start(ctx context.Context) {
	loopCtx, stop := context.WithCancel(context.Background())
	s.stop = stop
	s.loopDone = make(chan struct{})
	s.saveDone = make(chan struct{})

	go func() {
		defer close(s.loopDone)
		s.services.Loop.Run(loopCtx)
	}()
	go s.frames.Run(loopCtx)

	snap := s.restore
	svc := s.services
	svc.Loop.Post(func() {
		if snap.Configs != nil {
			svc.Store.Import(snap.Configs)
		}
		if len(snap.Active) > 0 {
			svc.Overlays.Restore(loopCtx, snap.Active)
		}
		if !svc.Surface.IsStyleLoaded() && svc.Surface.Loader != nil {
			svc.Surface.Loader(svc.Surface.Style())
		}
	})

	go s.autosave(ctx, svc.Bus.Subscribe())
}

// autosave persists the engine state a short while after the last change
// and once more on shutdown if a save is pending.
func (s *Server) autosave(ctx context.Context, events chan service.Event) {
	defer close(s.saveDone)
	defer s.services.Bus.Unsubscribe(events)

	timer := s.clock.NewTimer(s.config.AutosaveDelay)
	timer.Stop()
	pending := false

	save := func(ctx context.Context) {
		pending = false
		if err := s.services.Save(ctx); err != nil {
			s.log.Warn("Autosave failed", "error", err)
			return
		}
		s.log.Debug("Snapshot saved")
	}

	for {
		select {
		case <-ctx.Done():
			if pending {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				save(flushCtx)
				cancel()
			}
			return
		case ev := <-events:
			switch ev.Resource {
			case "overlays", "config", "theme":
				if pending {
					timer.Stop()
				}
				timer.Reset(s.config.AutosaveDelay)
				pending = true
			}
		case <-timer.Chan():
			if pending {
				save(ctx)
			}
		}
	}
}

// Stop waits for autosave to finish, closes the overlay manager, stops the
// loop and closes the database.
func (s *Server) Stop() {
	if s.stop == nil {
		s.closeDB()
		return
	}
	<-s.saveDone
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := s.services.Call(closeCtx, func() error {
		s.services.Overlays.Close()
		return nil
	})
	cancel()
	if err != nil && !errors.Is(err, loop.ErrClosed) {
		s.log.Warn("Overlay manager close failed", "error", err)
	}
	s.stop()
	<-s.loopDone
	s.closeDB()
}

func (s *Server) closeDB() {
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.Start(srvCtx)

	httpSrv := &http.Server{
		Addr:        net.JoinHostPort(s.config.Host, s.config.Port),
		Handler:     s,
		BaseContext: func(net.Listener) context.Context { return srvCtx },
	}

	var wg sync.WaitGroup
	errc := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("HTTP shutdown incomplete", "error", err)
	}
	stop()
	wg.Wait()

	cancel()
	s.Stop()
	return runErr
}

func displayHost(host string) string {
	if host == "" || host == "0.0.0.0" {
		return "localhost"
	}
	return host
}
