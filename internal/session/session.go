// Package session holds the process-wide context the overlay engine runs
// under: the active theme, the base style for each theme, the access-token
// provider and the logger.
package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/joeblew999/plat-marine/internal/dtn"
	"github.com/joeblew999/plat-marine/internal/style"
)

// Default base styles.
const (
	LightStyleURL = "mapbox://styles/geoserve/cmbhl6k77009w01r0hfa78uw7"
	DarkStyleURL  = "mapbox://styles/geoserve/cmb8z5ztq00rw01qxauh6gv66"
)

// Config configures a Session.
type Config struct {
	Theme         style.Theme
	LightStyleURL string
	DarkStyleURL  string
	Tokens        dtn.TokenProvider
	Logger        *slog.Logger
}

// Session is safe for concurrent use.
type Session struct {
	mu     sync.RWMutex
	theme  style.Theme
	styles map[style.Theme]string

	Tokens dtn.TokenProvider
	Log    *slog.Logger
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Session, error) {
	if cfg.Theme == "" {
		cfg.Theme = style.Light
	}
	if _, err := style.ParseTheme(string(cfg.Theme)); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if cfg.LightStyleURL == "" {
		cfg.LightStyleURL = LightStyleURL
	}
	if cfg.DarkStyleURL == "" {
		cfg.DarkStyleURL = DarkStyleURL
	}
	if cfg.Tokens == nil {
		cfg.Tokens = dtn.NewTokenStore("")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		theme: cfg.Theme,
		styles: map[style.Theme]string{
			style.Light: cfg.LightStyleURL,
			style.Dark:  cfg.DarkStyleURL,
		},
		Tokens: cfg.Tokens,
		Log:    cfg.Logger,
	}, nil
}

// Theme returns the active theme.
func (s *Session) Theme() style.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme records t as the active theme.
func (s *Session) SetTheme(t style.Theme) {
	s.mu.Lock()
	s.theme = t
	s.mu.Unlock()
}

// StyleURL returns the base style of t.
func (s *Session) StyleURL(t style.Theme) string {
	return s.styles[t]
}
