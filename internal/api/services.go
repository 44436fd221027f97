package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/dtn"
	"github.com/joeblew999/plat-marine/internal/loop"
	"github.com/joeblew999/plat-marine/internal/overlay"
	"github.com/joeblew999/plat-marine/internal/query"
	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/service"
	"github.com/joeblew999/plat-marine/internal/session"
	"github.com/joeblew999/plat-marine/internal/style"
	"github.com/joeblew999/plat-marine/internal/surface"
)

// Services holds the dependencies shared by the REST and editor handlers.
// Everything that touches the engine goes through Loop.
type Services struct {
	Loop      *loop.Loop
	Overlays  *overlay.Manager
	Catalog   *registry.Catalog
	Store     *service.ConfigStore
	Session   *session.Session
	Tokens    *dtn.TokenStore
	Query     *query.Interaction
	Surface   *surface.Memory
	Snapshots service.SnapshotStore
	Bus       *service.EventBus
	Remote    *dtn.Client
}

// Call runs fn on the engine loop.
func (s *Services) Call(ctx context.Context, fn func() error) error {
	return s.Loop.Call(ctx, fn)
}

// Capture reads the current engine state as a snapshot.
func (s *Services) Capture(ctx context.Context) (service.Snapshot, error) {
	var snap service.Snapshot
	err := s.Call(ctx, func() error {
		snap = service.Snapshot{
			Theme:   string(s.Overlays.Theme()),
			Active:  s.Overlays.Active(),
			Configs: s.Store.Export(),
		}
		return nil
	})
	return snap, err
}

// ApplySnapshot replaces the engine state with snap: every overlay is
// removed, the stored records are replaced, the theme is switched if it
// differs and the snapshot's overlays are restored in order. The returned
// activations settle as the overlays come back.
func (s *Services) ApplySnapshot(ctx context.Context, snap service.Snapshot) ([]*overlay.Activation, error) {
	var theme style.Theme
	if snap.Theme != "" {
		t, err := style.ParseTheme(snap.Theme)
		if err != nil {
			return nil, err
		}
		theme = t
	}
	var acts []*overlay.Activation
	err := s.Call(ctx, func() error {
		if err := s.Overlays.DeactivateAll(); err != nil {
			s.Session.Log.Warn("Snapshot teardown incomplete", "error", err)
		}
		s.Store.Import(snap.Configs)
		if theme != "" && theme != s.Overlays.Theme() {
			if err := s.Overlays.OnThemeChanged(theme); err != nil {
				return err
			}
		}
		acts = s.Overlays.Restore(ctx, snap.Active)
		return nil
	})
	return acts, err
}

// Save persists the current state.
func (s *Services) Save(ctx context.Context) error {
	if s.Snapshots == nil {
		return nil
	}
	snap, err := s.Capture(ctx)
	if err != nil {
		return err
	}
	return s.Snapshots.Save(ctx, snap)
}

// httpError maps engine errors onto HTTP status errors.
func httpError(err error) error {
	var se huma.StatusError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return err
	case errors.Is(err, overlay.ErrUnknownOverlay):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, overlay.ErrSurfaceNotReady),
		errors.Is(err, overlay.ErrActivationCancelled),
		errors.Is(err, overlay.ErrActivationSuperseded),
		errors.Is(err, overlay.ErrClosed),
		errors.Is(err, loop.ErrClosed):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, overlay.ErrRemoteFetch):
		return huma.Error502BadGateway(err.Error())
	case errors.Is(err, overlay.ErrTranslation),
		errors.Is(err, style.ErrInvalidTheme),
		errors.Is(err, service.ErrInvalidConfig):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, overlay.ErrSurfaceRejected):
		return huma.Error500InternalServerError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
