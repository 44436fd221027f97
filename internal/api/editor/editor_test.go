package editor

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-marine/internal/api"
	"github.com/joeblew999/plat-marine/internal/dtn"
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

type noRemote struct{}

func (noRemote) DescribeLayer(context.Context, string, string) (string, error) {
	return "src", nil
}

func (noRemote) TileURL(string, string, string) string {
	return "https://tiles.test/{z}/{x}/{y}.pbf"
}

func (noRemote) FetchFeatureCollection(context.Context, string) (*geojson.FeatureCollection, error) {
	return geojson.NewFeatureCollection(), nil
}

func newEditor(t *testing.T) (humatest.TestAPI, *api.Services) {
	t.Helper()
	cat, err := registry.Default()
	require.NoError(t, err)
	l := loop.New()
	sess, err := session.New(session.Config{
		Tokens: dtn.NewTokenStore("tok"),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	surf := surface.NewMemory(sess.StyleURL(style.Light))
	surf.Loader = func(_ string, epoch uint64) {
		l.Post(func() { surf.CompleteStyleLoad(epoch) })
	}
	bus := service.NewEventBus()
	store := service.NewConfigStore(style.DefaultsFunc(cat))
	mgr := overlay.New(overlay.Config{
		Surface: surf, Poster: l, Catalog: cat, Store: store,
		Remote: noRemote{}, Session: sess, Bus: bus,
	})
	mgr.Attach()
	svc := &api.Services{
		Loop: l, Overlays: mgr, Catalog: cat, Store: store, Session: sess, Surface: surf, Bus: bus,
		Query: query.New(query.Config{Surface: surf, Catalog: cat, Owners: mgr, Theme: sess.Theme}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(cancel)
	require.NoError(t, l.Call(ctx, func() error {
		surf.FinishStyleLoad()
		return nil
	}))

	renderer, err := templates.Default()
	require.NoError(t, err)
	tapi := humatest.Wrap(t, humago.New(http.NewServeMux(), huma.DefaultConfig("Editor", "1.0.0")))
	NewOverlayHandler(svc, renderer).RegisterRoutes(tapi)
	NewConfigHandler(svc, renderer).RegisterRoutes(tapi)
	NewThemeHandler(svc, renderer).RegisterRoutes(tapi)
	NewClickHandler(svc, renderer).RegisterRoutes(tapi)
	return tapi, svc
}

func TestListOverlays(t *testing.T) {
	tapi, _ := newEditor(t)
	resp := tapi.Get("/api/v1/editor/overlays")
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, "#overlay-list")
	assert.Contains(t, body, `id="overlay-swell"`)
	assert.Contains(t, body, "@post('/api/v1/editor/overlays/swell')")
}

func TestAddAndRemoveOverlay(t *testing.T) {
	tapi, svc := newEditor(t)

	resp := tapi.Post("/api/v1/editor/overlays/nautical")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `id="overlay-nautical" class="overlay overlay-active"`)

	resp = tapi.Delete("/api/v1/editor/overlays/nautical")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Overlay removed")

	var state overlay.State
	require.NoError(t, svc.Call(context.Background(), func() error {
		state = svc.Overlays.State("nautical")
		return nil
	}))
	assert.Equal(t, overlay.Inactive, state)

	resp = tapi.Post("/api/v1/editor/overlays/tides")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpdateConfig(t *testing.T) {
	tapi, svc := newEditor(t)

	resp := tapi.Post("/api/v1/editor/config", map[string]any{
		"overlay": "wind",
		"config":  map[string]any{"speedUnit": "kmh"},
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "wind updated")
	assert.Equal(t, "kmh", svc.Store.Get("wind")["speedUnit"])

	resp = tapi.Post("/api/v1/editor/config", map[string]any{"overlay": "wind"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestToggleTheme(t *testing.T) {
	tapi, _ := newEditor(t)
	resp := tapi.Put("/api/v1/editor/theme")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "theme-dark")
}

func TestClickOnNothing(t *testing.T) {
	tapi, _ := newEditor(t)
	resp := tapi.Post("/api/v1/editor/click", map[string]any{"x": 1, "y": 1, "lng": 4.5, "lat": 52})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `<div id="annotation"></div>`)
}
