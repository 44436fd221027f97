package query

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/service"
	"github.com/joeblew999/plat-marine/internal/style"
	"github.com/joeblew999/plat-marine/internal/surface"
)

type owners map[string]string

func (o owners) OwnerOf(layerID string) (string, bool) {
	id, ok := o[layerID]
	return id, ok
}

type recorder struct {
	shown []Annotation
	hides int
}

func (r *recorder) Show(a Annotation) { r.shown = append(r.shown, a) }
func (r *recorder) Hide()             { r.hides++ }

var square = orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}

func addArea(t *testing.T, surf *surface.Memory, layerID string, props map[string]any) {
	t.Helper()
	f := geojson.NewFeature(square)
	for k, v := range props {
		f.Properties[k] = v
	}
	fc := geojson.NewFeatureCollection().Append(f)
	src := layerID + "-src"
	require.NoError(t, surf.AddSource(src, surface.SourceSpec{Type: surface.SourceGeoJSON, Data: fc}))
	require.NoError(t, surf.AddLayer(surface.LayerSpec{ID: layerID, Type: "fill", Source: src}, ""))
}

func newInteraction(t *testing.T, own owners) (*Interaction, *surface.Memory, *recorder) {
	t.Helper()
	cat, err := registry.Default()
	require.NoError(t, err)
	surf := surface.NewMemory("light-style")
	surf.FinishStyleLoad()
	rec := &recorder{}
	theme := style.Dark
	q := New(Config{
		Surface:   surf,
		Catalog:   cat,
		Owners:    own,
		Theme:     func() style.Theme { return theme },
		Annotator: rec,
	})
	return q, surf, rec
}

func TestHandleClick_TopMostFeature(t *testing.T) {
	q, surf, rec := newInteraction(t, owners{"dtn-layer-swell": "swell", "dtn-layer-wind": "wind"})
	addArea(t, surf, "dtn-layer-swell", map[string]any{"value": 1.0})
	addArea(t, surf, "dtn-layer-wind", map[string]any{"value": 2.456, "unit": "kt"})

	a, ok := q.HandleClick(ClickEvent{Point: orb.Point{5, 5}, LngLat: orb.Point{4.5, 52.1}})
	require.True(t, ok)
	assert.Equal(t, "wind", a.Overlay)
	assert.Equal(t, "Wind", a.Label)
	assert.Equal(t, "2.46", a.Text)
	assert.Equal(t, "kt", a.Unit)
	assert.Equal(t, style.Dark, a.Theme)
	assert.Equal(t, orb.Point{4.5, 52.1}, a.LngLat)
	require.Len(t, rec.shown, 1)

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, a.ID, cur.ID)
}

func TestHandleClick_SingleAnnotation(t *testing.T) {
	q, surf, rec := newInteraction(t, owners{"dtn-layer-swell": "swell"})
	addArea(t, surf, "dtn-layer-swell", map[string]any{"value": "3"})

	first, ok := q.HandleClick(ClickEvent{Point: orb.Point{1, 1}})
	require.True(t, ok)
	assert.Equal(t, "3.00", first.Text)
	second, ok := q.HandleClick(ClickEvent{Point: orb.Point{2, 2}})
	require.True(t, ok)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, rec.shown, 2)
	assert.Equal(t, 1, rec.hides, "the previous annotation is removed first")
	cur, _ := q.Current()
	assert.Equal(t, second.ID, cur.ID)
}

func TestHandleClick_NothingUnderPointer(t *testing.T) {
	q, surf, rec := newInteraction(t, nil)
	addArea(t, surf, "dtn-layer-swell", map[string]any{"value": 1.0})

	_, ok := q.HandleClick(ClickEvent{Point: orb.Point{1, 1}})
	require.True(t, ok)

	_, ok = q.HandleClick(ClickEvent{Point: orb.Point{50, 50}})
	assert.False(t, ok)
	_, ok = q.Current()
	assert.False(t, ok)
	assert.Equal(t, 1, rec.hides)
}

func TestHandleClick_FeatureWithoutValue(t *testing.T) {
	q, surf, rec := newInteraction(t, nil)
	addArea(t, surf, "dtn-layer-eca", map[string]any{"name": "North Sea"})
	addArea(t, surf, "dtn-layer-current", map[string]any{"value": "n/a"})

	_, ok := q.HandleClick(ClickEvent{Point: orb.Point{1, 1}})
	assert.False(t, ok)
	assert.Empty(t, rec.shown)
}

func TestHandleClick_LabelFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		layer   string
		owners  owners
		overlay string
		label   string
	}{
		{"owned overlay uses catalogue label", "dtn-layer-tropicalStorms-points", owners{"dtn-layer-tropicalStorms-points": "tropicalStorms"}, "tropicalStorms", "Tropical Storms"},
		{"unowned layer resolved by prefix", "dtn-layer-pressure-gradient", nil, "pressure-gradient", "Pressure Gradient"},
		{"foreign layer is capitalised", "dtn-layer-depth", nil, "", "Depth"},
		{"base style layer", "bathymetry", nil, "", "Bathymetry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, surf, _ := newInteraction(t, tt.owners)
			addArea(t, surf, tt.layer, map[string]any{"value": json.Number("0.5")})

			a, ok := q.HandleClick(ClickEvent{Point: orb.Point{3, 3}})
			require.True(t, ok)
			assert.Equal(t, tt.overlay, a.Overlay)
			assert.Equal(t, tt.label, a.Label)
			assert.Equal(t, "0.50", a.Text)
		})
	}
}

func TestClear(t *testing.T) {
	q, surf, rec := newInteraction(t, nil)
	addArea(t, surf, "dtn-layer-swell", map[string]any{"value": 1.0})

	q.Clear()
	assert.Zero(t, rec.hides, "nothing to clear")

	_, ok := q.HandleClick(ClickEvent{Point: orb.Point{1, 1}})
	require.True(t, ok)
	q.Clear()
	q.Clear()
	assert.Equal(t, 1, rec.hides)
	_, ok = q.Current()
	assert.False(t, ok)
}

func TestBusAnnotator(t *testing.T) {
	bus := service.NewEventBus()
	ch := bus.Subscribe()
	q, surf, _ := newInteraction(t, owners{"dtn-layer-swell": "swell"})
	q.out = BusAnnotator{Bus: bus}
	addArea(t, surf, "dtn-layer-swell", map[string]any{"value": 1.5})

	_, ok := q.HandleClick(ClickEvent{Point: orb.Point{1, 1}})
	require.True(t, ok)
	q.Clear()

	shown := <-ch
	assert.Equal(t, "annotation", shown.Resource)
	assert.Equal(t, "shown", shown.Action)
	assert.Equal(t, "swell", shown.Target)
	a, ok := shown.Data.(Annotation)
	require.True(t, ok)
	assert.Equal(t, "1.50", a.Text)

	cleared := <-ch
	assert.Equal(t, "cleared", cleared.Action)
}
