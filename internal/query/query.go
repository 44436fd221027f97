// Package query answers user clicks on the map with a value annotation read
// back from the rendered features under the pointer.
package query

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/service"
	"github.com/joeblew999/plat-marine/internal/style"
	"github.com/joeblew999/plat-marine/internal/surface"
)

// ClickEvent is a pointer click. Point is in surface coordinates, LngLat is
// the geographic position the annotation is anchored at.
type ClickEvent struct {
	Point  orb.Point `json:"point" doc:"Surface coordinate [x, y]"`
	LngLat orb.Point `json:"lngLat" doc:"Geographic coordinate [lng, lat]"`
}

// Annotation is the single value popup shown for a click.
type Annotation struct {
	ID      string      `json:"id" doc:"Annotation id"`
	Overlay string      `json:"overlay,omitempty" doc:"Owning overlay, if any"`
	Layer   string      `json:"layer" doc:"Surface layer the feature was rendered by"`
	Label   string      `json:"label" doc:"Display label" example:"Swell"`
	Value   float64     `json:"value" doc:"Raw feature value"`
	Text    string      `json:"text" doc:"Value formatted to two decimals" example:"2.50"`
	Unit    string      `json:"unit,omitempty" doc:"Unit from the feature, if any" example:"m"`
	Theme   style.Theme `json:"theme" doc:"Theme the annotation is styled for"`
	LngLat  orb.Point   `json:"lngLat" doc:"Anchor coordinate [lng, lat]"`
}

// Annotator displays annotations.
type Annotator interface {
	Show(a Annotation)
	Hide()
}

// Owners resolves the overlay that owns a surface layer.
type Owners interface {
	OwnerOf(layerID string) (string, bool)
}

// Config wires an Interaction.
type Config struct {
	Surface   surface.Surface
	Catalog   *registry.Catalog
	Owners    Owners
	Theme     func() style.Theme
	Annotator Annotator
	Logger    *slog.Logger
}

// Interaction holds at most one annotation at a time. Like the overlay
// manager it must only be used from the engine loop.
type Interaction struct {
	surf    surface.Surface
	cat     *registry.Catalog
	owners  Owners
	theme   func() style.Theme
	out     Annotator
	log     *slog.Logger
	current *Annotation
}

// New creates an Interaction.
func New(cfg Config) *Interaction {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Interaction{
		surf:   cfg.Surface,
		cat:    cfg.Catalog,
		owners: cfg.Owners,
		theme:  cfg.Theme,
		out:    cfg.Annotator,
		log:    log.With("component", "query"),
	}
}

// HandleClick replaces the current annotation with one for the top-most
// feature under ev.Point. Clicks on nothing, or on a feature without a
// numeric value attribute, only clear the previous annotation.
func (q *Interaction) HandleClick(ev ClickEvent) (Annotation, bool) {
	q.Clear()

	features := q.surf.QueryRenderedFeatures(ev.Point)
	if len(features) == 0 {
		return Annotation{}, false
	}
	top := features[0]
	raw, ok := top.Properties["value"]
	if !ok || raw == nil {
		return Annotation{}, false
	}
	value, err := number(raw)
	if err != nil {
		q.log.Debug("Feature value is not numeric", "layer", top.LayerID, "value", raw)
		return Annotation{}, false
	}

	a := Annotation{
		ID:     uuid.NewString(),
		Layer:  top.LayerID,
		Value:  value,
		Text:   strconv.FormatFloat(value, 'f', 2, 64),
		Theme:  q.theme(),
		LngLat: ev.LngLat,
	}
	if unit, ok := top.Properties["unit"].(string); ok {
		a.Unit = unit
	}
	a.Overlay, a.Label = q.label(top.LayerID)

	q.current = &a
	if q.out != nil {
		q.out.Show(a)
	}
	q.log.Debug("Annotation shown", "layer", a.Layer, "value", a.Text)
	return a, true
}

// Current returns the annotation on display.
func (q *Interaction) Current() (Annotation, bool) {
	if q.current == nil {
		return Annotation{}, false
	}
	return *q.current, true
}

// Clear removes the annotation on display, if any.
func (q *Interaction) Clear() {
	if q.current == nil {
		return
	}
	q.current = nil
	if q.out != nil {
		q.out.Hide()
	}
}

func (q *Interaction) label(layerID string) (overlay, label string) {
	id, ok := "", false
	if q.owners != nil {
		id, ok = q.owners.OwnerOf(layerID)
	}
	if !ok && q.cat != nil {
		id, ok = q.cat.OverlayForLayer(layerID)
	}
	if ok && q.cat != nil {
		if desc, err := q.cat.Describe(id); err == nil && desc.Label != "" {
			return id, desc.Label
		}
	}
	if !ok {
		return "", capitalise(strings.TrimPrefix(layerID, "dtn-layer-"))
	}
	return id, capitalise(id)
}

func capitalise(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

func number(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	}
	return 0, fmt.Errorf("unsupported value type %T", v)
}

// BusAnnotator publishes annotations on the event bus for the SSE channel.
type BusAnnotator struct {
	Bus *service.EventBus
}

func (b BusAnnotator) Show(a Annotation) {
	b.Bus.Publish(service.Event{Resource: "annotation", Action: "shown", Target: a.Overlay, Data: a})
}

func (b BusAnnotator) Hide() {
	b.Bus.Publish(service.Event{Resource: "annotation", Action: "cleared"})
}
