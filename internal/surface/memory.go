package surface

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// HitTolerance is the distance, in coordinate units, within which point and
// line features count as hit.
const HitTolerance = 0.25

// Write records one mutating call against a Memory surface.
type Write struct {
	Op    string // add-source, remove-source, add-layer, remove-layer, paint, layout, style
	ID    string
	Name  string
	Value any
}

type memLayer struct {
	spec   LayerSpec
	paint  map[string]any
	layout map[string]any
}

// Memory is a headless Surface. It keeps the ordered layer list, sources,
// property values, style-load state and frame callbacks so the engine can run
// as a service and be tested without a renderer. Filters are stored but not
// evaluated.
type Memory struct {
	style    string
	epoch    uint64
	loaded   bool
	layers   []*memLayer
	sources  map[string]SourceSpec
	features map[string][]*geojson.Feature

	listeners    map[int]func()
	nextListener int

	frames    map[FrameID]func(time.Time)
	nextFrame FrameID

	rejectLayers map[string]bool
	failProps    map[string]bool
	writes       []Write

	// Loader, when set, is told about every style swap. The service uses it
	// to simulate network latency before calling CompleteStyleLoad.
	Loader func(url string, epoch uint64)
}

// NewMemory creates a surface whose initial style has been requested but
// not yet loaded.
func NewMemory(styleURL string) *Memory {
	return &Memory{
		style:        styleURL,
		epoch:        1,
		sources:      make(map[string]SourceSpec),
		features:     make(map[string][]*geojson.Feature),
		listeners:    make(map[int]func()),
		frames:       make(map[FrameID]func(time.Time)),
		rejectLayers: make(map[string]bool),
		failProps:    make(map[string]bool),
	}
}

func (m *Memory) AddSource(id string, spec SourceSpec) error {
	if !m.loaded {
		return fmt.Errorf("add source %q: style is not loaded", id)
	}
	if _, ok := m.sources[id]; ok {
		return fmt.Errorf("source %q already exists", id)
	}
	m.sources[id] = spec
	m.record(Write{Op: "add-source", ID: id})
	return nil
}

func (m *Memory) RemoveSource(id string) error {
	if _, ok := m.sources[id]; !ok {
		return fmt.Errorf("source %q does not exist", id)
	}
	for _, l := range m.layers {
		if l.spec.Source == id {
			return fmt.Errorf("source %q is in use by layer %q", id, l.spec.ID)
		}
	}
	delete(m.sources, id)
	m.record(Write{Op: "remove-source", ID: id})
	return nil
}

func (m *Memory) HasSource(id string) bool {
	_, ok := m.sources[id]
	return ok
}

// Source returns the spec of a source.
func (m *Memory) Source(id string) (SourceSpec, bool) {
	s, ok := m.sources[id]
	return s, ok
}

func (m *Memory) AddLayer(spec LayerSpec, beforeID string) error {
	if !m.loaded {
		return fmt.Errorf("add layer %q: style is not loaded", spec.ID)
	}
	if m.rejectLayers[spec.ID] {
		return fmt.Errorf("layer %q rejected by style validation", spec.ID)
	}
	if m.index(spec.ID) >= 0 {
		return fmt.Errorf("layer %q already exists", spec.ID)
	}
	if _, ok := m.sources[spec.Source]; !ok {
		return fmt.Errorf("layer %q references missing source %q", spec.ID, spec.Source)
	}

	pos := len(m.layers)
	if beforeID != "" {
		pos = m.index(beforeID)
		if pos < 0 {
			return fmt.Errorf("layer %q: before layer %q does not exist", spec.ID, beforeID)
		}
	}

	l := &memLayer{spec: spec, paint: copyProps(spec.Paint), layout: copyProps(spec.Layout)}
	m.layers = slices.Insert(m.layers, pos, l)
	m.record(Write{Op: "add-layer", ID: spec.ID, Value: beforeID})
	return nil
}

func (m *Memory) RemoveLayer(id string) error {
	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("layer %q does not exist", id)
	}
	m.layers = slices.Delete(m.layers, i, i+1)
	m.record(Write{Op: "remove-layer", ID: id})
	return nil
}

func (m *Memory) HasLayer(id string) bool { return m.index(id) >= 0 }

func (m *Memory) LayerIDs() []string {
	ids := make([]string, len(m.layers))
	for i, l := range m.layers {
		ids[i] = l.spec.ID
	}
	return ids
}

// Layer returns the current spec of a layer with its live properties.
func (m *Memory) Layer(id string) (LayerSpec, bool) {
	i := m.index(id)
	if i < 0 {
		return LayerSpec{}, false
	}
	l := m.layers[i]
	spec := l.spec
	spec.Paint = copyProps(l.paint)
	spec.Layout = copyProps(l.layout)
	return spec, true
}

func (m *Memory) SetPaintProperty(layerID, name string, value any) error {
	l, err := m.writable(layerID, name)
	if err != nil {
		return err
	}
	l.paint[name] = value
	m.record(Write{Op: "paint", ID: layerID, Name: name, Value: value})
	return nil
}

func (m *Memory) SetLayoutProperty(layerID, name string, value any) error {
	l, err := m.writable(layerID, name)
	if err != nil {
		return err
	}
	l.layout[name] = value
	m.record(Write{Op: "layout", ID: layerID, Name: name, Value: value})
	return nil
}

// LoadFeatures seeds the features a vector source layer would deliver from
// its tiles. Seeded data survives style swaps, like a tile server would.
func (m *Memory) LoadFeatures(sourceID, sourceLayer string, fc *geojson.FeatureCollection) {
	m.features[sourceID+"/"+sourceLayer] = fc.Features
}

func (m *Memory) QueryRenderedFeatures(pt orb.Point) []Feature {
	var out []Feature
	for i := len(m.layers) - 1; i >= 0; i-- {
		l := m.layers[i]
		if l.layout["visibility"] == "none" {
			continue
		}
		for _, f := range m.layerFeatures(l.spec) {
			if f.Geometry == nil || !hit(f.Geometry, pt) {
				continue
			}
			props := make(map[string]any, len(f.Properties))
			for k, v := range f.Properties {
				props[k] = v
			}
			out = append(out, Feature{LayerID: l.spec.ID, Properties: props, Geometry: f.Geometry})
		}
	}
	return out
}

func (m *Memory) SetStyle(url string) {
	m.style = url
	m.epoch++
	m.loaded = false
	m.layers = nil
	m.sources = make(map[string]SourceSpec)
	m.record(Write{Op: "style", ID: url})
	if m.Loader != nil {
		m.Loader(url, m.epoch)
	}
}

// Style returns the current style URL and its load epoch.
func (m *Memory) Style() (string, uint64) { return m.style, m.epoch }

func (m *Memory) IsStyleLoaded() bool { return m.loaded }

// FinishStyleLoad completes loading of the current style and fires the
// style-load listeners.
func (m *Memory) FinishStyleLoad() { m.CompleteStyleLoad(m.epoch) }

// CompleteStyleLoad completes the style load for epoch. Completions for a
// style that has since been replaced are ignored.
func (m *Memory) CompleteStyleLoad(epoch uint64) {
	if epoch != m.epoch || m.loaded {
		return
	}
	m.loaded = true
	keys := make([]int, 0, len(m.listeners))
	for k := range m.listeners {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		if fn, ok := m.listeners[k]; ok {
			fn()
		}
	}
}

func (m *Memory) OnStyleLoad(fn func()) func() {
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() { delete(m.listeners, id) }
}

func (m *Memory) RequestFrame(fn func(time.Time)) FrameID {
	m.nextFrame++
	m.frames[m.nextFrame] = fn
	return m.nextFrame
}

func (m *Memory) CancelFrame(id FrameID) { delete(m.frames, id) }

// PendingFrames reports how many frame callbacks are scheduled.
func (m *Memory) PendingFrames() int { return len(m.frames) }

// RunFrame fires every callback scheduled before the call, in request
// order, and returns how many ran. Callbacks requested while running wait
// for the next frame.
func (m *Memory) RunFrame(now time.Time) int {
	ids := make([]FrameID, 0, len(m.frames))
	for id := range m.frames {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	batch := make([]func(time.Time), 0, len(ids))
	for _, id := range ids {
		batch = append(batch, m.frames[id])
		delete(m.frames, id)
	}
	for _, fn := range batch {
		fn(now)
	}
	return len(batch)
}

// RejectLayer makes the next AddLayer calls for id fail.
func (m *Memory) RejectLayer(id string) { m.rejectLayers[id] = true }

// FailProperty makes property writes of name on layerID fail.
func (m *Memory) FailProperty(layerID, name string) { m.failProps[layerID+"|"+name] = true }

// Writes returns the mutating calls recorded since the last ResetWrites.
func (m *Memory) Writes() []Write { return slices.Clone(m.writes) }

// ResetWrites clears the write journal.
func (m *Memory) ResetWrites() { m.writes = nil }

func (m *Memory) record(w Write) { m.writes = append(m.writes, w) }

func (m *Memory) index(id string) int {
	for i, l := range m.layers {
		if l.spec.ID == id {
			return i
		}
	}
	return -1
}

func (m *Memory) writable(layerID, name string) (*memLayer, error) {
	i := m.index(layerID)
	if i < 0 {
		return nil, fmt.Errorf("layer %q does not exist", layerID)
	}
	if m.failProps[layerID+"|"+name] {
		return nil, fmt.Errorf("layer %q: property %q rejected", layerID, name)
	}
	return m.layers[i], nil
}

func (m *Memory) layerFeatures(spec LayerSpec) []*geojson.Feature {
	src, ok := m.sources[spec.Source]
	if !ok {
		return nil
	}
	if src.Type == SourceGeoJSON {
		if src.Data == nil {
			return nil
		}
		return src.Data.Features
	}
	return m.features[spec.Source+"/"+spec.SourceLayer]
}

func hit(g orb.Geometry, pt orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, pt)
	case orb.Bound:
		return geom.Contains(pt)
	default:
		return planar.DistanceFrom(g, pt) <= HitTolerance
	}
}

func copyProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
