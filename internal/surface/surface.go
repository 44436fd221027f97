// Package surface defines the rendering-surface contract the overlay engine
// drives, plus a headless in-memory implementation.
//
// The engine never rasterizes anything. It adds, removes and reconfigures
// sources and layers on a surface it does not own, and must cope with the
// surface discarding all of them on a style swap. All methods are called from
// the engine loop; implementations need not be safe for concurrent use.
package surface

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Source types understood by the surface.
const (
	SourceVector  = "vector"
	SourceRaster  = "raster"
	SourceGeoJSON = "geojson"
)

// SourceSpec describes a data source added to the surface.
type SourceSpec struct {
	Type     string                     `json:"type"`
	Tiles    []string                   `json:"tiles,omitempty"`
	TileSize int                        `json:"tileSize,omitempty"`
	MinZoom  int                        `json:"minzoom,omitempty"`
	MaxZoom  int                        `json:"maxzoom,omitempty"`
	Data     *geojson.FeatureCollection `json:"data,omitempty"`
}

// LayerSpec describes a renderable layer.
type LayerSpec struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Source      string         `json:"source"`
	SourceLayer string         `json:"source-layer,omitempty"`
	Filter      any            `json:"filter,omitempty"`
	Paint       map[string]any `json:"paint,omitempty"`
	Layout      map[string]any `json:"layout,omitempty"`
}

// Feature is a rendered feature returned by a hit-test query.
type Feature struct {
	LayerID    string
	Properties map[string]any
	Geometry   orb.Geometry
}

// FrameID identifies a pending frame callback.
type FrameID uint64

// Surface is the subset of a map renderer the engine relies on.
type Surface interface {
	AddSource(id string, spec SourceSpec) error
	RemoveSource(id string) error
	HasSource(id string) bool

	// AddLayer inserts the layer directly beneath beforeID, or on top when
	// beforeID is empty.
	AddLayer(spec LayerSpec, beforeID string) error
	RemoveLayer(id string) error
	HasLayer(id string) bool
	// LayerIDs lists layers bottom to top.
	LayerIDs() []string

	SetPaintProperty(layerID, name string, value any) error
	SetLayoutProperty(layerID, name string, value any) error

	// QueryRenderedFeatures returns features under pt, top-most first.
	QueryRenderedFeatures(pt orb.Point) []Feature

	// SetStyle swaps the base style. Every source and layer is discarded and
	// IsStyleLoaded reports false until the style-load listeners fire.
	SetStyle(url string)
	IsStyleLoaded() bool
	// OnStyleLoad registers fn to run each time a style finishes loading.
	OnStyleLoad(fn func()) (cancel func())

	// RequestFrame schedules fn once, on the next rendered frame.
	RequestFrame(fn func(now time.Time)) FrameID
	CancelFrame(id FrameID)
}
