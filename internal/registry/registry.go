// Package registry maps overlay identifiers to the remote data they are drawn
// from and the rules for composing them on the map.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed overlays.yaml
var defaultCatalog []byte

// ErrUnknownOverlay is returned for identifiers missing from the catalogue.
var ErrUnknownOverlay = errors.New("unknown overlay")

// Anchor is the vessel-marker layer every overlay is stacked beneath.
const Anchor = "vessel-layer"

const (
	sourcePrefix = "dtn-source-"
	layerPrefix  = "dtn-layer-"
)

// Geometry is the kind of source an overlay is backed by.
type Geometry string

const (
	Vector  Geometry = "vector"
	Raster  Geometry = "raster"
	GeoJSON Geometry = "geojson"
)

// Stacking is an overlay's paint-order class.
type Stacking string

const (
	Bottom Stacking = "BOTTOM"
	Top    Stacking = "TOP"
)

// Kind names the style family that renders an overlay.
type Kind string

const (
	KindWindBarb     Kind = "wind-barb"
	KindSpeedValues  Kind = "speed-values"
	KindGlyph        Kind = "glyph"
	KindIconCategory Kind = "icon-category"
	KindFillGradient Kind = "fill-gradient"
	KindContour      Kind = "contour"
	KindHeatmap      Kind = "heatmap"
	KindStormGroup   Kind = "storm-group"
	KindGeoJSONArea  Kind = "geojson-area"
	KindRaster       Kind = "raster"
)

var kinds = map[Kind]bool{
	KindWindBarb: true, KindSpeedValues: true, KindGlyph: true, KindIconCategory: true,
	KindFillGradient: true, KindContour: true, KindHeatmap: true, KindStormGroup: true,
	KindGeoJSONArea: true, KindRaster: true,
}

// Descriptor is the immutable description of one overlay.
type Descriptor struct {
	ID            string            `yaml:"id" json:"id" doc:"Overlay identifier" example:"swell"`
	Label         string            `yaml:"label" json:"label" doc:"Display label" example:"Swell"`
	FeedID        string            `yaml:"feed" json:"feedId,omitempty" doc:"Remote feed identifier"`
	TileSetID     string            `yaml:"tileSet" json:"tileSetId,omitempty" doc:"Remote tile-set identifier"`
	Geometry      Geometry          `yaml:"geometry" json:"geometry" enum:"vector,raster,geojson" doc:"Source geometry kind"`
	Stacking      Stacking          `yaml:"stacking" json:"stacking" enum:"BOTTOM,TOP" doc:"Stacking class"`
	Kind          Kind              `yaml:"kind" json:"kind" doc:"Style kind"`
	Interpolation string            `yaml:"interpolation,omitempty" json:"interpolation,omitempty" enum:"exponential,linear" doc:"Gradient interpolation"`
	RotationAttr  string            `yaml:"rotationAttr,omitempty" json:"rotationAttr,omitempty" doc:"Legacy rotation attribute"`
	SourceLayers  map[string]string `yaml:"sourceLayers,omitempty" json:"sourceLayers,omitempty" doc:"Fixed source-layer names by group"`
	DataURL       string            `yaml:"dataURL,omitempty" json:"dataUrl,omitempty" doc:"Direct data URL or tile template"`
	TileSize      int               `yaml:"tileSize,omitempty" json:"tileSize,omitempty" doc:"Raster tile size"`
	Defaults      map[string]any    `yaml:"defaults,omitempty" json:"-"`
}

// NeedsMetadata reports whether the source-layer name must be resolved
// from the remote style service before layers can be built.
func (d Descriptor) NeedsMetadata() bool {
	return d.Geometry == Vector && len(d.SourceLayers) == 0
}

// NeedsToken reports whether building the source requires a credential.
func (d Descriptor) NeedsToken() bool { return d.Geometry == Vector }

// SourceID returns the surface source id for the overlay.
func (d Descriptor) SourceID() string { return SourceID(d.ID) }

// LayerID returns the surface layer id for a role. The empty role is the
// overlay's primary layer.
func (d Descriptor) LayerID(role string) string { return LayerID(d.ID, role) }

// SourceID returns the surface source id for overlay id.
func SourceID(id string) string { return sourcePrefix + id }

// LayerID returns the surface layer id for overlay id and role.
func LayerID(id, role string) string {
	if role == "" {
		return layerPrefix + id
	}
	return layerPrefix + id + "-" + role
}

type file struct {
	Overlays []Descriptor `yaml:"overlays"`
}

// Catalog is the loaded, validated set of overlay descriptors.
type Catalog struct {
	order []string
	byID  map[string]Descriptor
}

// Default returns the embedded catalogue.
func Default() (*Catalog, error) {
	return Load(strings.NewReader(string(defaultCatalog)))
}

// Load parses and validates a YAML catalogue.
func Load(r io.Reader) (*Catalog, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalogue: %w", err)
	}
	c := &Catalog{byID: make(map[string]Descriptor, len(f.Overlays))}
	for _, d := range f.Overlays {
		if err := validate(d); err != nil {
			return nil, err
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("overlay %q defined twice", d.ID)
		}
		if d.Label == "" {
			d.Label = d.ID
		}
		c.byID[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	return c, nil
}

func validate(d Descriptor) error {
	if d.ID == "" {
		return errors.New("overlay without id")
	}
	if strings.ContainsAny(d.ID, " /") {
		return fmt.Errorf("overlay %q: id must not contain spaces or slashes", d.ID)
	}
	switch d.Geometry {
	case Vector:
		if d.FeedID == "" || d.TileSetID == "" {
			return fmt.Errorf("overlay %q: vector overlays need feed and tileSet", d.ID)
		}
	case Raster, GeoJSON:
		if d.DataURL == "" {
			return fmt.Errorf("overlay %q: %s overlays need dataURL", d.ID, d.Geometry)
		}
	default:
		return fmt.Errorf("overlay %q: unknown geometry %q", d.ID, d.Geometry)
	}
	if d.Stacking != Bottom && d.Stacking != Top {
		return fmt.Errorf("overlay %q: stacking must be BOTTOM or TOP, got %q", d.ID, d.Stacking)
	}
	if !kinds[d.Kind] {
		return fmt.Errorf("overlay %q: unknown kind %q", d.ID, d.Kind)
	}
	switch d.Interpolation {
	case "", "exponential", "linear":
	default:
		return fmt.Errorf("overlay %q: unknown interpolation %q", d.ID, d.Interpolation)
	}
	return nil
}

// Describe returns the descriptor for id.
func (c *Catalog) Describe(id string) (Descriptor, error) {
	d, ok := c.byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownOverlay, id)
	}
	return d, nil
}

// List returns all descriptors in catalogue order.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Has reports whether id is in the catalogue.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// WithDataURL returns a copy of the catalogue with the data URL of id
// replaced.
func (c *Catalog) WithDataURL(id, url string) (*Catalog, error) {
	d, err := c.Describe(id)
	if err != nil {
		return nil, err
	}
	if d.Geometry == Vector {
		return nil, fmt.Errorf("overlay %q: vector overlays have no data URL", id)
	}
	out := &Catalog{order: c.order, byID: make(map[string]Descriptor, len(c.byID))}
	for k, v := range c.byID {
		out.byID[k] = v
	}
	d.DataURL = url
	out.byID[id] = d
	return out, nil
}

// OverlayForLayer maps a surface layer id back to the overlay that owns it.
// The longest matching overlay id wins so "pressure-gradient" is not
// mistaken for a "pressure" sub-layer.
func (c *Catalog) OverlayForLayer(layerID string) (string, bool) {
	rest, ok := strings.CutPrefix(layerID, layerPrefix)
	if !ok {
		return "", false
	}
	best := ""
	for _, id := range c.order {
		if rest == id || strings.HasPrefix(rest, id+"-") {
			if len(id) > len(best) {
				best = id
			}
		}
	}
	return best, best != ""
}
