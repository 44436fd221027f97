package style

import (
	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/service"
)

func init() {
	register(fillGradient{})
	register(contour{})
	register(heatmap{})
	register(stormGroup{})
	register(geoJSONArea{})
	register(raster{})
}

// fillGradient fills contour polygons with a colour gradient over value.
type fillGradient struct{}

func (fillGradient) Name() registry.Kind { return registry.KindFillGradient }

func (fillGradient) Defaults() service.LayerConfig {
	return service.LayerConfig{
		"fillOpacity":      0.3,
		"fillOutlineColor": "transparent",
		"fillAntialias":    true,
		"animationEnabled": false,
		"animationSpeed":   0.0008,
		"gradient": []service.GradientStop{
			{Value: "0m", Color: "#072144"},
			{Value: "0.5m", Color: "#1926bd"},
			{Value: "1m", Color: "#0c5eaa"},
			{Value: "1.5m", Color: "#0d7bc2"},
			{Value: "2m", Color: "#16b6b3"},
			{Value: "2.5m", Color: "#15d5a5"},
			{Value: "3m", Color: "#10b153"},
			{Value: "3.5m", Color: "#82c510"},
			{Value: "4m", Color: "#d1d112"},
			{Value: "4.5m", Color: "#c5811e"},
			{Value: "5m", Color: "#c35215"},
			{Value: "6m", Color: "#B03f12"},
			{Value: "7m", Color: "#e05219"},
			{Value: "8m", Color: "#c6141c"},
			{Value: "9m", Color: "#8f0a10"},
			{Value: "10m+", Color: "#56001d"},
		},
	}
}

func (fillGradient) Layers(registry.Descriptor) []LayerTemplate {
	return []LayerTemplate{{Role: "", Type: "fill"}}
}

func (fillGradient) Translate(desc registry.Descriptor, p *props) Result {
	ls := LayerStyle{Paint: map[string]any{}}
	expr, ok := p.gradient("gradient", desc.Interpolation)
	set(ls.Paint, "fill-color", expr, ok)
	f, ok := p.number("fillOpacity")
	set(ls.Paint, "fill-opacity", f, ok)
	c, ok := p.color("fillOutlineColor", "transparent")
	set(ls.Paint, "fill-outline-color", c, ok)
	ls.Paint["fill-antialias"] = p.boolean("fillAntialias")
	return Result{"": ls}
}

// contour draws pressure isolines coloured from low to high pressure.
type contour struct{}

func (contour) Name() registry.Kind { return registry.KindContour }

func (contour) Defaults() service.LayerConfig {
	return service.LayerConfig{
		"contourWidth":        1.0,
		"contourOpacity":      0.8,
		"highPressureColor":   "#ff0000",
		"mediumPressureColor": "#80ff80",
		"lowPressureColor":    "#800080",
	}
}

func (contour) Layers(registry.Descriptor) []LayerTemplate {
	return []LayerTemplate{{Role: "", Type: "line"}}
}

func (contour) Translate(_ registry.Descriptor, p *props) Result {
	ls := LayerStyle{Paint: map[string]any{}, Layout: map[string]any{
		"line-cap":  "round",
		"line-join": "round",
	}}

	low, okL := p.color("lowPressureColor", "#800080")
	mid, okM := p.color("mediumPressureColor", "#80ff80")
	high, okH := p.color("highPressureColor", "#ff0000")
	if okL && okM && okH {
		ls.Paint["line-color"] = []any{"interpolate", []any{"linear"},
			[]any{"to-number", []any{"get", "value"}, 1013.0},
			980.0, low, 1000.0, low, 1013.0, mid, 1030.0, high, 1050.0, high,
		}
	}
	if w, ok := p.number("contourWidth"); ok {
		ls.Paint["line-width"] = zoomScaled([]any{"linear"}, w, []float64{0, 6, 10, 14}, []float64{1, 1.5, 2, 3})
	}
	f, ok := p.number("contourOpacity")
	set(ls.Paint, "line-opacity", f, ok)
	return Result{"": ls}
}

// heatmap renders pressure-gradient density.
type heatmap struct{}

func (heatmap) Name() registry.Kind { return registry.KindHeatmap }

func (heatmap) Defaults() service.LayerConfig {
	return service.LayerConfig{
		"heatmapRadius":    20.0,
		"heatmapIntensity": 0.6,
		"fillOpacity":      0.7,
	}
}

func (heatmap) Layers(registry.Descriptor) []LayerTemplate {
	return []LayerTemplate{{Role: "", Type: "heatmap"}}
}

var heatmapRamp = []any{"interpolate", []any{"linear"}, []any{"heatmap-density"},
	0.0, "rgba(128, 0, 128, 0)",
	0.1, "rgba(128, 0, 128, 0.2)",
	0.2, "rgba(0, 0, 255, 0.3)",
	0.3, "rgba(0, 128, 255, 0.4)",
	0.4, "rgba(0, 255, 255, 0.5)",
	0.5, "rgba(128, 255, 128, 0.4)",
	0.6, "rgba(255, 255, 0, 0.5)",
	0.7, "rgba(255, 128, 0, 0.6)",
	0.8, "rgba(255, 0, 0, 0.7)",
	1.0, "rgba(128, 0, 0, 0.8)",
}

func (heatmap) Translate(_ registry.Descriptor, p *props) Result {
	ls := LayerStyle{Paint: map[string]any{"heatmap-color": heatmapRamp}}
	if r, ok := p.number("heatmapRadius"); ok {
		ls.Paint["heatmap-radius"] = zoomScaled([]any{"exponential", 2.0}, r, []float64{0, 6, 10, 14}, []float64{1, 2, 4, 6})
	}
	f, ok := p.number("heatmapIntensity")
	set(ls.Paint, "heatmap-intensity", f, ok)
	f, ok = p.number("fillOpacity")
	set(ls.Paint, "heatmap-opacity", f, ok)
	return Result{"": ls}
}

// stormGroup draws tropical cyclone cones and tracks as border+line pairs
// plus a point layer. Features under investigation are filtered out.
type stormGroup struct{}

func (stormGroup) Name() registry.Kind { return registry.KindStormGroup }

func (stormGroup) Defaults() service.LayerConfig {
	return service.LayerConfig{
		"opacity":              1.0,
		"borderColor":          "#FFFFFF",
		"lineColor":            "#000000",
		"coneBorderWidth":      4.0,
		"historyBorderWidth":   3.0,
		"forecastBorderWidth":  1.0,
		"coneLineWidth":        2.0,
		"historyLineWidth":     1.0,
		"forecastLineWidth":    1.0,
		"pointColor":           "#BEBEBE",
		"pointStrokeWidth":     2.0,
		"investigationOpacity": 0.6,
	}
}

var stormFilter = []any{"==", []any{"coalesce", []any{"get", "isUnderInvestigationStyle"}, []any{"get", "isUnderInvestigation"}}, false}

var stormTracks = []string{"cone", "history", "forecast"}

func (stormGroup) Layers(registry.Descriptor) []LayerTemplate {
	var out []LayerTemplate
	for _, t := range stormTracks {
		out = append(out,
			LayerTemplate{Role: t + "-border", Type: "line", SourceGroup: t, Filter: stormFilter},
			LayerTemplate{Role: t, Type: "line", SourceGroup: t, Filter: stormFilter},
		)
	}
	return append(out, LayerTemplate{Role: "points", Type: "circle", SourceGroup: "points", Filter: stormFilter})
}

func (stormGroup) Translate(_ registry.Descriptor, p *props) Result {
	res := Result{}
	opacity, okO := p.number("opacity")
	border, okB := p.color("borderColor", "#FFFFFF")
	line, okL := p.color("lineColor", "#000000")

	for _, t := range stormTracks {
		bp := map[string]any{}
		set(bp, "line-color", border, okB)
		set(bp, "line-opacity", opacity, okO)
		w, ok := p.number(t + "BorderWidth")
		set(bp, "line-width", w, ok)
		res[t+"-border"] = LayerStyle{Paint: bp}

		lp := map[string]any{}
		set(lp, "line-color", line, okL)
		set(lp, "line-opacity", opacity, okO)
		w, ok = p.number(t + "LineWidth")
		set(lp, "line-width", w, ok)
		if t == "forecast" {
			lp["line-dasharray"] = []any{7.0, 5.0}
		}
		res[t] = LayerStyle{Paint: lp}
	}

	positionType := []any{"==", []any{"coalesce", []any{"get", "positionTypeStyle"}, []any{"get", "positionType"}}, 1.0}
	pp := map[string]any{
		"circle-radius": []any{"interpolate", []any{"linear"}, []any{"zoom"}, 0.0, 1.5, 6.0, 5.0},
		"circle-stroke-color": []any{"case", stormFilter, "#000000", "#FFFFFF"},
	}
	c, ok := p.color("pointColor", "#BEBEBE")
	set(pp, "circle-color", c, ok)
	w, ok := p.number("pointStrokeWidth")
	set(pp, "circle-stroke-width", w, ok)
	if inv, ok := p.number("investigationOpacity"); ok {
		pp["circle-stroke-opacity"] = []any{"case", positionType, 0.0, inv}
	}
	if okO {
		pp["circle-opacity"] = []any{"case", positionType, 0.0, opacity}
	}
	res["points"] = LayerStyle{Paint: pp}
	return res
}

// geoJSONArea fills and outlines polygons delivered as GeoJSON.
type geoJSONArea struct{}

func (geoJSONArea) Name() registry.Kind { return registry.KindGeoJSONArea }

func (geoJSONArea) Defaults() service.LayerConfig {
	return service.LayerConfig{
		"fillColor":    "#001E4C",
		"fillOpacity":  0.3,
		"outlineColor": "#FEF9C3",
		"outlineWidth": 1.5,
	}
}

func (geoJSONArea) Layers(registry.Descriptor) []LayerTemplate {
	return []LayerTemplate{
		{Role: "", Type: "fill"},
		{Role: "outline", Type: "line"},
	}
}

func (geoJSONArea) Translate(_ registry.Descriptor, p *props) Result {
	fill := map[string]any{}
	c, ok := p.color("fillColor", "#001E4C")
	set(fill, "fill-color", c, ok)
	f, ok := p.number("fillOpacity")
	set(fill, "fill-opacity", f, ok)

	outline := map[string]any{}
	c, ok = p.color("outlineColor", "#FEF9C3")
	set(outline, "line-color", c, ok)
	f, ok = p.number("outlineWidth")
	set(outline, "line-width", f, ok)

	return Result{"": {Paint: fill}, "outline": {Paint: outline}}
}

// raster shows raster tiles.
type raster struct{}

func (raster) Name() registry.Kind { return registry.KindRaster }

func (raster) Defaults() service.LayerConfig {
	return service.LayerConfig{"rasterOpacity": 1.0}
}

func (raster) Layers(registry.Descriptor) []LayerTemplate {
	return []LayerTemplate{{Role: "", Type: "raster"}}
}

func (raster) Translate(_ registry.Descriptor, p *props) Result {
	paint := map[string]any{}
	f, ok := p.number("rasterOpacity")
	set(paint, "raster-opacity", f, ok)
	return Result{"": {Paint: paint}}
}
