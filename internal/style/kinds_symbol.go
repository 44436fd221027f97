package style

import (
	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/service"
)

func init() {
	register(windBarb{})
	register(speedValues{})
	register(glyph{})
	register(iconCategory{})
}

// textPaint fills the shared text colour, opacity and halo properties.
func textPaint(p *props, paint map[string]any, textFallback, haloFallback string) {
	c, ok := p.color("textColor", textFallback)
	set(paint, "text-color", c, ok)
	f, ok := p.number("textOpacity")
	set(paint, "text-opacity", f, ok)
	c, ok = p.color("haloColor", haloFallback)
	set(paint, "text-halo-color", c, ok)
	f, ok = p.number("haloWidth")
	set(paint, "text-halo-width", f, ok)
}

// windBarb draws categorical barb glyphs plus a speed label layer in the
// configured display unit.
type windBarb struct{}

func (windBarb) Name() registry.Kind { return registry.KindWindBarb }

func (windBarb) Defaults() service.LayerConfig {
	return service.LayerConfig{
		"textColor":     service.ThemedColor{Light: "#1c4ed8", Dark: "#b0cff9"},
		"textSize":      16.0,
		"textOpacity":   0.9,
		"haloColor":     service.ThemedColor{Light: "#ffffff", Dark: "#000000"},
		"haloWidth":     1.0,
		"symbolSpacing": 80.0,
		"allowOverlap":  true,
		"speedUnit":     "knots",
		"showLabels":    true,
		"labelSize":     11.0,
	}
}

func (windBarb) Layers(registry.Descriptor) []LayerTemplate {
	return []LayerTemplate{
		{Role: "", Type: "symbol"},
		{Role: "label", Type: "symbol"},
	}
}

func (windBarb) Translate(desc registry.Descriptor, p *props) Result {
	overlap := p.boolean("allowOverlap")

	barb := LayerStyle{Paint: map[string]any{}, Layout: map[string]any{
		"text-field":              WindGlyphExpression(),
		"text-rotation-alignment": "map",
		"text-rotate":             RotationExpression(desc.RotationAttr),
		"text-allow-overlap":      overlap,
		"text-ignore-placement":   true,
		"text-font":               []any{"Open Sans Bold", "Arial Unicode MS Bold"},
		"text-anchor":             "bottom",
	}}
	f, ok := p.number("textSize")
	set(barb.Layout, "text-size", f, ok)
	f, ok = p.number("symbolSpacing")
	set(barb.Layout, "symbol-spacing", f, ok)
	textPaint(p, barb.Paint, "#ffffff", "#000000")

	label := LayerStyle{Paint: map[string]any{}, Layout: map[string]any{
		"text-allow-overlap": overlap,
		"text-font":          []any{"Open Sans Regular"},
		"text-anchor":        "top",
	}}
	if unit, ok := p.text("speedUnit"); ok {
		expr, err := SpeedLabelExpression(unit)
		if err != nil {
			p.fail("speedUnit", err)
		} else {
			label.Layout["text-field"] = expr
		}
	}
	f, ok = p.number("labelSize")
	set(label.Layout, "text-size", f, ok)
	f, ok = p.number("symbolSpacing")
	set(label.Layout, "symbol-spacing", f, ok)
	if !p.boolean("showLabels") {
		label.Layout["visibility"] = "none"
	}
	for k, v := range barb.Paint {
		label.Paint[k] = v
	}

	return Result{"": barb, "label": label}
}

// speedValues prints the feature value to one decimal place.
type speedValues struct{}

func (speedValues) Name() registry.Kind { return registry.KindSpeedValues }

func (speedValues) Defaults() service.LayerConfig {
	return service.LayerConfig{
		"textColor":    service.ThemedColor{Light: "#1C4ED8", Dark: "#B0CFF9"},
		"textSize":     16.0,
		"textOpacity":  0.5,
		"haloColor":    service.ThemedColor{Light: "#1c4ed8", Dark: "#B0CFF9"},
		"haloWidth":    0.5,
		"allowOverlap": true,
	}
}

func (speedValues) Layers(registry.Descriptor) []LayerTemplate {
	return []LayerTemplate{{Role: "", Type: "symbol"}}
}

func (speedValues) Translate(_ registry.Descriptor, p *props) Result {
	ls := LayerStyle{Paint: map[string]any{}, Layout: map[string]any{
		"text-field": []any{"to-string", []any{"/",
			[]any{"round", []any{"*", []any{"to-number", []any{"get", "value"}}, 10.0}}, 10.0}},
		"text-font":          []any{"Open Sans Regular"},
		"text-anchor":        "center",
		"text-allow-overlap": p.boolean("allowOverlap"),
	}}
	f, ok := p.number("textSize")
	set(ls.Layout, "text-size", f, ok)
	textPaint(p, ls.Paint, "#ffffff", "#000000")
	return Result{"": ls}
}

// glyph draws a rotated literal glyph per feature.
type glyph struct{}

func (glyph) Name() registry.Kind { return registry.KindGlyph }

func (glyph) Defaults() service.LayerConfig {
	return service.LayerConfig{
		"textColor":         service.ThemedColor{Light: "#1c4ed8", Dark: "#b0cff9"},
		"textSize":          16.0,
		"textOpacity":       0.5,
		"haloColor":         service.ThemedColor{Light: "#1c4ed8", Dark: "#b0cff9"},
		"haloWidth":         0.5,
		"symbolSpacing":     100.0,
		"allowOverlap":      true,
		"rotationAlignment": "map",
		"symbolType":        "arrow",
		"customSymbol":      "→",
	}
}

func (glyph) Layers(registry.Descriptor) []LayerTemplate {
	return []LayerTemplate{{Role: "", Type: "symbol"}}
}

func (glyph) Translate(desc registry.Descriptor, p *props) Result {
	ls := LayerStyle{Paint: map[string]any{}, Layout: map[string]any{
		"text-rotate":           RotationExpression(desc.RotationAttr),
		"text-allow-overlap":    p.boolean("allowOverlap"),
		"text-ignore-placement": true,
	}}
	glyphText(p, ls.Layout)
	f, ok := p.number("textSize")
	set(ls.Layout, "text-size", f, ok)
	s, ok := p.text("rotationAlignment")
	set(ls.Layout, "text-rotation-alignment", s, ok)
	f, ok = p.number("symbolSpacing")
	set(ls.Layout, "symbol-spacing", f, ok)
	if modes, ok := p.cfg["writingMode"].([]string); ok {
		wm := make([]any, len(modes))
		for i, m := range modes {
			wm[i] = m
		}
		ls.Layout["text-writing-mode"] = wm
	}
	textPaint(p, ls.Paint, "#f9f9ff", "#000000")
	return Result{"": ls}
}

func glyphText(p *props, layout map[string]any) {
	st, ok := p.text("symbolType")
	if !ok {
		return
	}
	custom, _ := p.cfg["customSymbol"].(string)
	g, err := Glyph(st, custom)
	if err != nil {
		p.fail("symbolType", err)
		return
	}
	layout["text-field"] = g
}

// iconCategory picks a sprite icon by wind-speed bucket. In glyph mode it
// draws a rotated text glyph instead.
type iconCategory struct{}

func (iconCategory) Name() registry.Kind { return registry.KindIconCategory }

func (iconCategory) Defaults() service.LayerConfig {
	return service.LayerConfig{
		"symbolMode":        "icon",
		"iconSize":          1.0,
		"iconOpacity":       1.0,
		"haloColor":         "#ffffff",
		"haloWidth":         0.5,
		"allowOverlap":      true,
		"rotationAlignment": "map",
		"textColor":         "#ffffff",
		"textSize":          16.0,
		"textOpacity":       0.8,
		"symbolType":        "arrow",
		"customSymbol":      "→",
	}
}

func (iconCategory) Layers(registry.Descriptor) []LayerTemplate {
	return []LayerTemplate{{Role: "", Type: "symbol"}}
}

// windIcons maps windSpeedStyle buckets to sprite names.
var windIcons = []struct {
	below float64
	icon  string
}{
	{2.5, "dot-9"}, {7.5, "dot-10"}, {12.5, "dot-11"}, {17.5, "border-dot-13"}, {22.5, "wetland"},
}

func (iconCategory) Translate(desc registry.Descriptor, p *props) Result {
	ls := LayerStyle{Paint: map[string]any{}, Layout: map[string]any{}}
	overlap := p.boolean("allowOverlap")

	mode, _ := p.text("symbolMode")
	switch mode {
	case "glyph":
		glyphText(p, ls.Layout)
		ls.Layout["text-rotate"] = RotationExpression(desc.RotationAttr)
		ls.Layout["text-allow-overlap"] = overlap
		ls.Layout["text-ignore-placement"] = true
		f, ok := p.number("textSize")
		set(ls.Layout, "text-size", f, ok)
		s, ok := p.text("rotationAlignment")
		set(ls.Layout, "text-rotation-alignment", s, ok)
		textPaint(p, ls.Paint, "#ffffff", "#ffffff")
	case "icon":
		image := []any{"case"}
		for _, b := range windIcons {
			image = append(image, []any{"<", []any{"get", "windSpeedStyle"}, b.below}, b.icon)
		}
		image = append(image, "cliff")
		dir := []any{"coalesce", []any{"get", "windDirectionStyle"}, []any{"get", "value1"}}
		ls.Layout["icon-image"] = image
		ls.Layout["icon-rotate"] = []any{"case",
			[]any{"==", []any{"coalesce", []any{"get", "isNorthernHemisphereStyle"}, []any{"get", "isNorth"}}, true},
			[]any{"+", dir, 90.0},
			[]any{"+", dir, 270.0},
		}
		ls.Layout["icon-allow-overlap"] = overlap
		ls.Layout["icon-ignore-placement"] = true
		f, ok := p.number("iconSize")
		set(ls.Layout, "icon-size", f, ok)
		s, ok := p.text("rotationAlignment")
		set(ls.Layout, "icon-rotation-alignment", s, ok)
		f, ok = p.number("iconOpacity")
		set(ls.Paint, "icon-opacity", f, ok)
		c, ok := p.color("haloColor", "#ffffff")
		set(ls.Paint, "icon-halo-color", c, ok)
		f, ok = p.number("haloWidth")
		set(ls.Paint, "icon-halo-width", f, ok)
	default:
		p.failf("symbolMode", "unknown symbol mode %q", mode)
	}
	return Result{"": ls}
}
