// Package style translates overlay configuration records into the paint and
// layout properties of the layers that render them.
//
// Translation is pure: the same descriptor, record and theme always produce
// byte-identical output. Each overlay family is one Kind, selected by the
// descriptor; kinds own their default record and their layer template.
package style

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/service"
)

// ErrTranslation marks a configuration value that cannot be translated.
var ErrTranslation = errors.New("translation failed")

// ErrInvalidTheme is returned for theme names other than light and dark.
var ErrInvalidTheme = errors.New("invalid theme")

// Theme is the active visual theme.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case Light, Dark:
		return Theme(s), nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidTheme, s)
}

// LayerStyle is the property set of one layer.
type LayerStyle struct {
	Paint  map[string]any `json:"paint,omitempty"`
	Layout map[string]any `json:"layout,omitempty"`
}

// Result maps a layer role to its properties. The empty role is the
// overlay's primary layer.
type Result map[string]LayerStyle

// Fingerprint returns a deterministic encoding of r.
func (r Result) Fingerprint() string {
	b, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(b)
}

// LayerTemplate describes one layer of an overlay's group.
type LayerTemplate struct {
	Role string
	Type string
	// SourceGroup selects the source layer from the descriptor's fixed
	// source layers. Empty means the source layer resolved at activation.
	SourceGroup string
	Filter      any
}

// Kind is one overlay family.
type Kind interface {
	Name() registry.Kind
	// Defaults returns the kind's built-in record.
	Defaults() service.LayerConfig
	// Layers returns the layer group, bottom to top.
	Layers(desc registry.Descriptor) []LayerTemplate
	// Translate derives every role's properties. Properties that cannot be
	// translated are left out and reported.
	Translate(desc registry.Descriptor, p *props) Result
}

var kindsByName = map[registry.Kind]Kind{}

func register(k Kind) { kindsByName[k.Name()] = k }

// KindOf returns the implementation for desc's kind.
func KindOf(desc registry.Descriptor) (Kind, error) {
	k, ok := kindsByName[desc.Kind]
	if !ok {
		return nil, fmt.Errorf("overlay %q: no style kind %q", desc.ID, desc.Kind)
	}
	return k, nil
}

// Defaults returns desc's default record: the kind's defaults with the
// descriptor's own defaults written over them.
func Defaults(desc registry.Descriptor) (service.LayerConfig, error) {
	k, err := KindOf(desc)
	if err != nil {
		return nil, err
	}
	own, err := service.Normalize(desc.Defaults)
	if err != nil {
		return nil, fmt.Errorf("overlay %q defaults: %w", desc.ID, err)
	}
	base := k.Defaults()
	base[visibleKey] = true
	return base.Merge(own), nil
}

// DefaultsFunc adapts a catalogue to service.DefaultsFunc.
func DefaultsFunc(cat *registry.Catalog) service.DefaultsFunc {
	return func(id string) service.LayerConfig {
		desc, err := cat.Describe(id)
		if err != nil {
			return service.LayerConfig{}
		}
		cfg, err := Defaults(desc)
		if err != nil {
			return service.LayerConfig{}
		}
		return cfg
	}
}

// Layers returns desc's layer group, bottom to top.
func Layers(desc registry.Descriptor) ([]LayerTemplate, error) {
	k, err := KindOf(desc)
	if err != nil {
		return nil, err
	}
	return k.Layers(desc), nil
}

// Translate derives the properties of every layer of desc's group from cfg
// under theme. cfg is merged over the overlay's defaults first, so partial
// records are fine. On error the Result still holds every property that
// translated; the error joins one ErrTranslation per skipped property.
func Translate(desc registry.Descriptor, cfg service.LayerConfig, theme Theme) (Result, error) {
	k, err := KindOf(desc)
	if err != nil {
		return nil, err
	}
	defaults, err := Defaults(desc)
	if err != nil {
		return nil, err
	}
	p := &props{theme: theme, cfg: defaults.Merge(cfg)}
	res := k.Translate(desc, p)

	visible := p.boolean(visibleKey)
	for role, ls := range res {
		if ls.Layout == nil {
			ls.Layout = map[string]any{}
		}
		if !visible {
			ls.Layout["visibility"] = "none"
		} else if _, set := ls.Layout["visibility"]; !set {
			ls.Layout["visibility"] = "visible"
		}
		if ls.Paint == nil {
			ls.Paint = map[string]any{}
		}
		res[role] = ls
	}
	return res, errors.Join(p.errs...)
}

// AnimationSettings reports whether desc animates under cfg and at which
// phase increment per frame.
func AnimationSettings(desc registry.Descriptor, cfg service.LayerConfig) (enabled bool, speed float64) {
	if desc.Kind != registry.KindFillGradient {
		return false, 0
	}
	enabled, _ = cfg.Bool("animationEnabled")
	speed, _ = cfg.Float("animationSpeed")
	return enabled, speed
}

const visibleKey = "visible"
