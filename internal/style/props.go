package style

import (
	"fmt"

	"github.com/joeblew999/plat-marine/internal/service"
)

// props reads a merged configuration record and collects one error per
// property that could not be translated.
type props struct {
	theme Theme
	cfg   service.LayerConfig
	errs  []error
}

func (p *props) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%w: %s: %w", ErrTranslation, key, err))
}

func (p *props) failf(key, format string, args ...any) {
	p.fail(key, fmt.Errorf(format, args...))
}

func (p *props) has(key string) bool {
	_, ok := p.cfg[key]
	return ok
}

// number returns the value of key. ok is false when the property must be
// skipped.
func (p *props) number(key string) (float64, bool) {
	v, ok := p.cfg[key]
	if !ok {
		p.failf(key, "missing")
		return 0, false
	}
	f, ok := v.(float64)
	if !ok {
		p.failf(key, "want a number, got %T", v)
		return 0, false
	}
	return f, true
}

func (p *props) boolean(key string) bool {
	v, ok := p.cfg[key].(bool)
	if !ok && p.has(key) {
		p.failf(key, "want a boolean, got %T", p.cfg[key])
	}
	return v
}

func (p *props) text(key string) (string, bool) {
	v, ok := p.cfg[key]
	if !ok {
		p.failf(key, "missing")
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		p.failf(key, "want a string, got %T", v)
		return "", false
	}
	return s, true
}

// color resolves a colour property. Themed colours pick the active theme's
// variant and fall back to fallback when that variant is empty; plain
// strings are used as-is.
func (p *props) color(key, fallback string) (string, bool) {
	switch v := p.cfg[key].(type) {
	case nil:
		return fallback, true
	case string:
		return v, true
	case service.ThemedColor:
		c := v.Light
		if p.theme == Dark {
			c = v.Dark
		}
		if c == "" {
			c = fallback
		}
		return c, true
	default:
		p.failf(key, "want a colour, got %T", v)
		return "", false
	}
}

func (p *props) gradient(key, interpolation string) ([]any, bool) {
	stops, ok := p.cfg[key].([]service.GradientStop)
	if !ok {
		p.failf(key, "want a gradient, got %T", p.cfg[key])
		return nil, false
	}
	expr, err := GradientExpression(stops, interpolation)
	if err != nil {
		p.fail(key, err)
		return nil, false
	}
	return expr, true
}

// set writes m[name] = v when ok.
func set[T any](m map[string]any, name string, v T, ok bool) {
	if ok {
		m[name] = v
	}
}
