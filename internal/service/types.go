// Package service contains the overlay configuration store, the event bus and
// snapshot persistence for the plat-marine engine.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
)

// LayerConfig is one overlay's configuration record: property name to value.
//
// Values are normalised on write to one of: string, float64, bool,
// ThemedColor, []GradientStop or []string.
type LayerConfig map[string]any

// ThemedColor is a colour with a variant per theme.
type ThemedColor struct {
	Light string `json:"light,omitempty" doc:"Colour used with the light theme" example:"#1c4ed8"`
	Dark  string `json:"dark,omitempty" doc:"Colour used with the dark theme" example:"#b0cff9"`
}

// GradientStop is one threshold of a colour gradient. Value is a label such
// as "2.5m" or "10m+"; only its numeric prefix is significant.
type GradientStop struct {
	Value string `json:"value" doc:"Threshold label" example:"2.5m"`
	Color string `json:"color" doc:"Colour (CSS)" example:"#15d5a5"`
}

// Clone returns a copy whose slices are not shared with c.
func (c LayerConfig) Clone() LayerConfig {
	out := make(LayerConfig, len(c))
	for k, v := range c {
		switch x := v.(type) {
		case []GradientStop:
			out[k] = append([]GradientStop(nil), x...)
		case []string:
			out[k] = append([]string(nil), x...)
		default:
			out[k] = v
		}
	}
	return out
}

// Merge returns c with every key of partial written over it. Values are
// replaced wholesale, never merged deeper.
func (c LayerConfig) Merge(partial LayerConfig) LayerConfig {
	out := c.Clone()
	maps.Copy(out, partial.Clone())
	return out
}

// Float returns the numeric value of key.
func (c LayerConfig) Float(key string) (float64, bool) {
	v, ok := c[key].(float64)
	return v, ok
}

// Bool returns the boolean value of key.
func (c LayerConfig) Bool(key string) (bool, bool) {
	v, ok := c[key].(bool)
	return v, ok
}

// Text returns the string value of key.
func (c LayerConfig) Text(key string) (string, bool) {
	v, ok := c[key].(string)
	return v, ok
}

// ErrInvalidConfig marks a configuration value with an unsupported shape.
var ErrInvalidConfig = errors.New("invalid configuration")

// Normalize converts JSON- or YAML-shaped values into the typed values a
// LayerConfig holds. Unknown shapes are rejected.
func Normalize(in map[string]any) (LayerConfig, error) {
	out := make(LayerConfig, len(in))
	for k, v := range in {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: property %q: %w", ErrInvalidConfig, k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case string, bool, float64, ThemedColor:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	case []GradientStop:
		return append([]GradientStop(nil), x...), nil
	case []string:
		return append([]string(nil), x...), nil
	case map[string]any:
		return themedColor(x)
	case []any:
		return normalizeList(x)
	case nil:
		return nil, fmt.Errorf("null value")
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

func themedColor(m map[string]any) (ThemedColor, error) {
	var tc ThemedColor
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			return tc, fmt.Errorf("themed colour %q must be a string", k)
		}
		switch k {
		case "light":
			tc.Light = s
		case "dark":
			tc.Dark = s
		default:
			return tc, fmt.Errorf("themed colour has unknown variant %q", k)
		}
	}
	return tc, nil
}

func normalizeList(list []any) (any, error) {
	if len(list) == 0 {
		return []string{}, nil
	}
	if _, ok := list[0].(map[string]any); ok {
		stops := make([]GradientStop, 0, len(list))
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("gradient stop %d is not an object", i)
			}
			stop := GradientStop{}
			switch v := m["value"].(type) {
			case string:
				stop.Value = v
			case float64:
				stop.Value = formatNumber(v)
			case int:
				stop.Value = formatNumber(float64(v))
			default:
				return nil, fmt.Errorf("gradient stop %d has no value", i)
			}
			c, ok := m["color"].(string)
			if !ok {
				return nil, fmt.Errorf("gradient stop %d has no color", i)
			}
			stop.Color = c
			stops = append(stops, stop)
		}
		return stops, nil
	}
	strs := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("list item %d is not a string", i)
		}
		strs = append(strs, s)
	}
	return strs, nil
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
