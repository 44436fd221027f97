package style

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/joeblew999/plat-marine/internal/service"
)

// valueAttr is the numeric feature attribute gradients interpolate over.
var valueAttr = []any{"to-number", []any{"get", "value"}, 0.0}

var thresholdNumber = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)

// ParseThreshold parses a gradient label such as "2.5m", "10m+" or "0.5kt"
// by stripping its non-numeric suffix.
func ParseThreshold(label string) (float64, error) {
	s := strings.TrimRightFunc(strings.TrimSpace(label), func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	if !thresholdNumber.MatchString(s) {
		return 0, fmt.Errorf("threshold %q is not numeric", label)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("threshold %q is not numeric", label)
	}
	return f, nil
}

// GradientExpression builds an interpolation expression over the feature's
// value attribute. Thresholds must parse to a strictly increasing sequence;
// stops are never reordered. interpolation is "exponential" (base 1.5) or
// "linear"; empty means exponential.
func GradientExpression(stops []service.GradientStop, interpolation string) ([]any, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("gradient needs at least two stops, got %d", len(stops))
	}

	var curve []any
	switch interpolation {
	case "", "exponential":
		curve = []any{"exponential", 1.5}
	case "linear":
		curve = []any{"linear"}
	default:
		return nil, fmt.Errorf("unknown interpolation %q", interpolation)
	}

	expr := []any{"interpolate", curve, valueAttr}
	prev := math.Inf(-1)
	for i, stop := range stops {
		v, err := ParseThreshold(stop.Value)
		if err != nil {
			return nil, fmt.Errorf("stop %d: %w", i, err)
		}
		if v <= prev {
			return nil, fmt.Errorf("stop %d (%q) is not greater than the previous threshold %g", i, stop.Value, prev)
		}
		if stop.Color == "" {
			return nil, fmt.Errorf("stop %d (%q) has no colour", i, stop.Value)
		}
		prev = v
		expr = append(expr, v, stop.Color)
	}
	return expr, nil
}

// Glyph maps a symbol type to the literal glyph drawn for it.
func Glyph(symbolType, custom string) (string, error) {
	switch symbolType {
	case "arrow":
		return "→", nil
	case "triangle":
		return "▲", nil
	case "circle":
		return "●", nil
	case "square":
		return "■", nil
	case "custom":
		if custom == "" {
			return "→", nil
		}
		return custom, nil
	}
	return "", fmt.Errorf("unknown symbol type %q", symbolType)
}

// RotationExpression reads "direction", then the legacy attribute, then 0.
func RotationExpression(legacy string) []any {
	expr := []any{"case", []any{"has", "direction"}, []any{"get", "direction"}}
	if legacy != "" && legacy != "direction" {
		expr = append(expr, []any{"has", legacy}, []any{"get", legacy})
	}
	return append(expr, 0.0)
}

// Wind barb glyphs by speed bucket. Bucket i covers [edge(i-1), edge(i)).
var (
	windEdges  = []float64{2.5, 7.5, 12.5, 17.5, 22.5, 27.5, 32.5, 37.5, 42.5, 47.5, 52.5}
	windGlyphs = []string{"○", "│", "╸│", "━│", "━╸│", "━━│", "━━╸│", "━━━│", "━━━╸|", "━━━━│", "━━━━╸│"}
)

const windGlyphMax = "◤◤│"

// WindGlyph returns the barb glyph for a wind speed.
func WindGlyph(speed float64) string {
	for i, edge := range windEdges {
		if speed < edge {
			return windGlyphs[i]
		}
	}
	return windGlyphMax
}

// WindGlyphExpression is the categorical text-field for barb glyphs.
func WindGlyphExpression() []any {
	speed := []any{"to-number", []any{"get", "value"}}
	expr := []any{"case", []any{"<", speed, windEdges[0]}, windGlyphs[0]}
	for i := 1; i < len(windEdges); i++ {
		expr = append(expr,
			[]any{"all", []any{">=", speed, windEdges[i-1]}, []any{"<", speed, windEdges[i]}},
			windGlyphs[i],
		)
	}
	return append(expr, windGlyphMax)
}

// Speed units for wind labels. Factors convert from the native m/s.
var speedUnits = map[string]struct {
	factor float64
	suffix string
}{
	"mps":   {1.0, "m/s"},
	"knots": {1.94384, "kt"},
	"kmh":   {3.6, "km/h"},
}

// SpeedFactor returns the m/s conversion factor and suffix for unit.
func SpeedFactor(unit string) (float64, string, error) {
	u, ok := speedUnits[unit]
	if !ok {
		return 0, "", fmt.Errorf("unknown speed unit %q", unit)
	}
	return u.factor, u.suffix, nil
}

// ConvertSpeed converts a speed in m/s to unit, rounded to a whole unit.
func ConvertSpeed(ms float64, unit string) (float64, error) {
	f, _, err := SpeedFactor(unit)
	if err != nil {
		return 0, err
	}
	return math.Round(ms * f), nil
}

// SpeedLabelExpression renders WIND_SPEED_MS in unit with its suffix.
func SpeedLabelExpression(unit string) ([]any, error) {
	f, suffix, err := SpeedFactor(unit)
	if err != nil {
		return nil, err
	}
	return []any{"concat", []any{"round", []any{"*", []any{"get", "WIND_SPEED_MS"}, f}}, suffix}, nil
}

// zoomScaled interpolates linearly over zoom with base*mult at each stop.
func zoomScaled(curve []any, base float64, stops []float64, mults []float64) []any {
	expr := []any{"interpolate", curve, []any{"zoom"}}
	for i, z := range stops {
		expr = append(expr, z, base*mults[i])
	}
	return expr
}
