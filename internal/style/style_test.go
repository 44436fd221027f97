package style

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/service"
)

func describe(t *testing.T, id string) registry.Descriptor {
	t.Helper()
	cat, err := registry.Default()
	require.NoError(t, err)
	d, err := cat.Describe(id)
	require.NoError(t, err)
	return d
}

func TestEveryCatalogueOverlayTranslates(t *testing.T) {
	cat, err := registry.Default()
	require.NoError(t, err)
	for _, d := range cat.List() {
		t.Run(d.ID, func(t *testing.T) {
			cfg, err := Defaults(d)
			require.NoError(t, err)
			res, err := Translate(d, cfg, Light)
			require.NoError(t, err)

			layers, err := Layers(d)
			require.NoError(t, err)
			require.Len(t, res, len(layers))
			for _, l := range layers {
				ls, ok := res[l.Role]
				require.True(t, ok, "role %q has no style", l.Role)
				assert.Equal(t, "visible", ls.Layout["visibility"])
				if l.SourceGroup != "" {
					assert.NotEmpty(t, d.SourceLayers[l.SourceGroup])
				}
			}
		})
	}
}

func TestTranslate_Idempotent(t *testing.T) {
	d := describe(t, "swell")
	cfg, err := Defaults(d)
	require.NoError(t, err)

	a, err := Translate(d, cfg, Dark)
	require.NoError(t, err)
	b, err := Translate(d, cfg, Dark)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEmpty(t, a.Fingerprint())
}

func TestGradient_SwellExpression(t *testing.T) {
	d := describe(t, "swell")
	res, err := Translate(d, service.LayerConfig{
		"gradient": []service.GradientStop{
			{Value: "0m", Color: "#072144"},
			{Value: "2.5m", Color: "#15d5a5"},
			{Value: "10m+", Color: "#56001d"},
		},
	}, Light)
	require.NoError(t, err)

	assert.Equal(t, []any{
		"interpolate", []any{"exponential", 1.5},
		[]any{"to-number", []any{"get", "value"}, 0.0},
		0.0, "#072144", 2.5, "#15d5a5", 10.0, "#56001d",
	}, res[""].Paint["fill-color"])
	assert.Equal(t, 0.3, res[""].Paint["fill-opacity"])
}

func TestGradient_CurrentSpeedIsLinear(t *testing.T) {
	d := describe(t, "currentSpeed")
	cfg, err := Defaults(d)
	require.NoError(t, err)
	res, err := Translate(d, cfg, Light)
	require.NoError(t, err)

	expr := res[""].Paint["fill-color"].([]any)
	assert.Equal(t, []any{"linear"}, expr[1])
	assert.Equal(t, 0.0, expr[3])
	assert.Equal(t, "rgb(0, 0, 255)", expr[4])
	assert.Equal(t, 4.0, expr[len(expr)-2])
}

func TestGradient_NonMonotonicRejected(t *testing.T) {
	d := describe(t, "swell")
	res, err := Translate(d, service.LayerConfig{
		"gradient": []service.GradientStop{
			{Value: "0m", Color: "#000"},
			{Value: "2m", Color: "#fff"},
			{Value: "1m", Color: "#888"},
		},
	}, Light)

	require.ErrorIs(t, err, ErrTranslation)
	assert.Contains(t, err.Error(), `"1m"`)
	assert.NotContains(t, res[""].Paint, "fill-color", "the failed property is skipped")
	assert.Equal(t, 0.3, res[""].Paint["fill-opacity"], "other properties still translate")
}

func TestGradientExpression_Errors(t *testing.T) {
	_, err := GradientExpression([]service.GradientStop{{Value: "0m", Color: "#000"}}, "linear")
	assert.Error(t, err)
	_, err = GradientExpression([]service.GradientStop{{Value: "0m", Color: "#000"}, {Value: "0m", Color: "#111"}}, "linear")
	assert.Error(t, err, "equal thresholds are not strictly increasing")
	_, err = GradientExpression([]service.GradientStop{{Value: "deep", Color: "#000"}, {Value: "1m", Color: "#111"}}, "")
	assert.Error(t, err)
	_, err = GradientExpression([]service.GradientStop{{Value: "0", Color: "#000"}, {Value: "1", Color: "#111"}}, "cubic")
	assert.Error(t, err)
}

func TestParseThreshold(t *testing.T) {
	tests := map[string]float64{"0m": 0, "2.5m": 2.5, "10m+": 10, "0.5kt": 0.5, "14m+": 14, "1013": 1013}
	for in, want := range tests {
		got, err := ParseThreshold(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "m", "0x1p3m", "1_000m", "1e3m", ".5m"} {
		_, err := ParseThreshold(in)
		assert.Error(t, err, in)
	}
}

func TestThemedColours(t *testing.T) {
	d := describe(t, "current")
	cfg, err := Defaults(d)
	require.NoError(t, err)

	light, err := Translate(d, cfg, Light)
	require.NoError(t, err)
	dark, err := Translate(d, cfg, Dark)
	require.NoError(t, err)
	assert.Equal(t, "#1c4ed8", light[""].Paint["text-color"])
	assert.Equal(t, "#b0cff9", dark[""].Paint["text-color"])

	res, err := Translate(d, service.LayerConfig{
		"textColor": service.ThemedColor{Light: "#123456"},
		"haloColor": "#abcdef",
	}, Dark)
	require.NoError(t, err)
	assert.Equal(t, "#f9f9ff", res[""].Paint["text-color"], "missing variant falls back to the kind default")
	assert.Equal(t, "#abcdef", res[""].Paint["text-halo-color"], "plain colours ignore the theme")
}

func TestGlyphs(t *testing.T) {
	tests := []struct {
		typ, custom, want string
	}{
		{"arrow", "", "→"},
		{"triangle", "", "▲"},
		{"circle", "", "●"},
		{"square", "", "■"},
		{"custom", "✈", "✈"},
		{"custom", "", "→"},
	}
	for _, tt := range tests {
		got, err := Glyph(tt.typ, tt.custom)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := Glyph("hexagon", "")
	assert.Error(t, err)

	d := describe(t, "current")
	res, err := Translate(d, service.LayerConfig{"symbolType": "hexagon"}, Light)
	assert.ErrorIs(t, err, ErrTranslation)
	assert.NotContains(t, res[""].Layout, "text-field")
}

func TestRotationExpression(t *testing.T) {
	assert.Equal(t, []any{
		"case", []any{"has", "direction"}, []any{"get", "direction"},
		[]any{"has", "value1"}, []any{"get", "value1"}, 0.0,
	}, RotationExpression("value1"))
	assert.Equal(t, []any{"case", []any{"has", "direction"}, []any{"get", "direction"}, 0.0}, RotationExpression(""))
}

func TestWindGlyphBuckets(t *testing.T) {
	tests := map[float64]string{
		0: "○", 2.4: "○", 2.5: "│", 7.4: "│", 7.5: "╸│", 12.5: "━│", 17.5: "━╸│",
		22.5: "━━│", 27.5: "━━╸│", 32.5: "━━━│", 37.5: "━━━╸|", 42.5: "━━━━│",
		47.5: "━━━━╸│", 52.4: "━━━━╸│", 52.5: "◤◤│", 80: "◤◤│",
	}
	for speed, want := range tests {
		assert.Equal(t, want, WindGlyph(speed), "speed %v", speed)
	}

	expr := WindGlyphExpression()
	assert.Equal(t, "case", expr[0])
	assert.Equal(t, "◤◤│", expr[len(expr)-1])
	assert.Len(t, expr, 1+2*11+1)
}

func TestSpeedConversion(t *testing.T) {
	v, err := ConvertSpeed(10, "kmh")
	require.NoError(t, err)
	assert.Equal(t, 36.0, v)
	v, err = ConvertSpeed(10, "knots")
	require.NoError(t, err)
	assert.Equal(t, 19.0, v)
	v, err = ConvertSpeed(10, "mps")
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
	_, err = ConvertSpeed(10, "mph")
	assert.Error(t, err)
}

func TestWind_SpeedUnitOnlyTouchesLabelText(t *testing.T) {
	d := describe(t, "wind")
	cfg, err := Defaults(d)
	require.NoError(t, err)

	before, err := Translate(d, cfg, Light)
	require.NoError(t, err)
	after, err := Translate(d, cfg.Merge(service.LayerConfig{"speedUnit": "kmh"}), Light)
	require.NoError(t, err)

	assert.Equal(t, before[""], after[""], "barb layer is unchanged")
	assert.Equal(t, before["label"].Paint, after["label"].Paint)
	for k, v := range before["label"].Layout {
		if k == "text-field" {
			continue
		}
		assert.Equal(t, v, after["label"].Layout[k], k)
	}
	assert.Equal(t,
		[]any{"concat", []any{"round", []any{"*", []any{"get", "WIND_SPEED_MS"}, 3.6}}, "km/h"},
		after["label"].Layout["text-field"])
	assert.Equal(t,
		[]any{"concat", []any{"round", []any{"*", []any{"get", "WIND_SPEED_MS"}, 1.94384}}, "kt"},
		before["label"].Layout["text-field"])
}

func TestVisibility(t *testing.T) {
	d := describe(t, "tropicalStorms")
	res, err := Translate(d, service.LayerConfig{"visible": false}, Light)
	require.NoError(t, err)
	require.Len(t, res, 7)
	for role, ls := range res {
		assert.Equal(t, "none", ls.Layout["visibility"], role)
	}

	wind := describe(t, "wind")
	res, err = Translate(wind, service.LayerConfig{"showLabels": false}, Light)
	require.NoError(t, err)
	assert.Equal(t, "visible", res[""].Layout["visibility"])
	assert.Equal(t, "none", res["label"].Layout["visibility"])
}

func TestStormGroupLayers(t *testing.T) {
	d := describe(t, "tropicalStorms")
	layers, err := Layers(d)
	require.NoError(t, err)

	var roles []string
	for _, l := range layers {
		roles = append(roles, l.Role)
		assert.Equal(t, stormFilter, l.Filter)
	}
	assert.Equal(t, []string{"cone-border", "cone", "history-border", "history", "forecast-border", "forecast", "points"}, roles)

	res, err := Translate(d, nil, Light)
	require.NoError(t, err)
	assert.Equal(t, 4.0, res["cone-border"].Paint["line-width"])
	assert.Equal(t, "#FFFFFF", res["cone-border"].Paint["line-color"])
	assert.Equal(t, []any{7.0, 5.0}, res["forecast"].Paint["line-dasharray"])
	assert.Equal(t, "#BEBEBE", res["points"].Paint["circle-color"])
}

func TestAnimationSettings(t *testing.T) {
	swell := describe(t, "swell")
	cfg, err := Defaults(swell)
	require.NoError(t, err)
	on, speed := AnimationSettings(swell, cfg)
	assert.True(t, on)
	assert.Equal(t, 0.0008, speed)

	waves := describe(t, "waves")
	cfg, err = Defaults(waves)
	require.NoError(t, err)
	on, speed = AnimationSettings(waves, cfg)
	assert.False(t, on)
	assert.Equal(t, 0.0006, speed)

	wind := describe(t, "wind")
	on, _ = AnimationSettings(wind, service.LayerConfig{"animationEnabled": true})
	assert.False(t, on)
}

func TestParseTheme(t *testing.T) {
	th, err := ParseTheme("dark")
	require.NoError(t, err)
	assert.Equal(t, Dark, th)
	_, err = ParseTheme("sepia")
	assert.Error(t, err)
}
