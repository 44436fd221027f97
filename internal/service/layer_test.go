package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func swellDefaults(id string) LayerConfig {
	if id != "swell" {
		return LayerConfig{}
	}
	return LayerConfig{
		"fillOpacity":      0.3,
		"animationEnabled": true,
		"textColor":        ThemedColor{Light: "#1c4ed8", Dark: "#b0cff9"},
		"gradient": []GradientStop{
			{Value: "0m", Color: "#072144"},
			{Value: "10m+", Color: "#56001d"},
		},
	}
}

func TestConfigStore_GetReturnsDefault(t *testing.T) {
	s := NewConfigStore(swellDefaults)
	cfg := s.Get("swell")
	assert.Equal(t, 0.3, cfg["fillOpacity"])
	assert.Empty(t, s.Get("unknown"))
	assert.Empty(t, s.Export())
}

func TestConfigStore_UpdateShallowMerge(t *testing.T) {
	s := NewConfigStore(swellDefaults)

	cfg, err := s.Update("swell", map[string]any{
		"fillOpacity": 0.5,
		"gradient": []any{
			map[string]any{"value": "1m", "color": "#111"},
			map[string]any{"value": 2, "color": "#222"},
		},
		"textColor": map[string]any{"dark": "#fff"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg["fillOpacity"])
	assert.Equal(t, true, cfg["animationEnabled"])
	assert.Equal(t, []GradientStop{{Value: "1m", Color: "#111"}, {Value: "2", Color: "#222"}}, cfg["gradient"])
	assert.Equal(t, ThemedColor{Dark: "#fff"}, cfg["textColor"], "themed colours are replaced wholesale")

	cfg, err = s.Update("swell", map[string]any{"animationEnabled": false})
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg["fillOpacity"], "earlier writes survive")
	assert.Equal(t, false, cfg["animationEnabled"])
}

func TestConfigStore_UpdateRejectsBadShapes(t *testing.T) {
	s := NewConfigStore(swellDefaults)
	_, err := s.Update("swell", map[string]any{"textColor": map[string]any{"sepia": "#000"}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = s.Update("swell", map[string]any{"gradient": []any{map[string]any{"value": "1m"}}})
	assert.Error(t, err)
	assert.Equal(t, 0.3, s.Get("swell")["fillOpacity"])
}

func TestConfigStore_ResetAndNotify(t *testing.T) {
	s := NewConfigStore(swellDefaults)

	var got []string
	cancel := s.Subscribe(func(id string, cfg LayerConfig) {
		got = append(got, id)
	})

	_, err := s.Update("swell", map[string]any{"fillOpacity": 0.9})
	require.NoError(t, err)
	cfg := s.Reset("swell")
	assert.Equal(t, 0.3, cfg["fillOpacity"])
	assert.Equal(t, []string{"swell", "swell"}, got)

	cancel()
	_, err = s.Update("swell", map[string]any{"fillOpacity": 0.1})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestConfigStore_GetIsACopy(t *testing.T) {
	s := NewConfigStore(swellDefaults)
	cfg := s.Get("swell")
	cfg["fillOpacity"] = 1.0
	cfg["gradient"].([]GradientStop)[0].Color = "#bad"

	fresh := s.Get("swell")
	assert.Equal(t, 0.3, fresh["fillOpacity"])
	assert.Equal(t, "#072144", fresh["gradient"].([]GradientStop)[0].Color)
}

func TestConfigStore_ExportImport(t *testing.T) {
	s := NewConfigStore(swellDefaults)
	_, err := s.Update("swell", map[string]any{"fillOpacity": 0.6})
	require.NoError(t, err)
	_, err = s.Update("wind", map[string]any{"speedUnit": "kmh"})
	require.NoError(t, err)

	snap := s.Export()

	var notified []string
	other := NewConfigStore(swellDefaults)
	_, err = other.Update("current", map[string]any{"textSize": 20})
	require.NoError(t, err)
	other.Subscribe(func(id string, _ LayerConfig) { notified = append(notified, id) })
	other.Import(snap)

	assert.Equal(t, 0.6, other.Get("swell")["fillOpacity"])
	assert.Equal(t, "kmh", other.Get("wind")["speedUnit"])
	assert.NotContains(t, other.Get("current"), "textSize")
	assert.Equal(t, []string{"current", "swell", "wind"}, notified)
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(dir)
	ctx := context.Background()

	empty, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Configs)

	snap := Snapshot{
		Theme:  "dark",
		Active: []string{"wind", "swell"},
		Configs: map[string]LayerConfig{
			"swell": {
				"fillOpacity": 0.4,
				"textColor":   ThemedColor{Light: "#000", Dark: "#fff"},
				"gradient":    []GradientStop{{Value: "0m", Color: "#000"}, {Value: "1m", Color: "#fff"}},
				"writingMode": []string{"horizontal"},
			},
		},
	}
	require.NoError(t, fs.Save(ctx, snap))

	got, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}
