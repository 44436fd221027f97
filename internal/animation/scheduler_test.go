package animation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-marine/internal/surface"
)

func fillSurface(t *testing.T) *surface.Memory {
	t.Helper()
	m := surface.NewMemory("light")
	m.FinishStyleLoad()
	require.NoError(t, m.AddSource("src", surface.SourceSpec{Type: surface.SourceVector}))
	require.NoError(t, m.AddLayer(surface.LayerSpec{ID: "fill", Type: "fill", Source: "src"}, ""))
	m.ResetWrites()
	return m
}

type toggle struct {
	enabled bool
	speed   float64
}

func (tg *toggle) settings() (bool, float64) { return tg.enabled, tg.speed }

func TestScheduler_AdvancesPhase(t *testing.T) {
	m := fillSurface(t)
	s := New(m, nil)
	tg := &toggle{enabled: true, speed: 0.5}
	s.Start("swell", "fill", tg.settings)
	require.True(t, s.Running("swell"))
	assert.Equal(t, 1, m.PendingFrames())

	m.RunFrame(time.Now())
	m.RunFrame(time.Now())
	assert.InDelta(t, 1.0, s.Phase("swell"), 1e-9)

	layer, ok := m.Layer("fill")
	require.True(t, ok)
	got := layer.Paint[Property].([]any)
	assert.InDelta(t, math.Sin(2)*2, got[0].(float64), 1e-9)
	assert.InDelta(t, math.Cos(1), got[1].(float64), 1e-9)
	assert.Len(t, m.Writes(), 2)
}

func TestScheduler_StartTwiceKeepsOneTask(t *testing.T) {
	m := fillSurface(t)
	s := New(m, nil)
	tg := &toggle{enabled: true, speed: 0.1}
	s.Start("swell", "fill", tg.settings)
	s.Start("swell", "fill", tg.settings)
	assert.Equal(t, 1, m.PendingFrames())
}

func TestScheduler_DisabledStopsWithinOneFrame(t *testing.T) {
	m := fillSurface(t)
	s := New(m, nil)
	tg := &toggle{enabled: true, speed: 0.1}
	s.Start("swell", "fill", tg.settings)
	m.RunFrame(time.Now())
	m.ResetWrites()

	tg.enabled = false
	m.RunFrame(time.Now())
	assert.False(t, s.Running("swell"))
	assert.Empty(t, m.Writes(), "no write once disabled")
	assert.Zero(t, m.PendingFrames(), "no further frame requested")
}

func TestScheduler_LayerGoneEndsTask(t *testing.T) {
	m := fillSurface(t)
	s := New(m, nil)
	tg := &toggle{enabled: true, speed: 0.1}
	s.Start("swell", "fill", tg.settings)
	require.NoError(t, m.RemoveLayer("fill"))
	m.ResetWrites()

	m.RunFrame(time.Now())
	assert.False(t, s.Running("swell"))
	assert.Empty(t, m.Writes())
	assert.Zero(t, m.PendingFrames())
}

func TestScheduler_StopCancelsFrame(t *testing.T) {
	m := fillSurface(t)
	s := New(m, nil)
	tg := &toggle{enabled: true, speed: 0.1}
	s.Start("swell", "fill", tg.settings)
	s.Stop("swell")
	s.Stop("swell")

	assert.False(t, s.Running("swell"))
	assert.Zero(t, m.PendingFrames())
	assert.Zero(t, s.Phase("swell"))
	assert.Zero(t, m.RunFrame(time.Now()))
	assert.Empty(t, m.Writes())
}

func TestScheduler_IndependentPhases(t *testing.T) {
	m := fillSurface(t)
	require.NoError(t, m.AddLayer(surface.LayerSpec{ID: "fill2", Type: "fill", Source: "src"}, ""))
	s := New(m, nil)
	s.Start("swell", "fill", (&toggle{enabled: true, speed: 0.1}).settings)
	m.RunFrame(time.Now())
	s.Start("waves", "fill2", (&toggle{enabled: true, speed: 0.2}).settings)
	m.RunFrame(time.Now())

	assert.InDelta(t, 0.2, s.Phase("swell"), 1e-9)
	assert.InDelta(t, 0.2, s.Phase("waves"), 1e-9)

	s.StopAll()
	assert.Zero(t, m.PendingFrames())
}
