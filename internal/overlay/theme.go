package overlay

import (
	"context"
	"maps"
	"slices"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-marine/internal/metrics"
	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/service"
	"github.com/joeblew999/plat-marine/internal/style"
	"github.com/joeblew999/plat-marine/internal/surface"
)

// OnThemeChanged swaps the base style for theme and rebuilds every active,
// pending or already queued overlay once the new style loads, in their
// original order. A change that arrives before the previous reload finished
// supersedes it and carries its queue over.
func (m *Manager) OnThemeChanged(theme style.Theme) error {
	if m.closed {
		return ErrClosed
	}
	if _, err := style.ParseTheme(string(theme)); err != nil {
		return err
	}
	if theme == m.sess.Theme() && !m.reloading && m.surf.IsStyleLoaded() {
		return nil
	}

	wanted := slices.Clone(m.replay)
	for _, id := range append(slices.Clone(m.active), m.Pending()...) {
		if !slices.Contains(wanted, id) {
			wanted = append(wanted, id)
		}
	}

	m.gen++
	for _, id := range slices.Sorted(maps.Keys(m.entries)) {
		e := m.entries[id]
		switch e.state {
		case Pending:
			e.cancel()
			e.act.resolve(ErrActivationSuperseded)
			e.act = nil
			metrics.ActivationsTotal.WithLabelValues(id, "superseded").Inc()
		case Active:
			m.anim.Stop(id)
		}
		e.state = Inactive
		e.layers = nil
		e.roles = nil
		e.applied = nil
		e.sourceAdded = false
	}
	clear(m.owners)
	m.active = nil
	m.replay = wanted
	m.reloading = true
	m.syncGauge()

	m.sess.SetTheme(theme)
	metrics.StyleReloads.Inc()
	m.log.Info("Theme changed", "theme", theme, "replay", wanted)
	m.bus.Publish(service.Event{Resource: "theme", Action: "changed", Target: string(theme)})
	m.surf.SetStyle(m.sess.StyleURL(theme))
	return nil
}

// onStyleLoad runs on every completed style load. The surface has dropped
// every layer, so the anchor is recreated and queued overlays rebuilt.
func (m *Manager) onStyleLoad() {
	if m.closed {
		return
	}
	m.ensureAnchor()
	m.reloading = false
	ids := m.replay
	m.replay = nil
	if len(ids) > 0 {
		m.log.Info("Restoring overlays", "overlays", ids)
	}
	for _, id := range ids {
		act := m.Activate(context.Background(), id)
		if act.Settled() && act.Err() != nil {
			m.bus.Notice(service.LevelError, id, "Layer Error", "Failed to restore "+id+": "+act.Err().Error())
		}
	}
}

// ensureAnchor adds the empty vessel-marker layer every overlay is stacked
// beneath, if the current style lacks it.
func (m *Manager) ensureAnchor() {
	if !m.surf.HasSource(AnchorSource) {
		err := m.surf.AddSource(AnchorSource, surface.SourceSpec{
			Type: surface.SourceGeoJSON,
			Data: geojson.NewFeatureCollection(),
		})
		if err != nil {
			m.log.Error("Anchor source rejected", "error", err)
			return
		}
	}
	if !m.surf.HasLayer(registry.Anchor) {
		err := m.surf.AddLayer(surface.LayerSpec{ID: registry.Anchor, Type: "symbol", Source: AnchorSource}, "")
		if err != nil {
			m.log.Error("Anchor layer rejected", "error", err)
		}
	}
}
