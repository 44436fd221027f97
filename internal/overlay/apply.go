package overlay

import (
	"maps"
	"reflect"
	"slices"

	"github.com/joeblew999/plat-marine/internal/animation"
	"github.com/joeblew999/plat-marine/internal/metrics"
	"github.com/joeblew999/plat-marine/internal/service"
	"github.com/joeblew999/plat-marine/internal/style"
)

// Reconfigure applies cfg to an ACTIVE overlay, writing only properties
// whose value differs from the last one written. It is a no-op for other
// states. Rejected writes are logged and counted without aborting the rest.
// Properties that fail to translate are skipped, keep their previous value
// and are returned as an error wrapping ErrTranslation.
func (m *Manager) Reconfigure(id string, cfg service.LayerConfig) error {
	e, ok := m.entries[id]
	if !ok || e.state != Active {
		return nil
	}
	res, terr := style.Translate(e.desc, cfg, m.sess.Theme())
	if res == nil {
		return terr
	}
	if terr != nil {
		metrics.TranslationErrors.WithLabelValues(id).Inc()
		m.log.Warn("Configuration partially translated", "overlay", id, "error", terr)
	}

	failed := 0
	for _, lid := range e.layers {
		role := roleOf(e, lid)
		next, prev := res[role], e.applied[role]
		if prev.Paint == nil {
			prev.Paint = map[string]any{}
		}
		if prev.Layout == nil {
			prev.Layout = map[string]any{}
		}
		e.applied[role] = prev
		failed += m.diff(id, lid, prev.Paint, next.Paint, terr == nil, m.surf.SetPaintProperty)
		failed += m.diff(id, lid, prev.Layout, next.Layout, terr == nil, m.surf.SetLayoutProperty)
	}
	if failed > 0 {
		m.log.Warn("Partial apply failure", "overlay", id, "failed", failed)
	}
	m.syncAnimation(e)
	return terr
}

// diff writes the properties that changed between prev and next and
// records successful writes in prev. Properties missing from next are reset
// to nil only when removals is set. It returns the number of failed writes.
func (m *Manager) diff(id, layerID string, prev, next map[string]any, removals bool,
	set func(layerID, name string, value any) error) int {
	keys := slices.Sorted(maps.Keys(next))
	if removals {
		for k := range prev {
			if _, ok := next[k]; !ok {
				keys = append(keys, k)
			}
		}
		slices.Sort(keys)
	}

	failed := 0
	for _, k := range keys {
		nv, inNext := next[k]
		pv, inPrev := prev[k]
		if inNext && inPrev && reflect.DeepEqual(nv, pv) {
			continue
		}
		if err := set(layerID, k, nv); err != nil {
			failed++
			metrics.PropertyWriteFailures.WithLabelValues(id).Inc()
			m.log.Warn("Property write failed", "overlay", id, "layer", layerID, "property", k, "error", err)
			continue
		}
		if inNext {
			prev[k] = nv
		} else {
			delete(prev, k)
		}
	}
	return failed
}

// Configure merges partial into id's stored configuration. Active overlays
// pick the change up through the store subscription. The returned error
// wraps ErrTranslation when part of the new record cannot be drawn; the
// record is stored regardless.
func (m *Manager) Configure(id string, partial map[string]any) (service.LayerConfig, error) {
	desc, err := m.cat.Describe(id)
	if err != nil {
		return nil, err
	}
	cfg, err := m.store.Update(id, partial)
	if err != nil {
		return nil, err
	}
	_, terr := style.Translate(desc, cfg, m.sess.Theme())
	return cfg, terr
}

// SetVisibility shows or hides every layer of id. The flag is stored in the
// configuration so it survives theme replays and restarts.
func (m *Manager) SetVisibility(id string, visible bool) error {
	_, err := m.Configure(id, map[string]any{"visible": visible})
	return err
}

func (m *Manager) onConfigChanged(id string, cfg service.LayerConfig) {
	if err := m.Reconfigure(id, cfg); err != nil {
		m.log.Debug("Reconfigure reported", "overlay", id, "error", err)
	}
}

// syncAnimation starts or stops the overlay's animation to follow its
// configuration.
func (m *Manager) syncAnimation(e *entry) {
	id := e.desc.ID
	enabled, _ := style.AnimationSettings(e.desc, m.store.Get(id))
	switch {
	case enabled && !m.anim.Running(id):
		desc := e.desc
		m.anim.Start(id, desc.LayerID(""), animation.Settings(func() (bool, float64) {
			return style.AnimationSettings(desc, m.store.Get(desc.ID))
		}))
	case !enabled && m.anim.Running(id):
		m.anim.Stop(id)
	}
}

func roleOf(e *entry, layerID string) string {
	for role, lid := range e.roles {
		if lid == layerID {
			return role
		}
	}
	return ""
}
