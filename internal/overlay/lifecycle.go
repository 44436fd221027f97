package overlay

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-marine/internal/metrics"
	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/service"
	"github.com/joeblew999/plat-marine/internal/style"
	"github.com/joeblew999/plat-marine/internal/surface"
)

// fetched is what remote work produces for an activation.
type fetched struct {
	source      surface.SourceSpec
	sourceLayer string
}

// Activate materialises overlay id. Activating an ACTIVE overlay returns a
// settled success; activating a PENDING one returns its in-flight
// Activation. Remote work runs off the loop and the result is posted back.
func (m *Manager) Activate(ctx context.Context, id string) *Activation {
	if m.closed {
		return settledActivation(id, ErrClosed)
	}
	desc, err := m.cat.Describe(id)
	if err != nil {
		return settledActivation(id, err)
	}

	e := m.entry(desc)
	switch e.state {
	case Active:
		return settledActivation(id, nil)
	case Pending:
		return e.act
	}
	if !m.Ready() {
		return settledActivation(id, fmt.Errorf("activate %s: %w", id, ErrSurfaceNotReady))
	}

	m.seq++
	act := newActivation(id)
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.state = Pending
	e.seq = m.seq
	e.act = act
	e.cancel = cancel
	gen := m.gen
	m.log.Debug("Overlay pending", "overlay", id, "request", act.ID)

	if desc.Geometry == registry.Raster {
		m.complete(id, act, gen, fetched{source: surface.SourceSpec{
			Type:     surface.SourceRaster,
			Tiles:    []string{desc.DataURL},
			TileSize: desc.TileSize,
		}}, nil)
		return act
	}

	go func() {
		f, err := m.fetch(fctx, desc)
		m.poster.Post(func() { m.complete(id, act, gen, f, err) })
	}()
	return act
}

// fetch runs off the loop and must not touch manager state.
func (m *Manager) fetch(ctx context.Context, desc registry.Descriptor) (fetched, error) {
	switch desc.Geometry {
	case registry.Vector:
		token, err := m.sess.Tokens.Token(ctx)
		if err != nil {
			return fetched{}, fmt.Errorf("%w: %s: token: %w", ErrRemoteFetch, desc.ID, err)
		}
		f := fetched{source: surface.SourceSpec{
			Type:  surface.SourceVector,
			Tiles: []string{m.remote.TileURL(desc.FeedID, desc.TileSetID, token)},
		}}
		if desc.NeedsMetadata() {
			name, err := m.remote.DescribeLayer(ctx, desc.FeedID, token)
			if err != nil {
				return fetched{}, fmt.Errorf("%w: %s: %w", ErrRemoteFetch, desc.ID, err)
			}
			f.sourceLayer = name
		}
		return f, nil

	case registry.GeoJSON:
		fc, err := m.remote.FetchFeatureCollection(ctx, desc.DataURL)
		if err != nil {
			return fetched{}, fmt.Errorf("%w: %s: %w", ErrRemoteFetch, desc.ID, err)
		}
		if fc == nil {
			fc = geojson.NewFeatureCollection()
		}
		return fetched{source: surface.SourceSpec{Type: surface.SourceGeoJSON, Data: fc}}, nil
	}
	return fetched{}, fmt.Errorf("%s: unsupported geometry %q", desc.ID, desc.Geometry)
}

// complete finishes an activation on the loop. Results from a superseded
// generation, or for an entry that moved on, are dropped.
func (m *Manager) complete(id string, act *Activation, gen uint64, f fetched, err error) {
	e, ok := m.entries[id]
	if m.closed || gen != m.gen || !ok || e.state != Pending || e.act != act {
		m.log.Debug("Discarding stale activation", "overlay", id, "request", act.ID)
		return
	}
	e.cancel()
	if err == nil {
		err = m.materialise(e, f)
	}
	if err != nil {
		m.fail(e, err)
		return
	}
	m.succeed(e)
}

// materialise adds the source and every layer of the group beneath the
// computed anchor. Partial work is left for fail to roll back.
func (m *Manager) materialise(e *entry, f fetched) error {
	desc := e.desc
	res, err := style.Translate(desc, m.store.Get(desc.ID), m.sess.Theme())
	if err != nil {
		metrics.TranslationErrors.WithLabelValues(desc.ID).Inc()
		return err
	}
	templates, err := style.Layers(desc)
	if err != nil {
		return err
	}

	if err := m.surf.AddSource(desc.SourceID(), f.source); err != nil {
		return fmt.Errorf("%w: %w", ErrSurfaceRejected, err)
	}
	e.sourceAdded = true

	before := m.anchorFor(e)
	e.roles = make(map[string]string, len(templates))
	for _, tpl := range templates {
		ls := res[tpl.Role]
		spec := surface.LayerSpec{
			ID:     desc.LayerID(tpl.Role),
			Type:   tpl.Type,
			Source: desc.SourceID(),
			Filter: tpl.Filter,
			Paint:  maps.Clone(ls.Paint),
			Layout: maps.Clone(ls.Layout),
		}
		if desc.Geometry == registry.Vector {
			spec.SourceLayer = f.sourceLayer
			if tpl.SourceGroup != "" {
				spec.SourceLayer = desc.SourceLayers[tpl.SourceGroup]
			}
		}
		if err := m.surf.AddLayer(spec, before); err != nil {
			return fmt.Errorf("%w: %w", ErrSurfaceRejected, err)
		}
		e.layers = append(e.layers, spec.ID)
		e.roles[tpl.Role] = spec.ID
		m.owners[spec.ID] = desc.ID
	}
	e.applied = res
	return nil
}

func (m *Manager) succeed(e *entry) {
	id := e.desc.ID
	e.state = Active
	e.act.resolve(nil)
	e.act = nil
	m.insertActive(e)
	m.syncAnimation(e)
	m.syncGauge()

	metrics.ActivationsTotal.WithLabelValues(id, "success").Inc()
	m.log.Info("Overlay active", "overlay", id, "layers", len(e.layers))
	m.publish("activated", id)
	m.bus.Notice(service.LevelInfo, id, "Layer Loaded", label(e.desc)+" layer added")
}

// insertActive keeps the active list in request order, whichever remote
// fetch finishes first.
func (m *Manager) insertActive(e *entry) {
	i, _ := slices.BinarySearchFunc(m.active, e.seq, func(id string, seq uint64) int {
		return cmp.Compare(m.entries[id].seq, seq)
	})
	m.active = slices.Insert(m.active, i, e.desc.ID)
}

// fail rolls back whatever the activation added and reports err.
func (m *Manager) fail(e *entry, err error) {
	id := e.desc.ID
	if rbErr := m.teardown(e); rbErr != nil {
		m.log.Error("Rollback incomplete", "overlay", id, "error", rbErr)
	}
	e.state = Inactive
	e.act.resolve(err)
	e.act = nil

	metrics.ActivationsTotal.WithLabelValues(id, "failure").Inc()
	m.log.Error("Overlay activation failed", "overlay", id, "error", err)
	m.publish("failed", id)
	m.bus.Notice(service.LevelError, id, "Layer Error",
		fmt.Sprintf("Failed to add %s layer: %v", label(e.desc), err))
}

// teardown removes the group's layers top-down, then its source.
func (m *Manager) teardown(e *entry) error {
	var errs []error
	for i := len(e.layers) - 1; i >= 0; i-- {
		lid := e.layers[i]
		delete(m.owners, lid)
		if !m.surf.HasLayer(lid) {
			continue
		}
		if err := m.surf.RemoveLayer(lid); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrSurfaceRejected, err))
		}
	}
	if e.sourceAdded && m.surf.HasSource(e.desc.SourceID()) {
		if err := m.surf.RemoveSource(e.desc.SourceID()); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrSurfaceRejected, err))
		}
	}
	e.layers = nil
	e.roles = nil
	e.applied = nil
	e.sourceAdded = false
	return errors.Join(errs...)
}

// Deactivate removes overlay id. It is idempotent: deactivating an
// INACTIVE overlay touches nothing beyond dropping it from a queued replay.
func (m *Manager) Deactivate(id string) error {
	if _, err := m.cat.Describe(id); err != nil {
		return err
	}
	m.replay = slices.DeleteFunc(m.replay, func(r string) bool { return r == id })

	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	switch e.state {
	case Pending:
		e.cancel()
		e.act.resolve(fmt.Errorf("activate %s: %w", id, ErrActivationCancelled))
		e.act = nil
		e.state = Inactive
		metrics.ActivationsTotal.WithLabelValues(id, "cancelled").Inc()
		m.log.Debug("Pending activation cancelled", "overlay", id)
		m.publish("deactivated", id)
		return nil

	case Active:
		e.state = Removing
		m.anim.Stop(id)
		err := m.teardown(e)
		m.active = slices.DeleteFunc(m.active, func(a string) bool { return a == id })
		e.state = Inactive
		m.syncGauge()
		m.log.Info("Overlay removed", "overlay", id)
		m.publish("deactivated", id)
		return err
	}
	return nil
}
