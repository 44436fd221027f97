// Package overlay owns the lifecycle of overlays on the rendering surface.
//
// The Manager turns configuration records into layer groups, keeps them in
// stacking order beneath the vessel anchor, re-applies configuration changes
// as minimal property writes and rebuilds everything after a theme-driven
// style swap. It is not safe for concurrent use: every method must run on the
// engine loop. Remote work runs on goroutines that post their results back.
package overlay

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-marine/internal/animation"
	"github.com/joeblew999/plat-marine/internal/loop"
	"github.com/joeblew999/plat-marine/internal/metrics"
	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/service"
	"github.com/joeblew999/plat-marine/internal/session"
	"github.com/joeblew999/plat-marine/internal/style"
	"github.com/joeblew999/plat-marine/internal/surface"
)

// AnchorSource backs the vessel anchor layer.
const AnchorSource = "vessel-source"

// Remote is the tile and metadata service overlays are fed from.
type Remote interface {
	DescribeLayer(ctx context.Context, feedID, token string) (string, error)
	TileURL(feedID, tileSetID, token string) string
	FetchFeatureCollection(ctx context.Context, url string) (*geojson.FeatureCollection, error)
}

// Config wires a Manager.
type Config struct {
	Surface   surface.Surface
	Poster    loop.Poster
	Catalog   *registry.Catalog
	Store     *service.ConfigStore
	Remote    Remote
	Session   *session.Session
	Bus       *service.EventBus
	Animation *animation.Scheduler
}

type entry struct {
	desc   registry.Descriptor
	state  State
	seq    uint64
	act    *Activation
	cancel context.CancelFunc

	// layers lists surface layer ids bottom to top; roles maps each
	// template role to its layer id.
	layers      []string
	roles       map[string]string
	sourceAdded bool
	applied     style.Result
}

// Manager drives overlays on one surface.
type Manager struct {
	surf   surface.Surface
	poster loop.Poster
	cat    *registry.Catalog
	store  *service.ConfigStore
	remote Remote
	sess   *session.Session
	bus    *service.EventBus
	anim   *animation.Scheduler
	log    *slog.Logger

	entries map[string]*entry
	owners  map[string]string
	active  []string

	// replay holds overlays to activate on the next style load.
	replay    []string
	reloading bool
	gen       uint64
	seq       uint64

	detach []func()
	closed bool
}

// New creates a manager. Call Attach before use.
func New(cfg Config) *Manager {
	log := cfg.Session.Log.With("component", "overlay")
	if cfg.Bus == nil {
		cfg.Bus = service.NewEventBus()
	}
	if cfg.Animation == nil {
		cfg.Animation = animation.New(cfg.Surface, cfg.Session.Log)
	}
	return &Manager{
		surf:    cfg.Surface,
		poster:  cfg.Poster,
		cat:     cfg.Catalog,
		store:   cfg.Store,
		remote:  cfg.Remote,
		sess:    cfg.Session,
		bus:     cfg.Bus,
		anim:    cfg.Animation,
		log:     log,
		entries: make(map[string]*entry),
		owners:  make(map[string]string),
	}
}

// Attach subscribes to style loads and configuration changes. If the
// surface already has a loaded style the anchor is created and queued
// overlays are activated.
func (m *Manager) Attach() {
	m.detach = append(m.detach,
		m.surf.OnStyleLoad(m.onStyleLoad),
		m.store.Subscribe(m.onConfigChanged),
	)
	if m.surf.IsStyleLoaded() {
		m.onStyleLoad()
	}
}

// Close detaches from the surface and store, settles pending activations
// with ErrClosed and stops animations. Layers stay on the surface.
func (m *Manager) Close() {
	if m.closed {
		return
	}
	m.closed = true
	for _, fn := range m.detach {
		fn()
	}
	m.detach = nil
	for _, id := range slices.Sorted(maps.Keys(m.entries)) {
		e := m.entries[id]
		if e.state == Pending {
			e.cancel()
			e.act.resolve(ErrClosed)
			e.act = nil
			e.state = Inactive
		}
	}
	m.anim.StopAll()
}

// Ready reports whether activations can proceed.
func (m *Manager) Ready() bool {
	return !m.closed && !m.reloading && m.surf.IsStyleLoaded()
}

// Theme returns the active theme.
func (m *Manager) Theme() style.Theme { return m.sess.Theme() }

// State returns the lifecycle state of id.
func (m *Manager) State(id string) State {
	if e, ok := m.entries[id]; ok {
		return e.state
	}
	return Inactive
}

// Active lists materialised overlays in activation order. While a style
// reload is in flight it reports the overlays that will be restored.
func (m *Manager) Active() []string {
	if m.reloading {
		return slices.Clone(m.replay)
	}
	return slices.Clone(m.active)
}

// Pending lists overlays waiting on remote work, oldest first.
func (m *Manager) Pending() []string {
	var pending []*entry
	for _, e := range m.entries {
		if e.state == Pending {
			pending = append(pending, e)
		}
	}
	slices.SortFunc(pending, func(a, b *entry) int { return cmp.Compare(a.seq, b.seq) })
	ids := make([]string, len(pending))
	for i, e := range pending {
		ids[i] = e.desc.ID
	}
	return ids
}

// OwnerOf returns the overlay that owns a surface layer.
func (m *Manager) OwnerOf(layerID string) (string, bool) {
	id, ok := m.owners[layerID]
	return id, ok
}

// Layers returns the surface layers of id, bottom to top.
func (m *Manager) Layers(id string) []string {
	if e, ok := m.entries[id]; ok {
		return slices.Clone(e.layers)
	}
	return nil
}

// Applied returns the properties last written for id.
func (m *Manager) Applied(id string) style.Result {
	e, ok := m.entries[id]
	if !ok || e.applied == nil {
		return nil
	}
	out := make(style.Result, len(e.applied))
	for role, ls := range e.applied {
		out[role] = style.LayerStyle{Paint: maps.Clone(ls.Paint), Layout: maps.Clone(ls.Layout)}
	}
	return out
}

// Animating reports whether id has a running animation task.
func (m *Manager) Animating(id string) bool { return m.anim.Running(id) }

// Restore queues ids for activation. They activate immediately when the
// surface is ready, otherwise on the next style load.
func (m *Manager) Restore(ctx context.Context, ids []string) []*Activation {
	if m.Ready() {
		return m.ActivateAll(ctx, ids)
	}
	for _, id := range ids {
		if m.cat.Has(id) && !slices.Contains(m.replay, id) {
			m.replay = append(m.replay, id)
		}
	}
	return nil
}

// ActivateAll activates ids in order.
func (m *Manager) ActivateAll(ctx context.Context, ids []string) []*Activation {
	acts := make([]*Activation, len(ids))
	for i, id := range ids {
		acts[i] = m.Activate(ctx, id)
	}
	return acts
}

// DeactivateAll removes every active and pending overlay, newest first,
// and drops any queued replay.
func (m *Manager) DeactivateAll() error {
	ids := append(slices.Clone(m.active), m.Pending()...)
	m.replay = nil
	var errs []error
	for i := len(ids) - 1; i >= 0; i-- {
		if err := m.Deactivate(ids[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) entry(desc registry.Descriptor) *entry {
	e, ok := m.entries[desc.ID]
	if !ok {
		e = &entry{desc: desc, state: Inactive}
		m.entries[desc.ID] = e
	}
	return e
}

func (m *Manager) publish(action, target string) {
	m.bus.Publish(service.Event{Resource: "overlays", Action: action, Target: target})
}

func (m *Manager) syncGauge() {
	metrics.ActiveOverlays.Set(float64(len(m.active)))
}

func label(desc registry.Descriptor) string {
	if desc.Label != "" {
		return desc.Label
	}
	return desc.ID
}
