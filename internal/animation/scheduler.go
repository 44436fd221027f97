// Package animation drifts the fill of animated overlays a little on every
// rendered frame.
package animation

import (
	"log/slog"
	"math"
	"time"

	"github.com/joeblew999/plat-marine/internal/metrics"
	"github.com/joeblew999/plat-marine/internal/surface"
)

// Property is the only paint property the scheduler writes.
const Property = "fill-translate"

// Settings reports whether a task should keep running and its per-frame
// phase increment. It is read on every frame so configuration changes take
// effect on the next one.
type Settings func() (enabled bool, speed float64)

type task struct {
	layerID  string
	phase    float64
	frame    surface.FrameID
	settings Settings
}

// Scheduler runs one task per overlay. Like the surface, it must only be
// used from the engine loop.
type Scheduler struct {
	surf  surface.Surface
	tasks map[string]*task
	log   *slog.Logger
}

// New creates a scheduler driving surf.
func New(surf surface.Surface, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{surf: surf, tasks: make(map[string]*task), log: log.With("component", "animation")}
}

// Start begins animating layerID on behalf of overlay id. Starting an
// overlay that is already running is a no-op.
func (s *Scheduler) Start(id, layerID string, settings Settings) {
	if _, ok := s.tasks[id]; ok {
		return
	}
	t := &task{layerID: layerID, settings: settings}
	s.tasks[id] = t
	metrics.AnimationTasks.Inc()
	s.schedule(id, t)
	s.log.Debug("Animation started", "overlay", id, "layer", layerID)
}

// Stop cancels the pending frame of id and forgets the task.
func (s *Scheduler) Stop(id string) {
	t, ok := s.tasks[id]
	if !ok {
		return
	}
	s.surf.CancelFrame(t.frame)
	s.end(id)
}

// StopAll stops every task.
func (s *Scheduler) StopAll() {
	for id := range s.tasks {
		s.Stop(id)
	}
}

// Running reports whether id has a live task.
func (s *Scheduler) Running(id string) bool {
	_, ok := s.tasks[id]
	return ok
}

// Phase returns the accumulated phase of id.
func (s *Scheduler) Phase(id string) float64 {
	if t, ok := s.tasks[id]; ok {
		return t.phase
	}
	return 0
}

// Offset is the fill translation for phase.
func Offset(phase float64) []any {
	return []any{math.Sin(phase*2) * 2, math.Cos(phase) * 1}
}

func (s *Scheduler) schedule(id string, t *task) {
	t.frame = s.surf.RequestFrame(func(time.Time) { s.tick(id, t) })
}

func (s *Scheduler) tick(id string, t *task) {
	if s.tasks[id] != t {
		return
	}
	enabled, speed := t.settings()
	if !enabled || !s.surf.HasLayer(t.layerID) {
		s.end(id)
		return
	}
	t.phase += speed
	if err := s.surf.SetPaintProperty(t.layerID, Property, Offset(t.phase)); err != nil {
		s.log.Warn("Animation write failed", "overlay", id, "error", err)
	}
	s.schedule(id, t)
}

func (s *Scheduler) end(id string) {
	delete(s.tasks, id)
	metrics.AnimationTasks.Dec()
	s.log.Debug("Animation stopped", "overlay", id)
}
