package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/api"
	"github.com/joeblew999/plat-marine/internal/humastar"
	"github.com/joeblew999/plat-marine/internal/query"
	"github.com/joeblew999/plat-marine/internal/service"
	"github.com/joeblew999/plat-marine/internal/templates"
)

// EventHandler streams engine events to the Datastar UI via SSE.
type EventHandler struct {
	humastar.Handler
	svc *api.Services
}

// NewEventHandler creates a new event handler.
func NewEventHandler(svc *api.Services, renderer *templates.Renderer) *EventHandler {
	return &EventHandler{Handler: humastar.Handler{Renderer: renderer}, svc: svc}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/events", h.Events,
		huma.OperationTags("editor"),
	)
}

func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ch := h.svc.Bus.Subscribe()
		defer h.svc.Bus.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				h.apply(ctx, sse, ev)
				sse.DispatchCustomEvent("resource-changed", map[string]any{
					"resource": ev.Resource,
					"action":   ev.Action,
					"target":   ev.Target,
					"id":       ev.ID,
				})
			}
		}
	}), nil
}

// apply patches the parts of the page an event affects.
func (h *EventHandler) apply(ctx context.Context, sse humastar.SSE, ev service.Event) {
	switch ev.Resource {
	case "overlays":
		rows, err := overlayRows(ctx, h.svc)
		if err != nil {
			return
		}
		sse.Patch(h.RenderList("overlay-row", rows, "No overlays", "The overlay catalogue is empty"), "#overlay-list")
	case "theme":
		sse.Replace(h.Render("theme-toggle", ev.Target), "#theme")
	case "notice":
		sse.Replace(h.Render("notice", ev), "#notice")
	case "annotation":
		a, ok := ev.Data.(query.Annotation)
		sse.Replace(annotationHTML(h.Handler, a, ok && ev.Action == "shown"), "#annotation")
	}
}
