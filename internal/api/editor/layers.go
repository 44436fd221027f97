package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/api"
	"github.com/joeblew999/plat-marine/internal/humastar"
	"github.com/joeblew999/plat-marine/internal/overlay"
	"github.com/joeblew999/plat-marine/internal/templates"
)

// OverlayRow is the data behind one overlay-row fragment.
type OverlayRow struct {
	ID       string
	Label    string
	State    overlay.State
	Stacking string
	Geometry string
}

// OverlayHandler adds and removes overlays from the editor panel.
type OverlayHandler struct {
	humastar.Handler
	svc *api.Services
}

func NewOverlayHandler(svc *api.Services, renderer *templates.Renderer) *OverlayHandler {
	return &OverlayHandler{Handler: humastar.Handler{Renderer: renderer}, svc: svc}
}

func (h *OverlayHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/overlays", h.ListOverlays, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/overlays/{id}", h.AddOverlay, huma.OperationTags("editor"))
	huma.Delete(api, "/api/v1/editor/overlays/{id}", h.RemoveOverlay, huma.OperationTags("editor"))
}

func (h *OverlayHandler) ListOverlays(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	html, err := h.renderOverlayList(ctx)
	if err != nil {
		return nil, huma.Error409Conflict(err.Error())
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(html, "#overlay-list")
	}), nil
}

type OverlayPathInput struct {
	ID string `path:"id" doc:"Overlay ID"`
}

// AddOverlay starts an activation and answers straight away; the row moves
// to ACTIVE through the event stream once it settles.
func (h *OverlayHandler) AddOverlay(ctx context.Context, input *OverlayPathInput) (*huma.StreamResponse, error) {
	if !h.svc.Catalog.Has(input.ID) {
		return nil, huma.Error404NotFound("overlay not found")
	}
	var act *overlay.Activation
	err := h.svc.Call(ctx, func() error {
		act = h.svc.Overlays.Activate(ctx, input.ID)
		return nil
	})
	if err != nil {
		return nil, huma.Error409Conflict(err.Error())
	}
	html, _ := h.renderOverlayList(ctx)
	return h.Stream(func(sse humastar.SSE) {
		if act.Settled() && act.Err() != nil {
			sse.Status("", act.Err().Error())
			return
		}
		sse.Patch(html, "#overlay-list")
	}), nil
}

func (h *OverlayHandler) RemoveOverlay(ctx context.Context, input *OverlayPathInput) (*huma.StreamResponse, error) {
	if !h.svc.Catalog.Has(input.ID) {
		return nil, huma.Error404NotFound("overlay not found")
	}
	err := h.svc.Call(ctx, func() error {
		return h.svc.Overlays.Deactivate(input.ID)
	})
	html, _ := h.renderOverlayList(ctx)
	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			sse.Status("", err.Error())
			return
		}
		sse.Patch(html, "#overlay-list")
		sse.Status("Overlay removed", "")
	}), nil
}

func (h *OverlayHandler) renderOverlayList(ctx context.Context) (string, error) {
	rows, err := overlayRows(ctx, h.svc)
	if err != nil {
		return "", err
	}
	return h.RenderList("overlay-row", rows, "No overlays", "The overlay catalogue is empty"), nil
}

// overlayRows reads every catalogue entry with its state from the loop.
func overlayRows(ctx context.Context, svc *api.Services) ([]any, error) {
	descs := svc.Catalog.List()
	rows := make([]any, len(descs))
	err := svc.Call(ctx, func() error {
		for i, d := range descs {
			rows[i] = OverlayRow{
				ID:       d.ID,
				Label:    d.Label,
				State:    svc.Overlays.State(d.ID),
				Stacking: string(d.Stacking),
				Geometry: string(d.Geometry),
			}
		}
		return nil
	})
	return rows, err
}
