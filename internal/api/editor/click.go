package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/api"
	"github.com/joeblew999/plat-marine/internal/humastar"
	"github.com/joeblew999/plat-marine/internal/query"
	"github.com/joeblew999/plat-marine/internal/templates"
)

// ClickHandler answers map clicks with the value annotation. The map client
// sends the pointer position as signals {x, y, lng, lat}.
type ClickHandler struct {
	humastar.Handler
	svc *api.Services
}

func NewClickHandler(svc *api.Services, renderer *templates.Renderer) *ClickHandler {
	return &ClickHandler{Handler: humastar.Handler{Renderer: renderer}, svc: svc}
}

func (h *ClickHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/editor/click", h.Click, huma.OperationTags("editor"))
}

func (h *ClickHandler) Click(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.Decode()
	if err != nil {
		return nil, err
	}
	ev := query.ClickEvent{
		Point:  signals.Point("x", "y"),
		LngLat: signals.Point("lng", "lat"),
	}

	var (
		a  query.Annotation
		ok bool
	)
	err = h.svc.Call(ctx, func() error {
		a, ok = h.svc.Query.HandleClick(ev)
		return nil
	})
	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			sse.Status("", err.Error())
			return
		}
		sse.Replace(annotationHTML(h.Handler, a, ok), "#annotation")
	}), nil
}

func annotationHTML(h humastar.Handler, a query.Annotation, ok bool) string {
	if !ok {
		return h.Render("annotation-empty", nil)
	}
	return h.Render("annotation", a)
}
