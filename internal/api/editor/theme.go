package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/api"
	"github.com/joeblew999/plat-marine/internal/humastar"
	"github.com/joeblew999/plat-marine/internal/style"
	"github.com/joeblew999/plat-marine/internal/templates"
)

// ThemeHandler flips between the light and dark themes.
type ThemeHandler struct {
	humastar.Handler
	svc *api.Services
}

func NewThemeHandler(svc *api.Services, renderer *templates.Renderer) *ThemeHandler {
	return &ThemeHandler{Handler: humastar.Handler{Renderer: renderer}, svc: svc}
}

func (h *ThemeHandler) RegisterRoutes(api huma.API) {
	huma.Put(api, "/api/v1/editor/theme", h.Toggle, huma.OperationTags("editor"))
}

func (h *ThemeHandler) Toggle(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	var next style.Theme
	err := h.svc.Call(ctx, func() error {
		next = style.Dark
		if h.svc.Overlays.Theme() == style.Dark {
			next = style.Light
		}
		return h.svc.Overlays.OnThemeChanged(next)
	})
	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			sse.Status("", err.Error())
			return
		}
		sse.Replace(h.Render("theme-toggle", next), "#theme")
		sse.Signals(map[string]any{"theme": string(next)})
	}), nil
}
