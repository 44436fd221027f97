// Package editor contains Datastar SSE handlers for the editor UI.
package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/api"
	"github.com/joeblew999/plat-marine/internal/humastar"
	"github.com/joeblew999/plat-marine/internal/overlay"
	"github.com/joeblew999/plat-marine/internal/templates"
)

// ConfigHandler receives configuration deltas from the editor panel's form
// controls as Datastar signals:
//
//	{"overlay": "wind", "config": {"speedUnit": "kmh"}}
type ConfigHandler struct {
	humastar.Handler
	svc *api.Services
}

func NewConfigHandler(svc *api.Services, renderer *templates.Renderer) *ConfigHandler {
	return &ConfigHandler{Handler: humastar.Handler{Renderer: renderer}, svc: svc}
}

func (h *ConfigHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/editor/config", h.UpdateConfig, huma.OperationTags("editor"))
}

func (h *ConfigHandler) UpdateConfig(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.Decode()
	if err != nil {
		return nil, err
	}
	id := signals.String("overlay")
	if id == "" {
		return nil, huma.Error400BadRequest("Overlay is required")
	}
	partial := signals.Object("config")
	if len(partial) == 0 {
		return nil, huma.Error400BadRequest("Config is required")
	}

	err = h.svc.Call(ctx, func() error {
		_, err := h.svc.Overlays.Configure(id, partial)
		return err
	})

	return h.Stream(func(sse humastar.SSE) {
		switch {
		case err == nil:
			sse.Status(fmt.Sprintf("%s updated", id), "")
		case errors.Is(err, overlay.ErrTranslation):
			sse.Status("", "Some settings could not be applied: "+err.Error())
		default:
			sse.Status("", err.Error())
		}
	}), nil
}
