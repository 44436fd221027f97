// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/humastar"
	"github.com/joeblew999/plat-marine/internal/overlay"
	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/service"
)

// Types

type IDInput struct {
	ID string `path:"id" doc:"Overlay ID" example:"swell"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
	Ready   bool   `json:"ready" doc:"Whether the surface accepts activations"`
}

// OverlaySummary is one catalogue entry with its lifecycle state.
type OverlaySummary struct {
	ID       string            `json:"id" doc:"Overlay ID" example:"swell"`
	Label    string            `json:"label" doc:"Display label" example:"Swell"`
	Geometry registry.Geometry `json:"geometry" doc:"Source geometry kind"`
	Stacking registry.Stacking `json:"stacking" doc:"Stacking class"`
	Kind     registry.Kind     `json:"kind" doc:"Style kind"`
	State    overlay.State     `json:"state" enum:"INACTIVE,PENDING,ACTIVE,REMOVING" doc:"Lifecycle state"`
}

// OverlayDetail describes one overlay in full.
type OverlayDetail struct {
	registry.Descriptor
	State     overlay.State       `json:"state" enum:"INACTIVE,PENDING,ACTIVE,REMOVING" doc:"Lifecycle state"`
	Layers    []string            `json:"layers" doc:"Surface layers, bottom to top"`
	Animating bool                `json:"animating" doc:"Whether an animation task is running"`
	Config    service.LayerConfig `json:"config" doc:"Merged configuration record"`
}

var activeActions = []humastar.ActionDef{
	{Rel: "deactivate", Pattern: "/api/v1/overlays/%s/deactivate", Method: "POST", Title: "Remove overlay"},
	{Rel: "edit", Pattern: "/api/v1/overlays/%s/config", Method: "PATCH", Title: "Configure overlay"},
	{Rel: "visibility", Pattern: "/api/v1/overlays/%s/visibility", Method: "PUT", Title: "Show or hide overlay"},
}

var inactiveActions = []humastar.ActionDef{
	{Rel: "activate", Pattern: "/api/v1/overlays/%s/activate", Method: "POST", Title: "Add overlay"},
	{Rel: "edit", Pattern: "/api/v1/overlays/%s/config", Method: "PATCH", Title: "Configure overlay"},
}

// Actions returns the transitions available in the overlay's state.
func (d OverlayDetail) Actions() []humastar.Action {
	switch d.State {
	case overlay.Active:
		return humastar.ActionsFor(d.ID, activeActions)
	case overlay.Inactive:
		return humastar.ActionsFor(d.ID, inactiveActions)
	}
	return nil
}

type ListOverlaysInput struct {
	humastar.PageInput
}

type ActivateInput struct {
	IDInput
	Wait bool `query:"wait" default:"true" doc:"Wait for the activation to settle"`
}

// ActivationBody reports the outcome of an activation request.
type ActivationBody struct {
	Request string        `json:"request" doc:"Activation request id"`
	Overlay string        `json:"overlay" doc:"Overlay ID"`
	State   overlay.State `json:"state" doc:"Lifecycle state after the request"`
	Active  []string      `json:"active" doc:"Active overlays in insertion order"`
}

// StateBody reports the active overlay set.
type StateBody struct {
	Active []string `json:"active" doc:"Active overlays in insertion order"`
}

// ConfigBody is an overlay's merged configuration.
type ConfigBody struct {
	Overlay  string              `json:"overlay" doc:"Overlay ID"`
	Config   service.LayerConfig `json:"config" doc:"Merged configuration record"`
	Warnings []string            `json:"warnings,omitempty" doc:"Properties that could not be drawn and kept their previous value"`
}

type PatchConfigInput struct {
	IDInput
	Body map[string]any
}

type VisibilityInput struct {
	IDInput
	Body struct {
		Visible bool `json:"visible" doc:"Show or hide every layer of the overlay"`
	}
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterOverlays registers overlay lifecycle routes.
func (h *APIHandler) RegisterOverlays(api huma.API) {
	huma.Get(api, "/api/v1/overlays", h.ListOverlays, huma.OperationTags("overlays"))
	huma.Delete(api, "/api/v1/overlays", h.RemoveAll, huma.OperationTags("overlays"))
	huma.Get(api, "/api/v1/overlays/{id}", h.GetOverlay, huma.OperationTags("overlays"))
	huma.Post(api, "/api/v1/overlays/{id}/activate", h.Activate, huma.OperationTags("overlays"))
	huma.Post(api, "/api/v1/overlays/{id}/deactivate", h.Deactivate, huma.OperationTags("overlays"))
	huma.Put(api, "/api/v1/overlays/{id}/visibility", h.SetVisibility, huma.OperationTags("overlays"))
}

// RegisterConfig registers configuration routes.
func (h *APIHandler) RegisterConfig(api huma.API) {
	huma.Get(api, "/api/v1/overlays/{id}/config", h.GetConfig, huma.OperationTags("config"))
	huma.Patch(api, "/api/v1/overlays/{id}/config", h.PatchConfig, huma.OperationTags("config"))
	huma.Delete(api, "/api/v1/overlays/{id}/config", h.ResetConfig, huma.OperationTags("config"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	ready := false
	if h.svc != nil && h.svc.Loop != nil {
		_ = h.svc.Call(ctx, func() error {
			ready = h.svc.Overlays.Ready()
			return nil
		})
	}
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0", Ready: ready}}, nil
}

func (h *APIHandler) ListOverlays(ctx context.Context, input *ListOverlaysInput) (*struct {
	Body humastar.PageBody[OverlaySummary]
}, error) {
	descs := h.svc.Catalog.List()
	items := make([]OverlaySummary, len(descs))
	err := h.svc.Call(ctx, func() error {
		for i, d := range descs {
			items[i] = OverlaySummary{
				ID: d.ID, Label: d.Label, Geometry: d.Geometry, Stacking: d.Stacking, Kind: d.Kind,
				State: h.svc.Overlays.State(d.ID),
			}
		}
		return nil
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &struct {
		Body humastar.PageBody[OverlaySummary]
	}{Body: humastar.Paginate(items, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetOverlay(ctx context.Context, input *IDInput) (*struct{ Body OverlayDetail }, error) {
	detail, err := h.detail(ctx, input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body OverlayDetail }{Body: detail}, nil
}

func (h *APIHandler) detail(ctx context.Context, id string) (OverlayDetail, error) {
	desc, err := h.svc.Catalog.Describe(id)
	if err != nil {
		return OverlayDetail{}, err
	}
	d := OverlayDetail{Descriptor: desc, Config: h.svc.Store.Get(id)}
	err = h.svc.Call(ctx, func() error {
		d.State = h.svc.Overlays.State(id)
		d.Layers = h.svc.Overlays.Layers(id)
		d.Animating = h.svc.Overlays.Animating(id)
		return nil
	})
	if d.Layers == nil {
		d.Layers = []string{}
	}
	return d, err
}

func (h *APIHandler) Activate(ctx context.Context, input *ActivateInput) (*struct{ Body ActivationBody }, error) {
	var act *overlay.Activation
	err := h.svc.Call(ctx, func() error {
		act = h.svc.Overlays.Activate(ctx, input.ID)
		return nil
	})
	if err != nil {
		return nil, httpError(err)
	}
	if input.Wait || act.Settled() {
		if err := act.Wait(ctx); err != nil {
			return nil, httpError(err)
		}
	}
	body := ActivationBody{Request: act.ID, Overlay: input.ID}
	err = h.svc.Call(ctx, func() error {
		body.State = h.svc.Overlays.State(input.ID)
		body.Active = h.svc.Overlays.Active()
		return nil
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body ActivationBody }{Body: body}, nil
}

func (h *APIHandler) Deactivate(ctx context.Context, input *IDInput) (*struct{ Body StateBody }, error) {
	if !h.svc.Catalog.Has(input.ID) {
		return nil, huma.Error404NotFound("overlay not found")
	}
	var active []string
	err := h.svc.Call(ctx, func() error {
		err := h.svc.Overlays.Deactivate(input.ID)
		active = h.svc.Overlays.Active()
		return err
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body StateBody }{Body: StateBody{Active: orEmpty(active)}}, nil
}

func (h *APIHandler) RemoveAll(ctx context.Context, input *struct{}) (*struct{ Body StateBody }, error) {
	err := h.svc.Call(ctx, func() error {
		return h.svc.Overlays.DeactivateAll()
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body StateBody }{Body: StateBody{Active: []string{}}}, nil
}

func (h *APIHandler) SetVisibility(ctx context.Context, input *VisibilityInput) (*struct{ Body ConfigBody }, error) {
	var warn error
	err := h.svc.Call(ctx, func() error {
		var err error
		warn, err = splitWarning(h.svc.Overlays.SetVisibility(input.ID, input.Body.Visible))
		return err
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body ConfigBody }{Body: configBody(input.ID, h.svc.Store.Get(input.ID), warn)}, nil
}

func (h *APIHandler) GetConfig(ctx context.Context, input *IDInput) (*struct{ Body ConfigBody }, error) {
	if !h.svc.Catalog.Has(input.ID) {
		return nil, huma.Error404NotFound("overlay not found")
	}
	return &struct{ Body ConfigBody }{Body: configBody(input.ID, h.svc.Store.Get(input.ID), nil)}, nil
}

func (h *APIHandler) PatchConfig(ctx context.Context, input *PatchConfigInput) (*struct{ Body ConfigBody }, error) {
	var (
		cfg  service.LayerConfig
		warn error
	)
	err := h.svc.Call(ctx, func() error {
		var err error
		cfg, err = h.svc.Overlays.Configure(input.ID, input.Body)
		warn, err = splitWarning(err)
		return err
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body ConfigBody }{Body: configBody(input.ID, cfg, warn)}, nil
}

func (h *APIHandler) ResetConfig(ctx context.Context, input *IDInput) (*struct{ Body ConfigBody }, error) {
	if !h.svc.Catalog.Has(input.ID) {
		return nil, huma.Error404NotFound("overlay not found")
	}
	var cfg service.LayerConfig
	err := h.svc.Call(ctx, func() error {
		cfg = h.svc.Store.Reset(input.ID)
		return nil
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body ConfigBody }{Body: configBody(input.ID, cfg, nil)}, nil
}

// splitWarning separates translation problems, which are reported as
// warnings, from real failures.
func splitWarning(err error) (warning, failure error) {
	if err != nil && errors.Is(err, overlay.ErrTranslation) {
		return err, nil
	}
	return nil, err
}

func configBody(id string, cfg service.LayerConfig, warn error) ConfigBody {
	body := ConfigBody{Overlay: id, Config: cfg}
	if body.Config == nil {
		body.Config = service.LayerConfig{}
	}
	if warn != nil {
		body.Warnings = []string{warn.Error()}
	}
	return body
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
