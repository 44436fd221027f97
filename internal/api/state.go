package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/dtn"
	"github.com/joeblew999/plat-marine/internal/query"
	"github.com/joeblew999/plat-marine/internal/service"
	"github.com/joeblew999/plat-marine/internal/style"
)

// ThemeBody reports the theme and the base style it selects.
type ThemeBody struct {
	Theme    style.Theme `json:"theme" enum:"light,dark" doc:"Active theme"`
	StyleURL string      `json:"styleUrl" doc:"Base style of the active theme"`
	Loaded   bool        `json:"loaded" doc:"Whether the base style has finished loading"`
	Restore  []string    `json:"restore,omitempty" doc:"Overlays rebuilt once the style loads"`
}

type ThemeInput struct {
	Body struct {
		Theme string `json:"theme" enum:"light,dark" doc:"Theme to switch to"`
	}
}

type TokenBody struct {
	Present bool `json:"present" doc:"Whether an access token is held"`
}

type TokenInput struct {
	Body struct {
		Token string `json:"token" minLength:"1" doc:"Access token, with or without the Bearer prefix"`
	}
}

type SnapshotInput struct {
	Body service.Snapshot
}

// AnnotationBody carries the annotation on display, if any.
type AnnotationBody struct {
	Shown      bool              `json:"shown" doc:"Whether an annotation is on display"`
	Annotation *query.Annotation `json:"annotation,omitempty" doc:"The annotation on display"`
}

type ClickInput struct {
	Body query.ClickEvent
}

// SurfaceBody is a read-back of the headless rendering surface.
type SurfaceBody struct {
	Style  string   `json:"style" doc:"Base style URL"`
	Epoch  uint64   `json:"epoch" doc:"Style generation"`
	Loaded bool     `json:"loaded" doc:"Whether the style has loaded"`
	Layers []string `json:"layers" doc:"Layer ids, bottom to top"`
}

// RegisterTheme registers theme routes.
func (h *APIHandler) RegisterTheme(api huma.API) {
	huma.Get(api, "/api/v1/theme", h.GetTheme, huma.OperationTags("theme"))
	huma.Put(api, "/api/v1/theme", h.PutTheme, huma.OperationTags("theme"))
}

// RegisterToken registers access token routes.
func (h *APIHandler) RegisterToken(api huma.API) {
	huma.Get(api, "/api/v1/token", h.GetToken, huma.OperationTags("token"))
	huma.Put(api, "/api/v1/token", h.PutToken, huma.OperationTags("token"))
}

// RegisterSnapshot registers snapshot routes.
func (h *APIHandler) RegisterSnapshot(api huma.API) {
	huma.Get(api, "/api/v1/snapshot", h.GetSnapshot, huma.OperationTags("snapshot"))
	huma.Put(api, "/api/v1/snapshot", h.PutSnapshot, huma.OperationTags("snapshot"))
}

// RegisterQuery registers click and annotation routes.
func (h *APIHandler) RegisterQuery(api huma.API) {
	huma.Post(api, "/api/v1/click", h.Click, huma.OperationTags("query"))
	huma.Get(api, "/api/v1/annotation", h.GetAnnotation, huma.OperationTags("query"))
	huma.Delete(api, "/api/v1/annotation", h.ClearAnnotation, huma.OperationTags("query"))
}

// RegisterSurface registers the surface read-back route.
func (h *APIHandler) RegisterSurface(api huma.API) {
	huma.Get(api, "/api/v1/surface", h.GetSurface, huma.OperationTags("surface"))
}

func (h *APIHandler) GetTheme(ctx context.Context, input *struct{}) (*struct{ Body ThemeBody }, error) {
	body, err := h.theme(ctx)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body ThemeBody }{Body: body}, nil
}

func (h *APIHandler) PutTheme(ctx context.Context, input *ThemeInput) (*struct{ Body ThemeBody }, error) {
	theme, err := style.ParseTheme(input.Body.Theme)
	if err != nil {
		return nil, httpError(err)
	}
	err = h.svc.Call(ctx, func() error {
		return h.svc.Overlays.OnThemeChanged(theme)
	})
	if err != nil {
		return nil, httpError(err)
	}
	body, err := h.theme(ctx)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body ThemeBody }{Body: body}, nil
}

func (h *APIHandler) theme(ctx context.Context) (ThemeBody, error) {
	var body ThemeBody
	err := h.svc.Call(ctx, func() error {
		body.Theme = h.svc.Overlays.Theme()
		body.StyleURL = h.svc.Session.StyleURL(body.Theme)
		body.Loaded = h.svc.Overlays.Ready()
		if !body.Loaded {
			body.Restore = h.svc.Overlays.Active()
		}
		return nil
	})
	return body, err
}

func (h *APIHandler) GetToken(ctx context.Context, input *struct{}) (*struct{ Body TokenBody }, error) {
	return &struct{ Body TokenBody }{Body: TokenBody{Present: h.svc.Tokens.Present()}}, nil
}

func (h *APIHandler) PutToken(ctx context.Context, input *TokenInput) (*struct{ Body TokenBody }, error) {
	h.svc.Tokens.Set(dtn.BearerToken(input.Body.Token))
	return &struct{ Body TokenBody }{Body: TokenBody{Present: h.svc.Tokens.Present()}}, nil
}

func (h *APIHandler) GetSnapshot(ctx context.Context, input *struct{}) (*struct{ Body service.Snapshot }, error) {
	snap, err := h.svc.Capture(ctx)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body service.Snapshot }{Body: snap}, nil
}

func (h *APIHandler) PutSnapshot(ctx context.Context, input *SnapshotInput) (*struct{ Body ThemeBody }, error) {
	if _, err := h.svc.ApplySnapshot(ctx, input.Body); err != nil {
		return nil, httpError(err)
	}
	body, err := h.theme(ctx)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body ThemeBody }{Body: body}, nil
}

func (h *APIHandler) Click(ctx context.Context, input *ClickInput) (*struct{ Body AnnotationBody }, error) {
	var body AnnotationBody
	err := h.svc.Call(ctx, func() error {
		if a, ok := h.svc.Query.HandleClick(input.Body); ok {
			body = AnnotationBody{Shown: true, Annotation: &a}
		}
		return nil
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body AnnotationBody }{Body: body}, nil
}

func (h *APIHandler) GetAnnotation(ctx context.Context, input *struct{}) (*struct{ Body AnnotationBody }, error) {
	var body AnnotationBody
	err := h.svc.Call(ctx, func() error {
		if a, ok := h.svc.Query.Current(); ok {
			body = AnnotationBody{Shown: true, Annotation: &a}
		}
		return nil
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body AnnotationBody }{Body: body}, nil
}

func (h *APIHandler) ClearAnnotation(ctx context.Context, input *struct{}) (*struct{ Body AnnotationBody }, error) {
	err := h.svc.Call(ctx, func() error {
		h.svc.Query.Clear()
		return nil
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body AnnotationBody }{}, nil
}

func (h *APIHandler) GetSurface(ctx context.Context, input *struct{}) (*struct{ Body SurfaceBody }, error) {
	var body SurfaceBody
	err := h.svc.Call(ctx, func() error {
		body.Style, body.Epoch = h.svc.Surface.Style()
		body.Loaded = h.svc.Surface.IsStyleLoaded()
		body.Layers = orEmpty(h.svc.Surface.LayerIDs())
		return nil
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body SurfaceBody }{Body: body}, nil
}
