// Package humastar bridges Huma operations and Datastar server-sent events.
//
// Editor handlers embed [Handler], parse Datastar signals with
// [SignalsInput.Decode] and answer with [Handler.Stream]:
//
//	func (h *ThemeHandler) Toggle(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Replace(h.Render("theme-toggle", "dark"), "#theme")
//	    }), nil
//	}
//
// The same package derives RFC 8288 Link headers for the JSON API, see
// [Links], [Pager] and [Actor].
package humastar

import (
	"bytes"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-marine/internal/templates"
)

// Handler is embedded by editor handlers.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream wraps fn in a streaming response.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			fn(NewSSE(ctx))
		},
	}
}

// Render renders one named fragment. Failures render as an empty string so
// a broken fragment never ends the stream.
func (h *Handler) Render(tmpl string, data any) string {
	html, err := h.Renderer.Render(tmpl, data)
	if err != nil {
		return ""
	}
	return html
}

// RenderList renders every item with tmpl, or the empty-state fragment when
// there are none.
func (h *Handler) RenderList(tmpl string, items []any, emptyTitle, emptyMsg string) string {
	var buf bytes.Buffer
	if len(items) == 0 {
		h.Renderer.RenderToBuffer(&buf, "empty-state", map[string]string{
			"Title": emptyTitle, "Message": emptyMsg,
		})
		return buf.String()
	}
	for _, item := range items {
		h.Renderer.RenderToBuffer(&buf, tmpl, item)
	}
	return buf.String()
}

// SSE is a Datastar event generator bound to one Huma response.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE starts an event stream on ctx's response writer.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the children of the element matching selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Replace replaces the element matching selector.
func (s SSE) Replace(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeOuter(),
		datastar.WithViewTransitions(),
	)
}

// Status sets the success and error signals together, so a new message
// always clears the previous one.
func (s SSE) Status(success, failure string) {
	s.MarshalAndPatchSignals(map[string]any{"success": success, "error": failure})
}

// Signals patches arbitrary signals.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Signals is the flat JSON object Datastar posts with every action.
type Signals map[string]any

// ParseSignals decodes a request body.
func ParseSignals(body []byte) (Signals, error) {
	var signals Signals
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// String returns key as a string, or "".
func (s Signals) String(key string) string {
	str, _ := s[key].(string)
	return str
}

// Float returns key as a number, or 0.
func (s Signals) Float(key string) float64 {
	f, _ := s[key].(float64)
	return f
}

// Point reads two numeric signals as a point.
func (s Signals) Point(xKey, yKey string) orb.Point {
	return orb.Point{s.Float(xKey), s.Float(yKey)}
}

// Object returns key as a nested object, or nil.
func (s Signals) Object(key string) map[string]any {
	m, _ := s[key].(map[string]any)
	return m
}

// Has reports whether key was sent, even with a zero value.
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// EmptyInput is the input of handlers without parameters.
type EmptyInput struct{}

// SignalsInput receives Datastar signals as the raw request body.
type SignalsInput struct {
	RawBody []byte
}

// Decode parses the signals, answering 400 on malformed input.
func (i *SignalsInput) Decode() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid signals: " + err.Error())
	}
	return signals, nil
}
