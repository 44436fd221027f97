package humastar

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	p := Paginate(items, 2, 2)
	assert.Equal(t, []string{"c", "d"}, p.Data)
	assert.Equal(t, 5, p.Total)
	assert.Equal(t, []string{
		`</x?offset=0&limit=2>; rel="first"`,
		`</x?offset=0&limit=2>; rel="prev"`,
		`</x?offset=4&limit=2>; rel="next"`,
		`</x?offset=4&limit=2>; rel="last"`,
	}, p.PaginationLinks("/x"))

	p = Paginate(items, 10, 0)
	assert.Empty(t, p.Data)
	assert.Equal(t, DefaultLimit, p.Limit)

	empty := Paginate([]string(nil), 0, 5)
	assert.NotNil(t, empty.Data)
	assert.Contains(t, empty.PaginationLinks("/x"), `</x?offset=0&limit=5>; rel="last"`)
}

func TestSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"overlay":"wind","x":12,"y":7.5,"config":{"speedUnit":"kmh"}}`))
	require.NoError(t, err)
	assert.Equal(t, "wind", s.String("overlay"))
	assert.Equal(t, "", s.String("x"))
	assert.Equal(t, 7.5, s.Float("y"))
	assert.Equal(t, orb.Point{12, 7.5}, s.Point("x", "y"))
	assert.Equal(t, map[string]any{"speedUnit": "kmh"}, s.Object("config"))
	assert.Nil(t, s.Object("overlay"))
	assert.False(t, s.Has("missing"))

	in := &SignalsInput{RawBody: []byte("{")}
	_, err = in.Decode()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.GetStatus())
}

func TestActionsFor(t *testing.T) {
	actions := ActionsFor("wind", []ActionDef{
		{Rel: "deactivate", Pattern: "/api/v1/overlays/%s/deactivate", Method: "POST", Title: "Deactivate"},
		{Rel: "config", Pattern: "/api/v1/overlays/%s/config"},
	})
	require.Len(t, actions, 2)
	assert.Equal(t, `</api/v1/overlays/wind/config>; rel="config"`, actions[1].LinkHeader())
	assert.Equal(t, `</api/v1/overlays/wind/deactivate>; rel="deactivate"; method="POST"; title="Deactivate"`, actions[0].LinkHeader())
}

type thing struct {
	ID string `json:"id"`
}

func (thing) Actions() []Action {
	return []Action{{Rel: "poke", Href: "/things/a/poke", Method: "POST"}}
}

func TestLinks(t *testing.T) {
	links := NewLinks("/health")
	cfg := huma.DefaultConfig("Links", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, links.Transformer())
	_, api := humatest.New(t, cfg)

	noop := func(ctx context.Context, _ *struct{}) (*struct{}, error) { return nil, nil }
	huma.Get(api, "/health", noop, huma.OperationTags("health"))
	huma.Get(api, "/things", func(ctx context.Context, _ *struct{}) (*struct{ Body PageBody[thing] }, error) {
		return &struct{ Body PageBody[thing] }{Body: Paginate([]thing{{"a"}, {"b"}, {"c"}}, 0, 2)}, nil
	}, huma.OperationTags("things"))
	huma.Get(api, "/things/{id}", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body thing }, error) {
		return &struct{ Body thing }{Body: thing{in.ID}}, nil
	}, huma.OperationTags("things"))
	huma.Patch(api, "/things/{id}/config", noop, huma.OperationTags("things"))
	huma.Post(api, "/editor/things", noop, huma.OperationTags("editor"))
	links.Build(api)

	entry := links.Entry()
	assert.Contains(t, entry, `</things>; rel="things"`)
	assert.Contains(t, entry, `</openapi.json>; rel="service-desc"`)
	assert.NotContains(t, entry, `</editor/things>; rel="things"`)

	assert.Contains(t, links.For("/things"), `</things/{id}>; rel="item"`)
	assert.Contains(t, links.For("/things/{id}"), `</things>; rel="collection"`)
	assert.Contains(t, links.For("/things/{id}/config"), `</things/{id}/config>; rel="edit"`)
	assert.Empty(t, links.For("/editor/things"))

	resp := api.Get("/things?limit=2")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Values("Link"), `</things?offset=2&limit=2>; rel="next"`)
	assert.Contains(t, resp.Header().Values("Link"), `</health>; rel="up"`)

	resp = api.Get("/things/a")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Values("Link"), `</things/a>; rel="self"`)
	assert.Contains(t, resp.Header().Values("Link"), `</things/a/poke>; rel="poke"; method="POST"`)
}

func TestSplitLink(t *testing.T) {
	rel, href := splitLink(`</x>; rel="up"`)
	assert.Equal(t, "up", rel)
	assert.Equal(t, "/x", href)
	rel, _ = splitLink("</x>")
	assert.Empty(t, rel)
}
