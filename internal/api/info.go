package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/dtn"
)

type InfoHandler struct {
	dataDir string
	store   string
	remote  *dtn.Client
}

func NewInfoHandler(dataDir, store string, remote *dtn.Client) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, store: store, remote: remote}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	Store    string   `json:"store" enum:"file,duckdb" doc:"Snapshot store backend"`
	Remote   string   `json:"remote,omitempty" doc:"Tile and metadata service base URL"`
	Breaker  string   `json:"breaker,omitempty" doc:"Circuit breaker state of the remote client"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "plat-marine",
		Version:  "0.1.0",
		DataDir:  h.dataDir,
		Store:    h.store,
		Features: []string{"overlays", "themes", "animation", "annotations", "snapshots"},
	}
	if h.remote != nil {
		body.Remote = h.remote.BaseURL()
		body.Breaker = h.remote.BreakerState().String()
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
