package humastar

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds RFC 8288 Link headers derived from the routes of one API,
// keyed by operation path. Build fills it once routing is complete and
// Transformer serves it on every response.
type Links struct {
	entry string

	mu     sync.RWMutex
	byPath map[string][]string
}

// NewLinks creates an empty set whose entry point is entry, the path that
// links to every collection.
func NewLinks(entry string) *Links {
	return &Links{entry: entry, byPath: map[string][]string{}}
}

// Build derives the link relations from api's OpenAPI document. Operations
// tagged "editor" are skipped. Call after every route is registered.
func (l *Links) Build(api huma.API) {
	oapi := api.OpenAPI()
	byPath := map[string][]string{}
	add := func(from, to, rel string) {
		val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
		if !slices.Contains(byPath[from], val) {
			byPath[from] = append(byPath[from], val)
		}
	}

	var paths []string
	for p, pi := range oapi.Paths {
		if !slices.Contains(primaryTags(pi), "editor") {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)

	for _, p := range paths {
		pi := oapi.Paths[p]
		parent := path.Dir(p)

		// Sub-resources: an {id} child is an item of its collection; a
		// readable named child is linked from its parent by name.
		if parent != p && slices.Contains(paths, parent) {
			seg := lastSegment(p)
			switch {
			case strings.HasPrefix(seg, "{"):
				add(p, parent, "collection")
				add(parent, p, "item")
			case pi.Get != nil:
				add(parent, p, seg)
			}
			add(p, parent, "up")
		}

		if pi.Put != nil || pi.Patch != nil {
			add(p, p, "edit")
		}

		if !strings.Contains(p, "{") && p != l.entry && pi.Get != nil {
			add(l.entry, p, lastSegment(p))
			if !slices.Contains(paths, parent) {
				add(p, l.entry, "up")
			}
		}

		if ref := responseSchema(pi); ref != "" {
			add(p, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
	}

	add(l.entry, "/openapi.json", "service-desc")
	add(l.entry, "/docs", "service-doc")

	for p, headers := range byPath {
		if pi, ok := oapi.Paths[p]; ok {
			documentLinks(pi, headers)
		}
	}

	l.mu.Lock()
	l.byPath = byPath
	l.mu.Unlock()
}

// For returns the links derived for an operation path.
func (l *Links) For(p string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.byPath[p])
}

// Entry returns the links of the entry point.
func (l *Links) Entry() []string { return l.For(l.entry) }

// Transformer returns a Huma transformer adding the derived links, a self
// link on item paths, pagination links from [Pager] bodies and action links
// from [Actor] bodies.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func lastSegment(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}

// responseSchema names the component schema of the path's GET response.
func responseSchema(pi *huma.PathItem) string {
	if pi.Get == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") || resp == nil {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				return path.Base(mt.Schema.Ref)
			}
		}
	}
	return ""
}

// documentLinks records the relations on each operation's success response
// so the OpenAPI document carries them too.
func documentLinks(pi *huma.PathItem, headers []string) {
	for _, op := range operationsOf(pi) {
		if op == nil {
			continue
		}
		for code, resp := range op.Responses {
			if !strings.HasPrefix(code, "2") || resp == nil {
				continue
			}
			if resp.Links == nil {
				resp.Links = map[string]*huma.Link{}
			}
			for _, h := range headers {
				rel, href := splitLink(h)
				if rel == "" {
					continue
				}
				resp.Links[rel] = &huma.Link{OperationRef: href, Description: "Related: " + rel}
			}
			break
		}
	}
}

// splitLink parses `<href>; rel="name"`.
func splitLink(h string) (rel, href string) {
	target, params, ok := strings.Cut(h, ";")
	if !ok {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(target), "<>")
	params = strings.TrimSpace(params)
	if r, found := strings.CutPrefix(params, `rel="`); found {
		rel = strings.TrimSuffix(r, `"`)
	}
	return rel, href
}
