// Package templates renders the HTML fragments streamed to the editor over
// Datastar: overlay rows, the theme toggle, notices and value annotations.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"sync"
)

//go:embed fragments/*.html
var fragments embed.FS

var funcMap = template.FuncMap{
	"lower": func(v any) string { return strings.ToLower(fmt.Sprint(v)) },
}

// Renderer is safe for concurrent use; Reload swaps the whole template set.
type Renderer struct {
	mu        sync.RWMutex
	templates *template.Template
}

// Default returns a renderer over the embedded fragments.
func Default() (*Renderer, error) {
	sub, err := fs.Sub(fragments, "fragments")
	if err != nil {
		return nil, err
	}
	return New(sub)
}

// New parses every *.html file at the root of fsys.
func New(fsys fs.FS) (*Renderer, error) {
	tmpl, err := parse(fsys)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

func parse(fsys fs.FS) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(fsys, "*.html")
}

// Render executes the named fragment.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer executes the named fragment into buf.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	tmpl := r.templates
	r.mu.RUnlock()
	return tmpl.ExecuteTemplate(buf, name, data)
}

// MustRender is Render for fragments known to exist.
func (r *Renderer) MustRender(name string, data any) string {
	s, err := r.Render(name, data)
	if err != nil {
		panic(err)
	}
	return s
}

// Reload re-parses the fragments from fsys. On error the current set is
// kept.
func (r *Renderer) Reload(fsys fs.FS) error {
	tmpl, err := parse(fsys)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()
	return nil
}
