// Package templates renders the HTML fragments patched into the page by
// the datastar SSE handlers.
package templates

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"os"
	"strings"
	"sync"
)

//go:embed fragments/*.html
var embedded embed.FS

var funcMap = template.FuncMap{
	// dict builds a map from key-value pairs for nested templates.
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"join": strings.Join,
}

// Renderer holds the parsed fragment templates.
type Renderer struct {
	mu        sync.RWMutex
	templates *template.Template
	dir       string
}

// New parses the fragments in dir, or the embedded fragments when dir is
// empty.
func New(dir string) (*Renderer, error) {
	r := &Renderer{dir: dir}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the fragments directory, empty for the embedded set.
func (r *Renderer) Dir() string { return r.dir }

func (r *Renderer) fsys() fs.FS {
	if r.dir == "" {
		sub, _ := fs.Sub(embedded, "fragments")
		return sub
	}
	return os.DirFS(r.dir)
}

// Reload parses the fragments again. The previous set stays in use when
// parsing fails.
func (r *Renderer) Reload() error {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(r.fsys(), "*.html")
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()
	return nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates.ExecuteTemplate(buf, name, data)
}

// Has reports whether a template is defined.
func (r *Renderer) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates.Lookup(name) != nil
}
