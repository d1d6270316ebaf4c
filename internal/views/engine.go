// Package views renders the embedded HTML templates for Fiber.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"
)

//go:embed templates
var templatesFS embed.FS

const (
	layoutGlob  = "templates/layouts/*.html"
	includeGlob = "templates/includes/*.html"
	pagesDir    = "templates/pages"
	// rootTemplate is the template every page is executed through.
	rootTemplate = "base"
)

// MediaURL is the public prefix for files under the media root.
const MediaURL = "/media/"

var funcs = template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006")
	},
	"formatDateTime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006, 15:04")
	},
	"media": func(rel string) string {
		if rel == "" {
			return ""
		}
		return MediaURL + strings.TrimPrefix(rel, "/")
	},
	"pageURL": func(n int) string {
		return fmt.Sprintf("?page=%d", n)
	},
	"truncate": func(n int, s string) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		return string(r[:n]) + "…"
	},
}

// Engine implements fiber.Views over the embedded templates. Page names are paths
// under templates/pages without the extension, e.g. "posts/index".
type Engine struct {
	fsys fs.FS

	mu    sync.RWMutex
	pages map[string]*template.Template
}

// New returns an Engine over the embedded templates.
func New() *Engine {
	return NewFromFS(templatesFS)
}

// NewFromFS returns an Engine over fsys, which must have the same layout as the embedded tree.
func NewFromFS(fsys fs.FS) *Engine {
	return &Engine{fsys: fsys}
}

// Load parses every page together with the shared layout and includes.
func (e *Engine) Load() error {
	shared, err := template.New("").Funcs(funcs).ParseFS(e.fsys, layoutGlob, includeGlob)
	if err != nil {
		return fmt.Errorf("parse layouts: %w", err)
	}

	pages := make(map[string]*template.Template)
	err = fs.WalkDir(e.fsys, pagesDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || path.Ext(p) != ".html" {
			return nil
		}
		tmpl, err := shared.Clone()
		if err != nil {
			return err
		}
		if _, err := tmpl.ParseFS(e.fsys, p); err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, pagesDir+"/"), ".html")
		pages[name] = tmpl
		return nil
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.pages = pages
	e.mu.Unlock()
	return nil
}

// Render executes page name with binding. Layout arguments are ignored: every page
// uses the base layout.
func (e *Engine) Render(w io.Writer, name string, binding interface{}, _ ...string) error {
	e.mu.RLock()
	loaded := e.pages != nil
	e.mu.RUnlock()
	if !loaded {
		if err := e.Load(); err != nil {
			return err
		}
	}

	e.mu.RLock()
	tmpl, ok := e.pages[name]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("views: unknown template %q", name)
	}
	return tmpl.ExecuteTemplate(w, rootTemplate, binding)
}

// Has reports whether a page named name exists.
func (e *Engine) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.pages[name]
	return ok
}
