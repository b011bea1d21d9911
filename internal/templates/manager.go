// Package templates provides a template manager with dynamic reload support.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

//go:embed web
var embedded embed.FS

const layoutPath = "layouts/base.html"

// Manager handles template loading and caching
type Manager struct {
	fsys    fs.FS
	debug   bool
	cache   map[string]*template.Template
	mu      sync.RWMutex
	funcMap template.FuncMap
}

// Embedded returns the templates compiled into the binary
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "web")
	if err != nil {
		panic(err)
	}
	return sub
}

// NewManager creates a new template manager over fsys, which must hold
// layouts/base.html and a pages directory.
// If debug is true, templates are reloaded on every request
// If debug is false, templates are cached in memory
func NewManager(fsys fs.FS, debug bool) (*Manager, error) {
	if _, err := fs.Stat(fsys, layoutPath); err != nil {
		return nil, fmt.Errorf("template layout missing: %w", err)
	}

	m := &Manager{
		fsys:  fsys,
		debug: debug,
		cache: make(map[string]*template.Template),
		funcMap: template.FuncMap{
			"formatDate":  formatDate,
			"formatPrice": formatPrice,
			"seconds":     seconds,
			"percent":     percent,
			"add":         add,
			"sub":         sub,
		},
	}

	// If not in debug mode, pre-load all templates
	if !debug {
		if err := m.loadTemplates(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// loadTemplates parses every page under pages/ with the layout
func (m *Manager) loadTemplates() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return fs.WalkDir(m.fsys, "pages", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".html" {
			return nil
		}
		tmpl, err := m.parse(p)
		if err != nil {
			return err
		}
		m.cache[p] = tmpl
		return nil
	})
}

// Render renders a template with the given data
func (m *Manager) Render(w io.Writer, name string, data interface{}) error {
	if m.debug {
		// In debug mode, reload template on every request
		if err := m.loadSingle(name); err != nil {
			return fmt.Errorf("failed to reload templates: %w", err)
		}
	}

	m.mu.RLock()
	tmpl, ok := m.cache[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}

	return tmpl.ExecuteTemplate(w, "base", data)
}

// loadSingle loads a single template (used in debug mode)
func (m *Manager) loadSingle(name string) error {
	tmpl, err := m.parse(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cache[name] = tmpl
	m.mu.Unlock()
	return nil
}

// parse combines the layout with one page
func (m *Manager) parse(name string) (*template.Template, error) {
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid template path detected: %s", name)
	}
	layout, err := fs.ReadFile(m.fsys, layoutPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}
	page, err := fs.ReadFile(m.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}

	tmpl := template.New("base").Funcs(m.funcMap)
	if _, err := tmpl.Parse(string(layout)); err != nil {
		return nil, fmt.Errorf("failed to parse layout for %s: %w", name, err)
	}
	if _, err := tmpl.Parse(string(page)); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// Template helper functions

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func formatPrice(p decimal.NullDecimal) string {
	if !p.Valid {
		return "-"
	}
	return "$" + p.Decimal.StringFixed(2)
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// percent returns n/total as an integer percentage capped at 100
func percent(n, total int) int {
	if total <= 0 {
		return 0
	}
	if n >= total {
		return 100
	}
	return n * 100 / total
}

func add(a, b int) int {
	return a + b
}

func sub(a, b int) int {
	return a - b
}
