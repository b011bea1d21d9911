package templates

import (
	"bytes"
	"testing"
	"testing/fstest"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedTemplatesParse(t *testing.T) {
	m, err := NewManager(Embedded(), false)
	require.NoError(t, err)
	for _, name := range []string{"pages/login.html", "pages/dashboard.html", "pages/watch.html"} {
		_, ok := m.cache[name]
		assert.True(t, ok, "missing %s", name)
	}
}

func TestRenderDebugReloads(t *testing.T) {
	fsys := fstest.MapFS{
		"layouts/base.html": {Data: []byte(`{{define "base"}}[{{template "content" .}}]{{end}}`)},
		"pages/hello.html":  {Data: []byte(`{{define "content"}}hello {{.}}{{end}}`)},
	}
	m, err := NewManager(fsys, true)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Render(&buf, "pages/hello.html", "world"))
	assert.Equal(t, "[hello world]", buf.String())

	fsys["pages/hello.html"] = &fstest.MapFile{Data: []byte(`{{define "content"}}bye {{.}}{{end}}`)}
	buf.Reset()
	require.NoError(t, m.Render(&buf, "pages/hello.html", "world"))
	assert.Equal(t, "[bye world]", buf.String())

	assert.Error(t, m.Render(&buf, "pages/missing.html", nil))
	assert.Error(t, m.Render(&buf, "../escape.html", nil))
}

func TestNewManagerRequiresLayout(t *testing.T) {
	_, err := NewManager(fstest.MapFS{}, false)
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "-", formatPrice(decimal.NullDecimal{}))
	assert.Equal(t, "$19.90", formatPrice(decimal.NewNullDecimal(decimal.RequireFromString("19.9"))))
	assert.Equal(t, "-", formatDate(time.Time{}))
	assert.Equal(t, "3.5s", seconds(3500*time.Millisecond))
	assert.Equal(t, 80, percent(4, 5))
	assert.Equal(t, 100, percent(7, 5))
	assert.Equal(t, 0, percent(1, 0))
}
