package views

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeView(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestDirResolver(t *testing.T) {
	t.Run("missing directory reports no custom view", func(t *testing.T) {
		r := NewDirResolver("/nonexistent/views")
		var buf bytes.Buffer
		found, err := r.Render(&buf, "login", nil)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("no matching file reports no custom view", func(t *testing.T) {
		r := NewDirResolver(t.TempDir())
		var buf bytes.Buffer
		found, err := r.Render(&buf, "login", nil)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("renders the matching template with data", func(t *testing.T) {
		dir := t.TempDir()
		writeView(t, dir, "signup.html", `{{range .Errors}}<li>{{.}}</li>{{end}}`)

		r := NewDirResolver(dir)
		var buf bytes.Buffer
		found, err := r.Render(&buf, "signup", struct{ Errors []string }{[]string{"login taken"}})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "<li>login taken</li>", buf.String())
	})

	t.Run("template output is escaped", func(t *testing.T) {
		dir := t.TempDir()
		writeView(t, dir, "signup.html", `{{range .Errors}}{{.}}{{end}}`)

		r := NewDirResolver(dir)
		var buf bytes.Buffer
		found, err := r.Render(&buf, "signup", struct{ Errors []string }{[]string{`<script>alert(1)</script>`}})
		require.NoError(t, err)
		assert.True(t, found)
		assert.NotContains(t, buf.String(), "<script>")
	})

	t.Run("multiple extensions resolve deterministically", func(t *testing.T) {
		dir := t.TempDir()
		writeView(t, dir, "login.html", "from html")
		writeView(t, dir, "login.tmpl", "from tmpl")

		r := NewDirResolver(dir)
		var buf bytes.Buffer
		found, err := r.Render(&buf, "login", nil)
		require.NoError(t, err)
		assert.True(t, found)
		// Lexicographic tie-break: .html sorts before .tmpl.
		assert.Equal(t, "from html", buf.String())
	})

	t.Run("broken template reports the custom view but errors", func(t *testing.T) {
		dir := t.TempDir()
		writeView(t, dir, "login.html", "{{.Oops")

		r := NewDirResolver(dir)
		var buf bytes.Buffer
		found, err := r.Render(&buf, "login", nil)
		assert.True(t, found)
		assert.Error(t, err)
	})
}
