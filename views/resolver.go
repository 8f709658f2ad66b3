// Package views resolves optional host-application templates by logical name.
// A resolver that finds nothing is not an error; the caller falls back to its
// built-in page.
package views

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"sort"
)

// Resolver renders a custom view by name. The boolean reports whether a
// custom view exists at all; (false, nil) means "use the built-in page".
type Resolver interface {
	Render(w io.Writer, name string, data any) (bool, error)
}

// DirResolver looks for a file whose base name matches the view name under a
// directory, regardless of extension. When several extensions exist for the
// same name the lexicographically smallest path wins, so resolution is
// deterministic rather than directory-order dependent.
type DirResolver struct {
	dir string
}

// NewDirResolver resolves views under dir. The directory may not exist;
// every lookup then reports no custom view.
func NewDirResolver(dir string) *DirResolver {
	return &DirResolver{dir: dir}
}

func (r *DirResolver) Render(w io.Writer, name string, data any) (bool, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, name+".*"))
	if err != nil {
		return false, fmt.Errorf("resolve view %q: %w", name, err)
	}
	if len(matches) == 0 {
		return false, nil
	}
	sort.Strings(matches)
	path := matches[0]

	tmpl, err := template.ParseFiles(path)
	if err != nil {
		return true, fmt.Errorf("parse view %q: %w", path, err)
	}

	// Render into a buffer first so a template error cannot leave a partial
	// page on the wire.
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return true, fmt.Errorf("render view %q: %w", path, err)
	}
	_, err = buf.WriteTo(w)
	return true, err
}
