// Package apps holds the built-in application factories a declaration
// can place at the end of a pipeline. Real applications arrive through
// the same registry interface; these two exist so a declaration runs
// end to end out of the box.
package apps

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/wireup/internal/decl"
	"github.com/keithlinneman/wireup/internal/version"
	"github.com/keithlinneman/wireup/internal/xerrors"
)

// Static serves files from the configured root directory.
// Declared as `use = wireup:static` with `root = /path/to/files`.
func Static(spec decl.AppSpec) (http.Handler, error) {
	root := spec.Extra["root"]
	if root == "" {
		return nil, xerrors.Newf("app %q: static requires a root directory", spec.Name)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, xerrors.Wrapf(err, "app %q: static root", spec.Name)
	}
	if !info.IsDir() {
		return nil, xerrors.Newf("app %q: static root %q is not a directory", spec.Name, root)
	}

	r := chi.NewRouter()
	r.Handle("/*", http.FileServer(http.Dir(root)))
	return r, nil
}

// Status answers a minimal JSON status document on every path.
// Declared as `use = wireup:status`.
func Status(spec decl.AppSpec) (http.Handler, error) {
	name := spec.Extra["name"]
	if name == "" {
		name = spec.Name
	}

	vi := version.Get()
	r := chi.NewRouter()
	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(map[string]any{
			"app":     name,
			"status":  "ok",
			"version": vi.Version,
			"commit":  vi.Commit,
		})
	})
	return r, nil
}
