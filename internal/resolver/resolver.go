// Package resolver turns an import specifier plus its importer into an
// absolute module identity on disk.
//
// Resolution rules:
//   - "/x" root-absolute: accepted verbatim if the file exists under the
//     root, otherwise re-rooted under the project root (an "?import" marker
//     is ignored for the existence test but kept on the identity).
//   - "./x" relative: needs an importer. With an extension the joined path
//     must exist. Without one the configured extensions are probed in order
//     and the first existing file wins.
//   - bare package names are never resolved here; the import rewriter maps
//     them onto the pre-bundle directory.
package resolver

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/modserve/internal/errors"
	"github.com/conneroisu/modserve/internal/moduleurl"
)

// Resolver resolves specifiers against a project root.
type Resolver struct {
	root       string
	extensions []string
	stat       func(name string) (fs.FileInfo, error)
}

// New creates a resolver. extensions is the probe order for extension-less
// relative specifiers and is copied.
func New(root string, extensions []string) *Resolver {
	return &Resolver{
		root:       filepath.Clean(root),
		extensions: append([]string(nil), extensions...),
		stat:       os.Stat,
	}
}

// Resolve returns the identity for specifier. It fails with
// errors.ErrUnresolvedImport when nothing on disk matches and with
// errors.ErrMissingImporter when a relative specifier has no importer.
func (r *Resolver) Resolve(ctx context.Context, specifier, importer string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch {
	case strings.HasPrefix(specifier, "/"):
		return r.resolveAbsolute(specifier)
	case strings.HasPrefix(specifier, "."):
		return r.resolveRelative(specifier, importer)
	default:
		return "", errors.NewUnresolvedImportError(specifier, importer)
	}
}

func (r *Resolver) resolveAbsolute(specifier string) (string, error) {
	probe := strings.TrimSuffix(specifier, moduleurl.ImportQuery)

	// Verbatim acceptance is limited to paths under the root so a request
	// URL can never address arbitrary files.
	if verbatim := filepath.FromSlash(probe); r.within(verbatim) && r.isFile(verbatim) {
		return specifier, nil
	}

	rooted := filepath.Join(r.root, filepath.FromSlash(probe))
	if !r.within(rooted) {
		return "", errors.NewUnresolvedImportError(specifier, "")
	}
	if r.isFile(rooted) {
		if moduleurl.IsImportRequest(specifier) {
			return rooted + moduleurl.ImportQuery, nil
		}
		return rooted, nil
	}

	return "", errors.NewUnresolvedImportError(specifier, "")
}

func (r *Resolver) resolveRelative(specifier, importer string) (string, error) {
	if importer == "" {
		return "", errors.NewMissingImporterError(specifier)
	}

	base := filepath.Dir(stripQuery(importer))
	candidate := filepath.Join(base, filepath.FromSlash(specifier))

	if HasExtension(specifier) {
		if r.isFile(candidate) {
			return candidate, nil
		}
		return "", errors.NewUnresolvedImportError(specifier, importer)
	}

	for _, ext := range r.extensions {
		if r.isFile(candidate + ext) {
			return candidate + ext, nil
		}
	}

	return "", errors.NewUnresolvedImportError(specifier, importer)
}

func (r *Resolver) isFile(name string) bool {
	info, err := r.stat(name)
	return err == nil && !info.IsDir()
}

func (r *Resolver) within(p string) bool {
	rel, err := filepath.Rel(r.root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// HasExtension reports whether the last path segment of specifier carries a
// file extension.
func HasExtension(specifier string) bool {
	return len(path.Ext(stripQuery(specifier))) > 1
}

func stripQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}
