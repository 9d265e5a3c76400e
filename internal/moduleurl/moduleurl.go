// Package moduleurl holds the request classification and path helpers shared
// by the pipeline plugins, the transform coordinator and the HMR bridge.
package moduleurl

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// ClientPublicPath is the URL the browser runtime is served from.
const ClientPublicPath = "/@modserve/client"

// ImportQuery marks a request for an asset's URL rather than its bytes.
const ImportQuery = "?import"

var (
	jsTypesRE = regexp.MustCompile(`\.(?:j|t)sx?$|\.mjs$`)
	bareRE    = regexp.MustCompile(`^[\w@][^:]`)
)

var internalRequests = map[string]bool{
	ClientPublicPath: true,
}

// CleanURL strips the hash and the query from u.
func CleanURL(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return u
}

// IsJSRequest reports whether id names a script module: a JS/TS source file,
// or an extension-less path that is not a directory URL.
func IsJSRequest(id string) bool {
	id = CleanURL(id)
	if jsTypesRE.MatchString(id) {
		return true
	}
	return path.Ext(id) == "" && !strings.HasSuffix(id, "/")
}

// IsCSSRequest reports whether id names a stylesheet.
func IsCSSRequest(id string) bool {
	return strings.HasSuffix(CleanURL(id), ".css")
}

// IsImportRequest reports whether id carries the import marker.
func IsImportRequest(id string) bool {
	return strings.HasSuffix(id, ImportQuery)
}

// IsInternalRequest reports whether id is served by the dev server itself.
func IsInternalRequest(id string) bool {
	return internalRequests[CleanURL(id)]
}

// IsBareSpecifier reports whether spec names a package rather than a path
// or a URL.
func IsBareSpecifier(spec string) bool {
	if strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") || strings.Contains(spec, ":") {
		return false
	}
	return bareRE.MatchString(spec)
}

// HasAssetExtension reports whether spec ends in one of exts.
func HasAssetExtension(spec string, exts []string) bool {
	ext := strings.ToLower(path.Ext(CleanURL(spec)))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// ToURL converts a file path under root to a root-relative URL starting
// with "/". Paths outside root are returned slash-normalised but unchanged.
func ToURL(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(file)
	}
	return "/" + filepath.ToSlash(rel)
}

// PreBundleURL is the URL a bare specifier is rewritten to.
func PreBundleURL(preBundleDir, specifier string) string {
	return path.Join("/", filepath.ToSlash(preBundleDir), specifier+".js")
}
