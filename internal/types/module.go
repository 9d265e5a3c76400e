// Package types provides the result types shared by the module graph, the
// plugin pipeline and the transform coordinator. Keeping them here avoids
// circular dependencies between those packages.
package types

// ResolvedID is the outcome of a successful resolveId hook: an absolute
// identity for a module, usually a filesystem path.
type ResolvedID struct {
	ID string
}

// LoadResult is raw module source produced by a load hook.
type LoadResult struct {
	Code string
	// Map is an optional source map (JSON) for Code.
	Map string
}

// TransformResult is the artifact served to the browser and cached on a
// module node.
type TransformResult struct {
	Code string
	// Map is the source map (JSON) matching Code, empty when none was produced.
	Map string
}
