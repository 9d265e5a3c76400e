// Package internal contains the implementation packages of modserve.
//
// # Package Organization
//
// Leaf packages first:
//
//   - moduleurl: URL classification and root-relative URL helpers
//   - resolver: specifier plus importer to a file on disk
//   - scanner: byte-level import specifier scanner
//   - graph: module graph with mutual edges, cached transform results and
//     HMR timestamps
//   - plugins: plugin capabilities and the Container that runs them
//   - plugins/builtin: client inject, asset, resolve, esbuild, css and
//     import analysis plugins
//   - transform: the coalescing transform coordinator
//   - watcher, hmr, websocket: file changes to hot update broadcasts
//   - optimizer: dependency scan and pre-bundle
//   - server: HTTP wiring, error page and shutdown
//
// # Request Flow
//
// A module request goes server, transform coordinator, plugin resolve, load
// and transform; import analysis records the module's imports in the graph
// before the result is cached on its node. A file change goes watcher,
// bridge, graph invalidation and then one broadcast on the HMR transport.
package internal
