// Package internal contains the implementation packages behind the tplsync CLI.
//
// # Package Organization
//
//   - patterns: Category to glob catalog that decides which files belong in a build
//   - manifest: package.json reading with an LRU cache
//   - modules: Recursive discovery of template modules under node_modules
//   - confdoc: template.conf documents and the keyed merge of module configuration
//   - filemanager: Enumeration, copy, merge and clean of the build directory
//   - watcher: Event queue and sync watcher that keeps the build current
//   - reload: WebSocket hub that tells browsers a build file changed
//   - config: Viper-backed settings with validation
//   - errors: Typed sync errors and error collection
//   - logging: Structured logging on log/slog
//   - version: Build metadata
//   - testutils: Fixture builders for template projects
//
// # Data Flow
//
// The filemanager asks modules for the resolved module set, expands the
// pattern catalog against the source tree and every module's template
// directory, then copies files into the build directory. template.conf files
// are merged through confdoc instead of copied. The watcher drives the same
// filemanager operations from filesystem events, and its callback feeds the
// reload hub when one is running.
package internal
