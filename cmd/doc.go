// Package cmd provides the tplsync command-line interface.
//
// # Available Commands
//
//   - assemble: Clean the build directory and sync every template file into it,
//     optionally watching for changes and serving reload notifications
//   - clean: Empty the build directory, keeping .git entries
//   - modules: List the template modules found under node_modules
//   - patterns: Show the glob patterns for each template category
//   - config: Show or validate the effective configuration
//   - version: Show build information
//
// # Command Examples
//
//	// Assemble src into dist and keep it in sync
//	tplsync assemble -d src -o dist --watch
//
//	// Assemble without cleaning, ignoring template.conf files
//	tplsync assemble --noclean --ignore-conf
//
//	// List modules as YAML with first-found precedence
//	tplsync modules --precedence first -o yaml
//
//	// Show the legacy patterns without stylesheets
//	tplsync patterns --legacy --omit styles
//
// # Configuration
//
// Commands read configuration from multiple sources in order of precedence:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables (TPLSYNC_*, for example TPLSYNC_BUILD_DIR)
//  3. Configuration file (.tplsync.yml, or TPLSYNC_CONFIG_FILE)
//  4. Default values (lowest priority)
//
// A .env file in the working directory is loaded before the environment is read.
package cmd
