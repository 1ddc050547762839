// Package filemanager assembles a template and its modules into a build
// directory.
//
// The Manager is the only writer of the build tree. It enumerates template
// files from the source root and every module's template directory, copies
// them into the build directory and merges module configuration fragments
// into the build's configuration documents.
package filemanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/conneroisu/tplsync/internal/confdoc"
	serrors "github.com/conneroisu/tplsync/internal/errors"
	"github.com/conneroisu/tplsync/internal/logging"
	"github.com/conneroisu/tplsync/internal/manifest"
	"github.com/conneroisu/tplsync/internal/modules"
	"github.com/conneroisu/tplsync/internal/patterns"
)

// ConfExt is the extension of configuration documents.
const ConfExt = ".conf"

// FileRecord is one file that belongs in the build.
type FileRecord struct {
	// AbsPath is the source file's absolute path.
	AbsPath string
	// RelPath is relative to the owning root: the template source directory
	// or the module's template directory. It is also the path inside the build.
	RelPath string
	// Module names the contributing module, empty for template files.
	Module string
}

// IsConfig reports whether the record is a configuration document.
func (r FileRecord) IsConfig() bool {
	return filepath.Ext(r.AbsPath) == ConfExt
}

// IsModuleConfig reports whether the record is a module's configuration fragment.
func (r FileRecord) IsModuleConfig() bool {
	return r.Module != "" && r.IsConfig()
}

// Index is the result of one enumeration pass: file records keyed by
// absolute source path, in match order.
type Index struct {
	order   []string
	records map[string]FileRecord
	// Modules is the module set the index was built from.
	Modules *modules.Set
	// Errors collects glob failures and module resolution failures.
	Errors []error
}

func newIndex(set *modules.Set) *Index {
	return &Index{
		records: make(map[string]FileRecord),
		Modules: set,
	}
}

// put stores a record. A later match for the same path replaces the earlier
// record but keeps its position.
func (ix *Index) put(rec FileRecord) {
	if _, ok := ix.records[rec.AbsPath]; !ok {
		ix.order = append(ix.order, rec.AbsPath)
	}
	ix.records[rec.AbsPath] = rec
}

// Get returns the record for an absolute source path.
func (ix *Index) Get(path string) (FileRecord, bool) {
	if ix == nil {
		return FileRecord{}, false
	}
	rec, ok := ix.records[path]
	return rec, ok
}

// Len returns the number of records.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.order)
}

// Records returns records in match order.
func (ix *Index) Records() []FileRecord {
	if ix == nil {
		return nil
	}
	out := make([]FileRecord, 0, len(ix.order))
	for _, p := range ix.order {
		out = append(out, ix.records[p])
	}
	return out
}

// Paths returns the absolute source paths in match order.
func (ix *Index) Paths() []string {
	if ix == nil {
		return nil
	}
	return append([]string(nil), ix.order...)
}

// Under returns the records whose source path is path or lies below it, in
// match order.
func (ix *Index) Under(path string) []FileRecord {
	if ix == nil {
		return nil
	}
	path = filepath.Clean(path)
	prefix := path + string(filepath.Separator)
	var out []FileRecord
	for _, p := range ix.order {
		if p == path || strings.HasPrefix(p, prefix) {
			out = append(out, ix.records[p])
		}
	}
	return out
}

// Options configures a Manager.
type Options struct {
	SourceDir string
	BuildDir  string
	Resolver  *modules.Resolver
	Catalog   *patterns.Catalog
	Merger    *confdoc.Merger
	Logger    logging.Logger
}

// Manager owns the build directory.
type Manager struct {
	srcDir   string
	buildDir string
	resolver *modules.Resolver
	catalog  *patterns.Catalog
	merger   *confdoc.Merger
	logger   logging.Logger
	handler  *serrors.ErrorHandler

	mu    sync.Mutex
	index *Index
}

// New creates a Manager. SourceDir and BuildDir are made absolute.
func New(opts Options) (*Manager, error) {
	if opts.SourceDir == "" || opts.BuildDir == "" {
		return nil, fmt.Errorf("source and build directories are required")
	}
	src, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolving source directory: %w", err)
	}
	build, err := filepath.Abs(opts.BuildDir)
	if err != nil {
		return nil, fmt.Errorf("resolving build directory: %w", err)
	}
	if src == build {
		return nil, fmt.Errorf("build directory must differ from source directory")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("filemanager")

	resolver := opts.Resolver
	if resolver == nil {
		reader, err := manifest.NewReader(manifest.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		resolver = modules.NewResolver(reader, modules.WithLogger(logger))
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = patterns.Default()
	}
	merger := opts.Merger
	if merger == nil {
		merger = confdoc.NewMerger(nil)
	}

	return &Manager{
		srcDir:   src,
		buildDir: build,
		resolver: resolver,
		catalog:  catalog,
		merger:   merger,
		logger:   logger,
		handler:  serrors.NewErrorHandler(logger),
	}, nil
}

// SourceDir returns the absolute template source directory.
func (m *Manager) SourceDir() string { return m.srcDir }

// BuildDir returns the absolute build directory.
func (m *Manager) BuildDir() string { return m.buildDir }

// Modules resolves the current module set.
func (m *Manager) Modules() *modules.Set {
	return m.resolver.Resolve(m.srcDir)
}

// Index returns the index built by the most recent enumeration.
func (m *Manager) Index() *Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Tracked returns the source paths of the last enumeration that are path
// itself or lie below it. An empty result means path is not part of the build.
func (m *Manager) Tracked(path string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.index.Under(path)
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.AbsPath)
	}
	return out
}

// InBuild reports whether path lies inside the build directory.
func (m *Manager) InBuild(path string) bool {
	return within(m.buildDir, path)
}

func within(root, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Enumerate resolves modules and expands the pattern catalog against the
// source root and every module's template directory. The resulting index
// replaces the manager's current one.
func (m *Manager) Enumerate(flags patterns.Flags) *Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enumerate(flags)
}

func (m *Manager) enumerate(flags patterns.Flags) *Index {
	ctx := context.Background()
	set := m.resolver.Resolve(m.srcDir)
	ix := newIndex(set)
	ix.Errors = append(ix.Errors, set.Errors...)

	mods := set.Modules()
	for _, p := range m.catalog.Patterns(flags) {
		m.collect(ix, m.srcDir, "", p)
		for _, mod := range mods {
			m.collect(ix, mod.Path, mod.Name, p)
		}
	}

	m.index = ix
	m.logger.Debug(ctx, "Enumerated template files",
		"files", ix.Len(),
		"modules", set.Len())
	return ix
}

func (m *Manager) collect(ix *Index, root, module string, p patterns.Pattern) {
	matches, err := patterns.Expand(root, p)
	if err != nil {
		se := serrors.NewIOError(serrors.ErrCodeGlobFailed, "pattern expansion failed", err).
			WithPath(root).WithModule(module)
		ix.Errors = append(ix.Errors, se)
		m.handler.Handle(context.Background(), se)
		return
	}
	for _, path := range matches {
		// Symlinked module installs must not leak build output back in.
		if within(m.buildDir, path) {
			continue
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			continue
		}
		ix.put(FileRecord{AbsPath: path, RelPath: rel, Module: module})
	}
}

// destPath maps a record to its location inside the build directory.
func (m *Manager) destPath(rec FileRecord) string {
	return filepath.Join(m.buildDir, rec.RelPath)
}
