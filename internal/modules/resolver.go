// Package modules discovers template modules among a template's installed
// dependencies.
//
// A dependency is a template module when its template directory (the
// manifest's directories.squarespace entry, or the package root) contains a
// template.conf. Discovery is depth-first through each module's own
// dependencies. Every level returns its discoveries as a list and the caller
// folds them into a Set, so name shadowing follows an explicit Precedence.
package modules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	serrors "github.com/conneroisu/tplsync/internal/errors"
	"github.com/conneroisu/tplsync/internal/logging"
	"github.com/conneroisu/tplsync/internal/manifest"
)

// DependencyDir is the directory dependencies are installed into.
const DependencyDir = "node_modules"

// ConfFile is the configuration file that marks a template module.
const ConfFile = "template.conf"

// Descriptor describes one template module.
type Descriptor struct {
	// Name is the dependency name the module was declared under.
	Name string `json:"name" yaml:"name"`
	// Path is the absolute path of the module's template directory.
	Path string `json:"path" yaml:"path"`
	// PackageDir is the absolute path of the installed package.
	PackageDir string `json:"package_dir" yaml:"package_dir"`
	// HasConfig is true when Path contains template.conf.
	HasConfig bool `json:"has_config" yaml:"has_config"`
	// Depth is 0 for direct dependencies of the template.
	Depth int `json:"depth" yaml:"depth"`
}

// Discovery is one module found during traversal.
type Discovery struct {
	Descriptor
	Parent string
}

// Precedence decides which discovery keeps a name discovered more than once.
type Precedence int

const (
	// LastWins keeps the descriptor discovered last in traversal order.
	LastWins Precedence = iota
	// FirstWins keeps the descriptor discovered first.
	FirstWins
)

// String returns the config name of the Precedence.
func (p Precedence) String() string {
	if p == FirstWins {
		return "first"
	}
	return "last"
}

// ParsePrecedence accepts "last" (the default when empty) or "first".
func ParsePrecedence(name string) (Precedence, error) {
	switch strings.ToLower(name) {
	case "", "last":
		return LastWins, nil
	case "first":
		return FirstWins, nil
	default:
		return LastWins, fmt.Errorf("unknown precedence %q", name)
	}
}

// Resolver discovers template modules.
type Resolver struct {
	reader     *manifest.Reader
	logger     logging.Logger
	precedence Precedence
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPrecedence sets the shadowing rule used when folding discoveries.
func WithPrecedence(p Precedence) Option {
	return func(r *Resolver) { r.precedence = p }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Resolver) { r.logger = l.WithComponent("modules") }
}

// NewResolver creates a resolver reading manifests through reader.
func NewResolver(reader *manifest.Reader, opts ...Option) *Resolver {
	r := &Resolver{
		reader: reader,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve discovers every template module reachable from rootDir. Failures
// are scoped to the subtree they occur in and reported in Set.Errors.
func (r *Resolver) Resolve(rootDir string) *Set {
	set := NewSet(r.precedence)

	abs, err := filepath.Abs(rootDir)
	if err != nil {
		set.Errors = append(set.Errors, serrors.NewResolutionError(
			serrors.ErrCodeManifestMissing, "cannot resolve root", err).WithPath(rootDir))
		return set
	}

	discoveries, errs := r.discover(abs, 0, map[string]bool{abs: true})
	set.Errors = append(set.Errors, errs...)
	set.Fold(discoveries)
	return set
}

// Discover returns the raw traversal-ordered discoveries below rootDir.
func (r *Resolver) Discover(rootDir string) ([]Discovery, []error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, []error{err}
	}
	return r.discover(abs, 0, map[string]bool{abs: true})
}

func (r *Resolver) discover(dir string, depth int, visiting map[string]bool) ([]Discovery, []error) {
	ctx := context.Background()

	m, err := r.reader.Read(dir)
	if err != nil {
		var rerr *serrors.SyncError
		var parseErr *manifest.ParseError
		if errors.As(err, &parseErr) {
			rerr = serrors.ErrManifestInvalid(filepath.Join(dir, manifest.FileName), err)
		} else {
			rerr = serrors.ErrManifestMissing(filepath.Join(dir, manifest.FileName), err)
		}
		r.logger.Warn(ctx, err, "Skipping module subtree", "dir", dir)
		return nil, []error{rerr}
	}

	var (
		found []Discovery
		errs  []error
	)
	for _, name := range m.Dependencies.Names() {
		desc, err := r.find(dir, name)
		if err != nil {
			errs = append(errs, err)
			r.logger.Warn(ctx, err, "Could not inspect dependency", "dependency", name)
			continue
		}
		if desc == nil || !desc.HasConfig {
			continue
		}
		desc.Depth = depth

		found = append(found, Discovery{Descriptor: *desc, Parent: dir})
		r.logger.Debug(ctx, "Found template module", "module", name, "path", desc.Path)

		if visiting[desc.PackageDir] {
			continue
		}
		visiting[desc.PackageDir] = true
		children, childErrs := r.discover(desc.PackageDir, depth+1, visiting)
		delete(visiting, desc.PackageDir)

		found = append(found, children...)
		errs = append(errs, childErrs...)
	}
	return found, errs
}

// find locates dep starting at startDir/node_modules, walking up through
// enclosing node_modules directories while more than one remains in the
// candidate path. A nil descriptor with a nil error means not found.
func (r *Resolver) find(startDir, dep string) (*Descriptor, error) {
	modPath := filepath.Join(startDir, DependencyDir, dep)
	desc := &Descriptor{Name: dep, PackageDir: modPath}

	m, err := r.reader.Read(modPath)
	switch {
	case err == nil:
		desc.Path = filepath.Join(modPath, m.TemplateDir())
		_, err = os.Lstat(filepath.Join(desc.Path, ConfFile))
		if err == nil {
			desc.HasConfig = true
			return desc, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, serrors.NewResolutionError(serrors.ErrCodeModuleNotFound,
				"cannot inspect module configuration", err).WithModule(dep).WithPath(desc.Path)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, serrors.ErrManifestInvalid(filepath.Join(modPath, manifest.FileName), err).
			WithModule(dep)
	}

	parent, ok := parentSearchDir(modPath)
	if !ok {
		return desc, nil
	}
	return r.find(parent, dep)
}

// parentSearchDir returns the directory holding the second-to-last
// node_modules segment of modPath. It reports false when modPath has one
// node_modules segment or fewer, which keeps the search inside the tree.
func parentSearchDir(modPath string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(modPath), "/")

	seen := 0
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != DependencyDir {
			continue
		}
		seen++
		if seen > 1 {
			dir := strings.Join(parts[:i], "/")
			if dir == "" {
				dir = "/"
			}
			return filepath.FromSlash(dir), true
		}
	}
	return "", false
}
