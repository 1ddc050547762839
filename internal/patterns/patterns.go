// Package patterns maps template content categories to the glob patterns
// that select their files.
//
// Patterns are rooted: each one starts with a slash and is appended to a
// source root (the template itself or a module's template directory) before
// expansion.
package patterns

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar"
)

// Category names.
const (
	Assets      = "assets"
	Blocks      = "blocks"
	Collections = "collections"
	Pages       = "pages"
	Styles      = "styles"
	Regions     = "regions"
	Scripts     = "scripts"
	Conf        = "conf"
)

// Pattern is one glob belonging to a category.
type Pattern struct {
	Category string
	Glob     string
}

// Flags select optional categories and omissions.
type Flags struct {
	// Legacy adds the scripts directory for templates that still use
	// squarespace:script tags.
	Legacy bool
	// IgnoreConf drops configuration files from the set.
	IgnoreConf bool
	// Omit removes the named categories.
	Omit []string
}

type entry struct {
	category string
	globs    []string
	enabled  func(Flags) bool
}

func always(Flags) bool { return true }

// Catalog is an ordered category to glob mapping.
type Catalog struct {
	entries []entry
}

// Default returns the catalog used for template builds.
func Default() *Catalog {
	return &Catalog{entries: []entry{
		{Assets, []string{"/assets/**"}, always},
		{Blocks, []string{"/blocks/**"}, always},
		{Collections, []string{"/collections/**"}, always},
		{Pages, []string{"/pages/**"}, always},
		{Styles, []string{"/styles/**"}, always},
		{Regions, []string{"/*.region"}, always},
		{Scripts, []string{"/scripts/**"}, func(f Flags) bool { return f.Legacy }},
		{Conf, []string{"/*.conf"}, func(f Flags) bool { return !f.IgnoreConf }},
	}}
}

// Categories lists every category name in catalog order.
func (c *Catalog) Categories() []string {
	names := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		names = append(names, e.category)
	}
	return names
}

// Globs returns the globs declared for a category.
func (c *Catalog) Globs(category string) []string {
	for _, e := range c.entries {
		if e.category == category {
			return append([]string(nil), e.globs...)
		}
	}
	return nil
}

// Has reports whether the catalog declares the category.
func (c *Catalog) Has(category string) bool {
	for _, e := range c.entries {
		if e.category == category {
			return true
		}
	}
	return false
}

// Validate reports omitted categories the catalog does not know.
func (c *Catalog) Validate(flags Flags) error {
	var unknown []string
	for _, name := range flags.Omit {
		if !c.Has(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown categories: %v", unknown)
	}
	return nil
}

// Patterns returns the ordered globs selected by flags. Omission only
// subtracts; unknown omitted names are ignored.
func (c *Catalog) Patterns(flags Flags) []Pattern {
	omit := make(map[string]bool, len(flags.Omit))
	for _, name := range flags.Omit {
		omit[name] = true
	}

	var out []Pattern
	for _, e := range c.entries {
		if omit[e.category] || !e.enabled(flags) {
			continue
		}
		for _, g := range e.globs {
			out = append(out, Pattern{Category: e.category, Glob: g})
		}
	}
	return out
}

// Expand matches a rooted pattern against root and returns absolute paths
// in lexical order. Directories are included; callers filter to files.
func Expand(root string, p Pattern) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	matches, err := doublestar.Glob(filepath.Join(absRoot, filepath.FromSlash(p.Glob)))
	if err != nil {
		return nil, fmt.Errorf("expanding %s in %s: %w", p.Glob, root, err)
	}
	sort.Strings(matches)
	return matches, nil
}
