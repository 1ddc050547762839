// Package manifest reads package manifests (package.json) for module
// resolution.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FileName is the manifest file looked up in every package directory.
const FileName = "package.json"

// TemplateDirKey is the directories entry naming a package's template directory.
const TemplateDirKey = "squarespace"

// DefaultCacheSize bounds the number of parsed manifests kept in memory.
const DefaultCacheSize = 512

// Dependency is one declared dependency.
type Dependency struct {
	Name    string
	Version string
}

// Dependencies keeps the declaration order of a manifest's dependency object.
type Dependencies []Dependency

// UnmarshalJSON decodes a JSON object while preserving key order.
func (d *Dependencies) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("dependencies: expected object, got %v", tok)
	}

	var out Dependencies
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("dependencies: expected string key, got %v", keyTok)
		}
		var version interface{}
		if err := dec.Decode(&version); err != nil {
			return fmt.Errorf("dependencies: %s: %w", key, err)
		}
		v, _ := version.(string)
		out = append(out, Dependency{Name: key, Version: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = out
	return nil
}

// Names returns dependency names in declaration order.
func (d Dependencies) Names() []string {
	names := make([]string, len(d))
	for i, dep := range d {
		names[i] = dep.Name
	}
	return names
}

// Manifest is the subset of package.json the resolver needs.
type Manifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies Dependencies      `json:"dependencies"`
	Directories  map[string]string `json:"directories"`
}

// TemplateDir returns the declared template directory, or "" for the package root.
func (m *Manifest) TemplateDir() string {
	if m == nil || m.Directories == nil {
		return ""
	}
	return m.Directories[TemplateDirKey]
}

// Parse decodes manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseError reports a manifest that exists but cannot be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type cached struct {
	modTime  time.Time
	size     int64
	manifest *Manifest
}

// Reader reads manifests from package directories, caching parsed results
// until the file's modification time or size changes.
type Reader struct {
	cache *lru.Cache[string, cached]
	mu    sync.Mutex
	hits  int
}

// NewReader creates a reader with an LRU cache of the given size.
func NewReader(size int) (*Reader, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, cached](size)
	if err != nil {
		return nil, fmt.Errorf("creating manifest cache: %w", err)
	}
	return &Reader{cache: cache}, nil
}

// Read returns the manifest in dir. A missing file is returned as an error
// wrapping os.ErrNotExist; a malformed file as *ParseError.
func (r *Reader) Read(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if c, ok := r.cache.Get(path); ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		r.mu.Lock()
		r.hits++
		r.mu.Unlock()
		return c.manifest, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	r.cache.Add(path, cached{modTime: info.ModTime(), size: info.Size(), manifest: m})
	return m, nil
}

// Hits returns how many reads were served from the cache.
func (r *Reader) Hits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits
}

// Purge drops every cached manifest.
func (r *Reader) Purge() {
	r.cache.Purge()
}
