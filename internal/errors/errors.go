// Package errors provides the error taxonomy shared by the sync engine.
//
// Every failure the engine reports is attributable to a single unit: a module
// subtree (resolution), a configuration document (merge), a file (copy), or a
// configuration key (structural). Batch operations collect these with a
// Collector instead of aborting.
package errors

import (
	"errors"
	"sync"
)

// Collector collects per-unit errors during a batch operation.
type Collector struct {
	errors []error
	mutex  sync.RWMutex
}

// NewCollector creates a new error collector
func NewCollector() *Collector {
	return &Collector{
		errors: make([]error, 0),
	}
}

// Add adds an error to the collector
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors = append(c.errors, err)
}

// Errors returns a copy of all collected errors
func (c *Collector) Errors() []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]error, len(c.errors))
	copy(result, c.errors)
	return result
}

// HasErrors returns true if there are any errors
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.errors) > 0
}

// Len returns the number of collected errors
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.errors)
}

// Clear clears all errors
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors = c.errors[:0]
}

// ByType returns the collected errors of one type
func (c *Collector) ByType(errType ErrorType) []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var out []error
	for _, err := range c.errors {
		if IsType(err, errType) {
			out = append(out, err)
		}
	}
	return out
}

// ByPath returns the collected errors attributed to a file
func (c *Collector) ByPath(path string) []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var out []error
	for _, err := range c.errors {
		var se *SyncError
		if errors.As(err, &se) && se.Path == path {
			out = append(out, err)
		}
	}
	return out
}

// Join returns the collected errors as a single error, or nil.
func (c *Collector) Join() error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return errors.Join(c.errors...)
}
