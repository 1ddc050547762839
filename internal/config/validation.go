package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/conneroisu/tplsync/internal/logging"
	"github.com/conneroisu/tplsync/internal/modules"
	"github.com/conneroisu/tplsync/internal/patterns"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder
	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}
	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)
	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails checks every section and collects errors and
// warnings.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{}
	validateSourceConfig(&config.Source, result)
	validateBuildConfig(config, result)
	validateReloadConfig(config, result)
	validateLogConfig(&config.Log, result)
	return result
}

// validateConfig returns the first validation error.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if result.HasErrors() {
		return &result.Errors[0]
	}
	return nil
}

func validateSourceConfig(config *SourceConfig, result *ValidationResult) {
	if config.Dir == "" {
		result.addError(KeySourceDir, config.Dir, "source directory is required")
	}

	catalog := patterns.Default()
	if err := catalog.Validate(patterns.Flags{Omit: config.Omit}); err != nil {
		result.addError(KeySourceOmit, config.Omit, err.Error(),
			"known categories: "+strings.Join(catalog.Categories(), ", "))
	}

	if _, err := modules.ParsePrecedence(config.Precedence); err != nil {
		result.addError(KeySourcePrecedence, config.Precedence, err.Error(), `use "last" or "first"`)
	}
}

func validateBuildConfig(config *Config, result *ValidationResult) {
	dir := config.Build.Dir
	if dir == "" {
		result.addError(KeyBuildDir, dir, "build directory is required")
		return
	}
	if containsDangerousChars(dir) {
		result.addError(KeyBuildDir, dir, "build directory contains dangerous characters")
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(dir)), "/") {
		if part == ".." {
			result.addError(KeyBuildDir, dir, "build directory contains path traversal",
				"use a path below the working directory or an absolute path")
			break
		}
	}

	src, errSrc := filepath.Abs(config.Source.Dir)
	build, errBuild := filepath.Abs(dir)
	if errSrc != nil || errBuild != nil {
		return
	}
	if src == build {
		result.addError(KeyBuildDir, dir, "build directory must differ from the source directory")
		return
	}
	if rel, err := filepath.Rel(src, build); err == nil && !strings.HasPrefix(rel, "..") {
		result.addWarning(KeyBuildDir, dir, "build directory is inside the source directory",
			"its contents are never synced or watched")
	}
}

func validateReloadConfig(config *Config, result *ValidationResult) {
	addr := config.Reload.Addr
	if addr == "" {
		return
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		result.addError(KeyReloadAddr, addr, fmt.Sprintf("invalid listen address: %v", err), "e.g. :35729")
	}
	if !config.Watch.Enabled {
		result.addWarning(KeyReloadAddr, addr, "reload server only runs while watching", "pass --watch")
	}
}

func validateLogConfig(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError(KeyLogLevel, config.Level, err.Error(), "debug, info, warn or error")
	}
	if config.Format != "text" && config.Format != "json" {
		result.addError(KeyLogFormat, config.Format, fmt.Sprintf("unknown log format %q", config.Format), `use "text" or "json"`)
	}
}

func containsDangerousChars(path string) bool {
	return strings.ContainsAny(path, ";&|$`<>\"'")
}
