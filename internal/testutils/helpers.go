// Package testutils builds template projects on disk for tests.
package testutils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFile writes content to root/rel, creating parent directories.
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// ReadFile returns the content of root/rel.
func ReadFile(t testing.TB, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// Package describes a package.json to write.
type Package struct {
	Name         string
	Dependencies []string
	TemplateDir  string
}

// WritePackage writes dir/package.json. Dependencies keep their order.
func WritePackage(t testing.TB, dir string, pkg Package) {
	t.Helper()

	deps := "{"
	for i, d := range pkg.Dependencies {
		if i > 0 {
			deps += ","
		}
		name, err := json.Marshal(d)
		require.NoError(t, err)
		deps += string(name) + `:"*"`
	}
	deps += "}"

	doc := map[string]json.RawMessage{
		"name":         mustJSON(t, pkg.Name),
		"dependencies": json.RawMessage(deps),
	}
	if pkg.TemplateDir != "" {
		doc["directories"] = mustJSON(t, map[string]string{"squarespace": pkg.TemplateDir})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), data, 0644))
}

func mustJSON(t testing.TB, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// Module describes a template module installed under node_modules.
type Module struct {
	Name         string
	TemplateDir  string
	Conf         string
	Files        map[string]string
	Dependencies []string
}

// InstallModule writes a module package into parentDir/node_modules/<name>
// and returns the package directory.
func InstallModule(t testing.TB, parentDir string, mod Module) string {
	t.Helper()
	pkgDir := filepath.Join(parentDir, "node_modules", mod.Name)
	WritePackage(t, pkgDir, Package{
		Name:         mod.Name,
		Dependencies: mod.Dependencies,
		TemplateDir:  mod.TemplateDir,
	})
	tmplDir := filepath.Join(pkgDir, mod.TemplateDir)
	if mod.Conf != "" {
		WriteFile(t, tmplDir, "template.conf", mod.Conf)
	}
	for rel, content := range mod.Files {
		WriteFile(t, tmplDir, rel, content)
	}
	return pkgDir
}

// Project is a template source tree with an output directory next to it.
type Project struct {
	Root     string
	SrcDir   string
	BuildDir string
}

// NewProject creates src/ with package.json, template.conf and a few
// template files, plus an empty build/ directory.
func NewProject(t testing.TB, deps []string, conf string) *Project {
	t.Helper()
	root := t.TempDir()
	p := &Project{
		Root:     root,
		SrcDir:   filepath.Join(root, "src"),
		BuildDir: filepath.Join(root, "build"),
	}
	WritePackage(t, p.SrcDir, Package{Name: "site", Dependencies: deps})
	if conf != "" {
		WriteFile(t, p.SrcDir, "template.conf", conf)
	}
	WriteFile(t, p.SrcDir, "site.region", "<body>{.section}</body>")
	WriteFile(t, p.SrcDir, "pages/home.page", "home")
	WriteFile(t, p.SrcDir, "styles/site.less", "body {}")
	WriteFile(t, p.SrcDir, "assets/images/logo.png", "png")
	require.NoError(t, os.MkdirAll(p.BuildDir, 0755))
	return p
}
