package modules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/conneroisu/tplsync/internal/errors"
	"github.com/conneroisu/tplsync/internal/manifest"
	"github.com/conneroisu/tplsync/internal/testutils"
)

func newResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()
	reader, err := manifest.NewReader(16)
	require.NoError(t, err)
	return NewResolver(reader, opts...)
}

func TestResolveDirectModules(t *testing.T) {
	root := t.TempDir()
	testutils.WritePackage(t, root, testutils.Package{
		Name:         "site",
		Dependencies: []string{"goats", "plain-lib", "blog"},
	})
	testutils.InstallModule(t, root, testutils.Module{Name: "goats", Conf: `{}`})
	testutils.InstallModule(t, root, testutils.Module{Name: "plain-lib"})
	blogDir := testutils.InstallModule(t, root, testutils.Module{
		Name:        "blog",
		TemplateDir: "template",
		Conf:        `{}`,
	})

	set := newResolver(t).Resolve(root)

	assert.Empty(t, set.Errors)
	assert.Equal(t, []string{"goats", "blog"}, set.Names())

	blog, ok := set.Get("blog")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(blogDir, "template"), blog.Path)
	assert.Equal(t, blogDir, blog.PackageDir)
	assert.True(t, blog.HasConfig)
	assert.Equal(t, 0, blog.Depth)

	_, ok = set.Get("plain-lib")
	assert.False(t, ok, "dependencies without template.conf are not modules")
}

func TestResolveTransitiveModules(t *testing.T) {
	root := t.TempDir()
	testutils.WritePackage(t, root, testutils.Package{Name: "site", Dependencies: []string{"a"}})
	aDir := testutils.InstallModule(t, root, testutils.Module{
		Name:         "a",
		Conf:         `{}`,
		Dependencies: []string{"b"},
	})
	bDir := testutils.InstallModule(t, aDir, testutils.Module{Name: "b", Conf: `{}`})

	set := newResolver(t).Resolve(root)

	assert.Equal(t, []string{"a", "b"}, set.Names())
	b, _ := set.Get("b")
	assert.Equal(t, bDir, b.Path)
	assert.Equal(t, 1, b.Depth)
}

func TestResolveWalksUpToHoistedDependency(t *testing.T) {
	root := t.TempDir()
	testutils.WritePackage(t, root, testutils.Package{Name: "site", Dependencies: []string{"a"}})
	testutils.InstallModule(t, root, testutils.Module{
		Name:         "a",
		Conf:         `{}`,
		Dependencies: []string{"shared"},
	})
	// shared is hoisted next to a instead of nested in a/node_modules.
	sharedDir := testutils.InstallModule(t, root, testutils.Module{Name: "shared", Conf: `{}`})

	set := newResolver(t).Resolve(root)

	shared, ok := set.Get("shared")
	require.True(t, ok)
	assert.Equal(t, sharedDir, shared.Path)
}

func TestResolveDoesNotEscapeTopLevel(t *testing.T) {
	outer := t.TempDir()
	root := filepath.Join(outer, "site")
	testutils.WritePackage(t, root, testutils.Package{Name: "site", Dependencies: []string{"ghost"}})
	// Installed above the template root: must not be found.
	testutils.InstallModule(t, outer, testutils.Module{Name: "ghost", Conf: `{}`})

	set := newResolver(t).Resolve(root)
	assert.Equal(t, 0, set.Len())
	assert.Empty(t, set.Errors)
}

func TestResolveShadowing(t *testing.T) {
	root := t.TempDir()
	testutils.WritePackage(t, root, testutils.Package{Name: "site", Dependencies: []string{"a", "dup"}})
	aDir := testutils.InstallModule(t, root, testutils.Module{
		Name:         "a",
		Conf:         `{}`,
		Dependencies: []string{"dup"},
	})
	nestedDup := testutils.InstallModule(t, aDir, testutils.Module{Name: "dup", Conf: `{}`})
	topDup := testutils.InstallModule(t, root, testutils.Module{Name: "dup", Conf: `{}`})

	t.Run("last wins", func(t *testing.T) {
		set := newResolver(t).Resolve(root)
		assert.Equal(t, []string{"a", "dup"}, set.Names())
		d, _ := set.Get("dup")
		assert.Equal(t, topDup, d.Path)
	})

	t.Run("first wins", func(t *testing.T) {
		set := newResolver(t, WithPrecedence(FirstWins)).Resolve(root)
		d, _ := set.Get("dup")
		assert.Equal(t, nestedDup, d.Path)
	})

	t.Run("raw discoveries keep both", func(t *testing.T) {
		found, errs := newResolver(t).Discover(root)
		assert.Empty(t, errs)
		require.Len(t, found, 3)
		assert.Equal(t, "a", found[0].Name)
		assert.Equal(t, nestedDup, found[1].Path)
		assert.Equal(t, topDup, found[2].Path)
	})
}

func TestResolveManifestFailuresAreScoped(t *testing.T) {
	root := t.TempDir()
	testutils.WritePackage(t, root, testutils.Package{Name: "site", Dependencies: []string{"broken", "good"}})
	brokenDir := testutils.InstallModule(t, root, testutils.Module{Name: "broken", Conf: `{}`})
	testutils.InstallModule(t, root, testutils.Module{Name: "good", Conf: `{}`})
	require.NoError(t, os.WriteFile(filepath.Join(brokenDir, "package.json"), []byte(`{oops`), 0644))

	set := newResolver(t).Resolve(root)

	assert.Equal(t, []string{"good"}, set.Names())
	require.Len(t, set.Errors, 1)
	assert.True(t, serrors.IsResolutionError(set.Errors[0]))
}

func TestResolveMissingRootManifest(t *testing.T) {
	set := newResolver(t).Resolve(t.TempDir())
	assert.Equal(t, 0, set.Len())
	require.Len(t, set.Errors, 1)
	assert.True(t, serrors.IsResolutionError(set.Errors[0]))
}

func TestResolveCycle(t *testing.T) {
	root := t.TempDir()
	testutils.WritePackage(t, root, testutils.Package{Name: "site", Dependencies: []string{"a"}})
	testutils.InstallModule(t, root, testutils.Module{Name: "a", Conf: `{}`, Dependencies: []string{"b"}})
	testutils.InstallModule(t, root, testutils.Module{Name: "b", Conf: `{}`, Dependencies: []string{"a"}})

	set := newResolver(t).Resolve(root)
	assert.Equal(t, []string{"a", "b"}, set.Names())
}

func TestParentSearchDir(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/p/node_modules/a/node_modules/b", "/p", true},
		{"/p/node_modules/a/node_modules/b/node_modules/c", "/p/node_modules/a", true},
		{"/p/node_modules/b", "", false},
		{"/p/b", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parentSearchDir(filepath.FromSlash(tt.in))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	for name, want := range map[string]Precedence{"": LastWins, "last": LastWins, "First": FirstWins} {
		got, err := ParsePrecedence(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePrecedence("middle")
	assert.Error(t, err)
	assert.Equal(t, "first", FirstWins.String())
	assert.Equal(t, "last", LastWins.String())
}
