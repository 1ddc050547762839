package confdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/conneroisu/tplsync/internal/errors"
)

func assertDocEqual(t *testing.T, want string, got Document) {
	t.Helper()
	expected := MustParse(want)
	if !expected.Equal(got) {
		gotJSON, _ := got.Marshal()
		wantJSON, _ := expected.Marshal()
		assert.JSONEq(t, string(wantJSON), string(gotJSON))
	}
}

func TestMergeScalars(t *testing.T) {
	a := MustParse(`{"name": "Endeavor", "version": 1.3, "thisIsNull": null}`)
	b := MustParse(`{"name": "Testing", "test": "test", "thisIsNull": "blah"}`)

	got, trace := Merge(a, b)

	assertDocEqual(t, `{"name": "Endeavor", "version": 1.3, "thisIsNull": "blah", "test": "test"}`, got)
	assert.Equal(t, 2, trace.Count(ActionSet))
	assert.Equal(t, 1, trace.Count(ActionKeep))
}

func TestMergeScalarArrays(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{
			name: "new items go first",
			a:    `{"s": ["a", "b"]}`,
			b:    `{"s": ["b", "c"]}`,
			want: `{"s": ["c", "a", "b"]}`,
		},
		{
			name: "stylesheets",
			a:    `{"stylesheets": ["blog.less", "site.less", "util.less", "tweak.less"]}`,
			b:    `{"stylesheets": ["gallery.less", "util.less"]}`,
			want: `{"stylesheets": ["gallery.less", "blog.less", "site.less", "util.less", "tweak.less"]}`,
		},
		{
			name: "several new items",
			a:    `{"regions": ["site"]}`,
			b:    `{"regions": ["header", "footer"]}`,
			want: `{"regions": ["footer", "header", "site"]}`,
		},
		{
			name: "numbers compare by value",
			a:    `{"sizes": [1, 2.0]}`,
			b:    `{"sizes": [2, 3]}`,
			want: `{"sizes": [3, 1, 2.0]}`,
		},
		{
			name: "duplicates inside incoming",
			a:    `{"s": []}`,
			b:    `{"s": ["x", "x"]}`,
			want: `{"s": ["x"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Merge(MustParse(tt.a), MustParse(tt.b))
			assertDocEqual(t, tt.want, got)
		})
	}
}

func TestMergeKeyedArrays(t *testing.T) {
	a := MustParse(`{"navigations": [{"name": "main", "title": "Main"}]}`)
	b := MustParse(`{"navigations": [{"name": "main", "title": "X"}, {"name": "sec", "title": "Sec"}]}`)

	got, trace := Merge(a, b)

	assertDocEqual(t, `{"navigations": [{"name": "sec", "title": "Sec"}, {"name": "main", "title": "Main"}]}`, got)
	assert.Equal(t, 1, trace.Count(ActionInsert))
}

func TestMergeCustomTypes(t *testing.T) {
	a := MustParse(`{"customTypes": [{"name": "event", "base": "blog"}]}`)
	b := MustParse(`{"customTypes": [{"name": "goat", "base": "gallery"}, {"base": "nameless"}]}`)

	got, trace := Merge(a, b)

	assertDocEqual(t, `{"customTypes": [{"name": "goat", "base": "gallery"}, {"name": "event", "base": "blog"}]}`, got)
	assert.Equal(t, 1, trace.Count(ActionUnkeyed))
}

func TestMergeUnkeyedObjectArrayIsNoop(t *testing.T) {
	a := MustParse(`{"widgets": [{"id": 1}]}`)
	b := MustParse(`{"widgets": [{"id": 2}]}`)

	got, trace := Merge(a, b)

	assertDocEqual(t, `{"widgets": [{"id": 1}]}`, got)
	skipped := trace.Skipped()
	require.Len(t, skipped, 1)
	assert.True(t, serrors.IsType(skipped[0], serrors.ErrorTypeStructural))
}

func TestMergeNestedAdoption(t *testing.T) {
	a := MustParse(`{"layouts": {"default": {"regions": ["site"]}}}`)
	b := MustParse(`{"layouts": {"goats": {"regions": ["goats"]}}}`)

	got, _ := Merge(a, b)

	assertDocEqual(t, `{"layouts": {"default": {"regions": ["site"]}, "goats": {"regions": ["goats"]}}}`, got)
}

func TestMergeSubtreeRecursion(t *testing.T) {
	a := MustParse(`{"layouts": {"default": {"regions": ["site"]}}}`)
	b := MustParse(`{"layouts": {"default": {"regions": ["header", "footer"]}}}`)

	got, trace := Merge(a, b)

	assertDocEqual(t, `{"layouts": {"default": {"regions": ["footer", "header", "site"]}}}`, got)
	assert.Equal(t, 2, trace.Count(ActionRecurse))
}

func TestMergeAdoptsIntoNull(t *testing.T) {
	a := MustParse(`{"layouts": null, "stylesheets": null}`)
	b := MustParse(`{"layouts": {"x": {}}, "stylesheets": ["a.less"]}`)

	got, trace := Merge(a, b)

	assertDocEqual(t, `{"layouts": {"x": {}}, "stylesheets": ["a.less"]}`, got)
	assert.Equal(t, 2, trace.Count(ActionAdopt))
}

func TestMergeShapeMismatch(t *testing.T) {
	a := MustParse(`{"layouts": ["not", "an", "object"], "regions": {"a": 1}, "title": "kept"}`)
	b := MustParse(`{"layouts": {"x": {}}, "regions": ["b"], "title": ["ignored"], "extra": 1}`)

	got, trace := Merge(a, b)

	assertDocEqual(t, `{"layouts": ["not", "an", "object"], "regions": {"a": 1}, "title": "kept", "extra": 1}`, got)
	assert.Equal(t, 3, trace.Count(ActionMismatch))
	assert.Len(t, trace.Skipped(), 3)
}

func TestMergeDoesNotAliasIncoming(t *testing.T) {
	a := MustParse(`{}`)
	b := MustParse(`{"layouts": {"x": {"regions": ["r"]}}}`)

	got, _ := Merge(a, b)
	Merge(got, MustParse(`{"layouts": {"x": {"regions": ["new"]}}}`))

	assertDocEqual(t, `{"layouts": {"x": {"regions": ["r"]}}}`, b)
}

func TestMergeIdempotent(t *testing.T) {
	a := MustParse(`{"name": "t", "stylesheets": ["a.less"], "navigations": [{"name": "main"}],
		"layouts": {"default": {"regions": ["site"]}}}`)
	b := MustParse(`{"name": "m", "stylesheets": ["b.less", "a.less"], "navigations": [{"name": "foot"}],
		"layouts": {"default": {"regions": ["header"]}, "goats": {"regions": ["goats"]}}, "new": true}`)

	once, _ := Merge(a.Clone(), b)
	twice, trace := Merge(once.Clone(), b)

	assert.True(t, once.Equal(twice))
	assert.False(t, trace.Changed())
}

func TestMergeNilAuthoritative(t *testing.T) {
	got, _ := Merge(nil, MustParse(`{"a": 1}`))
	assertDocEqual(t, `{"a": 1}`, got)
}

func TestTraceString(t *testing.T) {
	_, trace := Merge(
		MustParse(`{"layouts": {"default": {}}}`),
		MustParse(`{"layouts": {"default": {"regions": ["x"]}}}`),
	)
	out := trace.String()
	assert.Contains(t, out, "·· Merging layouts object")
	assert.Contains(t, out, "······ Adding regions array")
}

func TestCustomKeyMap(t *testing.T) {
	m := NewMerger(KeyMap{"widgets": "id"})
	got, _ := m.Merge(MustParse(`{"widgets": [{"id": 1}]}`), MustParse(`{"widgets": [{"id": 2}, {"id": 1}]}`))
	assertDocEqual(t, `{"widgets": [{"id": 2}, {"id": 1}]}`, got)
}
