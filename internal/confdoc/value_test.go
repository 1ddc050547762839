package confdoc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKinds(t *testing.T) {
	doc, err := Parse([]byte(`{
		"name": "Endeavor",
		"version": 1.3,
		"enabled": true,
		"nothing": null,
		"stylesheets": ["a.less"],
		"layouts": {"default": {}}
	}`))
	require.NoError(t, err)

	assert.Equal(t, KindScalar, doc["name"].Kind())
	assert.Equal(t, KindScalar, doc["version"].Kind())
	assert.Equal(t, KindScalar, doc["enabled"].Kind())
	assert.Equal(t, KindNull, doc["nothing"].Kind())
	assert.Equal(t, KindSequence, doc["stylesheets"].Kind())
	assert.Equal(t, KindDocument, doc["layouts"].Kind())
	assert.Equal(t, KindNull, doc["absent"].Kind())
	assert.True(t, doc["version"].Equal(Number(1.3)))
}

func TestParseRejects(t *testing.T) {
	for name, input := range map[string]string{
		"array root":    `["a"]`,
		"scalar root":   `"a"`,
		"invalid":       `{"a": }`,
		"trailing data": `{"a": 1} {"b": 2}`,
		"empty":         ``,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "null", KindNull.String())
	assert.Equal(t, "scalar", KindScalar.String())
	assert.Equal(t, "array", KindSequence.String())
	assert.Equal(t, "object", KindDocument.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestEqual(t *testing.T) {
	assert.True(t, Number(2).Equal(MustParse(`{"n": 2.0}`)["n"]))
	assert.False(t, String("1").Equal(Number(1)))
	assert.False(t, Strings("a", "b").Equal(Strings("b", "a")))
	assert.True(t, Null().Equal(nil))
	assert.True(t, MustParse(`{"a": {"b": [1, "x", null]}}`).Equal(MustParse(`{"a": {"b": [1, "x", null]}}`)))
	assert.False(t, MustParse(`{"a": 1}`).Equal(MustParse(`{"a": 1, "b": 2}`)))
}

func TestCloneIsDeep(t *testing.T) {
	orig := MustParse(`{"a": {"b": ["x"]}}`)
	cp := orig.Clone()
	cp["a"].Document()["b"] = Strings("changed")
	assert.True(t, orig["a"].Document()["b"].Equal(Strings("x")))
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "template.conf")

	doc := Document{
		"name":        String("Goats"),
		"version":     Number(2),
		"stylesheets": Strings("site.less"),
		"layouts":     Doc(Document{"default": Doc(nil)}),
		"flag":        Bool(false),
		"nothing":     Null(),
	}
	require.NoError(t, WriteFile(path, doc))

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.True(t, doc.Equal(back))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	_, err = ReadFile(filepath.Join(dir, "missing.conf"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))
	_, err = ReadFile(path)
	assert.Error(t, err)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, `"x"`, String("x").String())
	assert.Equal(t, `["a","b"]`, Strings("a", "b").String())
	assert.Equal(t, `null`, Null().String())
}
