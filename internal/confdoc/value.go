// Package confdoc models template configuration documents and merges module
// fragments into the authoritative build document.
//
// A Value is a closed variant: null, scalar, sequence or document. Merge
// dispatches on the pair of kinds found under each key, so every combination
// is handled explicitly.
package confdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindSequence
	KindDocument
)

// String returns the JSON-schema style name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "array"
	case KindDocument:
		return "object"
	default:
		return "unknown"
	}
}

// Document maps keys to values. Key order carries no meaning.
type Document map[string]*Value

// Value is one configuration value.
type Value struct {
	kind   Kind
	scalar interface{} // string, json.Number or bool
	seq    []*Value
	doc    Document
}

// Null returns an explicit null.
func Null() *Value { return &Value{kind: KindNull} }

// String returns a string scalar.
func String(s string) *Value { return &Value{kind: KindScalar, scalar: s} }

// Number returns a numeric scalar.
func Number(n float64) *Value {
	return &Value{kind: KindScalar, scalar: json.Number(strconv.FormatFloat(n, 'f', -1, 64))}
}

// Bool returns a boolean scalar.
func Bool(b bool) *Value { return &Value{kind: KindScalar, scalar: b} }

// Seq returns a sequence of values.
func Seq(items ...*Value) *Value { return &Value{kind: KindSequence, seq: items} }

// Strings returns a sequence of string scalars.
func Strings(items ...string) *Value {
	vals := make([]*Value, len(items))
	for i, s := range items {
		vals[i] = String(s)
	}
	return Seq(vals...)
}

// Doc returns a nested document value.
func Doc(d Document) *Value {
	if d == nil {
		d = Document{}
	}
	return &Value{kind: KindDocument, doc: d}
}

// Kind returns the variant held by v. A nil Value is absent and reports KindNull.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

// IsScalar reports whether v is null or a scalar.
func (v *Value) IsScalar() bool {
	k := v.Kind()
	return k == KindNull || k == KindScalar
}

// Scalar returns the scalar payload.
func (v *Value) Scalar() interface{} {
	if v == nil {
		return nil
	}
	return v.scalar
}

// Items returns the sequence elements.
func (v *Value) Items() []*Value {
	if v == nil {
		return nil
	}
	return v.seq
}

// Document returns the nested document.
func (v *Value) Document() Document {
	if v == nil {
		return nil
	}
	return v.doc
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{kind: v.kind, scalar: v.scalar}
	if v.seq != nil {
		out.seq = make([]*Value, len(v.seq))
		for i, item := range v.seq {
			out.seq[i] = item.Clone()
		}
	}
	if v.doc != nil {
		out.doc = v.doc.Clone()
	}
	return out
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v.Clone()
	}
	return out
}

// Keys returns the document's keys sorted.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep equality. Numbers compare numerically.
func (v *Value) Equal(other *Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}
	switch v.Kind() {
	case KindNull:
		return true
	case KindScalar:
		return scalarEqual(v.scalar, other.scalar)
	case KindSequence:
		if len(v.seq) != len(other.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(other.seq[i]) {
				return false
			}
		}
		return true
	case KindDocument:
		return v.doc.Equal(other.doc)
	}
	return false
}

// Equal reports deep equality of two documents.
func (d Document) Equal(other Document) bool {
	if len(d) != len(other) {
		return false
	}
	for k, v := range d {
		ov, ok := other[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case json.Number:
		bv, ok := b.(json.Number)
		if !ok {
			return false
		}
		if av == bv {
			return true
		}
		af, errA := av.Float64()
		bf, errB := bv.Float64()
		return errA == nil && errB == nil && af == bf
	default:
		return a == b
	}
}

// String renders v compactly for traces.
func (v *Value) String() string {
	data, err := json.Marshal(v.toInterface())
	if err != nil {
		return fmt.Sprintf("<%s>", v.Kind())
	}
	return string(data)
}

func (v *Value) toInterface() interface{} {
	switch v.Kind() {
	case KindScalar:
		return v.scalar
	case KindSequence:
		out := make([]interface{}, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.toInterface()
		}
		return out
	case KindDocument:
		return v.doc.toInterface()
	default:
		return nil
	}
}

func (d Document) toInterface() map[string]interface{} {
	out := make(map[string]interface{}, len(d))
	for k, v := range d {
		out[k] = v.toInterface()
	}
	return out
}

func fromInterface(raw interface{}) (*Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case string, bool, json.Number:
		return &Value{kind: KindScalar, scalar: x}, nil
	case []interface{}:
		items := make([]*Value, len(x))
		for i, item := range x {
			v, err := fromInterface(item)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return Seq(items...), nil
	case map[string]interface{}:
		doc := make(Document, len(x))
		for k, item := range x {
			v, err := fromInterface(item)
			if err != nil {
				return nil, err
			}
			doc[k] = v
		}
		return Doc(doc), nil
	default:
		return nil, fmt.Errorf("unsupported value %T", raw)
	}
}

// Parse decodes a JSON object into a Document.
func Parse(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after document")
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("configuration must be an object, got %T", raw)
	}
	v, err := fromInterface(obj)
	if err != nil {
		return nil, err
	}
	return v.doc, nil
}

// MustParse is Parse for literals in tests and defaults. It panics on error.
func MustParse(s string) Document {
	d, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return d
}

// Marshal encodes the document as indented JSON with sorted keys.
func (d Document) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d.toInterface(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ReadFile reads and parses a configuration document.
func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}

// WriteFile writes the document to path, replacing it atomically.
func WriteFile(path string, d Document) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".conf-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
