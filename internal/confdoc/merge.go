package confdoc

import (
	"fmt"
	"strings"

	serrors "github.com/conneroisu/tplsync/internal/errors"
)

// KeyMap maps a sequence key to the field that identifies its elements.
// Sequences listed here are merged as keyed collections.
type KeyMap map[string]string

// DefaultKeys are the keyed sequences of template.conf.
var DefaultKeys = KeyMap{
	"navigations": "name",
	"customTypes": "name",
}

// Action is the decision taken for one key.
type Action string

const (
	ActionSet      Action = "set"
	ActionKeep     Action = "keep"
	ActionInsert   Action = "insert"
	ActionAdopt    Action = "adopt"
	ActionRecurse  Action = "recurse"
	ActionMismatch Action = "mismatch"
	ActionUnkeyed  Action = "unkeyed"
)

// Step records one merge decision.
type Step struct {
	Path   string
	Depth  int
	Action Action
	Detail string
}

// Trace is the ordered list of decisions taken by a merge.
type Trace struct {
	Steps []Step
}

func (t *Trace) add(path []string, action Action, format string, args ...interface{}) {
	t.Steps = append(t.Steps, Step{
		Path:   strings.Join(path, "."),
		Depth:  len(path) - 1,
		Action: action,
		Detail: fmt.Sprintf(format, args...),
	})
}

// Count returns how many steps took the given action.
func (t *Trace) Count(action Action) int {
	n := 0
	for _, s := range t.Steps {
		if s.Action == action {
			n++
		}
	}
	return n
}

// Changed reports whether the merge modified the authoritative document.
func (t *Trace) Changed() bool {
	return t.Count(ActionSet)+t.Count(ActionInsert)+t.Count(ActionAdopt) > 0
}

// Skipped returns one structural error per key the merge could not handle.
func (t *Trace) Skipped() []error {
	var out []error
	for _, s := range t.Steps {
		switch s.Action {
		case ActionMismatch:
			out = append(out, serrors.NewStructuralError(s.Path, s.Detail))
		case ActionUnkeyed:
			se := serrors.NewStructuralError(s.Path, s.Detail)
			se.Code = serrors.ErrCodeUnkeyedSequence
			out = append(out, se)
		}
	}
	return out
}

// String renders the trace one decision per line, indented by depth.
func (t *Trace) String() string {
	var b strings.Builder
	for _, s := range t.Steps {
		b.WriteString(strings.Repeat("·", 2+2*s.Depth))
		b.WriteByte(' ')
		b.WriteString(s.Detail)
		b.WriteByte('\n')
	}
	return b.String()
}

// Merger merges configuration documents.
type Merger struct {
	Keys KeyMap
}

// NewMerger returns a merger using keys for keyed sequences.
func NewMerger(keys KeyMap) *Merger {
	if keys == nil {
		keys = DefaultKeys
	}
	return &Merger{Keys: keys}
}

// Merge folds incoming into authoritative using DefaultKeys.
func Merge(authoritative, incoming Document) (Document, *Trace) {
	return NewMerger(nil).Merge(authoritative, incoming)
}

// Merge folds incoming into authoritative and returns authoritative.
//
// Existing authoritative values are never removed or overwritten: scalars
// are only filled in where absent or null, sequences only gain elements, and
// nested documents are merged key by key. New sequence elements are inserted
// at the front, one at a time in incoming order. incoming is not modified
// and nothing from it is aliased into the result.
func (m *Merger) Merge(authoritative, incoming Document) (Document, *Trace) {
	if authoritative == nil {
		authoritative = Document{}
	}
	trace := &Trace{}
	m.mergeDoc(authoritative, incoming, nil, trace)
	return authoritative, trace
}

func (m *Merger) mergeDoc(a, b Document, path []string, trace *Trace) {
	for _, key := range b.Keys() {
		valA, present := a[key]
		valB := b[key]
		at := append(append([]string(nil), path...), key)
		absent := !present || valA.Kind() == KindNull

		switch valB.Kind() {
		case KindNull, KindScalar:
			if absent {
				a[key] = valB.Clone()
				trace.add(at, ActionSet, "Setting %s to %s", key, valB)
				continue
			}
			trace.add(at, ActionKeep, "Keeping existing value %s for key %s", valA, key)

		case KindSequence:
			switch valA.Kind() {
			case KindSequence:
				m.mergeSeq(valA, valB, key, at, trace)
			case KindNull:
				a[key] = valB.Clone()
				trace.add(at, ActionAdopt, "Adding %s %s", key, valB.Kind())
			default:
				trace.add(at, ActionMismatch, "Cannot merge %s %s into %s", key, valB.Kind(), valA.Kind())
			}

		case KindDocument:
			switch valA.Kind() {
			case KindDocument:
				trace.add(at, ActionRecurse, "Merging %s object", key)
				m.mergeDoc(valA.doc, valB.doc, at, trace)
			case KindNull:
				a[key] = valB.Clone()
				trace.add(at, ActionAdopt, "Adding %s %s", key, valB.Kind())
			default:
				trace.add(at, ActionMismatch, "Cannot merge %s %s into %s", key, valB.Kind(), valA.Kind())
			}
		}
	}
}

func (m *Merger) mergeSeq(a, b *Value, key string, at []string, trace *Trace) {
	if allScalar(a.seq) && allScalar(b.seq) {
		for _, item := range b.seq {
			if indexOf(a.seq, item) >= 0 {
				continue
			}
			a.seq = prepend(a.seq, item.Clone())
			trace.add(at, ActionInsert, "Pushing %s to %s array", item, key)
		}
		return
	}

	pk, ok := m.Keys[key]
	if !ok {
		trace.add(at, ActionUnkeyed, "Array %s contains arrays, or objects not present in keyMap", key)
		return
	}

	for _, item := range b.seq {
		id, ok := primaryKey(item, pk)
		if !ok {
			trace.add(at, ActionUnkeyed, "Skipping %s element without %s", key, pk)
			continue
		}
		if containsKey(a.seq, pk, id) {
			continue
		}
		a.seq = prepend(a.seq, item.Clone())
		trace.add(at, ActionInsert, "Pushing object with %s %s to %s array", pk, id, key)
	}
}

func allScalar(items []*Value) bool {
	for _, item := range items {
		if !item.IsScalar() {
			return false
		}
	}
	return true
}

func indexOf(items []*Value, v *Value) int {
	for i, item := range items {
		if item.Equal(v) {
			return i
		}
	}
	return -1
}

func prepend(items []*Value, v *Value) []*Value {
	out := make([]*Value, 0, len(items)+1)
	out = append(out, v)
	return append(out, items...)
}

func primaryKey(item *Value, pk string) (*Value, bool) {
	if item.Kind() != KindDocument {
		return nil, false
	}
	id, ok := item.doc[pk]
	if !ok || id.Kind() != KindScalar {
		return nil, false
	}
	return id, true
}

func containsKey(items []*Value, pk string, id *Value) bool {
	for _, item := range items {
		if other, ok := primaryKey(item, pk); ok && other.Equal(id) {
			return true
		}
	}
	return false
}
