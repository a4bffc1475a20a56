// Package emit implements the structured dump emitter optrack feeds from
// TrackedOp.Dump, OpHistory's dump operations, and the registry's in-flight
// dumps. It is a thin abstraction over a concrete backend: the core only
// depends on the small Emitter interface, never on encoding/json directly,
// so a caller could swap in a different renderer without touching tracker
// code. JSON is the only implementation in this module; the CLI in
// cmd/optrack-inspect decodes the JSON it fetches and prints it directly.
//
// © 2025 optrack authors. MIT License.
package emit

import (
	"bytes"
	"encoding/json"
)

// Emitter is the structured sink every dump operation writes into. Callers
// open a section, write fields, and close it; arrays and nested objects may
// be freely interleaved, matching the external interface described in the
// specification this package implements.
type Emitter interface {
	OpenObject(name string)
	CloseSection()
	OpenArray(name string)
	DumpInt(name string, i int64)
	DumpFloat(name string, f float64)
	DumpString(name string, s string)
	DumpStream(name string) *bytes.Buffer
}

type frameKind int

const (
	frameObject frameKind = iota
	frameArray
)

type frame struct {
	kind frameKind
	name string // key this frame will be installed under in its parent
	obj  map[string]any
	arr  []any
}

// streamValue wraps a *bytes.Buffer so it marshals as a JSON string once the
// caller has finished writing to it, letting DumpStream hand out a plain
// io.Writer-compatible buffer without the emitter needing to know when
// writing stopped.
type streamValue struct{ buf *bytes.Buffer }

func (s streamValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.buf.String())
}

// JSON is a tree-building Emitter that produces a JSON document. The
// zero value is not usable; construct with NewJSON.
type JSON struct {
	stack []*frame
}

// NewJSON constructs an emitter with an implicit root object frame, so
// callers can immediately call DumpInt/DumpString at the top level or open
// a nested array/object under it.
func NewJSON() *JSON {
	return &JSON{stack: []*frame{{kind: frameObject, obj: map[string]any{}}}}
}

func (j *JSON) top() *frame { return j.stack[len(j.stack)-1] }

// OpenObject pushes a new object frame. name is the key it will be filed
// under when CloseSection is called; it is ignored if the parent frame is
// an array.
func (j *JSON) OpenObject(name string) {
	j.stack = append(j.stack, &frame{kind: frameObject, name: name, obj: map[string]any{}})
}

// OpenArray pushes a new array frame, installed under name in the parent
// object (or appended, unnamed, if the parent is itself an array).
func (j *JSON) OpenArray(name string) {
	j.stack = append(j.stack, &frame{kind: frameArray, name: name})
}

// CloseSection pops the current frame and files its built value into the
// parent. Closing the root frame is a no-op — call Result instead.
func (j *JSON) CloseSection() {
	if len(j.stack) <= 1 {
		return
	}
	child := j.stack[len(j.stack)-1]
	j.stack = j.stack[:len(j.stack)-1]

	var built any
	if child.kind == frameObject {
		built = child.obj
	} else {
		if child.arr == nil {
			built = []any{}
		} else {
			built = child.arr
		}
	}
	j.install(child.name, built)
}

func (j *JSON) install(name string, v any) {
	parent := j.top()
	if parent.kind == frameObject {
		parent.obj[name] = v
	} else {
		parent.arr = append(parent.arr, v)
	}
}

func (j *JSON) DumpInt(name string, i int64)     { j.install(name, i) }
func (j *JSON) DumpFloat(name string, f float64) { j.install(name, f) }
func (j *JSON) DumpString(name string, s string) { j.install(name, s) }

// DumpStream returns a buffer the caller may write raw bytes into; its
// final contents are embedded as a JSON string field when the document is
// built.
func (j *JSON) DumpStream(name string) *bytes.Buffer {
	buf := &bytes.Buffer{}
	j.install(name, streamValue{buf: buf})
	return buf
}

// Result closes any frames left open (defensively — well-behaved callers
// close everything themselves) and marshals the root object to JSON.
func (j *JSON) Result() ([]byte, error) {
	for len(j.stack) > 1 {
		j.CloseSection()
	}
	return json.Marshal(j.stack[0].obj)
}

// Map is like Result but returns the raw tree instead of marshaled bytes,
// useful for tests that want to assert on structure rather than bytes.
func (j *JSON) Map() map[string]any {
	for len(j.stack) > 1 {
		j.CloseSection()
	}
	return j.stack[0].obj
}
