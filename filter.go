package explorer

import (
	"reflect"
)

// Field is a constraint recognized by Filter.
type Field string

const (
	FieldMin     Field = "min"
	FieldMax     Field = "max"
	FieldMinTime Field = "min_time"
	FieldMaxTime Field = "max_time"
	FieldLevels  Field = "levels"
)

// Fields lists the recognized filter fields in wire order.
var Fields = []Field{FieldMin, FieldMax, FieldMinTime, FieldMaxTime, FieldLevels}

func isField(f Field) bool {
	for i := range Fields {
		if Fields[i] == f {
			return true
		}
	}

	return false
}

// Filter is a sparse set of constraints with a single pending edit.
// A stored value is never nil: unsetting a field deletes it.
type Filter struct {
	values map[Field]interface{}
	saved  map[Field]interface{}
	dirty  bool
}

// NewFilter returns an empty, clean filter.
func NewFilter() *Filter {
	return &Filter{
		values: make(map[Field]interface{}),
		saved:  make(map[Field]interface{}),
	}
}

// Get returns the value stored for field.
func (f *Filter) Get(field Field) (interface{}, bool) {
	v, ok := f.values[field]
	return v, ok
}

// Float returns field as a number when it holds one.
func (f *Filter) Float(field Field) (float64, bool) {
	v, ok := f.values[field]
	if !ok {
		return 0, false
	}

	return toFloat(v)
}

// Levels returns the selected levels, if any.
func (f *Filter) Levels() []interface{} {
	v, ok := f.values[FieldLevels]
	if !ok {
		return nil
	}

	return toSlice(v)
}

// Set stores value for field. An empty string or a nil value, typed or not,
// unsets the field. Unknown fields are ignored.
func (f *Filter) Set(field Field, value interface{}) {
	if !isField(field) {
		return
	}

	if isUnset(value) {
		value = nil
	}

	old, exists := f.values[field]
	if value == nil {
		if exists {
			delete(f.values, field)
			f.dirty = true
		}
		return
	}

	if exists && reflect.DeepEqual(old, value) {
		return
	}

	f.values[field] = copyValue(value)
	f.dirty = true
}

// IsEmpty reports whether no field holds a value. Zero, false and "0" are values.
func (f *Filter) IsEmpty() bool {
	return len(f.values) == 0
}

// Dirty reports whether there are unsaved changes.
func (f *Filter) Dirty() bool {
	return f.dirty
}

// Reset clears every field. An already empty filter stays clean.
func (f *Filter) Reset() {
	if f.IsEmpty() {
		return
	}

	f.values = make(map[Field]interface{})
	f.dirty = true
}

// Undo restores the last saved state.
func (f *Filter) Undo() {
	f.values = cloneValues(f.saved)
	f.dirty = false
}

// Save makes the current state the one Undo returns to.
func (f *Filter) Save() {
	f.saved = cloneValues(f.values)
	f.dirty = false
}

// Serialize returns the stored fields merged with extra, e.g. the owning
// dimension key. The result is used as a request fragment as is.
func (f *Filter) Serialize(extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(f.values)+len(extra))
	for k, v := range f.values {
		out[string(k)] = copyValue(v)
	}
	for k, v := range extra {
		out[k] = v
	}

	return out
}

func isUnset(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Ptr, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}

	return false
}

func cloneValues(m map[Field]interface{}) map[Field]interface{} {
	out := make(map[Field]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}

	return out
}

// copyValue detaches slices so snapshots are not shared with callers.
func copyValue(v interface{}) interface{} {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []interface{}:
		return append([]interface{}(nil), s...)
	case []float64:
		return append([]float64(nil), s...)
	case []int:
		return append([]int(nil), s...)
	}

	return v
}

func toSlice(v interface{}) []interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}

	out := make([]interface{}, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, rv.Index(i).Interface())
	}

	return out
}
