package audit

// Field is one named value of a mutation payload.
type Field struct {
	Name  string
	Value any
}

// Recorder accumulates changes for a single logical operation. Sections keep one
// operation touching several sub-objects in one entry.
type Recorder struct {
	changes Changes
}

func NewRecorder() *Recorder {
	return &Recorder{changes: make(Changes)}
}

// Record appends one change to section.
func (r *Recorder) Record(section, field string, oldValue, newValue any) {
	r.changes[section] = append(r.changes[section], Change{
		Field:    field,
		OldValue: normalize(oldValue),
		NewValue: normalize(newValue),
	})
}

// RecordCreate records every payload field with a nil old value, including
// fields whose value is nil.
func (r *Recorder) RecordCreate(section string, payload []Field) {
	for _, f := range payload {
		r.Record(section, f.Name, nil, f.Value)
	}
}

// RecordUpdate records only the fields present in payload. before resolves the
// previously stored value; fields it does not know are recorded with a nil old
// value. Unchanged values are still recorded.
func (r *Recorder) RecordUpdate(section string, before func(field string) (any, bool), payload []Field) {
	for _, f := range payload {
		var old any
		if before != nil {
			if v, ok := before(f.Name); ok {
				old = v
			}
		}
		r.Record(section, f.Name, old, f.Value)
	}
}

// Changes returns the accumulated changes.
func (r *Recorder) Changes() Changes {
	return r.changes
}

// normalize dereferences the optional numeric pointers stores hand back so that
// changes hold plain values or nil.
func normalize(v any) any {
	switch p := v.(type) {
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	case *string:
		if p == nil {
			return nil
		}
		return *p
	}
	return v
}
