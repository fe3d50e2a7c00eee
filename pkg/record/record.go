// Package record defines the Record type that flows through the
// streaming execution core: an ordered tuple of fields carrying a
// provenance triple (resource, position, source line), immutable once
// constructed.
package record

import "fmt"

// FieldType identifies the Go-level type carried by a Field's value,
// letting callers avoid a type switch on interface{} in the hot path.
type FieldType int

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeString
	FieldTypeInt64
	FieldTypeFloat64
	FieldTypeBool
	FieldTypeBytes
	FieldTypeNull
)

// Field is one named or indexed value within a Record. Name is empty
// for indexed (positional) fields.
type Field struct {
	Name  string
	Type  FieldType
	Value interface{}
}

// Position identifies a record's provenance: the resource it came from,
// its 1-based position within that resource, and the original
// source-line text, when the connector can supply one.
type Position struct {
	Resource   string
	Index      int64
	SourceLine string
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.Resource, p.Index)
}

// Record is one unit flowing through the pipeline. A Record is either
// ok (Fields populated, Err nil) or an error record (Err set, Fields
// nil). Error records may still carry a source line and always carry a
// Position. Records are immutable after construction — callers must
// not mutate Fields in place.
type Record struct {
	Fields []Field
	Pos    Position
	Err    error
}

// New constructs an ok record.
func New(pos Position, fields []Field) *Record {
	return &Record{Fields: fields, Pos: pos}
}

// NewError constructs an error record. Fields is always nil on an
// error record; the source line, if present, lives on Pos.SourceLine.
func NewError(pos Position, cause error) *Record {
	return &Record{Pos: pos, Err: cause}
}

// IsError reports whether this is an error record.
func (r *Record) IsError() bool {
	return r.Err != nil
}

// Field looks up a named field. Returns the zero Field and false if no
// field with that name exists or the record is an error record.
func (r *Record) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasSourceLine reports whether the record carries original source
// text — used by the log manager to decide whether to write a bad-file
// line (spec.md §9: records with no source text omit the bad-file line
// but still log the structured error entry).
func (r *Record) HasSourceLine() bool {
	return r.Pos.SourceLine != ""
}
