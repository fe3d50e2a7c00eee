// Package mapping provides the default record<->statement mapper: a
// thin, config-driven stand-in for the out-of-scope codec layer
// (spec.md §1 "type conversion codecs ... out of scope, interfaced
// only"). It is deliberately minimal — splitting a delimited line
// positionally against a CQL template — since the real codec stack
// (JSON/text <-> CQL type conversion) is a substitutable external
// collaborator, not part of the streaming execution core.
package mapping

import (
	"fmt"
	"strings"

	"github.com/cloudshuttle/cqlbulk/pkg/pool"
	"github.com/cloudshuttle/cqlbulk/pkg/record"
	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

// CSVMapper maps a record's single "line" field (as produced by
// connector.File) into a prepared statement by splitting on Delimiter
// and binding the resulting fields as positional arguments to Query, a
// CQL template containing one "?" per column (spec.md §6.5
// "schema.query").
type CSVMapper struct {
	Query     string
	Delimiter string
}

// NewCSVMapper constructs a CSVMapper, defaulting Delimiter to a comma
// when empty.
func NewCSVMapper(query, delimiter string) *CSVMapper {
	if delimiter == "" {
		delimiter = ","
	}
	return &CSVMapper{Query: query, Delimiter: delimiter}
}

// ToStatement implements engine.Mapper for the load direction.
func (m *CSVMapper) ToStatement(rec *record.Record) (*statement.Statement, error) {
	field, ok := rec.Field("line")
	if !ok {
		return nil, fmt.Errorf("mapping: record has no \"line\" field")
	}
	line, ok := field.Value.(string)
	if !ok {
		return nil, fmt.Errorf("mapping: \"line\" field is not a string")
	}

	parts := strings.Split(line, m.Delimiter)
	want := strings.Count(m.Query, "?")
	if want > 0 && len(parts) != want {
		return nil, fmt.Errorf("mapping: expected %d columns, got %d", want, len(parts))
	}

	args := make([]interface{}, len(parts))
	routingKey := []byte(parts[0])
	for i, p := range parts {
		args[i] = p
	}

	return &statement.Statement{
		Kind:       statement.KindPrepared,
		CQL:        m.Query,
		Args:       args,
		RoutingKey: routingKey,
		Record:     rec,
	}, nil
}

// ToRecord implements engine.Mapper for the unload direction: row is
// expected to be a []interface{} of column values in query order,
// rendered back into a single "line" field joined with Delimiter.
func (m *CSVMapper) ToRecord(resource string, position int64, row interface{}) (*record.Record, error) {
	cols, ok := row.([]interface{})
	if !ok {
		return nil, fmt.Errorf("mapping: unsupported row type %T", row)
	}

	// Borrow the shared []string scratch slice rather than allocating a
	// fresh one per row; it never escapes this call.
	parts := pool.GetStringSlice()
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("%v", c))
	}
	line := strings.Join(parts, m.Delimiter)
	pool.PutStringSlice(parts)
	pos := record.Position{Resource: resource, Index: position}
	return record.New(pos, []record.Field{{Name: "line", Type: record.FieldTypeString, Value: line}}), nil
}
