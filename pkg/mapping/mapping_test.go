package mapping_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudshuttle/cqlbulk/pkg/mapping"
	"github.com/cloudshuttle/cqlbulk/pkg/record"
)

func TestCSVMapperToStatementBindsPositionalArgs(t *testing.T) {
	m := mapping.NewCSVMapper("INSERT INTO ks.tbl (id, name) VALUES (?, ?)", ",")
	pos := record.Position{Resource: "file:///f1.csv", Index: 1, SourceLine: "1,alice"}
	rec := record.New(pos, []record.Field{{Name: "line", Type: record.FieldTypeString, Value: "1,alice"}})

	stmt, err := m.ToStatement(rec)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"1", "alice"}, stmt.Args)
	assert.Equal(t, []byte("1"), stmt.RoutingKey)
	assert.Same(t, rec, stmt.Record)
}

func TestCSVMapperToStatementRejectsColumnMismatch(t *testing.T) {
	m := mapping.NewCSVMapper("INSERT INTO ks.tbl (id, name) VALUES (?, ?)", ",")
	rec := record.New(record.Position{Resource: "r", Index: 1}, []record.Field{
		{Name: "line", Type: record.FieldTypeString, Value: "1,alice,extra"},
	})

	_, err := m.ToStatement(rec)
	assert.Error(t, err)
}

func TestCSVMapperToStatementRequiresLineField(t *testing.T) {
	m := mapping.NewCSVMapper("INSERT INTO ks.tbl (id) VALUES (?)", ",")
	rec := record.New(record.Position{Resource: "r", Index: 1}, nil)

	_, err := m.ToStatement(rec)
	assert.Error(t, err)
}

func TestCSVMapperToRecordJoinsColumns(t *testing.T) {
	m := mapping.NewCSVMapper("", ",")
	rec, err := m.ToRecord("ks.tbl", 3, []interface{}{1, "alice"})
	require.NoError(t, err)

	f, ok := rec.Field("line")
	require.True(t, ok)
	assert.Equal(t, "1,alice", f.Value)
	assert.Equal(t, int64(3), rec.Pos.Index)
}

func TestCSVMapperDefaultsDelimiterToComma(t *testing.T) {
	m := mapping.NewCSVMapper("INSERT INTO ks.tbl (id) VALUES (?)", "")
	rec := record.New(record.Position{Resource: "r", Index: 1}, []record.Field{
		{Name: "line", Type: record.FieldTypeString, Value: "1"},
	})
	stmt, err := m.ToStatement(rec)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"1"}, stmt.Args)
}
