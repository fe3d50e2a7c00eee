package position_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudshuttle/cqlbulk/pkg/position"
)

func TestRecordSingleton(t *testing.T) {
	tr := position.New()
	tr.Record("file:///f1.csv", 1)
	assert.Equal(t, []position.Range{{Lo: 1, Hi: 1}}, tr.Ranges("file:///f1.csv"))
}

func TestRecordMergesAdjacent(t *testing.T) {
	tr := position.New()
	tr.Record("r", 1)
	tr.Record("r", 2)
	tr.Record("r", 3)
	assert.Equal(t, []position.Range{{Lo: 1, Hi: 3}}, tr.Ranges("r"))
}

func TestRecordMergesOutOfOrder(t *testing.T) {
	tr := position.New()
	tr.Record("r", 5)
	tr.Record("r", 1)
	tr.Record("r", 3)
	tr.Record("r", 2)
	tr.Record("r", 4)
	assert.Equal(t, []position.Range{{Lo: 1, Hi: 5}}, tr.Ranges("r"))
}

func TestRecordKeepsDisjointGaps(t *testing.T) {
	tr := position.New()
	tr.Record("r", 1)
	tr.Record("r", 2)
	tr.Record("r", 10)
	tr.Record("r", 11)
	assert.Equal(t, []position.Range{{Lo: 1, Hi: 2}, {Lo: 10, Hi: 11}}, tr.Ranges("r"))
}

func TestRecordBridgesGap(t *testing.T) {
	tr := position.New()
	tr.Record("r", 1)
	tr.Record("r", 3)
	tr.Record("r", 2)
	assert.Equal(t, []position.Range{{Lo: 1, Hi: 3}}, tr.Ranges("r"))
}

func TestDuplicateRecordIsNoop(t *testing.T) {
	tr := position.New()
	tr.Record("r", 5)
	tr.Record("r", 5)
	assert.Equal(t, []position.Range{{Lo: 5, Hi: 5}}, tr.Ranges("r"))
}

func TestResourcesAreIndependent(t *testing.T) {
	tr := position.New()
	tr.Record("a", 1)
	tr.Record("b", 100)
	assert.Equal(t, []string{"a", "b"}, tr.Resources())
	assert.Equal(t, []position.Range{{Lo: 1, Hi: 1}}, tr.Ranges("a"))
	assert.Equal(t, []position.Range{{Lo: 100, Hi: 100}}, tr.Ranges("b"))
}

func TestLinesFormat(t *testing.T) {
	tr := position.New()
	tr.Record("file:///f1.csv", 1)
	tr.Record("file:///f1.csv", 2)
	tr.Record("file:///f1.csv", 3)
	tr.Record("file:///f1.csv", 10)

	assert.Equal(t, []string{
		"file:///f1.csv:1-3",
		"file:///f1.csv:10",
	}, tr.Lines())
}
