package batcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudshuttle/cqlbulk/pkg/batcher"
	"github.com/cloudshuttle/cqlbulk/pkg/driver"
	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

func TestEveryStatementAppearsExactlyOnce(t *testing.T) {
	d := driver.NewMock()
	b := batcher.New(batcher.DefaultConfig(), d)

	var in []*statement.Statement
	for i := 0; i < 100; i++ {
		in = append(in, &statement.Statement{CQL: "INSERT ...", RoutingKey: []byte{byte(i % 5)}})
	}

	var out []*statement.Batch
	for _, s := range in {
		if batch := b.Add(s); batch != nil {
			out = append(out, batch)
		}
	}
	out = append(out, b.FlushAll()...)

	seen := make(map[*statement.Statement]bool)
	for _, batch := range out {
		for _, s := range batch.Statements {
			require.False(t, seen[s], "statement emitted twice")
			seen[s] = true
		}
	}
	assert.Len(t, seen, len(in))
}

func TestBatchNeverExceedsMaxStatements(t *testing.T) {
	d := driver.NewMock()
	cfg := batcher.DefaultConfig()
	cfg.MaxBatchStatements = 4
	b := batcher.New(cfg, d)

	var flushed []*statement.Batch
	for i := 0; i < 10; i++ {
		if batch := b.Add(&statement.Statement{CQL: "X", RoutingKey: []byte{1}}); batch != nil {
			flushed = append(flushed, batch)
		}
	}
	flushed = append(flushed, b.FlushAll()...)

	for _, batch := range flushed {
		assert.LessOrEqual(t, len(batch.Statements), 4)
	}
}

func TestAllStatementsInBatchShareRoutingGroup(t *testing.T) {
	d := driver.NewMock()
	b := batcher.New(batcher.DefaultConfig(), d)

	for i := 0; i < 40; i++ {
		key := byte(i % 3)
		b.Add(&statement.Statement{CQL: "X", RoutingKey: []byte{key}})
	}
	batches := b.FlushAll()

	for _, batch := range batches {
		require.NotEmpty(t, batch.Statements)
		for _, s := range batch.Statements {
			assert.Equal(t, batch.Statements[0].RoutingKey, s.RoutingKey)
		}
	}
}

func TestSingletonBatchUnwraps(t *testing.T) {
	d := driver.NewMock()
	b := batcher.New(batcher.DefaultConfig(), d)

	s := &statement.Statement{CQL: "INSERT ...", RoutingKey: []byte{9}}
	b.Add(s)
	batches := b.FlushAll()

	require.Len(t, batches, 1)
	assert.Same(t, s, batches[0].ToExecutable())
}
