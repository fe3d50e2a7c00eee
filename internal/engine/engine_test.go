package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudshuttle/cqlbulk/pkg/record"
)

func TestChooseRegimeThreadPerResourceWhenUnknown(t *testing.T) {
	assert.True(t, chooseRegime(0))
}

func TestChooseRegimeThreadPerResourceAtThreshold(t *testing.T) {
	assert.True(t, chooseRegime(resourceCountThreshold))
	assert.True(t, chooseRegime(resourceCountThreshold+1))
}

func TestChooseRegimeParallelWindowedBelowThreshold(t *testing.T) {
	assert.False(t, chooseRegime(1))
	assert.False(t, chooseRegime(resourceCountThreshold-1))
}

func TestChunkGroupsIntoBoundedSlices(t *testing.T) {
	in := make(chan *record.Record)
	go func() {
		defer close(in)
		for i := 0; i < 7; i++ {
			in <- record.New(record.Position{Resource: "r", Index: int64(i)}, nil)
		}
	}()

	var windows [][]*record.Record
	for w := range chunk(in, 3) {
		windows = append(windows, w)
	}

	require.Len(t, windows, 3)
	assert.Len(t, windows[0], 3)
	assert.Len(t, windows[1], 3)
	assert.Len(t, windows[2], 1)
}

func TestChunkEmptyInputProducesNoWindows(t *testing.T) {
	in := make(chan *record.Record)
	close(in)

	count := 0
	for range chunk(in, 10) {
		count++
	}
	assert.Equal(t, 0, count)
}

func TestParseBatchModeDefaultsToPartitionKey(t *testing.T) {
	assert.Equal(t, 0, int(parseBatchMode("")))
	assert.Equal(t, 0, int(parseBatchMode("PARTITION_KEY")))
}

func TestParseBatchModeReplicaSet(t *testing.T) {
	assert.Equal(t, 1, int(parseBatchMode("REPLICA_SET")))
}

func TestNonZeroFallsBackWhenZeroOrNegative(t *testing.T) {
	assert.Equal(t, 5, nonZero(0, 5))
	assert.Equal(t, 5, nonZero(-1, 5))
	assert.Equal(t, 9, nonZero(9, 5))
}

func TestContextCauseDistinguishesThresholdAbort(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(nil)
	assert.Equal(t, context.Canceled, context.Cause(ctx))
}
