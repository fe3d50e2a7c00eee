package statement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

func TestAbsoluteThresholdZeroStopsOnFirstError(t *testing.T) {
	th := statement.Absolute(0)
	assert.False(t, th.Exceeded(0, 1))
	assert.True(t, th.Exceeded(1, 2))
}

func TestAbsoluteThresholdStopsStrictlyAfterK(t *testing.T) {
	th := statement.Absolute(2)
	assert.False(t, th.Exceeded(2, 10))
	assert.True(t, th.Exceeded(3, 10))
}

func TestRatioThresholdRespectsMinSample(t *testing.T) {
	th := statement.RatioThreshold(0.01, 100)

	// 3 errors out of 3 total items vastly exceeds the ratio, but the
	// sample is too small to trigger (spec.md §8 scenario 3).
	assert.False(t, th.Exceeded(3, 3))

	// At 100 total items with more than 1% errors, it trips.
	assert.True(t, th.Exceeded(2, 100))
}

func TestRatioThresholdTriggersAtExactEvent(t *testing.T) {
	th := statement.RatioThreshold(0.01, 100)

	// spec.md §8 scenario 4: 102 identical failures trip at the 101st
	// event once total_items has reached minSample.
	assert.False(t, th.Exceeded(100, 100))
	assert.True(t, th.Exceeded(101, 101))
}

func TestUnlimitedNeverTrips(t *testing.T) {
	th := statement.Unlimited()
	assert.False(t, th.Exceeded(1_000_000, 1_000_000))
}

func TestWriteResultCASFailure(t *testing.T) {
	wr := &statement.WriteResult{Success: true, IsConditional: true, WasApplied: false}
	assert.True(t, wr.IsCASFailure())

	applied := &statement.WriteResult{Success: true, IsConditional: true, WasApplied: true}
	assert.False(t, applied.IsCASFailure())

	failed := &statement.WriteResult{Success: false, IsConditional: true, WasApplied: false}
	assert.False(t, failed.IsCASFailure())
}

func TestBatchUnwrapSingleton(t *testing.T) {
	s := &statement.Statement{CQL: "INSERT ..."}
	b := &statement.Batch{Statements: []*statement.Statement{s}}

	assert.Same(t, s, b.Unwrap())
	assert.Equal(t, s, b.ToExecutable())
}

func TestBatchUnwrapNotSingleton(t *testing.T) {
	b := &statement.Batch{Statements: []*statement.Statement{
		{CQL: "INSERT ..."},
		{CQL: "INSERT ..."},
	}}

	assert.Nil(t, b.Unwrap())
	assert.Same(t, b, b.ToExecutable())
}
