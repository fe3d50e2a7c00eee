package connector_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudshuttle/cqlbulk/pkg/connector"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return "file://" + path
}

func TestFileReadAssignsAscendingPositions(t *testing.T) {
	url := writeTempFile(t, "a,1\nb,2\nc,3\n")
	f := connector.NewFile(connector.FileConfig{URLs: []string{url}})
	require.NoError(t, f.Init(context.Background()))

	stream, err := f.Read(context.Background())
	require.NoError(t, err)

	var lines []string
	var positions []int64
	for rec := range stream {
		require.False(t, rec.IsError())
		field, ok := rec.Field("line")
		require.True(t, ok)
		lines = append(lines, field.Value.(string))
		positions = append(positions, rec.Pos.Index)
	}

	assert.ElementsMatch(t, []string{"a,1", "b,2", "c,3"}, lines)
	assert.ElementsMatch(t, []int64{1, 2, 3}, positions)
	require.NoError(t, f.Close(context.Background()))
}

func TestFileReadByResourcePreservesOrderWithinResource(t *testing.T) {
	url := writeTempFile(t, "first\nsecond\nthird\n")
	f := connector.NewFile(connector.FileConfig{URLs: []string{url}})
	require.NoError(t, f.Init(context.Background()))

	streams, err := f.ReadByResource(context.Background())
	require.NoError(t, err)

	stream := <-streams
	assert.Equal(t, url, stream.Resource)

	var lines []string
	for rec := range stream.Records {
		field, _ := rec.Field("line")
		lines = append(lines, field.Value.(string))
	}
	assert.Equal(t, []string{"first", "second", "third"}, lines)
}

func TestFileSupportsIndexedNotMapped(t *testing.T) {
	f := connector.NewFile(connector.FileConfig{URLs: []string{"file:///unused"}})
	assert.True(t, f.Supports(connector.FeatureIndexedRecords))
	assert.False(t, f.Supports(connector.FeatureMappedRecords))
}

func TestFileEstimatedResourceCount(t *testing.T) {
	f := connector.NewFile(connector.FileConfig{URLs: []string{"file:///a", "file:///b"}})
	assert.Equal(t, 2, f.EstimatedResourceCount())
}
