package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFilter(t *testing.T) {
	f, err := recordFilter("", 50, 10)
	require.NoError(t, err)
	assert.Nil(t, f.Since)
	assert.Equal(t, 50, f.Limit)
	assert.Equal(t, 10, f.Offset)
}

func TestRecordFilter_Since(t *testing.T) {
	f, err := recordFilter("2024-06-20", 0, 0)
	require.NoError(t, err)
	require.NotNil(t, f.Since)
	assert.Equal(t, time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC), *f.Since)
}

func TestRecordFilter_BadSince(t *testing.T) {
	for _, since := range []string{"20/06/2024", "2024-02-30", "yesterday"} {
		_, err := recordFilter(since, 0, 0)
		require.Error(t, err, since)
		assert.Contains(t, err.Error(), "YYYY-MM-DD")
	}
}
