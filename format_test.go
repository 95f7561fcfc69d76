package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/icdrive/icdrive/internal/drive"
)

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.0 KiB", humanSize(1024))
	assert.Equal(t, "1.5 MiB", humanSize(1536*1024))
}

func TestSummarize(t *testing.T) {
	results := []drive.TransferResult{
		{LocalPath: "a.txt"},
		{LocalPath: "b.txt", Err: errors.New("boom")},
	}

	s := summarize(results, 2, 1)

	assert.Equal(t, 1, s.Success)
	assert.Equal(t, 1, s.Fail)
	assert.Equal(t, 2, s.Skipped)
	assert.Equal(t, 1, s.Excluded)
	assert.Equal(t, map[string]string{"b.txt": "boom"}, s.Fails)
}

func TestSortedFailPaths(t *testing.T) {
	fails := map[string]string{"c.txt": "x", "a.txt": "y", "b.txt": "z"}

	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, sortedFailPaths(fails))
}
