package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/retention/retention"
	"github.com/tailored-agentic-units/retention/settings"
)

func TestPrintRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, []recordView{
		{Conversation: "a", HideLastN: 10, LastProcessedLength: 25, CacheLength: 25, CacheValid: true},
		{Conversation: "b", LastProcessedLength: 3},
	}))

	out := buf.String()
	assert.Contains(t, out, "CONVERSATION")
	assert.Regexp(t, `a\s+10\s+25\s+25 positions`, out)
	assert.Regexp(t, `b\s+none\s+3\s+stale`, out)
}

func TestPrintRecords_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, nil))
	assert.Equal(t, "no conversation settings\n", buf.String())
}

func TestCollectRecords(t *testing.T) {
	ctx := context.Background()
	store := settings.NewFileStore(t.TempDir())

	cache := settings.NewCache(store)
	cache.Set("a", settings.Record{
		HideLastN:           2,
		LastProcessedLength: 3,
		Cache:               retention.Cache{LastN: 2, Length: 3, Hidden: []bool{true, false, false}},
	})
	cache.Set("b", settings.Record{LastProcessedLength: 1})
	require.NoError(t, cache.Flush(ctx))

	t.Run("summary", func(t *testing.T) {
		views, err := collectRecords(ctx, store, nil, false, slog.Default())
		require.NoError(t, err)
		require.Len(t, views, 2)

		assert.Equal(t, recordView{
			Conversation:        "a",
			HideLastN:           2,
			LastProcessedLength: 3,
			CacheLength:         3,
			CacheValid:          true,
		}, views[0])
		assert.Equal(t, "b", views[1].Conversation)
		assert.False(t, views[1].CacheValid)
	})

	t.Run("raw", func(t *testing.T) {
		views, err := collectRecords(ctx, store, []string{"a"}, true, slog.Default())
		require.NoError(t, err)
		require.Len(t, views, 1)

		assert.Contains(t, views[0].Raw, `"hide_last_n": 2`)
		assert.Contains(t, views[0].Raw, `"hidden": [true, false, false]`)

		var buf bytes.Buffer
		require.NoError(t, printRecords(&buf, views))
		assert.Contains(t, buf.String(), views[0].Raw)
	})
}
