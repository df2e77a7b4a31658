package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHistoryRecord_EpochMillis(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	r := NewHistoryRecord(ts, "mapping_bad-logs", ActionProposalGenerated, map[string]any{"k": "v"})

	assert.Equal(t, ts.UnixMilli(), r.Timestamp)
	assert.True(t, r.Time().Equal(ts))
	assert.Equal(t, ActionProposalGenerated, r.Action)
}

func TestHistoryRecord_JSONShape(t *testing.T) {
	r := NewHistoryRecord(time.UnixMilli(1700000000000), "id-1", ActionFixed, map[string]any{"status": "success"})
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, float64(1700000000000), got["timestamp"])
	assert.Equal(t, "id-1", got["issue_id"])
	assert.Equal(t, "fixed", got["action"])
	assert.Contains(t, got, "details")
}
