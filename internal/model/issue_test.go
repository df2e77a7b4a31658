package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validIssue() Issue {
	return Issue{
		ID:               "mapping_bad-mapping-logs",
		Severity:         SeverityCritical,
		Category:         CategoryMapping,
		Description:      "Mapping explosion detected",
		AffectedResource: "bad-mapping-logs",
		DetectedAt:       time.Now(),
		Metrics:          map[string]any{"field_count": 1500},
	}
}

func TestIssue_Validate(t *testing.T) {
	require.NoError(t, validIssue().Validate())

	bad := validIssue()
	bad.Severity = "urgent"
	assert.Error(t, bad.Validate())

	bad = validIssue()
	bad.Category = "network"
	assert.Error(t, bad.Validate())

	bad = validIssue()
	bad.ID = ""
	assert.Error(t, bad.Validate())
}

func TestIssue_CloneIsIndependent(t *testing.T) {
	orig := validIssue()
	orig.Metrics["nested"] = map[string]any{"a": 1}

	cp := orig.Clone()
	cp.Metrics["field_count"] = 1
	cp.Metrics["nested"].(map[string]any)["a"] = 2

	assert.Equal(t, 1500, orig.Metrics["field_count"])
	assert.Equal(t, 1, orig.Metrics["nested"].(map[string]any)["a"])
}

func TestIssue_IsCritical(t *testing.T) {
	i := validIssue()
	assert.True(t, i.IsCritical())
	i.Severity = SeverityMedium
	assert.False(t, i.IsCritical())
}
