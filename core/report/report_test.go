package report

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staketools/offline-election-go/core/election"
	"github.com/staketools/offline-election-go/core/input"
)

func runTestElection(t *testing.T) *election.ElectionResult {
	t.Helper()
	data, err := input.GenerateSnapshot(7, 10, 50)
	require.NoError(t, err)

	cfg := &election.ElectionConfiguration{
		ActiveSetSize: 4,
		Algorithm:     election.SequentialPhragmen,
	}
	result, err := election.NewEngine().Run(context.Background(), data, cfg, true)
	require.NoError(t, err)
	return result
}

func TestFingerprintStableAcrossRuns(t *testing.T) {
	first := runTestElection(t)
	second := runTestElection(t)

	// Metadata differs per run (run id, timestamp); the fingerprint must
	// not, because it covers only the computed outcome.
	assert.NotEqual(t, first.Metadata.RunID, second.Metadata.RunID)

	fp1, err := Fingerprint(first)
	require.NoError(t, err)
	fp2, err := Fingerprint(second)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64)
}

func TestFingerprintChangesWithOutcome(t *testing.T) {
	result := runTestElection(t)
	fp1, err := Fingerprint(result)
	require.NoError(t, err)

	result.Undersized = !result.Undersized
	fp2, err := Fingerprint(result)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2)
}

func TestWriteReport(t *testing.T) {
	result := runTestElection(t)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, result))

	out := buf.String()
	assert.Contains(t, out, "Election result")
	assert.Contains(t, out, "sequential-phragmen")
	assert.Contains(t, out, "Diagnostics")
	assert.Contains(t, out, result.Metadata.RunID)
}

func TestResultDocument(t *testing.T) {
	result := runTestElection(t)
	doc := ResultDocument(result)

	assert.Len(t, doc.Validators, result.ValidatorCount())
	assert.Equal(t, result.TotalStake.String(), doc.TotalStake)
	assert.Equal(t, "sequential-phragmen", doc.Algorithm)
	assert.NotEmpty(t, doc.Fingerprint)
	require.NotNil(t, doc.Diagnostics)
	assert.Len(t, doc.Diagnostics.Candidates, 10)
	assert.Len(t, doc.Diagnostics.Nominators, 50)
}
