package input

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staketools/offline-election-go/core/election"
)

const testSnapshotJSON = `{
	"candidates": [
		{"account_id": "cand-a", "self_stake": "100"},
		{"account_id": "cand-b", "self_stake": "340282366920938463463374607431768211455"}
	],
	"nominators": [
		{"account_id": "nom-1", "stake": "500", "targets": ["cand-a", "cand-b"]}
	]
}`

func TestParseSnapshot(t *testing.T) {
	assert := assert.New(t)

	data, err := ParseSnapshot([]byte(testSnapshotJSON))
	require.NoError(t, err)

	assert.Len(data.Candidates, 2)
	assert.Len(data.Nominators, 1)
	assert.Equal(election.AccountID("cand-a"), data.Candidates[0].AccountID)
	// Max u128 survives the decimal-string codec.
	assert.Equal("340282366920938463463374607431768211455", data.Candidates[1].SelfStake.String())
}

func TestParseSnapshotRejectsBadDocuments(t *testing.T) {
	assert := assert.New(t)

	cases := map[string]string{
		"not json":        `{candidates}`,
		"no candidates":   `{"candidates": [], "nominators": []}`,
		"missing stake":   `{"candidates": [{"account_id": "cand-a"}]}`,
		"negative stake":  `{"candidates": [{"account_id": "cand-a", "self_stake": "-5"}]}`,
		"overflow stake":  `{"candidates": [{"account_id": "cand-a", "self_stake": "340282366920938463463374607431768211456"}]}`,
		"no targets":      `{"candidates": [{"account_id": "cand-a", "self_stake": "1"}], "nominators": [{"account_id": "nom-1", "stake": "5", "targets": []}]}`,
		"dangling target": `{"candidates": [{"account_id": "cand-a", "self_stake": "1"}], "nominators": [{"account_id": "nom-1", "stake": "5", "targets": ["cand-ghost"]}]}`,
	}
	for name, body := range cases {
		_, err := ParseSnapshot([]byte(body))
		assert.Error(err, "case %q", name)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	data, err := ParseSnapshot([]byte(testSnapshotJSON))
	require.NoError(t, err)

	doc := SnapshotDocument(data)
	back, err := doc.ToElectionData()
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestSyntheticBuilder(t *testing.T) {
	data, err := NewSyntheticBuilder().
		AddCandidate("cand-a", 1000).
		AddNominator("nom-1", 500, []string{"cand-a"}).
		Build()
	require.NoError(t, err)
	assert.Len(t, data.Candidates, 1)
	assert.Len(t, data.Nominators, 1)

	// Builder output goes through full validation.
	_, err = NewSyntheticBuilder().
		AddCandidate("cand-a", 1000).
		AddNominator("nom-1", 500, []string{"cand-ghost"}).
		Build()
	assert.Error(t, err)
}

func TestGenerateSnapshotDeterministic(t *testing.T) {
	first, err := GenerateSnapshot(42, 20, 100)
	require.NoError(t, err)
	second, err := GenerateSnapshot(42, 20, 100)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	different, err := GenerateSnapshot(43, 20, 100)
	require.NoError(t, err)
	assert.NotEqual(t, first, different)

	assert.Len(t, first.Candidates, 20)
	assert.Len(t, first.Nominators, 100)
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	store, err := OpenSnapshotStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	data, err := ParseSnapshot([]byte(testSnapshotJSON))
	require.NoError(t, err)

	block := uint64(12345)
	require.NoError(t, store.Save("polkadot-12345", &block, data))

	loaded, err := store.Load("polkadot-12345")
	require.NoError(t, err)
	assert.Equal(t, data, loaded)

	infos, err := store.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "polkadot-12345", infos[0].Name)
	require.NotNil(t, infos[0].Block)
	assert.Equal(t, block, *infos[0].Block)

	_, err = store.Load("missing")
	assert.Error(t, err)
}

func TestRPCLoader(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		// First attempt fails to exercise the retry path.
		if attempts == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc": "2.0", "id": 1, "result": ` + testSnapshotJSON + `}`))
	}))
	defer server.Close()

	loader := NewRPCLoader(server.URL)
	block := uint64(777)
	data, err := loader.LoadAtBlock(context.Background(), &block)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Len(t, data.Candidates, 2)
}

func TestRPCLoaderGivesUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc": "2.0", "id": 1, "error": {"code": -32601, "message": "method not found"}}`))
	}))
	defer server.Close()

	loader := NewRPCLoader(server.URL)
	_, err := loader.LoadAtBlock(context.Background(), nil)
	assert.ErrorContains(t, err, "method not found")
}
