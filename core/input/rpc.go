// Snapshot fetching over JSON-RPC.
//
// Retries, backoff and timeouts live here, not in the election core: a
// failed fetch never reaches the engine.

package input

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/staketools/offline-election-go/core"
	"github.com/staketools/offline-election-go/core/election"
)

const (
	rpcMaxAttempts    = 3
	rpcInitialBackoff = 500 * time.Millisecond
	rpcRequestTimeout = 15 * time.Second
)

type RPCLoader struct {
	url    string
	client *http.Client
	log    *log.Logger
}

func NewRPCLoader(url string) *RPCLoader {
	return &RPCLoader{
		url:    url,
		client: &http.Client{Timeout: rpcRequestTimeout},
		log:    core.NewLogger("input", "rpc"),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// LoadAtBlock fetches the staking snapshot at the given block (nil for the
// node's best block). Transient failures are retried with exponential
// backoff up to rpcMaxAttempts.
func (l *RPCLoader) LoadAtBlock(ctx context.Context, block *uint64) (*election.ElectionData, error) {
	params := []interface{}{}
	if block != nil {
		params = append(params, *block)
	}

	var lastErr error
	backoff := rpcInitialBackoff
	for attempt := 1; attempt <= rpcMaxAttempts; attempt++ {
		raw, err := l.call(ctx, "staking_electionSnapshot", params)
		if err == nil {
			var doc SnapshotDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("rpc error: decoding snapshot from %s: %w", l.url, err)
			}
			return doc.ToElectionData()
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.log.Printf("attempt %d/%d failed: %s\n", attempt, rpcMaxAttempts, err)
		if attempt < rpcMaxAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("rpc error: %w (URL: %s)", lastErr, l.url)
}

func (l *RPCLoader) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("malformed rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
