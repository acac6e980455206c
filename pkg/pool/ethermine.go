package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// ethermineResponse is the envelope of the Ethermine currentStats endpoint.
type ethermineResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

type ethermineStats struct {
	LastSeen        float64 `json:"lastSeen"`
	CurrentHashrate float64 `json:"currentHashrate"`
}

// queryEthermine reads the per-worker currentStats endpoint. The endpoint is
// already scoped to one worker, so the record takes the queried name.
func (c *HTTPClient) queryEthermine(ctx context.Context, q Query) (*WorkerStatus, error) {
	endpoint := fmt.Sprintf("%s/miner/%s/worker/%s/currentStats",
		c.baseURLs[KindEthermine], url.PathEscape(q.Wallet), url.PathEscape(q.Worker))

	var resp ethermineResponse
	if err := c.getJSON(ctx, KindEthermine, endpoint, &resp); err != nil {
		return nil, err
	}

	if resp.Status != "OK" {
		msg := resp.Error
		if msg == "" {
			msg = "status " + resp.Status
		}
		return nil, &RequestError{Kind: KindEthermine, Endpoint: endpoint, Message: msg}
	}

	data := bytes.TrimSpace(resp.Data)
	if len(data) == 0 || data[0] != '{' {
		// Ethermine answers "NO DATA" for workers it has never seen.
		return nil, fmt.Errorf("%w: %q", ErrWorkerNotFound, q.Worker)
	}

	var stats ethermineStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWorkerRecord, err)
	}

	return &WorkerStatus{
		Name:     q.Worker,
		LastSeen: int64(stats.LastSeen),
		IsOnline: stats.CurrentHashrate > 0,
	}, nil
}
