package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// flexpoolResponse is the envelope of every Flexpool v2 response.
type flexpoolResponse struct {
	Error  json.RawMessage `json:"error"`
	Result json.RawMessage `json:"result"`
}

// flexpoolWorker holds the fields read from one worker entry.
type flexpoolWorker struct {
	Name     string  `json:"name"`
	LastSeen float64 `json:"lastSeen"`
	IsOnline bool    `json:"isOnline"`
}

func (c *HTTPClient) queryFlexpool(ctx context.Context, q Query) (*WorkerStatus, error) {
	params := url.Values{}
	params.Set("worker", q.Worker)
	params.Set("address", q.Wallet)
	params.Set("coin", q.Coin)
	endpoint := c.baseURLs[KindFlexpool] + "/v2/miner/workers?" + params.Encode()

	var resp flexpoolResponse
	if err := c.getJSON(ctx, KindFlexpool, endpoint, &resp); err != nil {
		return nil, err
	}

	if msg := bytes.TrimSpace(resp.Error); len(msg) > 0 && !bytes.Equal(msg, []byte("null")) {
		return nil, &RequestError{Kind: KindFlexpool, Endpoint: endpoint, Message: string(msg)}
	}

	return selectWorker(resp.Result, q.Worker)
}

// selectWorker picks the entry named worker out of result, which may hold a
// single worker object or an array of them. Flexpool returns every worker of
// the wallet even when one is requested, so siblings are skipped. A name
// that appears twice is an error.
func selectWorker(result json.RawMessage, worker string) (*WorkerStatus, error) {
	trimmed := bytes.TrimSpace(result)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrWorkerNotFound, worker)
	}

	var entries []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("%w: decode worker list: %v", ErrMalformedWorkerRecord, err)
		}
	case '{':
		entries = []json.RawMessage{trimmed}
	default:
		return nil, fmt.Errorf("%w: %q", ErrWorkerNotFound, worker)
	}

	var match *WorkerStatus
	for i, entry := range entries {
		name, err := workerName(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if name != worker {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: %q at entry %d", ErrAmbiguousWorker, worker, i)
		}

		var w flexpoolWorker
		if err := json.Unmarshal(entry, &w); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformedWorkerRecord, i, err)
		}
		match = &WorkerStatus{
			Name:     w.Name,
			LastSeen: int64(w.LastSeen),
			IsOnline: w.IsOnline,
		}
	}

	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrWorkerNotFound, worker)
	}
	return match, nil
}

// workerName returns the name field of a worker entry.
func workerName(entry json.RawMessage) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return "", fmt.Errorf("%w: entry is not an object", ErrMalformedWorkerRecord)
	}

	raw, ok := fields["name"]
	if !ok {
		return "", ErrMalformedWorkerRecord
	}

	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", fmt.Errorf("%w: name is not a string", ErrMalformedWorkerRecord)
	}
	return name, nil
}
