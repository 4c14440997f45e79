package shim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/foundry/pkg/metrics"
)

// Client preprocesses requests using the configured shim, if any.
type Client struct {
	// nil when no shim is configured
	http *httpShim
}

type httpShim struct {
	client *http.Client
	base   string
}

// Response is the shim's verdict on one request.
type Response struct {
	// Accepted holds the transformed request when the shim accepted it.
	Accepted json.RawMessage
	// Rejection holds the error value to forward to the caller when the
	// shim rejected the request.
	Rejection json.RawMessage
}

// NewClient creates a shim client. An empty base address disables
// preprocessing: Call then accepts every request unchanged.
func NewClient(base string) (*Client, error) {
	if base == "" {
		return &Client{}, nil
	}
	if strings.HasSuffix(base, "/") {
		return nil, fmt.Errorf("shim address must not contain trailing slash")
	}
	return &Client{http: &httpShim{
		client: &http.Client{Timeout: 5 * time.Minute},
		base:   base,
	}}, nil
}

// Call sends the raw request body to the shim. A 200 with a result
// value accepts (and replaces) the request; a 400 with an error value
// rejects it. Anything else is a transport error.
func (c *Client) Call(ctx context.Context, body []byte) (Response, error) {
	if c.http == nil {
		return Response{Accepted: body}, nil
	}

	url := c.http.base + "/on-request"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build shim request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.client.Do(req)
	if err != nil {
		metrics.ShimRequestsTotal.WithLabelValues("transport_error").Inc()
		return Response{}, fmt.Errorf("transport error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		metrics.ShimRequestsTotal.WithLabelValues("bad_status").Inc()
		return Response{}, fmt.Errorf("unexpected shim status: %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read shim response body: %w", err)
	}
	var parsed struct {
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("failed to parse shim response body: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		if parsed.Result == nil {
			return Response{}, fmt.Errorf("'result' key missing in shim response")
		}
		metrics.ShimRequestsTotal.WithLabelValues("accepted").Inc()
		return Response{Accepted: parsed.Result}, nil
	}
	if parsed.Error == nil {
		return Response{}, fmt.Errorf("'error' key missing in shim response")
	}
	metrics.ShimRequestsTotal.WithLabelValues("rejected").Inc()
	return Response{Rejection: parsed.Error}, nil
}
