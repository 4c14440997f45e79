package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/foundry/pkg/types"
)

// Client talks to a Foundry server over HTTP.
type Client struct {
	base string
	http *http.Client
}

// RejectionError carries the shim's verdict when the server answered
// 400.
type RejectionError struct {
	Payload json.RawMessage
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("request rejected: %s", string(e.Payload))
}

// InternalError carries the Error-UUID of a server-side fault.
type InternalError struct {
	ErrorUUID string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal server error (error id %s)", e.ErrorUUID)
}

// New creates a client for the given base address: http://HOST:PORT, or
// unix:/abs/path for a unix-socket server.
func New(base string) (*Client, error) {
	httpClient := &http.Client{Timeout: 10 * time.Minute}
	if strings.HasPrefix(base, "unix:") {
		socketPath := strings.TrimPrefix(base, "unix:")
		httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		}
		base = "http://unix"
	}
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("base address must be http(s)://HOST:PORT or unix:/abs/path, got %q", base)
	}
	return &Client{base: base, http: httpClient}, nil
}

// Exec submits an invocation request and returns the response.
func (c *Client) Exec(ctx context.Context, req *types.InvokeRequest) (*types.InvokeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/exec", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transport error: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var invokeResp types.InvokeResponse
		if err := json.NewDecoder(resp.Body).Decode(&invokeResp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return &invokeResp, nil
	case http.StatusBadRequest:
		payload, _ := io.ReadAll(resp.Body)
		return nil, &RejectionError{Payload: payload}
	case http.StatusInternalServerError:
		return nil, &InternalError{ErrorUUID: resp.Header.Get("Error-UUID")}
	}
	return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
}

// Ready probes the readiness endpoint.
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/ready", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("transport error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server not ready: status %d", resp.StatusCode)
	}
	return nil
}
