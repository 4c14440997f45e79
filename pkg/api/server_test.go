//go:build linux

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/foundry/pkg/handler"
	"github.com/cuemby/foundry/pkg/isolation"
	"github.com/cuemby/foundry/pkg/log"
	"github.com/cuemby/foundry/pkg/shim"
	"github.com/cuemby/foundry/pkg/types"
)

func TestMain(m *testing.M) {
	_ = log.Setup(log.Options{Level: "error", Writer: io.Discard})
	os.Exit(m.Run())
}

type nopBackend struct{}

type nopSandbox struct{}

func (nopSandbox) ResourceUsage() (isolation.ResourceUsage, error) {
	cpu := uint64(1)
	mem := uint64(1)
	return isolation.ResourceUsage{TimeNS: &cpu, MemoryBytes: &mem}, nil
}
func (nopSandbox) DebugInfo() map[string]string { return nil }
func (nopSandbox) Release() error               { return nil }

type nopChild struct{ opts isolation.ChildProcessOptions }

func (c nopChild) Wait(_ context.Context) (int64, error) {
	for _, f := range []*os.File{c.opts.Stdin, c.opts.Stdout, c.opts.Stderr} {
		if f != nil {
			_ = f.Close()
		}
	}
	for _, f := range c.opts.ExtraFiles {
		_ = f.Close()
	}
	return 0, nil
}

func (nopBackend) NewSandbox(_ isolation.SandboxOptions) (isolation.Sandbox, error) {
	return nopSandbox{}, nil
}

func (nopBackend) Spawn(opts isolation.ChildProcessOptions, _ isolation.Sandbox) (isolation.Child, error) {
	return nopChild{opts: opts}, nil
}

func newTestServer(t *testing.T, shimBase string) *httptest.Server {
	t.Helper()
	workDir := t.TempDir()
	h := handler.New(handler.Config{WorkDir: workDir}, nopBackend{}, nil)
	shimClient, err := shim.NewClient(shimBase)
	require.NoError(t, err)
	s := NewServer(h, shimClient, workDir)
	srv := httptest.NewServer(s.mux)
	t.Cleanup(srv.Close)
	return srv
}

func simpleRequestBody(t *testing.T) []byte {
	t.Helper()
	req := types.InvokeRequest{
		Steps: []types.Step{
			{Stage: 0, Action: types.Action{CreateFile: &types.CreateFileAction{
				ID: "out", Readable: true, Writeable: true,
			}}},
		},
		Inputs:  []types.Input{},
		Outputs: []types.OutputRequest{},
	}
	req.ID = uuid.New()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return data
}

// TestReadyEndpoint tests GET /ready
func TestReadyEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "OK", string(body))
}

// TestMetricsEndpoint tests GET /metrics
func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "foundry_")
}

// TestExecHappyPath tests POST /exec with a minimal request
func TestExecHappyPath(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Post(srv.URL+"/exec", "application/json", bytes.NewReader(simpleRequestBody(t)))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var invokeResp types.InvokeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&invokeResp))
	require.Len(t, invokeResp.Actions, 1)
	assert.Equal(t, types.ActionKindCreateFile, invokeResp.Actions[0].Kind)
	assert.Empty(t, invokeResp.Outputs)
}

// TestExecMalformedBody tests the 400 on undecodable requests
func TestExecMalformedBody(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Post(srv.URL+"/exec", "application/json", bytes.NewReader([]byte(`{"unknown":1}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestExecMethodNotAllowed tests the method guard
func TestExecMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/exec")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// TestExecInternalError tests the 500 + Error-UUID contract
func TestExecInternalError(t *testing.T) {
	srv := newTestServer(t, "")

	req := types.InvokeRequest{
		Steps:  []types.Step{},
		Inputs: []types.Input{},
		Outputs: []types.OutputRequest{
			{Name: "ghost", Target: types.OutputRequestTarget{File: fileIDPtr("missing")}},
		},
	}
	req.ID = uuid.New()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/exec", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Error-UUID"))
	data, _ := io.ReadAll(resp.Body)
	assert.Empty(t, data)
}

// TestExecShimRejection tests that a shim rejection surfaces as 400
// with the shim's payload
func TestExecShimRejection(t *testing.T) {
	shimSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"reason":"image not found"}}`))
	}))
	defer shimSrv.Close()

	srv := newTestServer(t, shimSrv.URL)

	resp, err := http.Post(srv.URL+"/exec", "application/json", bytes.NewReader(simpleRequestBody(t)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"reason":"image not found"}`, string(body))
}

// TestExecShimTransform tests that a shim-accepted transformation
// replaces the request
func TestExecShimTransform(t *testing.T) {
	shimSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_, _ = fmt.Fprintf(w, `{"result":%s}`, raw)
	}))
	defer shimSrv.Close()

	srv := newTestServer(t, shimSrv.URL)

	resp, err := http.Post(srv.URL+"/exec", "application/json", bytes.NewReader(simpleRequestBody(t)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func fileIDPtr(id types.FileID) *types.FileID { return &id }
