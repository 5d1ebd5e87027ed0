package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/fixflow/workflow"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := workflow.NewEngine(workflow.NewMemoryStore())
	mux := http.NewServeMux()
	NewWorkflowHandler(engine, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorInfo      `json:"error"`
}

func doJSON(t *testing.T, method, url, body string) (int, apiResponse) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var envelope apiResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&envelope))
	return res.StatusCode, envelope
}

func startWorkflow(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	status, envelope := doJSON(t, http.MethodPost, srv.URL+"/v1/workflows",
		`{"request":"undefined: foo.Bar","request_type":"build_error","package_path":"/repo/pkg"}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, envelope.Success)

	var resp workflow.Response
	require.NoError(t, json.Unmarshal(envelope.Data, &resp))
	require.NotEmpty(t, resp.WorkflowID)
	return resp.WorkflowID
}

func TestStartWorkflow(t *testing.T) {
	srv := newTestServer(t)

	status, envelope := doJSON(t, http.MethodPost, srv.URL+"/v1/workflows",
		`{"request":"undefined: foo.Bar","package_path":"/repo/pkg"}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, envelope.Success)

	var resp workflow.Response
	require.NoError(t, json.Unmarshal(envelope.Data, &resp))
	assert.Equal(t, workflow.PhaseClassify, resp.Phase)
	assert.NotEmpty(t, resp.NextInstruction)
	assert.NotEmpty(t, resp.ExpectedResultShape)
}

func TestStartRejectsMissingFields(t *testing.T) {
	srv := newTestServer(t)

	status, envelope := doJSON(t, http.MethodPost, srv.URL+"/v1/workflows",
		`{"package_path":"/repo/pkg"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "CONTRACT_VIOLATION", envelope.Error.Code)
}

func TestStartRejectsUnknownFields(t *testing.T) {
	srv := newTestServer(t)

	status, envelope := doJSON(t, http.MethodPost, srv.URL+"/v1/workflows",
		`{"request":"x","package_path":"/p","surprise":true}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INVALID_REQUEST", envelope.Error.Code)
}

func TestContinueToCompletion(t *testing.T) {
	srv := newTestServer(t)
	id := startWorkflow(t, srv)
	continueURL := fmt.Sprintf("%s/v1/workflows/%s/continue", srv.URL, id)

	steps := []struct {
		result    string
		wantPhase workflow.Phase
	}{
		{`{"type":"classification","applicable":false}`, workflow.PhaseFixCode},
		{`{"type":"fix_applied","summary":"patched"}`, workflow.PhaseVerify},
		{`{"type":"verification","passed":true,"details":"build clean"}`, workflow.PhaseSucceeded},
	}

	var resp workflow.Response
	for _, s := range steps {
		status, envelope := doJSON(t, http.MethodPost, continueURL,
			fmt.Sprintf(`{"result":%s}`, s.result))
		require.Equal(t, http.StatusOK, status)
		require.True(t, envelope.Success)
		require.NoError(t, json.Unmarshal(envelope.Data, &resp))
		assert.Equal(t, s.wantPhase, resp.Phase)
	}

	assert.True(t, resp.IsComplete)
	assert.Equal(t, "success", resp.Status)

	// The completed workflow rejects further steps.
	status, envelope := doJSON(t, http.MethodPost, continueURL,
		`{"result":{"type":"classification","applicable":true}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "CONTRACT_VIOLATION", envelope.Error.Code)
}

func TestContinueUnknownWorkflow(t *testing.T) {
	srv := newTestServer(t)

	status, envelope := doJSON(t, http.MethodPost, srv.URL+"/v1/workflows/does-not-exist/continue",
		`{"result":{"type":"classification","applicable":true}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "CONTRACT_VIOLATION", envelope.Error.Code)
}

func TestContinueMalformedBody(t *testing.T) {
	srv := newTestServer(t)
	id := startWorkflow(t, srv)

	status, envelope := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/v1/workflows/%s/continue", srv.URL, id), `{not json`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INVALID_REQUEST", envelope.Error.Code)
}

func TestGetWorkflowState(t *testing.T) {
	srv := newTestServer(t)
	id := startWorkflow(t, srv)

	status, envelope := doJSON(t, http.MethodGet, srv.URL+"/v1/workflows/"+id, "")
	require.Equal(t, http.StatusOK, status)
	require.True(t, envelope.Success)

	var state workflow.State
	require.NoError(t, json.Unmarshal(envelope.Data, &state))
	assert.Equal(t, id, state.ID)
	assert.Equal(t, workflow.PhaseClassify, state.Phase)
	assert.Equal(t, "/repo/pkg", state.Entry.PackagePath)

	status, envelope = doJSON(t, http.MethodGet, srv.URL+"/v1/workflows/nope", "")
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, envelope.Error)
}
