package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/altai-labs/magellan/internal/providers"
	"github.com/altai-labs/magellan/internal/workflows"
)

type fakeEngine struct {
	result *workflows.Result
	err    error
	got    workflows.Request
}

func (f *fakeEngine) Analyze(ctx context.Context, req workflows.Request) (*workflows.Result, error) {
	f.got = req
	return f.result, f.err
}

func newAPIServer(t *testing.T, engine Analyzer) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewAnalysesHandler(engine, zaptest.NewLogger(t)).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzeSuccess(t *testing.T) {
	engine := &fakeEngine{result: &workflows.Result{
		ExecutionID: "exec-1",
		Status:      workflows.StateCompleted,
		Materials:   []string{"cocoa beans", "sugar", "palm oil"},
	}}
	srv := newAPIServer(t, engine)

	body := `{"industry_context":"chocolate manufacturing","destination_country":"Germany","priority":"eco-friendly"}`
	resp, err := http.Post(srv.URL+"/api/v1/analyses", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "chocolate manufacturing", engine.got.IndustryContext)
	assert.Equal(t, "eco-friendly", engine.got.Priority)

	var out workflows.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "exec-1", out.ExecutionID)
	assert.Equal(t, workflows.StateCompleted, out.Status)
}

func TestAnalyzeValidationErrorIs400(t *testing.T) {
	engine := &fakeEngine{err: &providers.ValidationError{Field: "priority", Reason: "unknown priority"}}
	srv := newAPIServer(t, engine)

	resp, err := http.Post(srv.URL+"/api/v1/analyses", "application/json",
		strings.NewReader(`{"priority":"speed"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.Error, "priority")
}

func TestAnalyzeMalformedBodyIs400(t *testing.T) {
	srv := newAPIServer(t, &fakeEngine{})
	resp, err := http.Post(srv.URL+"/api/v1/analyses", "application/json",
		strings.NewReader(`{"industry_context":`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeFatalFailureReturnsPartialResult(t *testing.T) {
	failed := &workflows.Result{
		ExecutionID: "exec-2",
		Status:      workflows.StateFailed,
		Error:       "Comprehensive workflow failed: provider claude: generate failed: boom",
	}
	engine := &fakeEngine{
		result: failed,
		err:    &workflows.WorkflowExecutionError{ExecutionID: "exec-2", Phase: workflows.StateMaterialID},
	}
	srv := newAPIServer(t, engine)

	resp, err := http.Post(srv.URL+"/api/v1/analyses", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var out workflows.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, workflows.StateFailed, out.Status)
	assert.Contains(t, out.Error, "workflow failed")
}

func TestAnalyzeRejectsGet(t *testing.T) {
	srv := newAPIServer(t, &fakeEngine{})
	resp, err := http.Get(srv.URL + "/api/v1/analyses")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}

func TestEventsPath(t *testing.T) {
	tests := []struct {
		path string
		id   string
		ok   bool
	}{
		{"/api/v1/analyses/abc-123/events", "abc-123", true},
		{"/api/v1/analyses//events", "", false},
		{"/api/v1/analyses/abc-123", "", false},
		{"/api/v1/analyses/a/b/events", "", false},
		{"/api/v1/other/abc/events", "", false},
	}
	for _, tc := range tests {
		id, ok := eventsPath(tc.path)
		assert.Equal(t, tc.ok, ok, tc.path)
		assert.Equal(t, tc.id, id, tc.path)
	}
}
