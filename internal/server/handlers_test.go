package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tactline/internal/compiler"
	"github.com/roach88/tactline/internal/engine"
	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/session"
	"github.com/roach88/tactline/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, ids ...string) (*gin.Engine, string) {
	t.Helper()
	dir := testutil.WriteKBDir(t, testutil.IntervalEventCUE)
	reg := session.NewRegistry(session.WithIDGenerator(session.NewFixedGenerator(ids...)))
	return NewRouter(NewHandlers(reg, dir)), dir
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, w.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	r, _ := newTestRouter(t, "s-1")

	w := do(t, r, http.MethodPost, "/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created CreateSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "s-1", created.ID)
	assert.Len(t, created.KBHash, 64)

	w = do(t, r, http.MethodGet, "/v1/sessions", nil)
	assert.JSONEq(t, `{"sessions":["s-1"]}`, w.Body.String())

	inputs := []UpdateWMRequest{
		{Items: testutil.Items("sensor.attr2", 4, "sensor.attr1", 2)},
		{Items: testutil.Items("sensor.attr2", 1)},
		{Items: testutil.Items("sensor.attr1", 6)},
	}
	var last ir.TactResult
	for i, in := range inputs {
		w = do(t, r, http.MethodPut, "/v1/sessions/s-1/wm", in)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

		w = do(t, r, http.MethodPost, "/v1/sessions/s-1/tacts", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &last))
		assert.Equal(t, i, last.Tact)
	}
	assert.Equal(t, false, last.Signified["R1.condition"])
	assert.Equal(t, "R1", last.SignifiedMeta["R1.condition"].Rule)

	w = do(t, r, http.MethodGet, "/v1/sessions/s-1/timeline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tacts":[
		{"tact":0,"opened_intervals":[],"events":[]},
		{"tact":1,"opened_intervals":[{"interval":"I","open_tact":1,"close_tact":null}],"events":[]},
		{"tact":2,"opened_intervals":[],"events":[{"event":"E","occurrence_tact":2}]}
	]}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/v1/sessions/s-1/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"s-1","tact":-1}`, w.Body.String())

	w = do(t, r, http.MethodDelete, "/v1/sessions/s-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodPost, "/v1/sessions/s-1/tacts", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_NOT_FOUND")
}

func TestUpdateWMRejections(t *testing.T) {
	r, _ := newTestRouter(t, "s")
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/v1/sessions", nil).Code)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"items": [`, "INVALID_REQUEST"},
		{"missing ref", `{"items": [{"value": 1}]}`, "INVALID_REQUEST"},
		{"type mismatch", `{"items": [{"ref": "sensor.attr1", "value": "six"}]}`, "INVALID_VALUE"},
		{"object target", `{"items": [{"ref": "sensor", "value": 1}]}`, "INVALID_VALUE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/v1/sessions/s/wm", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestCreateSessionErrors(t *testing.T) {
	reg := session.NewRegistry(session.WithIDGenerator(session.NewFixedGenerator("x")))
	r := NewRouter(NewHandlers(reg, "", WithKBRoot(filepath.Dir(t.TempDir()))))

	w := do(t, r, http.MethodPost, "/v1/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/v1/sessions", CreateSessionRequest{KBDir: t.TempDir() + "/missing"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "KB_NOT_FOUND")

	bad := testutil.WriteKBDir(t, `event: E: occurs: {allen: "b", left: {event: "E"}, right: {event: "E"}}`)
	w = do(t, r, http.MethodPost, "/v1/sessions", CreateSessionRequest{KBDir: bad})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_KB")
}

func TestCreateSessionKBDirConfinedToRoot(t *testing.T) {
	root := testutil.WriteKBDir(t, testutil.IntervalEventCUE)
	outside := testutil.WriteKBDir(t, testutil.IntervalEventCUE)

	tests := []struct {
		name     string
		kbDir    string
		wantCode int
	}{
		{"root itself", root, http.StatusCreated},
		{"relative to root", ".", http.StatusCreated},
		{"trailing slash", root + "/", http.StatusCreated},
		{"parent escape", "..", http.StatusForbidden},
		{"sibling via parent", "../" + filepath.Base(outside), http.StatusForbidden},
		{"absolute outside", outside, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := session.NewRegistry(session.WithIDGenerator(session.NewFixedGenerator("s")))
			r := NewRouter(NewHandlers(reg, "", WithKBRoot(root)))

			w := do(t, r, http.MethodPost, "/v1/sessions", CreateSessionRequest{KBDir: tt.kbDir})
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode == http.StatusForbidden {
				assert.Contains(t, w.Body.String(), "KB_DIR_FORBIDDEN")
			}
		})
	}
}

func TestCreateSessionKBDirRequiresRoot(t *testing.T) {
	r, dir := newTestRouter(t, "s")

	w := do(t, r, http.MethodPost, "/v1/sessions", CreateSessionRequest{KBDir: dir})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "KB_DIR_FORBIDDEN")

	w = do(t, r, http.MethodPost, "/v1/sessions", nil)
	assert.Equal(t, http.StatusCreated, w.Code, "default knowledge base stays available")
}

func TestProcessTactResolutionError(t *testing.T) {
	dir := testutil.WriteKBDir(t, `
world: m: {
	a: {type: "number", default: {ref: "m.b"}}
	b: {type: "number", default: {ref: "m.a"}}
}
event: E: occurs: {op: "gt", left: {ref: "m.a"}, right: 0}
`)
	reg := session.NewRegistry(session.WithIDGenerator(session.NewFixedGenerator("s")))
	r := NewRouter(NewHandlers(reg, dir))
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/v1/sessions", nil).Code)

	w := do(t, r, http.MethodPost, "/v1/sessions/s/tacts", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(engine.ErrCodeRecursiveReference), resp.Code)

	tact, err := reg.CurrentTact("s")
	require.NoError(t, err)
	assert.Equal(t, engine.NotStarted, tact)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, "m")
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/v1/sessions", nil).Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/v1/sessions/m/tacts", nil).Code)

	w := do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "tactline_solver_tacts_total")
	assert.Contains(t, body, "tactline_http_request_duration_seconds")
	assert.Contains(t, body, "tactline_session_active")
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("x: %w", session.ErrNotFound), http.StatusNotFound, "SESSION_NOT_FOUND"},
		{"missing dir", fmt.Errorf("kb: %w", os.ErrNotExist), http.StatusBadRequest, "KB_NOT_FOUND"},
		{"invalid kb", &session.KBError{Source: "d"}, http.StatusUnprocessableEntity, "INVALID_KB"},
		{"compile", &compiler.CompileError{Field: "f", Message: "m"}, http.StatusUnprocessableEntity, "KB_COMPILE"},
		{"input", &engine.RuntimeError{Code: engine.ErrCodeInvalidValue}, http.StatusBadRequest, "INVALID_VALUE"},
		{"config", &engine.RuntimeError{Code: engine.ErrCodeIntervalState}, http.StatusUnprocessableEntity, "INTERVAL_STATE"},
		{"resolution", &engine.RuntimeError{Code: engine.ErrCodeOperand}, http.StatusUnprocessableEntity, "OPERAND"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
