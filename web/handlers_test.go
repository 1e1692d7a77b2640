// File: web/handlers_test.go
package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crazy8156/okx/utilities"
)

type stubController struct {
	startMsg     string
	startErr     error
	startSymbols []string
	startMode    string
	stopMsg      string
	status       StatusSnapshot
	news         NewsReport
}

func (s *stubController) Start(symbols []string, mode string) (string, error) {
	s.startSymbols = symbols
	s.startMode = mode
	return s.startMsg, s.startErr
}

func (s *stubController) Stop() string { return s.stopMsg }

func (s *stubController) Status() StatusSnapshot { return s.status }

func (s *stubController) News() NewsReport { return s.news }

func newTestServer(stub *stubController) *Server {
	cfg := &utilities.WebConfig{ListenAddr: ":0"}
	return NewServer(cfg, stub, utilities.NewLogger(utilities.Error))
}

func TestHandleStatus(t *testing.T) {
	stub := &stubController{status: StatusSnapshot{
		Running: true,
		Mode:    "sandbox",
		Prices:  map[string]float64{"BTC/USDT": 65000},
	}}
	server := newTestServer(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	server.handleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap StatusSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Running)
	assert.Equal(t, "sandbox", snap.Mode)
	assert.InDelta(t, 65000.0, snap.Prices["BTC/USDT"], 1e-9)
}

func TestHandleStatus_RejectsPost(t *testing.T) {
	server := newTestServer(&stubController{})
	req := httptest.NewRequest(http.MethodPost, "/api/status", nil)
	rec := httptest.NewRecorder()
	server.handleStatus(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleStart(t *testing.T) {
	stub := &stubController{startMsg: "bot started for 2 symbols"}
	server := newTestServer(stub)

	body := bytes.NewBufferString(`{"mode":"sandbox","symbols":["BTC/USDT","ETH/USDT"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/start", body)
	rec := httptest.NewRecorder()
	server.handleStart(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, stub.startSymbols)
	assert.Equal(t, "sandbox", stub.startMode)

	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bot started for 2 symbols", resp.Message)
}

func TestHandleStart_AlreadyRunningIsOK(t *testing.T) {
	// The controller reports already-running as a message, not an error; the
	// HTTP layer must pass that through with a 200.
	stub := &stubController{startMsg: "bot is already running"}
	server := newTestServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/start", bytes.NewBufferString(`{"symbols":[]}`))
	rec := httptest.NewRecorder()
	server.handleStart(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bot is already running", resp.Message)
}

func TestHandleStart_EmptyBodyUsesDefaults(t *testing.T) {
	stub := &stubController{startMsg: "bot started for 1 symbols"}
	server := newTestServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/start", nil)
	rec := httptest.NewRecorder()
	server.handleStart(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, stub.startSymbols)
}

func TestHandleStart_InvalidJSON(t *testing.T) {
	server := newTestServer(&stubController{})
	req := httptest.NewRequest(http.MethodPost, "/api/start", bytes.NewBufferString(`{"symbols": [`))
	rec := httptest.NewRecorder()
	server.handleStart(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStart_ControllerError(t *testing.T) {
	stub := &stubController{startErr: errors.New("balance fetch failed")}
	server := newTestServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/start", bytes.NewBufferString(`{"symbols":["BTC/USDT"]}`))
	rec := httptest.NewRecorder()
	server.handleStart(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "balance fetch failed")
}

func TestHandleStop(t *testing.T) {
	stub := &stubController{stopMsg: "bot stopped"}
	server := newTestServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/stop", nil)
	rec := httptest.NewRecorder()
	server.handleStop(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bot stopped", resp.Message)
}

func TestHandleNews(t *testing.T) {
	stub := &stubController{news: NewsReport{}}
	server := newTestServer(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	rec := httptest.NewRecorder()
	server.handleNews(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report NewsReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "", report.Summary.Label)
}
