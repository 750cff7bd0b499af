package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-uhf/config"
	"github.com/arloliu/go-uhf/epc"
	"github.com/arloliu/go-uhf/logger"
	"github.com/arloliu/go-uhf/reader"
	"github.com/arloliu/go-uhf/uhf"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeDevice records calls and returns canned results.
type fakeDevice struct {
	mu      sync.Mutex
	layout  epc.Layout
	metrics reader.Metrics
	state   reader.ScanState

	readResult *reader.Discovery
	err        error

	written   []epc.Record
	tmpl      *epc.Record
	selectP   *uhf.SelectParam
	mode      *uhf.SelectMode
	memWrite  *uhf.WriteMemoryRequest
	lock      *uhf.LockRequest
	discovery []*reader.Discovery
}

var _ Device = (*fakeDevice)(nil)

func (f *fakeDevice) Layout() epc.Layout       { return f.layout }
func (f *fakeDevice) Metrics() *reader.Metrics { return &f.metrics }
func (f *fakeDevice) LastError() error         { return nil }

func (f *fakeDevice) Stats() reader.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return reader.Stats{State: f.state, Unique: len(f.discovery), Queued: len(f.discovery)}
}

func (f *fakeDevice) ReadOnce(context.Context) (*reader.Discovery, error) {
	return f.readResult, f.err
}

func (f *fakeDevice) WriteOnce(_ context.Context, rec epc.Record) (*reader.WriteResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, err := epc.Format(f.layout, rec)
	if err != nil {
		return nil, err
	}
	f.written = append(f.written, rec)

	return &reader.WriteResult{Record: rec, EPC: s}, nil
}

func (f *fakeDevice) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.IsScanning() {
		return reader.ErrAlreadyScanning
	}
	f.state = reader.ScanningState

	return nil
}

func (f *fakeDevice) StartWriting(tmpl epc.Record) error {
	if err := f.Start(); err != nil {
		return err
	}
	f.tmpl = &tmpl

	return nil
}

func (f *fakeDevice) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.state.IsScanning() {
		return reader.ErrNotScanning
	}
	f.state = reader.IdleState

	return nil
}

func (f *fakeDevice) Drain() []*reader.Discovery {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := f.discovery
	f.discovery = nil

	return out
}

func (f *fakeDevice) GetSelectParam(context.Context) ([]byte, error) {
	return []byte{0x01, 0xab}, f.err
}

func (f *fakeDevice) SetSelectParam(_ context.Context, p uhf.SelectParam) error {
	f.selectP = &p
	return f.err
}

func (f *fakeDevice) SetSelectMode(_ context.Context, mode uhf.SelectMode) error {
	f.mode = &mode
	return f.err
}

func (f *fakeDevice) WriteMemory(_ context.Context, req uhf.WriteMemoryRequest) error {
	f.memWrite = &req
	return f.err
}

func (f *fakeDevice) LockMemory(_ context.Context, req uhf.LockRequest) error {
	f.lock = &req
	return f.err
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, dev *fakeDevice, rl config.RateLimitConfig) *Server {
	t.Helper()

	return New(
		config.HTTPConfig{Addr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second, AllowOrigin: "*", RateLimit: rl},
		config.MetricsConfig{Enable: true, Path: "/metrics"},
		dev,
		logger.NewPermissiveMockLogger(),
	)
}

func do(t *testing.T, s *Server, method string, path string, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}

	return rr, env
}

func TestHealthzAndMetrics(t *testing.T) {
	dev := &fakeDevice{layout: epc.LayoutA}
	dev.metrics.TagReadCount.Add(3)
	s := newTestServer(t, dev, config.RateLimitConfig{})

	rr, _ := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, rr.Header().Get(RequestIDHeader))

	rr, _ = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "uhf_tag_reads_total 3")
	assert.Contains(t, rr.Body.String(), "uhf_inventory_running 0")
}

func TestRead(t *testing.T) {
	rec := epc.Record{TagID: "ABCD", ProductID: "0123456789ABC", Year: 2025, Month: 6, Day: 15}
	dev := &fakeDevice{
		layout:     epc.LayoutA,
		readResult: &reader.Discovery{Key: "00ABCD0123456789ABC1960F", Raw: "0000ABCD", RSSI: -55, Record: rec},
	}
	s := newTestServer(t, dev, config.RateLimitConfig{})

	rr, env := do(t, s, http.MethodGet, "/read", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, env.Success)

	var data discoveryView
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "00ABCD0123456789ABC1960F", data.EPC)
	require.NotNil(t, data.Record)
	require.Equal(t, "2025-06-15", data.Record.Date)
	require.Equal(t, "ABCD", data.Record.TagID)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"tag not found", &uhf.AckError{Code: uhf.CodeTagNotFound}, http.StatusNotFound},
		{"reader error", &uhf.AckError{Code: uhf.CodeTagCommunication}, http.StatusBadGateway},
		{"no response", reader.ErrNoResponse, http.StatusGatewayTimeout},
		{"scanning", reader.ErrScanning, http.StatusConflict},
		{"closed", reader.ErrClosed, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeDevice{layout: epc.LayoutA, err: tt.err}, config.RateLimitConfig{})

			rr, env := do(t, s, http.MethodGet, "/read", "")
			require.Equal(t, tt.code, rr.Code)
			require.False(t, env.Success)
			require.Equal(t, tt.err.Error(), env.Message)
		})
	}
}

func TestRead_UndecodableEPC(t *testing.T) {
	parseErr := &epc.ParseError{Layout: "A", Kind: epc.ErrTooShort, Need: 28, Got: 4, Raw: "0000ABCD"}
	dev := &fakeDevice{
		layout:     epc.LayoutA,
		readResult: &reader.Discovery{Key: "ABCD", Raw: "0000ABCD", RSSI: -55, ParseErr: parseErr},
		err:        fmt.Errorf("reader: read tag: %w", parseErr),
	}
	s := newTestServer(t, dev, config.RateLimitConfig{})

	rr, env := do(t, s, http.MethodGet, "/read", "")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.False(t, env.Success)

	var data discoveryView
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "ABCD", data.EPC)
	require.Nil(t, data.Record)
	require.Equal(t, parseErr.Error(), data.Error)
}

func TestWrite(t *testing.T) {
	dev := &fakeDevice{layout: epc.LayoutB}
	s := newTestServer(t, dev, config.RateLimitConfig{})

	rr, env := do(t, s, http.MethodPost, "/write",
		`{"product_id":"01234567","tag_id":"ABCDEF","year":2025,"month":6,"day":15,"status":"02"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.True(t, env.Success)

	var data struct {
		EPC    string     `json:"epc"`
		Record recordView `json:"record"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "00ABCDEF0123456719060F02", data.EPC)
	require.Equal(t, "sold", data.Record.StatusText)

	// omitted tag id and date default to a random id and today
	rr, _ = do(t, s, http.MethodPost, "/write", `{"product_id":"89ABCDEF"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, dev.written, 2)
	require.Len(t, dev.written[1].TagID, 6)
	require.Equal(t, time.Now().Year(), dev.written[1].Year)
	require.Equal(t, epc.StatusUnsold, dev.written[1].Status)
}

func TestWrite_BadInput(t *testing.T) {
	s := newTestServer(t, &fakeDevice{layout: epc.LayoutA}, config.RateLimitConfig{})

	rr, env := do(t, s, http.MethodPost, "/write", `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, env.Message, "product_id")

	rr, _ = do(t, s, http.MethodPost, "/write", `{"product_id":"XYZ"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = do(t, s, http.MethodPost, "/write", `not json`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInventory(t *testing.T) {
	dev := &fakeDevice{layout: epc.LayoutA}
	s := newTestServer(t, dev, config.RateLimitConfig{})

	rr, env := do(t, s, http.MethodPost, "/api/inventory/stop", "")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.False(t, env.Success)

	rr, env = do(t, s, http.MethodPost, "/api/inventory/start", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, env.Success)

	rr, _ = do(t, s, http.MethodPost, "/api/inventory/start", "")
	require.Equal(t, http.StatusConflict, rr.Code)

	dev.mu.Lock()
	dev.discovery = []*reader.Discovery{
		{Key: "AA", Record: epc.Record{TagID: "0001", ProductID: "0123456789ABC", Year: 2025, Month: 1, Day: 2}},
		{Key: "BB", ParseErr: &epc.ParseError{Layout: "A", Kind: epc.ErrTooShort, Need: 22, Got: 4, Raw: "BB"}},
	}
	dev.mu.Unlock()

	rr, env = do(t, s, http.MethodGet, "/api/inventory/data", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var data inventoryData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "scanning", data.State)
	require.Len(t, data.Tags, 2)
	require.Equal(t, "0001", data.Tags[0].Record.TagID)
	require.Nil(t, data.Tags[1].Record)
	require.NotEmpty(t, data.Tags[1].Error)

	_, env = do(t, s, http.MethodGet, "/api/inventory/data", "")
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Empty(t, data.Tags)

	rr, _ = do(t, s, http.MethodPost, "/api/inventory/stop", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestInventory_WriteMode(t *testing.T) {
	dev := &fakeDevice{layout: epc.LayoutB}
	s := newTestServer(t, dev, config.RateLimitConfig{})

	rr, env := do(t, s, http.MethodPost, "/api/inventory/start", `{"write":{"product_id":"01234567","status":"03"}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.True(t, env.Success)

	require.NotNil(t, dev.tmpl)
	require.Empty(t, dev.tmpl.TagID)
	require.Equal(t, "01234567", dev.tmpl.ProductID)
	require.Equal(t, epc.StatusReturned, dev.tmpl.Status)
}

func TestSelectAndMemory(t *testing.T) {
	dev := &fakeDevice{layout: epc.LayoutA}
	s := newTestServer(t, dev, config.RateLimitConfig{})

	rr, env := do(t, s, http.MethodPost, "/api/select/get", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"payload":"01AB"}`, string(env.Data))

	rr, _ = do(t, s, http.MethodPost, "/api/select/set", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, uhf.DefaultSelectParam(), *dev.selectP)

	rr, _ = do(t, s, http.MethodPost, "/api/select/set", `{"mask":"E200","pointer":32}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []byte{0xE2, 0x00}, dev.selectP.Mask)

	rr, _ = do(t, s, http.MethodPost, "/api/select/set", `{"mask":"zz"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = do(t, s, http.MethodPost, "/api/select/mode", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, uhf.SelectModeNever, *dev.mode)

	rr, _ = do(t, s, http.MethodPost, "/api/select/mode", `{"mode":2}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, uhf.SelectModeExceptPoll, *dev.mode)

	rr, _ = do(t, s, http.MethodPost, "/api/memory/write", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, uhf.DefaultWriteMemoryRequest(), *dev.memWrite)

	rr, _ = do(t, s, http.MethodPost, "/api/memory/write", `{"bank":1,"word_ptr":2,"data":"AABB"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, uhf.BankEPC, dev.memWrite.Bank)
	require.Equal(t, uint16(2), dev.memWrite.WordPtr)
	require.Equal(t, []byte{0xAA, 0xBB}, dev.memWrite.Data)

	rr, _ = do(t, s, http.MethodPost, "/api/memory/lock", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, uhf.DefaultLockRequest(), *dev.lock)

	rr, _ = do(t, s, http.MethodPost, "/api/memory/lock", `{"mask":48}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRateLimit(t *testing.T) {
	dev := &fakeDevice{layout: epc.LayoutA, err: reader.ErrNoTag}
	s := newTestServer(t, dev, config.RateLimitConfig{Enable: true, RPS: 0.001, Burst: 2})

	codes := make([]int, 0, 3)
	for range 3 {
		rr, _ := do(t, s, http.MethodGet, "/read", "")
		codes = append(codes, rr.Code)
	}
	require.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)

	// the polling route is not limited
	rr, _ := do(t, s, http.MethodGet, "/api/inventory/data", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr, _ = do(t, s, http.MethodGet, "/metrics", "")
	assert.Contains(t, rr.Body.String(), "uhf_http_rate_limit_rejected_total 1")
}

func TestCORSAndRequestID(t *testing.T) {
	s := newTestServer(t, &fakeDevice{layout: epc.LayoutA}, config.RateLimitConfig{})

	req := httptest.NewRequest(http.MethodOptions, "/write", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	require.Equal(t, "req-42", rr.Header().Get(RequestIDHeader))
}
