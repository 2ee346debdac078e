package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Armin-kho/doviz-board/internal/cache"
	"github.com/Armin-kho/doviz-board/internal/currency"
	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/snapshot"
	"github.com/Armin-kho/doviz-board/internal/sources"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockBoard struct{ mock.Mock }

func (m *MockBoard) Get(ctx context.Context) (*snapshot.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*snapshot.Snapshot)
	return snap, args.Error(1)
}

func (m *MockBoard) Refresh(ctx context.Context) (*snapshot.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*snapshot.Snapshot)
	return snap, args.Error(1)
}

func (m *MockBoard) Latest() (*snapshot.Snapshot, bool) {
	args := m.Called()
	snap, _ := args.Get(0).(*snapshot.Snapshot)
	return snap, args.Bool(1)
}

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		CycleID:    uuid.New(),
		LastUpdate: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Currencies: currency.Codes(),
		Sources: map[sources.SourceName]currency.Quotes{
			sources.SourceAhlatci: {currency.USD: currency.NewQuote(currency.USD, 41.2, 41.4)},
			sources.SourceHarem:   {},
		},
		Averages: currency.Quotes{currency.USD: currency.NewQuote(currency.USD, 41.2, 41.4)},
	}
}

func newServer(board Board, opts Options) *Server {
	opts.Debug = true
	return NewServer(board, opts, logger.Nop())
}

func do(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestGetCurrencies(t *testing.T) {
	board := &MockBoard{}
	board.On("Get", mock.Anything).Return(testSnapshot(), nil)

	rec, body := do(t, newServer(board, Options{}), http.MethodGet, "/api/currencies")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "2025-03-01T09:00:00Z", body["lastUpdate"])

	cur := body["currencies"].(map[string]any)
	usd := cur["averages"].(map[string]any)["USD"].(map[string]any)
	assert.Equal(t, "41.2000", usd["buy"])
	assert.Equal(t, map[string]any{}, cur["sources"].(map[string]any)["haremAltin"])
}

func TestGetCurrenciesFailure(t *testing.T) {
	board := &MockBoard{}
	board.On("Get", mock.Anything).Return(nil, snapshot.ErrNoSourceData)

	rec, body := do(t, newServer(board, Options{}), http.MethodGet, "/api/currencies")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "error": FailureMessage}, body)
}

func TestPostRefresh(t *testing.T) {
	snap := testSnapshot()
	board := &MockBoard{}
	board.On("Refresh", mock.Anything).Return(snap, nil).Once()
	board.On("Refresh", mock.Anything).Return(snap, cache.ErrStale).Once()
	board.On("Refresh", mock.Anything).Return(nil, cache.ErrEmpty).Once()
	s := newServer(board, Options{})

	rec, body := do(t, s, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, body = do(t, s, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.NotNil(t, body["currencies"])

	rec, _ = do(t, s, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	snap := testSnapshot()
	board := &MockBoard{}
	board.On("Latest").Return(nil, false).Once()
	board.On("Latest").Return(snap, true).Once()
	s := newServer(board, Options{})

	_, body := do(t, s, http.MethodGet, "/api/health")
	assert.Equal(t, "starting", body["status"])

	_, body = do(t, s, http.MethodGet, "/api/health")
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, snap.CycleID.String(), body["cycleId"])
	assert.EqualValues(t, 1, body["sources"])
	assert.EqualValues(t, 0, body["connections"])
}

func TestCORSAllowList(t *testing.T) {
	board := &MockBoard{}
	s := newServer(board, Options{AllowOrigins: []string{"https://doviz.example"}})

	rec, _ := do(t, s, http.MethodOptions, "/api/currencies")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/api/currencies", nil)
	req.Header.Set("Origin", "https://doviz.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://doviz.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>pano</h1>"), 0o644))

	rec, _ := do(t, newServer(&MockBoard{}, Options{StaticDir: dir}), http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pano")
}

func TestWebsocketReceivesLatestAndUpdates(t *testing.T) {
	s := newServer(&MockBoard{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub().Run(ctx)

	first := testSnapshot()
	s.Hub().Publish(first)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, first.CycleID.String(), msg["currencies"].(map[string]any)["cycleId"])

	second := testSnapshot()
	require.Eventually(t, func() bool { return s.Hub().Connections() == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Hub().Publish(second)

	// The first snapshot may also arrive as an update, depending on when the
	// hub drained its queue.
	for {
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["currencies"].(map[string]any)["cycleId"] == second.CycleID.String() {
			break
		}
	}
	assert.Equal(t, "UPDATE", msg["type"])
}
