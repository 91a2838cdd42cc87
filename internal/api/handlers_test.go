package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/stock-watchlist/internal/auth"
	"github.com/trogers1052/stock-watchlist/internal/models"
	"github.com/trogers1052/stock-watchlist/internal/quotes"
)

type fakeSessions struct {
	principals map[string]*auth.Principal
	broker     *auth.StateBroker
	signOutErr error
	signedOut  []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		principals: map[string]*auth.Principal{
			"token-ada": {Email: "ada@example.com", FullName: "Ada Lovelace", SessionID: "s1"},
		},
		broker: auth.NewStateBroker(),
	}
}

func (f *fakeSessions) Session(_ context.Context, token string) (*auth.Principal, error) {
	p, ok := f.principals[token]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return p, nil
}

func (f *fakeSessions) SignInURL(redirectTo string) string {
	return "https://auth.example/authorize?redirect_to=" + redirectTo
}

func (f *fakeSessions) SignOut(ctx context.Context, token string) error {
	p, err := f.Session(ctx, token)
	if err != nil {
		return err
	}
	f.signedOut = append(f.signedOut, p.Email)
	f.broker.Publish(auth.State{Email: p.Email, SignedIn: false})
	return f.signOutErr
}

func (f *fakeSessions) Subscribe(email string) (<-chan auth.State, func()) {
	return f.broker.Subscribe(email)
}

// MockStore is an in-memory implementation of the user, catalog and
// selection stores
type MockStore struct {
	mu         sync.Mutex
	users      map[string]int64
	stocks     []*models.Stock
	selections map[int64][]int64

	upsertErr  error
	stocksErr  error
	replaceErr error
}

func NewMockStore() *MockStore {
	return &MockStore{
		users: make(map[string]int64),
		stocks: []*models.Stock{
			{ID: 3, StockName: "Tesla", StockCode: "TSLA"},
			{ID: 1, StockName: "Apple", StockCode: "AAPL"},
			{ID: 2, StockName: "Microsoft", StockCode: "MSFT"},
		},
		selections: make(map[int64][]int64),
	}
}

func (m *MockStore) UpsertUserByEmail(_ context.Context, name, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	id, ok := m.users[email]
	if !ok {
		id = int64(len(m.users) + 1)
		m.users[email] = id
	}
	return &models.User{ID: id, Name: name, Email: email}, nil
}

func (m *MockStore) GetAllStocks(context.Context) ([]*models.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stocksErr != nil {
		return nil, m.stocksErr
	}
	return slices.Clone(m.stocks), nil
}

func (m *MockStore) GetSelectedStockIDs(_ context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.selections[userID]), nil
}

func (m *MockStore) GetSelectedStocks(_ context.Context, userID int64) ([]*models.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Stock{}
	for _, s := range m.stocks {
		if slices.Contains(m.selections[userID], s.ID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockStore) ReplaceUserStocks(_ context.Context, userID int64, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.selections[userID] = slices.Clone(ids)
	return nil
}

func (m *MockStore) Selections(userID int64) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.selections[userID])
}

type fixedSource struct{ synthetic bool }

func (f fixedSource) Fetch(_ context.Context, symbol string) quotes.Series {
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	return quotes.Series{
		Symbol: symbol,
		Points: []models.QuotePoint{
			{Datetime: start, Close: 100},
			{Datetime: start.Add(time.Minute), Close: 110},
		},
		Synthetic: f.synthetic,
	}
}

type pinger struct{ err error }

func (p pinger) Ping() error { return p.err }

type testEnv struct {
	router   http.Handler
	store    *MockStore
	sessions *fakeSessions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := NewMockStore()
	sessions := newFakeSessions()
	h := NewHandler(Deps{
		Sessions:        sessions,
		Users:           store,
		Catalog:         store,
		Selections:      store,
		Quotes:          fixedSource{synthetic: true},
		RefreshInterval: 20 * time.Millisecond,
		DB:              pinger{},
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &testEnv{router: SetupRoutes(h), store: store, sessions: sessions}
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do("GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	h := NewHandler(Deps{DB: pinger{err: errors.New("down")}, Sessions: newFakeSessions()})
	rec = httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetAllStocks(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("GET", "/api/v1/stocks", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[stocksResponse](t, rec)
	require.Len(t, resp.Stocks, 3)
	assert.Equal(t, "Apple", resp.Stocks[0].StockName)
	assert.Equal(t, "Tesla", resp.Stocks[2].StockName)
	assert.Nil(t, resp.Message)

	env.store.stocksErr = errors.New("timeout")
	rec = env.do("GET", "/api/v1/stocks", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp = decode[stocksResponse](t, rec)
	assert.Empty(t, resp.Stocks)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "error", resp.Message.Type)
	assert.Equal(t, int64(3000), resp.Message.DismissAfterMS)
}

func TestGetQuote(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do("GET", "/api/v1/quotes/aapl", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Series quotes.Series `json:"series"`
		Trend  struct {
			Symbol        string `json:"symbol"`
			ChangePercent string `json:"change_percent"`
			Direction     string `json:"direction"`
			Synthetic     bool   `json:"synthetic"`
		} `json:"trend"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp.Series.Symbol)
	assert.Len(t, resp.Series.Points, 2)
	assert.Equal(t, "AAPL", resp.Trend.Symbol)
	assert.Equal(t, "10.00", resp.Trend.ChangePercent)
	assert.Equal(t, "up", resp.Trend.Direction)
	assert.True(t, resp.Trend.Synthetic)
}

func TestRequireSession(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusUnauthorized, env.do("GET", "/api/v1/dashboard", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do("GET", "/api/v1/dashboard", "bogus", "").Code)

	req := httptest.NewRequest("GET", "/api/v1/dashboard", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetDashboard(t *testing.T) {
	env := newTestEnv(t)
	env.store.selections[1] = []int64{3, 1}

	rec := env.do("GET", "/api/v1/dashboard", "token-ada", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dashboardResponse](t, rec)
	assert.Equal(t, int64(1), resp.UserID)
	assert.Equal(t, "Ada Lovelace", resp.DisplayName)
	require.Len(t, resp.Stocks, 2)
	assert.Equal(t, "AAPL", resp.Stocks[0].StockCode)
	assert.Equal(t, "TSLA", resp.Stocks[1].StockCode)
}

func TestIdentityFailureReturnsEmptyServerError(t *testing.T) {
	env := newTestEnv(t)
	env.store.upsertErr = errors.New("permission denied")

	for _, path := range []string{"/api/v1/dashboard", "/api/v1/select"} {
		rec := env.do("GET", path, "token-ada", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Empty(t, rec.Body.String(), path)
	}
}

func TestSelectViewFlow(t *testing.T) {
	env := newTestEnv(t)
	env.store.selections[1] = []int64{2}

	// toggling before the view is open is rejected
	assert.Equal(t, http.StatusConflict, env.do("POST", "/api/v1/select/toggle/1", "token-ada", "").Code)

	rec := env.do("GET", "/api/v1/select", "token-ada", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[selectResponse](t, rec)
	require.Len(t, view.Stocks, 3)
	assert.Equal(t, []int64{2}, view.Selected)
	assert.Nil(t, view.Message)

	rec = env.do("POST", "/api/v1/select/toggle/1", "token-ada", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stock_id":1,"selected":true,"ids":[1,2]}`, rec.Body.String())

	rec = env.do("POST", "/api/v1/select/toggle/2", "token-ada", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stock_id":2,"selected":false,"ids":[1]}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do("POST", "/api/v1/select/toggle/99", "token-ada", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do("POST", "/api/v1/select/toggle/abc", "token-ada", "").Code)

	// nothing is persisted until save
	assert.Equal(t, []int64{2}, env.store.Selections(1))

	rec = env.do("POST", "/api/v1/select/save", "token-ada", "")
	require.Equal(t, http.StatusOK, rec.Code)
	saved := decode[selectResponse](t, rec)
	assert.Equal(t, []int64{1}, saved.Selected)
	require.NotNil(t, saved.Message)
	assert.Equal(t, "success", saved.Message.Type)
	assert.Equal(t, []int64{1}, env.store.Selections(1))

	assert.Equal(t, http.StatusNoContent, env.do("DELETE", "/api/v1/select", "token-ada", "").Code)
	assert.Equal(t, http.StatusConflict, env.do("POST", "/api/v1/select/save", "token-ada", "").Code)
}

func TestSaveFailureKeepsPendingSelection(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do("GET", "/api/v1/select", "token-ada", "").Code)
	require.Equal(t, http.StatusOK, env.do("POST", "/api/v1/select/toggle/3", "token-ada", "").Code)

	env.store.replaceErr = errors.New("insert failed")
	rec := env.do("POST", "/api/v1/select/save", "token-ada", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[selectResponse](t, rec)
	assert.Equal(t, []int64{3}, resp.Selected)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "Failed to save selections", resp.Message.Text)

	env.store.replaceErr = nil
	require.Equal(t, http.StatusOK, env.do("POST", "/api/v1/select/save", "token-ada", "").Code)
	assert.Equal(t, []int64{3}, env.store.Selections(1))
}

func TestOpenSelectView_CatalogFailureIsPartial(t *testing.T) {
	env := newTestEnv(t)
	env.store.stocksErr = errors.New("timeout")

	rec := env.do("GET", "/api/v1/select", "token-ada", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[selectResponse](t, rec)
	assert.Empty(t, resp.Stocks)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "Failed to load stocks", resp.Message.Text)
}

func TestReplaceSelections(t *testing.T) {
	env := newTestEnv(t)
	env.store.selections[1] = []int64{1, 2}

	rec := env.do("PUT", "/api/v1/selections", "token-ada", `{"stock_ids":[3]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{3}, env.store.Selections(1))

	rec = env.do("PUT", "/api/v1/selections", "token-ada", `{"stock_ids":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.store.Selections(1))

	assert.Equal(t, http.StatusBadRequest, env.do("PUT", "/api/v1/selections", "token-ada", `{`).Code)
}

func TestSignIn(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("GET", "/auth/signin", "", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://auth.example/authorize?redirect_to=/dashboard", rec.Header().Get("Location"))

	rec = env.do("GET", "/auth/signin?redirect_to=/select", "", "")
	assert.Equal(t, "https://auth.example/authorize?redirect_to=/select", rec.Header().Get("Location"))
}

func TestSignOutClosesSelectView(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do("GET", "/api/v1/select", "token-ada", "").Code)

	rec := env.do("POST", "/auth/signout", "token-ada", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"ada@example.com"}, env.sessions.signedOut)
	assert.Equal(t, http.StatusConflict, env.do("POST", "/api/v1/select/save", "token-ada", "").Code)

	env.sessions.signOutErr = errors.New("provider unavailable")
	rec = env.do("POST", "/auth/signout", "token-ada", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do("OPTIONS", "/api/v1/selections", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

type sseEvent struct {
	name string
	data string
}

func readEvents(r io.Reader, out chan<- sseEvent) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	var ev sseEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			out <- ev
			ev = sseEvent{}
		}
	}
}

func nextEvent(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "stream closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for stream event")
		return sseEvent{}
	}
}

func TestDashboardStream(t *testing.T) {
	env := newTestEnv(t)
	env.store.selections[1] = []int64{2}

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/dashboard/stream?access_token=token-ada")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan sseEvent, 16)
	go readEvents(resp.Body, events)

	first := nextEvent(t, events)
	assert.Equal(t, "stocks", first.name)
	assert.Contains(t, first.data, `"stock_code":"MSFT"`)

	// initial render plus at least one timer refresh
	for range 2 {
		ev := nextEvent(t, events)
		assert.Equal(t, "quote", ev.name)
		assert.Contains(t, ev.data, `"symbol":"MSFT"`)
		assert.Contains(t, ev.data, `"synthetic":true`)
	}

	require.Eventually(t, func() bool {
		return env.sessions.broker.Subscribers("ada@example.com") == 1
	}, time.Second, 10*time.Millisecond)
	env.sessions.broker.Publish(auth.State{Email: "ada@example.com", SignedIn: false})

	for ev := range events {
		if ev.name == "signed_out" {
			break
		}
		assert.Equal(t, "quote", ev.name)
	}

	require.Eventually(t, func() bool {
		return env.sessions.broker.Subscribers("ada@example.com") == 0
	}, 2*time.Second, 10*time.Millisecond)
}
