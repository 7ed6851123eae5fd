package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TEENet-io/fiat-bridge-go/common"
	"github.com/TEENet-io/fiat-bridge-go/ethsync"
	"github.com/TEENet-io/fiat-bridge-go/ethtxmanager"
	"github.com/TEENet-io/fiat-bridge-go/ledger"
	"github.com/TEENet-io/fiat-bridge-go/metrics"
	"github.com/TEENet-io/fiat-bridge-go/notifier"
	"github.com/TEENet-io/fiat-bridge-go/settlement"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userAA = "0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	userBB = "0xBBbBBbBbBBbBbbbBbbBBbBbBbbbBBBbbBBBbbBbb"
)

type mockMinter struct {
	mu   sync.Mutex
	err  error
	last ethcommon.Hash
}

func (m *mockMinter) Mint(context.Context, ethcommon.Address, *big.Int) (ethcommon.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return ethcommon.Hash{}, m.err
	}
	m.last = common.RandBytes32()
	return m.last, nil
}

type fixedState ethsync.State

func (s fixedState) State() ethsync.State {
	return ethsync.State(s)
}

type testEnv struct {
	store     ledger.Store
	minter    *mockMinter
	publisher *notifier.PublisherService
	metrics   *metrics.Metrics
	router    *gin.Engine
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEnv(t *testing.T, cfg *Config) *testEnv {
	store, err := ledger.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := metrics.New()
	minter := &mockMinter{}
	publisher := notifier.NewPublisherService(16, m)
	srv := settlement.NewService(settlement.DefaultConfig(), store, minter, publisher, m)

	if cfg == nil {
		cfg = &Config{}
	}
	h := NewHttpServer(cfg, srv, notifier.NewWsHandler(publisher, nil), m, fixedState(ethsync.StateSubscribed))

	return &testEnv{
		store:     store,
		minter:    minter,
		publisher: publisher,
		metrics:   m,
		router:    h.SetupRouter(),
	}
}

func (env *testEnv) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPayoutLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	observer := env.publisher.RegisterObserver()
	defer env.publisher.UnregisterObserver(observer)

	w := env.do(http.MethodPost, ROUTE_PAYOUT, gin.H{
		"user":      userAA,
		"fiat":      "USD",
		"amountWei": "5000000000000000000",
		"txHash":    "0x01",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"payoutId": float64(1), "status": "pending"}, decode(t, w))

	msg := <-observer.Ch
	assert.Equal(t, uint64(1), msg.Id)
	assert.Equal(t, "pending", msg.Status)
	assert.Equal(t, "5", msg.Amount)

	w = env.do(http.MethodGet, "/api/payout/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "5", body["amount"])
	assert.Equal(t, "5000000000000000000", body["amountWei"])
	assert.Equal(t, "USD", body["fiat"])

	w = env.do(http.MethodPost, "/api/payout/1/confirm", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"status": "sent", "id": float64(1)}, decode(t, w))

	msg = <-observer.Ch
	assert.Equal(t, "sent", msg.Status)

	w = env.do(http.MethodPost, "/api/payout/1/confirm", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Payout not found or already processed", decode(t, w)["error"])

	// no further broadcast
	select {
	case msg := <-observer.Ch:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPayoutRedelivered(t *testing.T) {
	env := newTestEnv(t, nil)

	req := gin.H{"user": userAA, "fiat": "USD", "amountWei": "7", "txHash": "0x02", "logIndex": 4}
	w := env.do(http.MethodPost, ROUTE_PAYOUT, req, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, ROUTE_PAYOUT, req, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["payoutId"])

	p, err := env.store.GetPayoutBySource(context.Background(), ethcommon.HexToHash("0x02"), 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.Id)
}

func TestPayoutBadRequest(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, body := range []any{
		"not json",
		gin.H{"fiat": "USD", "amountWei": "1", "txHash": "0x01"},
		gin.H{"user": userAA, "fiat": "USD", "amountWei": "1"},
		gin.H{"user": "0x12", "fiat": "USD", "amountWei": "1", "txHash": "0x01"},
		gin.H{"user": userAA, "fiat": "USD", "amountWei": "1e18", "txHash": "0x01"},
		gin.H{"user": userAA, "fiat": "USD", "amountWei": "1", "txHash": "hash"},
	} {
		w := env.do(http.MethodPost, ROUTE_PAYOUT, body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v", body)
		assert.NotEmpty(t, decode(t, w)["error"])
	}

	_, err := env.store.GetPayout(context.Background(), 1)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestConfirmUnknownOrMalformedId(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/payout/9/confirm", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/payout/abc/confirm", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/payout/9", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeposit(t *testing.T) {
	env := newTestEnv(t, nil)

	// amount as a json number
	w := env.do(http.MethodPost, ROUTE_DEPOSIT, `{"user":"`+userBB+`","amount":10,"fiat":"USD"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{
		"txHash": env.minter.last.String(),
		"status": "confirmed",
	}, decode(t, w))

	// amount as a json string
	w = env.do(http.MethodPost, ROUTE_DEPOSIT, gin.H{"user": userBB, "amount": "0.5", "fiat": "EUR"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, ROUTE_DEPOSITS+"?user="+userBB, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "10000000000000000000", data[0].(map[string]any)["amountWei"])
	assert.Equal(t, "500000000000000000", data[1].(map[string]any)["amountWei"])
	assert.Equal(t, "EUR", data[1].(map[string]any)["fiat"])
}

func TestDepositMintFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.minter.err = errors.Join(ethtxmanager.ErrChainSubmission, ethtxmanager.ErrReceiptTimeout)

	w := env.do(http.MethodPost, ROUTE_DEPOSIT, gin.H{"user": userBB, "amount": "10", "fiat": "USD"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["error"], "chain submission")

	deposits, err := env.store.GetDepositsByUser(context.Background(), ethcommon.HexToAddress(userBB))
	require.NoError(t, err)
	assert.Empty(t, deposits)
}

func TestDepositBadRequest(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, body := range []any{
		gin.H{"user": "nobody", "amount": "10", "fiat": "USD"},
		gin.H{"user": userBB, "amount": "-10", "fiat": "USD"},
		gin.H{"user": userBB, "fiat": "USD"},
		gin.H{"user": userBB, "amount": "10"},
		`{"user":"` + userBB + `","amount":"ten","fiat":"USD"}`,
	} {
		w := env.do(http.MethodPost, ROUTE_DEPOSIT, body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v", body)
	}

	w := env.do(http.MethodGet, ROUTE_DEPOSITS, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodGet, ROUTE_DEPOSITS+"?user=bob", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDepositAmountOutOfRange(t *testing.T) {
	env := newTestEnv(t, nil)
	overUint256 := new(big.Int).Lsh(big.NewInt(1), 256).String()

	for _, body := range []any{
		gin.H{"user": userBB, "amount": "1e60", "fiat": "USD"},
		`{"user":"` + userBB + `","amount":1e100000000,"fiat":"USD"}`,
		`{"user":"` + userBB + `","amount":"1e100000000","fiat":"USD"}`,
	} {
		start := time.Now()
		w := env.do(http.MethodPost, ROUTE_DEPOSIT, body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v", body)
		assert.Less(t, time.Since(start), time.Second)
	}
	// nothing reached the chain
	assert.Equal(t, ethcommon.Hash{}, env.minter.last)

	w := env.do(http.MethodPost, ROUTE_PAYOUT, gin.H{"user": userAA, "fiat": "USD", "amountWei": overUint256, "txHash": "0x01"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiKey(t *testing.T) {
	env := newTestEnv(t, &Config{ApiKey: "secret"})
	body := gin.H{"user": userAA, "fiat": "USD", "amountWei": "1", "txHash": "0x01"}

	w := env.do(http.MethodPost, ROUTE_PAYOUT, body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodPost, ROUTE_PAYOUT, body, map[string]string{HEADER_API_KEY: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodPost, "/api/payout/1/confirm", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, ROUTE_PAYOUT, body, map[string]string{HEADER_API_KEY: "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	// reads are open
	w = env.do(http.MethodGet, "/api/payout/1", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, &Config{RateLimit: 0.001, RateBurst: 2})

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/payout/1", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/payout/1", nil, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(http.MethodGet, "/api/payout/1", nil, nil).Code)

	// health is not limited
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, ROUTE_HEALTH, nil, nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, ROUTE_HEALTH, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"status": "ok", "monitor": "subscribed"}, decode(t, w))

	env.do(http.MethodPost, ROUTE_PAYOUT, gin.H{"user": userAA, "fiat": "USD", "amountWei": "1", "txHash": "0x01"}, nil)

	w = env.do(http.MethodGet, ROUTE_METRICS, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fiat_bridge_payouts_recorded_total 1")
}

func TestHealthWithoutMonitor(t *testing.T) {
	h := NewHttpServer(&Config{}, nil, nil, nil, nil)
	w := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, ROUTE_HEALTH, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"status": "ok", "monitor": "disabled"}, decode(t, w))
}

func TestWebsocketRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+ROUTE_WS, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.publisher.NumObservers() == 1 }, time.Second, 10*time.Millisecond)

	w := env.do(http.MethodPost, ROUTE_PAYOUT, gin.H{"user": userAA, "fiat": "USD", "amountWei": "2500000000000000000", "txHash": "0x03"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env1 notifier.Envelope
	require.NoError(t, conn.ReadJSON(&env1))
	assert.Equal(t, notifier.EventPayoutStatus, env1.Event)
	assert.Equal(t, "pending", env1.Data.Status)
	assert.Equal(t, "2.5", env1.Data.Amount)
	assert.Equal(t, "USD", env1.Data.Fiat)
}
