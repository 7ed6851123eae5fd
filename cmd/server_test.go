package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/TEENet-io/fiat-bridge-go/api"
	"github.com/TEENet-io/fiat-bridge-go/etherman"
	"github.com/TEENet-io/fiat-bridge-go/ethsync"
	"github.com/TEENet-io/fiat-bridge-go/ledger"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (int, map[string]any) {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestFiatBridgeServer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sim, err := etherman.NewSimulatedChain()
	require.NoError(t, err)
	defer sim.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sim.AutoCommit(ctx, 100*time.Millisecond)

	var wg sync.WaitGroup
	srv, err := newFiatBridgeServer(&FiatBridgeServerConfig{
		EthCoreAccountPriv: "0x" + hex.EncodeToString(crypto.FromECDSA(sim.Keys[1])),
		EthStartBlk:        0,
		DbBackend:          ledger.BackendMemory,
		HttpIp:             "127.0.0.1",
		HttpPort:           "0",
	}, sim.Etherman, big.NewInt(1337), ctx, &wg)
	require.NoError(t, err)
	defer func() {
		cancel()
		wg.Wait()
	}()

	assert.Equal(t, sim.Accounts[1].From, srv.MyEthTxMgr.Address())
	router := srv.MyHttpServer.SetupRouter()

	require.Eventually(t, func() bool {
		return srv.MyMonitor.State() == ethsync.StateSubscribed
	}, 5*time.Second, 20*time.Millisecond)

	// deposit: mint on chain, then record
	user := sim.Accounts[3].From
	code, body := doJSON(t, router, http.MethodPost, api.ROUTE_DEPOSIT, gin.H{
		"user":   user.Hex(),
		"amount": "10",
		"fiat":   "USD",
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "confirmed", body["status"])

	receipt, err := sim.Backend.Client().TransactionReceipt(context.Background(), ethcommon.HexToHash(body["txHash"].(string)))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Status)

	deposits, err := srv.MyLedger.GetDepositsByUser(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, "10000000000000000000", deposits[0].Amount.String())

	// payout: event on chain, forwarded by the monitor
	amount, _ := new(big.Int).SetString("5000000000000000000", 10)
	_, err = sim.EmitFiatPayout(sim.Accounts[2], user, "USD", amount)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := srv.MyLedger.GetPayout(context.Background(), 1)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	code, body = doJSON(t, router, http.MethodGet, "/api/payout/1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "5", body["amount"])
	assert.Equal(t, user.Hex(), body["user"])

	code, body = doJSON(t, router, http.MethodPost, "/api/payout/1/confirm", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, gin.H{"status": "sent", "id": float64(1)}, gin.H(body))

	code, _ = doJSON(t, router, http.MethodPost, "/api/payout/1/confirm", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = doJSON(t, router, http.MethodGet, api.ROUTE_HEALTH, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "subscribed", body["monitor"])

	// checkpoint follows the forwarded event
	assert.Eventually(t, func() bool {
		blk, ok, err := srv.MyLedger.GetLastScannedBlock(context.Background())
		return err == nil && ok && blk > 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestEthermanConfig(t *testing.T) {
	cfg, err := ethermanConfig(&FiatBridgeServerConfig{
		EthRpcUrl:         "ws://localhost:8546",
		EthPayoutContract: "0x00000000000000000000000000000000000f1a70",
	})
	require.NoError(t, err)
	assert.Equal(t, cfg.PayoutContractAddress, cfg.MintContractAddress)
	assert.Equal(t, "ws://localhost:8546", cfg.URL)

	cfg, err = ethermanConfig(&FiatBridgeServerConfig{
		EthPayoutContract: "0x00000000000000000000000000000000000f1a70",
		EthMintContract:   "0x00000000000000000000000000000000000f1a71",
	})
	require.NoError(t, err)
	assert.Equal(t, ethcommon.HexToAddress("0x0f1a71"), cfg.MintContractAddress)

	_, err = ethermanConfig(&FiatBridgeServerConfig{EthPayoutContract: "0xYourDeployedLLPContractAddress"})
	assert.Error(t, err)
	_, err = ethermanConfig(&FiatBridgeServerConfig{
		EthPayoutContract: "0x00000000000000000000000000000000000f1a70",
		EthMintContract:   "nope",
	})
	assert.Error(t, err)
}

func TestStringToPrivateKey(t *testing.T) {
	sk, err := crypto.GenerateKey()
	require.NoError(t, err)
	raw := hex.EncodeToString(crypto.FromECDSA(sk))

	for _, s := range []string{raw, "0x" + raw} {
		got, err := StringToPrivateKey(s)
		require.NoError(t, err)
		assert.Equal(t, sk.D, got.D)
	}

	_, err = StringToPrivateKey("0x1234")
	assert.Error(t, err)
}

func TestFileExists(t *testing.T) {
	assert.False(t, FileExists(t.TempDir()+"/missing.env"))
	assert.True(t, FileExists("server.go"))
}
