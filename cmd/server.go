// Server = etherman + ledger + settlement + notifier + chain event monitor
// + http api. All components are configured via environment variables
// (strings!).

package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/fiat-bridge-go/api"
	"github.com/TEENet-io/fiat-bridge-go/common"
	"github.com/TEENet-io/fiat-bridge-go/etherman"
	"github.com/TEENet-io/fiat-bridge-go/ethsync"
	"github.com/TEENet-io/fiat-bridge-go/ethtxmanager"
	"github.com/TEENet-io/fiat-bridge-go/ledger"
	"github.com/TEENet-io/fiat-bridge-go/metrics"
	"github.com/TEENet-io/fiat-bridge-go/notifier"
	"github.com/TEENet-io/fiat-bridge-go/settlement"
)

// Default params for server.
// More often we don't recommend users to tweak those.
// So we list them here.
const (
	// eth tx manager config
	frequencyToCheckReceipt    = 1 * time.Second
	timeoutOnWaitingForReceipt = 2 * time.Minute

	// chain event monitor config
	monitorChannelSize  = 256
	monitorPollInterval = 2 * time.Second
	monitorMinBackoff   = 500 * time.Millisecond
	monitorMaxBackoff   = 30 * time.Second

	// notifier publisher-observer config
	CHANNEL_BUFFER_SIZE = 64
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type FiatBridgeServerConfig struct {
	// eth side
	EthRpcUrl          string // json rpc url, ws:// enables push subscriptions
	EthCoreAccountPriv string // private key of the account allowed to mint
	EthPayoutContract  string // contract emitting FiatPayout
	EthMintContract    string // contract exposing mintFromFiat, defaults to EthPayoutContract
	EthStartBlk        int64  // first block to scan without checkpoint, -1 for the current head
	EthPollOnly        bool   // never subscribe, poll eth_getLogs
	EthMaxBlockRange   uint64 // span of one eth_getLogs call, 0 for the default
	EthConfirmations   uint64 // blocks to wait before forwarding an event, implies polling

	// ledger side
	DbBackend   string // memory, sqlite or postgres
	DbFilePath  string // sqlite file path
	PostgresDSN string // postgres connection string

	// settlement
	TokenDecimals int // decimals of the minted token, 0 for 18

	// Http side
	HttpIp    string  // eg. 0.0.0.0
	HttpPort  string  // eg. 8080
	ApiKey    string  // X-API-Key of mutating routes, empty to disable
	RateLimit float64 // requests per second per client ip, 0 to disable
	RateBurst int

	DisableMonitor bool // when payouts are forwarded by a standalone monitor
}

// FiatBridgeServer holds the objects that consists of the bridge server.
type FiatBridgeServer struct {
	MyEtherman   *etherman.Etherman
	MyLedger     ledger.Store
	MyEthTxMgr   *ethtxmanager.EthTxManager
	MySettlement *settlement.Service
	MyPublisher  *notifier.PublisherService
	MyMonitor    *ethsync.Monitor // nil if disabled
	MyHttpServer *api.HttpServer
	Metrics      *metrics.Metrics
}

// NewFiatBridgeServer creates a new bridge server.
// ctx is used for parental context to cancel the operation of bridge server.
// wg is used to wait for all the goroutines inside the server (monitor, http server) to finish.
func NewFiatBridgeServer(cfg *FiatBridgeServerConfig, ctx context.Context, wg *sync.WaitGroup) (*FiatBridgeServer, error) {
	ethCfg, err := ethermanConfig(cfg)
	if err != nil {
		return nil, err
	}

	myEtherman, err := etherman.NewEtherman(ethCfg)
	if err != nil {
		logger.WithError(err).Error("failed to create etherman")
		return nil, err
	}

	srv, err := newFiatBridgeServer(cfg, myEtherman, nil, ctx, wg)
	if err != nil {
		myEtherman.Close()
		return nil, err
	}
	return srv, nil
}

// newFiatBridgeServer wires and starts the components on top of a
// connected etherman. chainID nil means asking the node.
func newFiatBridgeServer(
	cfg *FiatBridgeServerConfig,
	myEtherman *etherman.Etherman,
	chainID *big.Int,
	ctx context.Context,
	wg *sync.WaitGroup,
) (*FiatBridgeServer, error) {
	m := metrics.New()

	// 1) Core account that signs mintFromFiat
	coreAccount, err := StringToPrivateKey(cfg.EthCoreAccountPriv)
	if err != nil {
		logger.WithError(err).Error("failed to parse core eth account")
		return nil, err
	}

	// 2) Ledger
	myLedger, err := ledger.New(ctx, &ledger.Config{
		Backend:     cfg.DbBackend,
		DbFilePath:  cfg.DbFilePath,
		PostgresDSN: cfg.PostgresDSN,
	})
	if err != nil {
		logger.WithError(err).Error("failed to open ledger")
		return nil, err
	}

	// 3) Chain submitter
	myEthTxMgr, err := ethtxmanager.NewEthTxManager(&ethtxmanager.Config{
		ChainID:                    chainID,
		FrequencyToCheckReceipt:    frequencyToCheckReceipt,
		TimeoutOnWaitingForReceipt: timeoutOnWaitingForReceipt,
	}, myEtherman, coreAccount, m)
	if err != nil {
		logger.WithError(err).Error("failed to create eth tx manager")
		myLedger.Close()
		return nil, err
	}
	logger.WithField("address", myEthTxMgr.Address().Hex()).Info("Core account")

	// 4) Notifier + settlement
	myPublisher := notifier.NewPublisherService(CHANNEL_BUFFER_SIZE, m)

	settlementCfg := settlement.DefaultConfig()
	if cfg.TokenDecimals > 0 {
		settlementCfg.TokenDecimals = uint8(cfg.TokenDecimals)
	}
	mySettlement := settlement.NewService(settlementCfg, myLedger, myEthTxMgr, myPublisher, m)

	// 5) Chain event monitor, forwarding in process
	var myMonitor *ethsync.Monitor
	var monitorStatus api.MonitorStatus
	if !cfg.DisableMonitor {
		myMonitor = ethsync.New(&ethsync.Config{
			StartBlock:          cfg.EthStartBlk,
			ChannelSize:         monitorChannelSize,
			PollInterval:        monitorPollInterval,
			MinBackoff:          monitorMinBackoff,
			MaxBackoff:          monitorMaxBackoff,
			MaxBlockRange:       cfg.EthMaxBlockRange,
			Confirmations:       cfg.EthConfirmations,
			DisableSubscription: cfg.EthPollOnly,
		}, myEtherman, mySettlement, myLedger, m)
		monitorStatus = myMonitor
	}

	// 6) Http api
	myHttpServer := api.NewHttpServer(&api.Config{
		ServerIP:   cfg.HttpIp,
		ServerPort: cfg.HttpPort,
		ApiKey:     cfg.ApiKey,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
	}, mySettlement, notifier.NewWsHandler(myPublisher, nil), m, monitorStatus)

	// Important: Turn on the components!
	if myMonitor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := myMonitor.Start(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Error("chain event monitor stopped")
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := myHttpServer.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("http server stopped")
		}
	}()
	// Release the ledger once everything above is done.
	go func() {
		<-ctx.Done()
		wg.Wait()
		if err := myLedger.Close(); err != nil {
			logger.WithError(err).Warn("failed to close ledger")
		}
	}()
	// Don't forget to call wg.Wait() in the main routine.

	return &FiatBridgeServer{
		MyEtherman:   myEtherman,
		MyLedger:     myLedger,
		MyEthTxMgr:   myEthTxMgr,
		MySettlement: mySettlement,
		MyPublisher:  myPublisher,
		MyMonitor:    myMonitor,
		MyHttpServer: myHttpServer,
		Metrics:      m,
	}, nil
}

func ethermanConfig(cfg *FiatBridgeServerConfig) (*etherman.Config, error) {
	payout, err := common.ParseEthAddress(cfg.EthPayoutContract)
	if err != nil {
		return nil, fmt.Errorf("payout contract %q: %w", cfg.EthPayoutContract, err)
	}

	mint := payout
	if cfg.EthMintContract != "" {
		mint, err = common.ParseEthAddress(cfg.EthMintContract)
		if err != nil {
			return nil, fmt.Errorf("mint contract %q: %w", cfg.EthMintContract, err)
		}
	}

	return &etherman.Config{
		URL:                   cfg.EthRpcUrl,
		PayoutContractAddress: payout,
		MintContractAddress:   mint,
	}, nil
}

// Create, then start the bridge server and wait.
// Press Ctrl-C to kill the server.
func StartFiatBridgeServerAndWait(cfg *FiatBridgeServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Launch a new goroutine to handle the signal
	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, cancelling context...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	srv, err := NewFiatBridgeServer(cfg, ctx, &wg)
	if err != nil {
		logger.Fatalf("failed to create fiat bridge server: %v", err)
		return
	}
	defer srv.MyEtherman.Close()

	// wait for all routines to finish
	wg.Wait()
}

