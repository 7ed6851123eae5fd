// Standalone chain event monitor: FiatPayout events are forwarded to a
// remote bridge server over http.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/fiat-bridge-go/api"
	"github.com/TEENet-io/fiat-bridge-go/etherman"
	"github.com/TEENet-io/fiat-bridge-go/ethsync"
	"github.com/TEENet-io/fiat-bridge-go/ledger"
	"github.com/TEENet-io/fiat-bridge-go/metrics"
)

const forwardTimeout = 10 * time.Second

type PayoutMonitorConfig struct {
	// eth side
	EthRpcUrl         string
	EthPayoutContract string
	EthStartBlk       int64 // -1 for the current head
	EthPollOnly       bool
	EthMaxBlockRange  uint64
	EthConfirmations  uint64

	// checkpoint store
	DbBackend   string
	DbFilePath  string
	PostgresDSN string

	// remote bridge server
	ApiUrl string // eg. http://localhost:8080
	ApiKey string
}

// NewPayoutMonitor creates the monitor and starts it in the background.
func NewPayoutMonitor(cfg *PayoutMonitorConfig, ctx context.Context, wg *sync.WaitGroup) (*ethsync.Monitor, error) {
	ethCfg, err := ethermanConfig(&FiatBridgeServerConfig{EthPayoutContract: cfg.EthPayoutContract})
	if err != nil {
		return nil, err
	}
	ethCfg.URL = cfg.EthRpcUrl

	myEtherman, err := etherman.NewEtherman(ethCfg)
	if err != nil {
		logger.WithError(err).Error("failed to create etherman")
		return nil, err
	}

	checkpoint, err := ledger.New(ctx, &ledger.Config{
		Backend:     cfg.DbBackend,
		DbFilePath:  cfg.DbFilePath,
		PostgresDSN: cfg.PostgresDSN,
	})
	if err != nil {
		logger.WithError(err).Error("failed to open checkpoint store")
		myEtherman.Close()
		return nil, err
	}

	mon := ethsync.New(&ethsync.Config{
		StartBlock:          cfg.EthStartBlk,
		ChannelSize:         monitorChannelSize,
		PollInterval:        monitorPollInterval,
		MinBackoff:          monitorMinBackoff,
		MaxBackoff:          monitorMaxBackoff,
		MaxBlockRange:       cfg.EthMaxBlockRange,
		Confirmations:       cfg.EthConfirmations,
		DisableSubscription: cfg.EthPollOnly,
	}, myEtherman, api.NewHttpClient(cfg.ApiUrl, cfg.ApiKey, forwardTimeout), checkpoint, metrics.New())

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer myEtherman.Close()
		defer checkpoint.Close()

		err := mon.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("chain event monitor stopped")
		}
	}()

	return mon, nil
}

// Create, then start the standalone monitor and wait.
// Press Ctrl-C to kill it.
func StartPayoutMonitorAndWait(cfg *PayoutMonitorConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, cancelling context...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup
	if _, err := NewPayoutMonitor(cfg, ctx, &wg); err != nil {
		logger.Fatalf("failed to create payout monitor: %v", err)
		return
	}

	wg.Wait()
}
