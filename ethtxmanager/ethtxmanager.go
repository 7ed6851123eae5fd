package ethtxmanager

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/TEENet-io/fiat-bridge-go/common"
	"github.com/TEENet-io/fiat-bridge-go/etherman"
	"github.com/TEENet-io/fiat-bridge-go/metrics"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultFrequencyToCheckReceipt    = time.Second
	defaultTimeoutOnWaitingForReceipt = 2 * time.Minute
)

// EthTxManager submits mintFromFiat transactions with the single bridge
// controlled account and waits for their inclusion.
type EthTxManager struct {
	cfg      *Config
	etherman *etherman.Etherman
	auth     *bind.TransactOpts
	metrics  *metrics.Metrics

	// serializes nonce selection and sending
	mu sync.Mutex
	// next nonce to use, nil until fetched from the node
	nonce *uint64
}

func NewEthTxManager(
	cfg *Config,
	etherman *etherman.Etherman,
	signer *ecdsa.PrivateKey,
	m *metrics.Metrics,
) (*EthTxManager, error) {
	c := *cfg
	if c.FrequencyToCheckReceipt <= 0 {
		c.FrequencyToCheckReceipt = defaultFrequencyToCheckReceipt
	}
	if c.TimeoutOnWaitingForReceipt <= 0 {
		c.TimeoutOnWaitingForReceipt = defaultTimeoutOnWaitingForReceipt
	}

	if c.ChainID == nil {
		chainID, err := etherman.Client().ChainID(context.Background())
		if err != nil {
			logger.WithError(err).Error("failed to get eth chain ID")
			return nil, err
		}
		c.ChainID = chainID
	}

	auth, err := bind.NewKeyedTransactorWithChainID(signer, c.ChainID)
	if err != nil {
		return nil, err
	}

	if m == nil {
		m = metrics.New()
	}

	return &EthTxManager{
		cfg:      &c,
		etherman: etherman,
		auth:     auth,
		metrics:  m,
	}, nil
}

// Address of the signing account.
func (txmgr *EthTxManager) Address() ethcommon.Address {
	return txmgr.auth.From
}

// Mint sends mintFromFiat(user, amount) and blocks until the tx is included
// with a successful receipt. Every failure wraps ErrChainSubmission.
func (txmgr *EthTxManager) Mint(ctx context.Context, user ethcommon.Address, amount *big.Int) (ethcommon.Hash, error) {
	newLogger := logger.WithFields(logger.Fields{
		"user":   user.String(),
		"amount": amount.String(),
	})

	start := time.Now()
	tx, err := txmgr.send(ctx, user, amount)
	if err != nil {
		newLogger.WithError(err).Error("failed to send mint tx")
		txmgr.metrics.MintSubmissions.WithLabelValues("not_sent").Inc()
		return ethcommon.Hash{}, fmt.Errorf("%w: %w: %v", ErrChainSubmission, ErrTxNotSent, err)
	}

	newLogger = newLogger.WithField("txHash", common.Shorten(tx.Hash().String(), 8))
	newLogger.Debug("mint tx sent")

	receipt, err := txmgr.waitForReceipt(ctx, tx.Hash())
	if err != nil {
		newLogger.WithError(err).Error("mint tx not included")
		txmgr.metrics.MintSubmissions.WithLabelValues("timeout").Inc()
		return tx.Hash(), fmt.Errorf("%w: %w", ErrChainSubmission, err)
	}
	txmgr.metrics.MintLatency.Observe(time.Since(start).Seconds())

	if receipt.Status != types.ReceiptStatusSuccessful {
		newLogger.Error("mint tx reverted")
		txmgr.metrics.MintSubmissions.WithLabelValues("reverted").Inc()
		return tx.Hash(), fmt.Errorf("%w: %w", ErrChainSubmission, ErrTxReverted)
	}

	newLogger.WithField("block", receipt.BlockNumber).Info("mint tx included")
	txmgr.metrics.MintSubmissions.WithLabelValues("success").Inc()
	return tx.Hash(), nil
}

func (txmgr *EthTxManager) send(ctx context.Context, user ethcommon.Address, amount *big.Int) (*types.Transaction, error) {
	txmgr.mu.Lock()
	defer txmgr.mu.Unlock()

	if txmgr.nonce == nil {
		nonce, err := txmgr.etherman.PendingNonceAt(ctx, txmgr.auth.From)
		if err != nil {
			return nil, err
		}
		txmgr.nonce = &nonce
	}

	opts := *txmgr.auth
	opts.Context = ctx
	opts.GasLimit = txmgr.cfg.GasLimit
	opts.Nonce = new(big.Int).SetUint64(*txmgr.nonce)

	tx, err := txmgr.etherman.MintFromFiat(&opts, user, amount)
	if err != nil {
		// the node may know better next time
		txmgr.nonce = nil
		return nil, err
	}
	*txmgr.nonce++

	return tx, nil
}

// waitForReceipt polls the receipt until it shows up or the timeout expires.
// Query errors are treated like a missing receipt so that a node outage
// ends in ErrReceiptTimeout instead of hanging.
func (txmgr *EthTxManager) waitForReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, txmgr.cfg.TimeoutOnWaitingForReceipt)
	defer cancel()

	ticker := time.NewTicker(txmgr.cfg.FrequencyToCheckReceipt)
	defer ticker.Stop()

	for {
		receipt, err := txmgr.etherman.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			logger.WithError(err).Debug("failed to get transaction receipt")
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrReceiptTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
