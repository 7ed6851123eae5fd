package etherman

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/TEENet-io/fiat-bridge-go/agreement"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	ErrUnexpectedEvent  = errors.New("log is not a FiatPayout event")
	ErrMissingTopic     = errors.New("FiatPayout log without indexed user")
	ErrZeroPayoutAmount = errors.New("FiatPayout with zero amount")
)

type ethereumClient interface {
	bind.ContractBackend
	bind.DeployBackend

	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Etherman wraps the json rpc client with the calls and events of the
// fiat bridge contracts.
type Etherman struct {
	cfg          *Config
	ethClient    ethereumClient
	bridgeABI    abi.ABI
	mintContract *bind.BoundContract
}

func NewEtherman(cfg *Config) (*Etherman, error) {
	ethClient, err := ethclient.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	return NewEthermanWithClient(cfg, ethClient)
}

// NewEthermanWithClient is used with an already connected (or simulated)
// client.
func NewEthermanWithClient(cfg *Config, ethClient ethereumClient) (*Etherman, error) {
	bridgeABI, err := abi.JSON(strings.NewReader(FiatBridgeABI))
	if err != nil {
		return nil, err
	}

	mintAddress := cfg.MintContractAddress
	if mintAddress == (ethcommon.Address{}) {
		mintAddress = cfg.PayoutContractAddress
	}

	return &Etherman{
		cfg:          cfg,
		ethClient:    ethClient,
		bridgeABI:    bridgeABI,
		mintContract: bind.NewBoundContract(mintAddress, bridgeABI, ethClient, ethClient, ethClient),
	}, nil
}

func (etherman *Etherman) Client() ethereumClient {
	return etherman.ethClient
}

func (etherman *Etherman) ABI() abi.ABI {
	return etherman.bridgeABI
}

func (etherman *Etherman) Close() {
	if c, ok := etherman.ethClient.(interface{ Close() }); ok {
		c.Close()
	}
}

// BlockNumber returns the number of the latest block.
func (etherman *Etherman) BlockNumber(ctx context.Context) (uint64, error) {
	return etherman.ethClient.BlockNumber(ctx)
}

func (etherman *Etherman) fiatPayoutQuery(from, to *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []ethcommon.Address{etherman.cfg.PayoutContractAddress},
		Topics:    [][]ethcommon.Hash{{FiatPayoutSignatureHash}},
	}
}

// FilterFiatPayoutLogs returns the FiatPayout logs of blocks [from, to] in
// chain order.
func (etherman *Etherman) FilterFiatPayoutLogs(ctx context.Context, from, to uint64) ([]types.Log, error) {
	q := etherman.fiatPayoutQuery(new(big.Int).SetUint64(from), new(big.Int).SetUint64(to))
	return etherman.ethClient.FilterLogs(ctx, q)
}

// SubscribeFiatPayoutLogs pushes FiatPayout logs of new blocks to ch. It
// fails with rpc.ErrNotificationsUnsupported over plain http.
func (etherman *Etherman) SubscribeFiatPayoutLogs(ctx context.Context, ch chan<- types.Log) (ethereum.Subscription, error) {
	return etherman.ethClient.SubscribeFilterLogs(ctx, etherman.fiatPayoutQuery(nil, nil), ch)
}

// DecodeFiatPayout extracts the event fields from a raw log.
func (etherman *Etherman) DecodeFiatPayout(vlog *types.Log) (*agreement.FiatPayoutEvent, error) {
	if len(vlog.Topics) == 0 || vlog.Topics[0] != FiatPayoutSignatureHash {
		return nil, ErrUnexpectedEvent
	}
	if len(vlog.Topics) < 2 {
		return nil, ErrMissingTopic
	}

	ev := new(struct {
		Fiat   string
		Amount *big.Int
	})
	if err := etherman.bridgeABI.UnpackIntoInterface(ev, EventFiatPayout, vlog.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack FiatPayout: %w", err)
	}
	if ev.Amount == nil || ev.Amount.Sign() == 0 {
		return nil, ErrZeroPayoutAmount
	}

	return &agreement.FiatPayoutEvent{
		User:        ethcommon.BytesToAddress(vlog.Topics[1].Bytes()),
		Fiat:        ev.Fiat,
		Amount:      ev.Amount,
		TxHash:      vlog.TxHash,
		LogIndex:    vlog.Index,
		BlockNumber: vlog.BlockNumber,
	}, nil
}

// MintFromFiat sends mintFromFiat(user, amount) signed by auth. It doesn't
// wait for the receipt.
func (etherman *Etherman) MintFromFiat(auth *bind.TransactOpts, user ethcommon.Address, amount *big.Int) (*types.Transaction, error) {
	return etherman.mintContract.Transact(auth, MethodMintFromFiat, user, amount)
}

func (etherman *Etherman) PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error) {
	return etherman.ethClient.PendingNonceAt(ctx, account)
}

// TransactionReceipt returns ethereum.NotFound while the tx is pending.
func (etherman *Etherman) TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	return etherman.ethClient.TransactionReceipt(ctx, txHash)
}
