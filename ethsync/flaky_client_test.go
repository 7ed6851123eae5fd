package ethsync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/TEENet-io/fiat-bridge-go/etherman"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/require"
)

var (
	errRangeTooLarge = errors.New("query exceeds max block range")
	errConnRefused   = errors.New("connection refused")
	errConnReset     = errors.New("connection reset by peer")
)

// flakyClient is the simulated client behind a node that caps the block
// range of eth_getLogs and whose connection can be cut on demand.
type flakyClient struct {
	simulated.Client

	// 0 for no cap
	maxRange uint64

	mu         sync.Mutex
	down       bool
	subs       []*flakySub
	rejected   int
	maxQueried uint64
}

type flakySub struct {
	inner ethereum.Subscription
	errC  chan error
}

func (s *flakySub) Unsubscribe() {
	s.inner.Unsubscribe()
}

func (s *flakySub) Err() <-chan error {
	return s.errC
}

// useFlakyClient makes the monitors started by env talk to a flakyClient.
func (env *testEnv) useFlakyClient(t *testing.T, maxRange uint64) *flakyClient {
	c := &flakyClient{Client: env.sim.Backend.Client(), maxRange: maxRange}
	em, err := etherman.NewEthermanWithClient(&etherman.Config{
		PayoutContractAddress: env.sim.PayoutContract,
		MintContractAddress:   env.sim.MintContract,
	}, c)
	require.NoError(t, err)
	env.em = em
	return c
}

func (c *flakyClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	span := q.ToBlock.Uint64() - q.FromBlock.Uint64() + 1

	c.mu.Lock()
	if span > c.maxQueried {
		c.maxQueried = span
	}
	if c.maxRange > 0 && span > c.maxRange {
		c.rejected++
		c.mu.Unlock()
		return nil, errRangeTooLarge
	}
	c.mu.Unlock()

	return c.Client.FilterLogs(ctx, q)
}

func (c *flakyClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.down {
		return nil, errConnRefused
	}
	inner, err := c.Client.SubscribeFilterLogs(ctx, q, ch)
	if err != nil {
		return nil, err
	}
	s := &flakySub{inner: inner, errC: make(chan error, 1)}
	c.subs = append(c.subs, s)
	return s, nil
}

// disconnect fails the live subscriptions and refuses new ones until
// reconnect.
func (c *flakyClient) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.down = true
	for _, s := range c.subs {
		s.errC <- errConnReset
	}
	c.subs = nil
}

func (c *flakyClient) reconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down = false
}

func (c *flakyClient) stats() (rejected int, maxQueried uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejected, c.maxQueried
}
