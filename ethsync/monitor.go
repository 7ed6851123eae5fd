package ethsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TEENet-io/fiat-bridge-go/agreement"
	"github.com/TEENet-io/fiat-bridge-go/common"
	"github.com/TEENet-io/fiat-bridge-go/etherman"
	"github.com/TEENet-io/fiat-bridge-go/metrics"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	logger "github.com/sirupsen/logrus"
)

type State string

// item is a decoded event, or with ev nil, the mark that every event up to
// block has been queued.
type item struct {
	ev    *agreement.FiatPayoutEvent
	block uint64
}

const (
	StateDisconnected State = "disconnected"
	StateSubscribed   State = "subscribed"
	StatePolling      State = "polling"
)

// Monitor watches the payout contract for FiatPayout events and hands them
// over to a PayoutRecorder one at a time, in chain order.
//
// Delivery is at least once: after every (re)connection the monitor scans
// the blocks it may have missed, so the recorder must tolerate redelivered
// events.
//
// The checkpoint moves to the block of every forwarded event and to the end
// of every fully scanned range, so quiet stretches of chain are not scanned
// again after a restart.
type Monitor struct {
	cfg        *Config
	etherman   *etherman.Etherman
	recorder   agreement.PayoutRecorder
	checkpoint Checkpoint
	metrics    *metrics.Metrics

	state   atomic.Value
	started atomic.Bool

	events chan *item

	// next block to scan on reconnection, owned by the listener
	next     uint64
	pollOnly bool
}

func New(
	cfg *Config,
	etherman *etherman.Etherman,
	recorder agreement.PayoutRecorder,
	checkpoint Checkpoint,
	m *metrics.Metrics,
) *Monitor {
	c := *cfg
	c.normalize()
	if m == nil {
		m = metrics.New()
	}

	mon := &Monitor{
		cfg:        &c,
		etherman:   etherman,
		recorder:   recorder,
		checkpoint: checkpoint,
		metrics:    m,
		events:     make(chan *item, c.ChannelSize),
		pollOnly:   c.DisableSubscription || c.Confirmations > 0,
	}
	mon.setState(StateDisconnected)
	return mon
}

func (mon *Monitor) State() State {
	return mon.state.Load().(State)
}

func (mon *Monitor) setState(st State) {
	mon.state.Store(st)
	if st == StateDisconnected {
		mon.metrics.MonitorState.Set(0)
	} else {
		mon.metrics.MonitorState.Set(1)
	}
}

// Start runs the monitor until ctx is done. It only returns early if the
// resume block can't be determined.
func (mon *Monitor) Start(ctx context.Context) error {
	if !mon.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	logger.Debug("starting chain event monitor")
	defer func() {
		mon.setState(StateDisconnected)
		logger.Debug("stopping chain event monitor")
	}()

	next, err := mon.resumeBlock(ctx)
	if err != nil {
		return err
	}
	mon.next = next
	logger.WithField("from", next).Info("chain event monitor resuming")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.forward(ctx)
	}()
	defer wg.Wait()

	backoff := mon.cfg.MinBackoff
	for {
		connected, err := mon.watch(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		mon.setState(StateDisconnected)
		mon.metrics.Resubscriptions.Inc()
		if connected {
			backoff = mon.cfg.MinBackoff
		}
		logger.WithFields(logger.Fields{
			"err":   err,
			"retry": backoff,
		}).Warn("chain event monitor disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > mon.cfg.MaxBackoff {
			backoff = mon.cfg.MaxBackoff
		}
	}
}

func (mon *Monitor) resumeBlock(ctx context.Context) (uint64, error) {
	head, err := mon.etherman.BlockNumber(ctx)
	if err != nil {
		logger.WithError(err).Error("failed to get the chain head")
		return 0, err
	}

	if mon.checkpoint != nil {
		blk, ok, err := mon.checkpoint.GetLastScannedBlock(ctx)
		if err != nil {
			logger.WithError(err).Error("failed to load the monitor checkpoint")
			return 0, err
		}
		if ok {
			if blk > head {
				return 0, ErrCheckpointAheadOfHead(blk, head)
			}
			// The checkpoint block may hold more events than the one
			// forwarded, scan it again.
			return blk, nil
		}
	}

	if mon.cfg.StartBlock >= 0 {
		return uint64(mon.cfg.StartBlock), nil
	}
	return head + 1, nil
}

// watch connects to the node and delivers logs until the connection fails
// or ctx is done. connected reports whether the connection was established.
func (mon *Monitor) watch(ctx context.Context) (connected bool, err error) {
	var (
		errC <-chan error
		logC chan types.Log
	)

	if !mon.pollOnly {
		logC = make(chan types.Log, mon.cfg.ChannelSize)
		s, err := mon.etherman.SubscribeFiatPayoutLogs(ctx, logC)
		switch {
		case errors.Is(err, rpc.ErrNotificationsUnsupported):
			logger.Info("node can't push logs, falling back to polling")
			mon.pollOnly = true
		case err != nil:
			return false, err
		default:
			defer s.Unsubscribe()
			errC = s.Err()
		}
	}

	// Subscribed before the scan so that no block falls in between. Logs
	// of scanned blocks that also come through the subscription are
	// skipped.
	scanned, err := mon.scan(ctx)
	if err != nil {
		return false, err
	}

	if mon.pollOnly {
		mon.setState(StatePolling)
		return true, mon.poll(ctx)
	}
	mon.setState(StateSubscribed)

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case err := <-errC:
			if err == nil {
				err = ErrSubscriptionClosed
			}
			return true, err
		case vlog := <-logC:
			if vlog.BlockNumber <= scanned {
				continue
			}
			if err := mon.handle(ctx, &vlog); err != nil {
				return true, err
			}
			if vlog.BlockNumber > mon.next {
				mon.next = vlog.BlockNumber
			}
		}
	}
}

func (mon *Monitor) poll(ctx context.Context) error {
	ticker := time.NewTicker(mon.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := mon.scan(ctx); err != nil {
				return err
			}
		}
	}
}

// scan delivers the logs of blocks [next, safe head], at most MaxBlockRange
// blocks per query, and returns the safe head. The safe head is the latest
// block minus Confirmations.
func (mon *Monitor) scan(ctx context.Context) (uint64, error) {
	head, err := mon.etherman.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	if head < mon.cfg.Confirmations {
		return 0, nil
	}
	head -= mon.cfg.Confirmations

	for mon.next <= head {
		from, to := mon.next, head
		if to-from+1 > mon.cfg.MaxBlockRange {
			to = from + mon.cfg.MaxBlockRange - 1
		}

		logs, err := mon.etherman.FilterFiatPayoutLogs(ctx, from, to)
		if err != nil {
			return 0, err
		}
		if len(logs) > 0 {
			logger.WithFields(logger.Fields{
				"from": from,
				"to":   to,
				"logs": len(logs),
			}).Debug("scanned blocks")
		}

		for i := range logs {
			if err := mon.handle(ctx, &logs[i]); err != nil {
				return 0, err
			}
		}
		if err := mon.queue(ctx, &item{block: to}); err != nil {
			return 0, err
		}
		mon.next = to + 1
	}

	return head, nil
}

// handle decodes a log and queues it for forwarding. Only a done ctx is
// reported as error, undecodable logs are skipped.
func (mon *Monitor) handle(ctx context.Context, vlog *types.Log) error {
	newLogger := logger.WithFields(logger.Fields{
		"tx":       common.Shorten(vlog.TxHash.String(), 8),
		"logIndex": vlog.Index,
		"block":    vlog.BlockNumber,
	})

	if vlog.Removed {
		newLogger.Warn("skipping removed FiatPayout log")
		return nil
	}

	ev, err := mon.etherman.DecodeFiatPayout(vlog)
	if err != nil {
		newLogger.WithError(err).Warn("skipping undecodable FiatPayout log")
		return nil
	}
	mon.metrics.EventsReceived.Inc()

	return mon.queue(ctx, &item{ev: ev, block: ev.BlockNumber})
}

func (mon *Monitor) queue(ctx context.Context, it *item) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case mon.events <- it:
	}
	return nil
}

// forward hands events over to the recorder sequentially. A refused event
// is logged and not retried.
func (mon *Monitor) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-mon.events:
			if it.ev != nil {
				if !mon.forwardEvent(ctx, it.ev) {
					return
				}
			}
			mon.saveCheckpoint(ctx, it.block)
		}
	}
}

// forwardEvent returns false if ctx is done.
func (mon *Monitor) forwardEvent(ctx context.Context, ev *agreement.FiatPayoutEvent) bool {
	newLogger := logger.WithField("event", ev.String())

	id, err := mon.recorder.RecordPayoutEvent(ctx, ev)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		mon.metrics.ForwardErrors.Inc()
		newLogger.WithError(err).Error("failed to forward FiatPayout event")
		return true
	}

	mon.metrics.EventsForwarded.Inc()
	newLogger.WithField("payoutId", id).Info("forwarded FiatPayout event")
	return true
}

func (mon *Monitor) saveCheckpoint(ctx context.Context, blk uint64) {
	if mon.checkpoint != nil {
		if err := mon.checkpoint.SetLastScannedBlock(ctx, blk); err != nil {
			logger.WithError(err).WithField("block", blk).Error("failed to store the monitor checkpoint")
			return
		}
	}
	mon.metrics.LastScannedBlock.Set(float64(blk))
}
