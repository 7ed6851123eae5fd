package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TEENet-io/fiat-bridge-go/agreement"
	"github.com/TEENet-io/fiat-bridge-go/common"
	"github.com/TEENet-io/fiat-bridge-go/ledger"
	"github.com/TEENet-io/fiat-bridge-go/metrics"
	"github.com/TEENet-io/fiat-bridge-go/notifier"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

// Deposits are typed in by an operator. Payout currencies come from
// FiatPayout events and are recorded whatever their length.
const maxDepositFiatLength = 16

// Service is the only writer of the ledger. It records deposits after
// their mint is on chain, records payouts from FiatPayout events and
// moves payouts from pending to sent.
type Service struct {
	cfg      *Config
	store    ledger.Store
	minter   Minter
	notifier Notifier
	metrics  *metrics.Metrics
}

func NewService(cfg *Config, store ledger.Store, minter Minter, n Notifier, m *metrics.Metrics) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		minter:   minter,
		notifier: n,
		metrics:  m,
	}
}

// RecordDeposit mints the token equivalent of a fiat deposit and records
// the deposit once the mint tx is included.
func (s *Service) RecordDeposit(ctx context.Context, req *DepositRequest) (*ledger.Deposit, error) {
	user, err := parseUser(req.User)
	if err != nil {
		return nil, s.invalid("user", err)
	}
	fiat, err := parseFiat(req.Fiat, maxDepositFiatLength)
	if err != nil {
		return nil, s.invalid("fiat", err)
	}
	amount, err := common.ToSmallestUnit(req.Amount, s.cfg.TokenDecimals)
	if err != nil {
		return nil, s.invalid("amount", err)
	}

	newLogger := logger.WithFields(logger.Fields{
		"user":   user.String(),
		"fiat":   fiat,
		"amount": req.Amount,
	})

	txHash, err := s.minter.Mint(ctx, user, amount)
	if err != nil {
		newLogger.WithError(err).Warn("deposit rejected, mint failed")
		return nil, fmt.Errorf("%w: %w", ErrChainSubmission, err)
	}

	d, err := s.store.CreateDeposit(ctx, &ledger.DepositParams{
		User:       user,
		Fiat:       fiat,
		Amount:     amount,
		MintTxHash: txHash,
	})
	if err != nil {
		// The tokens exist on chain now, someone has to reconcile.
		newLogger.WithError(err).WithField("mintTx", txHash.String()).Error("mint included but deposit not recorded")
		return nil, err
	}

	s.metrics.DepositsRecorded.Inc()
	newLogger.WithFields(logger.Fields{
		"id":     d.Id,
		"mintTx": txHash.String(),
	}).Info("deposit recorded")

	return d, nil
}

// RecordPayoutRequest validates the text form of a FiatPayout event and
// records it. created is false when the event was already recorded, in
// which case the existing payout is returned and nothing is broadcast.
func (s *Service) RecordPayoutRequest(ctx context.Context, req *PayoutEventRequest) (p *ledger.Payout, created bool, err error) {
	user, err := parseUser(req.User)
	if err != nil {
		return nil, false, s.invalid("user", err)
	}
	fiat, err := parseFiat(req.Fiat, 0)
	if err != nil {
		return nil, false, s.invalid("fiat", err)
	}
	amount, err := common.ParseSmallestUnit(req.AmountWei)
	if err != nil {
		return nil, false, s.invalid("amountWei", err)
	}
	txHash, err := common.ParseTxHash(req.TxHash)
	if err != nil {
		return nil, false, s.invalid("txHash", err)
	}

	return s.recordPayout(ctx, &ledger.PayoutParams{
		User:         user,
		Fiat:         fiat,
		Amount:       amount,
		SourceTxHash: txHash,
		LogIndex:     req.LogIndex,
	})
}

// RecordPayoutEvent records a decoded event handed over in process by the
// chain event monitor.
func (s *Service) RecordPayoutEvent(ctx context.Context, ev *agreement.FiatPayoutEvent) (uint64, error) {
	fiat, err := parseFiat(ev.Fiat, 0)
	if err != nil {
		return 0, s.invalid("fiat", err)
	}
	if ev.Amount == nil || ev.Amount.Sign() <= 0 {
		return 0, s.invalid("amount", common.ErrAmountNotPositive)
	}
	if ev.User == (ethcommon.Address{}) {
		return 0, s.invalid("user", common.ErrInvalidAddress)
	}

	p, _, err := s.recordPayout(ctx, &ledger.PayoutParams{
		User:         ev.User,
		Fiat:         fiat,
		Amount:       ev.Amount,
		SourceTxHash: ev.TxHash,
		LogIndex:     ev.LogIndex,
	})
	if err != nil {
		return 0, err
	}
	return p.Id, nil
}

func (s *Service) recordPayout(ctx context.Context, params *ledger.PayoutParams) (*ledger.Payout, bool, error) {
	newLogger := logger.WithFields(logger.Fields{
		"sourceTx": common.Shorten(params.SourceTxHash.String(), 8),
		"logIndex": params.LogIndex,
	})

	p, err := s.store.CreatePayout(ctx, params)
	if errors.Is(err, ledger.ErrPayoutExists) {
		existing, err := s.store.GetPayoutBySource(ctx, params.SourceTxHash, params.LogIndex)
		if err != nil {
			return nil, false, err
		}
		s.metrics.PayoutsDuplicated.Inc()
		newLogger.WithField("id", existing.Id).Info("payout event already recorded")
		return existing, false, nil
	}
	if err != nil {
		newLogger.WithError(err).Error("failed to record payout")
		return nil, false, err
	}

	s.metrics.PayoutsRecorded.Inc()
	newLogger.WithFields(logger.Fields{
		"id":     p.Id,
		"user":   p.User.String(),
		"fiat":   p.Fiat,
		"amount": p.Amount.String(),
	}).Info("payout recorded")

	s.notify(p)
	return p, true, nil
}

// ConfirmPayout marks a pending payout as sent. Any second attempt fails
// with ErrNotFound.
func (s *Service) ConfirmPayout(ctx context.Context, id uint64) (*ledger.Payout, error) {
	p, err := s.store.ConfirmPayout(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		s.metrics.RequestsRejected.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.PayoutsConfirmed.Inc()
	logger.WithField("id", p.Id).Info("payout sent")

	s.notify(p)
	return p, nil
}

func (s *Service) GetPayout(ctx context.Context, id uint64) (*ledger.Payout, error) {
	p, err := s.store.GetPayout(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	return p, err
}

func (s *Service) GetDepositsByUser(ctx context.Context, user string) ([]*ledger.Deposit, error) {
	addr, err := common.ParseEthAddress(user)
	if err != nil {
		return nil, s.invalid("user", err)
	}
	return s.store.GetDepositsByUser(ctx, addr)
}

// PayoutMessage is the notifier form of a payout.
func (s *Service) PayoutMessage(p *ledger.Payout) *notifier.PayoutStatusMessage {
	return &notifier.PayoutStatusMessage{
		Id:     p.Id,
		Status: string(p.Status),
		User:   p.User.String(),
		Fiat:   p.Fiat,
		Amount: common.FromSmallestUnit(p.Amount, s.cfg.TokenDecimals),
	}
}

func (s *Service) notify(p *ledger.Payout) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyPayoutStatus(s.PayoutMessage(p))
}

func (s *Service) invalid(field string, err error) error {
	s.metrics.RequestsRejected.WithLabelValues("invalid_input").Inc()
	return fmt.Errorf("%w: %s: %v", ErrInvalidInput, field, err)
}

func parseUser(user string) (ethcommon.Address, error) {
	addr, err := common.ParseEthAddress(user)
	if err != nil {
		return ethcommon.Address{}, err
	}
	if addr == (ethcommon.Address{}) {
		return ethcommon.Address{}, errors.New("zero address")
	}
	return addr, nil
}

// parseFiat trims the currency code. maxLen 0 means no limit.
func parseFiat(fiat string, maxLen int) (string, error) {
	fiat = strings.TrimSpace(fiat)
	if fiat == "" {
		return "", errors.New("missing currency")
	}
	if maxLen > 0 && len(fiat) > maxLen {
		return "", errors.New("currency code too long")
	}
	return fiat, nil
}
