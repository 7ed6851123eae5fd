package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

type sourceKey struct {
	txHash   ethcommon.Hash
	logIndex uint
}

// MemoryStore is the in-process, non durable backing. A single mutex
// serializes all operations.
type MemoryStore struct {
	mu sync.Mutex

	payouts  []*Payout // payouts[i].Id == i+1
	bySource map[sourceKey]uint64
	deposits []*Deposit

	lastScanned    uint64
	hasLastScanned bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySource: make(map[sourceKey]uint64),
	}
}

func (s *MemoryStore) CreatePayout(_ context.Context, params *PayoutParams) (*Payout, error) {
	if params == nil || params.Amount == nil {
		return nil, ErrNilParams
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sourceKey{params.SourceTxHash, params.LogIndex}
	if _, ok := s.bySource[key]; ok {
		return nil, ErrPayoutExists
	}

	now := time.Now().UTC()
	p := &Payout{
		Id:           uint64(len(s.payouts)) + 1,
		User:         params.User,
		Fiat:         params.Fiat,
		Amount:       new(big.Int).Set(params.Amount),
		Status:       PayoutStatusPending,
		SourceTxHash: params.SourceTxHash,
		LogIndex:     params.LogIndex,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.payouts = append(s.payouts, p)
	s.bySource[key] = p.Id

	return p.Clone(), nil
}

func (s *MemoryStore) ConfirmPayout(_ context.Context, id uint64) (*Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.payout(id)
	if p == nil || p.Status != PayoutStatusPending {
		return nil, ErrNotFound
	}

	p.Status = PayoutStatusSent
	p.UpdatedAt = time.Now().UTC()

	return p.Clone(), nil
}

func (s *MemoryStore) CreateDeposit(_ context.Context, params *DepositParams) (*Deposit, error) {
	if params == nil || params.Amount == nil {
		return nil, ErrNilParams
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := &Deposit{
		Id:         uint64(len(s.deposits)) + 1,
		User:       params.User,
		Fiat:       params.Fiat,
		Amount:     new(big.Int).Set(params.Amount),
		MintTxHash: params.MintTxHash,
		CreatedAt:  time.Now().UTC(),
	}
	s.deposits = append(s.deposits, d)

	return d.Clone(), nil
}

func (s *MemoryStore) GetPayout(_ context.Context, id uint64) (*Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.payout(id)
	if p == nil {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) GetPayoutBySource(_ context.Context, sourceTxHash ethcommon.Hash, logIndex uint) (*Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.bySource[sourceKey{sourceTxHash, logIndex}]
	if !ok {
		return nil, ErrNotFound
	}
	return s.payout(id).Clone(), nil
}

func (s *MemoryStore) GetDepositsByUser(_ context.Context, user ethcommon.Address) ([]*Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deposits := []*Deposit{}
	for _, d := range s.deposits {
		if d.User == user {
			deposits = append(deposits, d.Clone())
		}
	}
	return deposits, nil
}

func (s *MemoryStore) GetLastScannedBlock(_ context.Context) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastScanned, s.hasLastScanned, nil
}

func (s *MemoryStore) SetLastScannedBlock(_ context.Context, blk uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastScanned = blk
	s.hasLastScanned = true
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// caller must hold s.mu
func (s *MemoryStore) payout(id uint64) *Payout {
	if id == 0 || id > uint64(len(s.payouts)) {
		return nil
	}
	return s.payouts[id-1]
}
