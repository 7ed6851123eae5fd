package ledger

import (
	"math/big"
	"strconv"
	"time"

	"github.com/TEENet-io/fiat-bridge-go/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

// payoutRow and depositRow hold the storage representation shared by the
// sql backings.
type payoutRow struct {
	id           int64
	user         string
	fiat         string
	amount       string
	status       string
	sourceTxHash string
	logIndex     int64
	createdAt    time.Time
	updatedAt    time.Time
}

type depositRow struct {
	id         int64
	user       string
	fiat       string
	amount     string
	mintTxHash string
	createdAt  time.Time
}

func addressToStr(addr ethcommon.Address) string {
	return common.Trim0xPrefix(addr.Hex())
}

func hashToStr(h ethcommon.Hash) string {
	return common.Trim0xPrefix(h.Hex())
}

func strToAddress(s string) (ethcommon.Address, error) {
	if len(s) != 40 || !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, errCorrupted("address", s)
	}
	return ethcommon.HexToAddress(s), nil
}

func strToHash(s string) (ethcommon.Hash, error) {
	if len(s) != 64 {
		return ethcommon.Hash{}, errCorrupted("hash", s)
	}
	return ethcommon.HexToHash(s), nil
}

func strToAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errCorrupted("amount", s)
	}
	return v, nil
}

func (r *payoutRow) decode() (*Payout, error) {
	user, err := strToAddress(r.user)
	if err != nil {
		return nil, err
	}
	amount, err := strToAmount(r.amount)
	if err != nil {
		return nil, err
	}
	txHash, err := strToHash(r.sourceTxHash)
	if err != nil {
		return nil, err
	}
	status := PayoutStatus(r.status)
	if status != PayoutStatusPending && status != PayoutStatusSent {
		return nil, errCorrupted("status", r.status)
	}

	return &Payout{
		Id:           uint64(r.id),
		User:         user,
		Fiat:         r.fiat,
		Amount:       amount,
		Status:       status,
		SourceTxHash: txHash,
		LogIndex:     uint(r.logIndex),
		CreatedAt:    r.createdAt.UTC(),
		UpdatedAt:    r.updatedAt.UTC(),
	}, nil
}

func (r *depositRow) decode() (*Deposit, error) {
	user, err := strToAddress(r.user)
	if err != nil {
		return nil, err
	}
	amount, err := strToAmount(r.amount)
	if err != nil {
		return nil, err
	}
	txHash, err := strToHash(r.mintTxHash)
	if err != nil {
		return nil, err
	}

	return &Deposit{
		Id:         uint64(r.id),
		User:       user,
		Fiat:       r.fiat,
		Amount:     amount,
		MintTxHash: txHash,
		CreatedAt:  r.createdAt.UTC(),
	}, nil
}

func blockToStr(blk uint64) string {
	return strconv.FormatUint(blk, 10)
}

func strToBlock(s string) (uint64, error) {
	blk, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errCorrupted("block", s)
	}
	return blk, nil
}
