package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/TEENet-io/fiat-bridge-go/database"
	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the embedded durable backing. The pool is capped at one
// connection, so every statement is serialized and ":memory:" databases
// survive between calls.
type SQLiteStore struct {
	db        *sql.DB
	stmtCache *database.StmtCache
}

func NewSQLiteStore(dbFilePath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbFilePath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	st, err := NewSQLiteStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

// NewSQLiteStoreFromDB creates the tables on an already opened database.
func NewSQLiteStoreFromDB(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(payoutTable + depositTable + kvTable); err != nil {
		return nil, err
	}

	return &SQLiteStore{
		db:        db,
		stmtCache: database.NewStmtCache(db),
	}, nil
}

func (st *SQLiteStore) Close() error {
	st.stmtCache.Clear()
	return st.db.Close()
}

func (st *SQLiteStore) CreatePayout(ctx context.Context, params *PayoutParams) (*Payout, error) {
	if params == nil || params.Amount == nil {
		return nil, ErrNilParams
	}

	query := `INSERT INTO payouts (userAddress, fiat, amount, status, sourceTxHash, logIndex, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (sourceTxHash, logIndex) DO NOTHING
		RETURNING ` + payoutColumns
	stmt, err := st.stmtCache.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	p, err := scanSQLitePayout(stmt.QueryRowContext(ctx,
		addressToStr(params.User),
		params.Fiat,
		params.Amount.String(),
		string(PayoutStatusPending),
		hashToStr(params.SourceTxHash),
		params.LogIndex,
		now,
		now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPayoutExists
	}
	return p, err
}

func (st *SQLiteStore) ConfirmPayout(ctx context.Context, id uint64) (*Payout, error) {
	query := `UPDATE payouts SET status = ?, updatedAt = ?
		WHERE id = ? AND status = ?
		RETURNING ` + payoutColumns
	stmt, err := st.stmtCache.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	p, err := scanSQLitePayout(stmt.QueryRowContext(ctx,
		string(PayoutStatusSent),
		time.Now().UnixMilli(),
		id,
		string(PayoutStatusPending),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (st *SQLiteStore) CreateDeposit(ctx context.Context, params *DepositParams) (*Deposit, error) {
	if params == nil || params.Amount == nil {
		return nil, ErrNilParams
	}

	query := `INSERT INTO deposits (userAddress, fiat, amount, mintTxHash, createdAt)
		VALUES (?, ?, ?, ?, ?)
		RETURNING ` + depositColumns
	stmt, err := st.stmtCache.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return scanSQLiteDeposit(stmt.QueryRowContext(ctx,
		addressToStr(params.User),
		params.Fiat,
		params.Amount.String(),
		hashToStr(params.MintTxHash),
		time.Now().UnixMilli(),
	))
}

func (st *SQLiteStore) GetPayout(ctx context.Context, id uint64) (*Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = ?`
	stmt, err := st.stmtCache.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	p, err := scanSQLitePayout(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (st *SQLiteStore) GetPayoutBySource(ctx context.Context, sourceTxHash ethcommon.Hash, logIndex uint) (*Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE sourceTxHash = ? AND logIndex = ?`
	stmt, err := st.stmtCache.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	p, err := scanSQLitePayout(stmt.QueryRowContext(ctx, hashToStr(sourceTxHash), logIndex))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (st *SQLiteStore) GetDepositsByUser(ctx context.Context, user ethcommon.Address) ([]*Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE userAddress = ? ORDER BY id`
	stmt, err := st.stmtCache.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, addressToStr(user))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deposits := []*Deposit{}
	for rows.Next() {
		d, err := scanSQLiteDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

func (st *SQLiteStore) GetLastScannedBlock(ctx context.Context) (uint64, bool, error) {
	query := `SELECT value FROM kv WHERE key = ?`
	stmt, err := st.stmtCache.PrepareContext(ctx, query)
	if err != nil {
		return 0, false, err
	}

	var value string
	if err := stmt.QueryRowContext(ctx, keyLastScannedBlock).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}

	blk, err := strToBlock(value)
	if err != nil {
		return 0, false, err
	}
	return blk, true, nil
}

func (st *SQLiteStore) SetLastScannedBlock(ctx context.Context, blk uint64) error {
	query := `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`
	stmt, err := st.stmtCache.PrepareContext(ctx, query)
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, keyLastScannedBlock, blockToStr(blk))
	return err
}

func scanSQLitePayout(row rowScanner) (*Payout, error) {
	var r payoutRow
	var createdAt, updatedAt int64
	if err := row.Scan(&r.id, &r.user, &r.fiat, &r.amount, &r.status, &r.sourceTxHash, &r.logIndex, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.createdAt = time.UnixMilli(createdAt)
	r.updatedAt = time.UnixMilli(updatedAt)
	return r.decode()
}

func scanSQLiteDeposit(row rowScanner) (*Deposit, error) {
	var r depositRow
	var createdAt int64
	if err := row.Scan(&r.id, &r.user, &r.fiat, &r.amount, &r.mintTxHash, &createdAt); err != nil {
		return nil, err
	}
	r.createdAt = time.UnixMilli(createdAt)
	return r.decode()
}
