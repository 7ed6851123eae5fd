package ledger

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	logger "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	pgPayoutColumns  = `id, user_address, fiat, amount, status, source_tx_hash, log_index, created_at, updated_at`
	pgDepositColumns = `id, user_address, fiat, amount, mint_tx_hash, created_at`
)

// PostgresStore is the server side durable backing. Statements are single
// row and atomic; the conditional UPDATE in ConfirmPayout takes the row lock.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and applies the embedded migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	st := &PostgresStore{pool: pool}
	if err := st.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

// migrate applies all embedded SQL files in lexical order. Every migration
// is idempotent.
func (st *PostgresStore) migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := st.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		logger.WithField("file", file).Debug("applied ledger migration")
	}
	return nil
}

func (st *PostgresStore) Close() error {
	st.pool.Close()
	return nil
}

func (st *PostgresStore) CreatePayout(ctx context.Context, params *PayoutParams) (*Payout, error) {
	if params == nil || params.Amount == nil {
		return nil, ErrNilParams
	}

	query := `INSERT INTO payouts (user_address, fiat, amount, status, source_tx_hash, log_index)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_tx_hash, log_index) DO NOTHING
		RETURNING ` + pgPayoutColumns

	p, err := scanPgPayout(st.pool.QueryRow(ctx, query,
		addressToStr(params.User),
		params.Fiat,
		params.Amount.String(),
		string(PayoutStatusPending),
		hashToStr(params.SourceTxHash),
		int64(params.LogIndex),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPayoutExists
	}
	return p, err
}

func (st *PostgresStore) ConfirmPayout(ctx context.Context, id uint64) (*Payout, error) {
	query := `UPDATE payouts SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
		RETURNING ` + pgPayoutColumns

	p, err := scanPgPayout(st.pool.QueryRow(ctx, query,
		string(PayoutStatusSent),
		int64(id),
		string(PayoutStatusPending),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (st *PostgresStore) CreateDeposit(ctx context.Context, params *DepositParams) (*Deposit, error) {
	if params == nil || params.Amount == nil {
		return nil, ErrNilParams
	}

	query := `INSERT INTO deposits (user_address, fiat, amount, mint_tx_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + pgDepositColumns

	return scanPgDeposit(st.pool.QueryRow(ctx, query,
		addressToStr(params.User),
		params.Fiat,
		params.Amount.String(),
		hashToStr(params.MintTxHash),
	))
}

func (st *PostgresStore) GetPayout(ctx context.Context, id uint64) (*Payout, error) {
	query := `SELECT ` + pgPayoutColumns + ` FROM payouts WHERE id = $1`

	p, err := scanPgPayout(st.pool.QueryRow(ctx, query, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (st *PostgresStore) GetPayoutBySource(ctx context.Context, sourceTxHash ethcommon.Hash, logIndex uint) (*Payout, error) {
	query := `SELECT ` + pgPayoutColumns + ` FROM payouts WHERE source_tx_hash = $1 AND log_index = $2`

	p, err := scanPgPayout(st.pool.QueryRow(ctx, query, hashToStr(sourceTxHash), int64(logIndex)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (st *PostgresStore) GetDepositsByUser(ctx context.Context, user ethcommon.Address) ([]*Deposit, error) {
	query := `SELECT ` + pgDepositColumns + ` FROM deposits WHERE user_address = $1 ORDER BY id`

	rows, err := st.pool.Query(ctx, query, addressToStr(user))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deposits := []*Deposit{}
	for rows.Next() {
		d, err := scanPgDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

func (st *PostgresStore) GetLastScannedBlock(ctx context.Context) (uint64, bool, error) {
	var value string
	err := st.pool.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, keyLastScannedBlock).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	blk, err := strToBlock(value)
	if err != nil {
		return 0, false, err
	}
	return blk, true, nil
}

func (st *PostgresStore) SetLastScannedBlock(ctx context.Context, blk uint64) error {
	query := `INSERT INTO kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`

	_, err := st.pool.Exec(ctx, query, keyLastScannedBlock, blockToStr(blk))
	return err
}

func scanPgPayout(row rowScanner) (*Payout, error) {
	var r payoutRow
	if err := row.Scan(&r.id, &r.user, &r.fiat, &r.amount, &r.status, &r.sourceTxHash, &r.logIndex, &r.createdAt, &r.updatedAt); err != nil {
		return nil, err
	}
	return r.decode()
}

func scanPgDeposit(row rowScanner) (*Deposit, error) {
	var r depositRow
	if err := row.Scan(&r.id, &r.user, &r.fiat, &r.amount, &r.mintTxHash, &r.createdAt); err != nil {
		return nil, err
	}
	return r.decode()
}
