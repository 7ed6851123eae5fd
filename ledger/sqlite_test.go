package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	st, err := NewSQLiteStore(path)
	require.NoError(t, err)

	params := randPayoutParams()
	p, err := st.CreatePayout(ctx, params)
	require.NoError(t, err)
	_, err = st.ConfirmPayout(ctx, p.Id)
	require.NoError(t, err)
	require.NoError(t, st.SetLastScannedBlock(ctx, 7))
	require.NoError(t, st.Close())

	// reopen
	st, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer st.Close()

	got, err := st.GetPayoutBySource(ctx, params.SourceTxHash, params.LogIndex)
	require.NoError(t, err)
	assert.Equal(t, p.Id, got.Id)
	assert.Equal(t, PayoutStatusSent, got.Status)
	assert.Equal(t, params.User, got.User)

	blk, ok, err := st.GetLastScannedBlock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), blk)

	// ids keep increasing after reopening
	next, err := st.CreatePayout(ctx, randPayoutParams())
	require.NoError(t, err)
	assert.Greater(t, next.Id, p.Id)
}

func TestSQLiteStoreRejectsCorruptedRow(t *testing.T) {
	ctx := context.Background()
	st, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer st.Close()

	_, err = st.db.Exec(`INSERT INTO payouts (userAddress, fiat, amount, status, sourceTxHash, logIndex, createdAt, updatedAt)
		VALUES ('zz', 'USD', '1', 'pending', 'aa', 0, 0, 0)`)
	require.NoError(t, err)

	_, err = st.GetPayout(ctx, 1)
	assert.ErrorIs(t, err, ErrCorruptedRecord)
}
