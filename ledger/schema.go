package ledger

import "strings"

var (
	strZeroBytes32 = strings.Repeat("0", 64)
	strZeroBytes20 = strings.Repeat("0", 40)

	// Addresses and hashes are stored as hex strings without prefix '0x',
	// amounts as base 10 strings of the token smallest unit.
	payoutTable = `CREATE TABLE IF NOT EXISTS payouts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		userAddress CHAR(40) NOT NULL,
		fiat TEXT NOT NULL,
		amount TEXT NOT NULL,
		status VARCHAR(10) NOT NULL,
		sourceTxHash CHAR(64) NOT NULL,
		logIndex INTEGER NOT NULL,
		createdAt INTEGER NOT NULL,
		updatedAt INTEGER NOT NULL,
		CONSTRAINT uniq_source UNIQUE (sourceTxHash, logIndex),
		CONSTRAINT chk_status CHECK (status IN ('pending', 'sent')),
		CONSTRAINT chk_amount CHECK (amount != '' AND amount != '0'),
		CONSTRAINT chk_user CHECK (userAddress != '` + strZeroBytes20 + `')
	);`

	depositTable = `CREATE TABLE IF NOT EXISTS deposits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		userAddress CHAR(40) NOT NULL,
		fiat VARCHAR(16) NOT NULL,
		amount TEXT NOT NULL,
		mintTxHash CHAR(64) NOT NULL UNIQUE,
		createdAt INTEGER NOT NULL,
		CONSTRAINT chk_amount CHECK (amount != '' AND amount != '0'),
		CONSTRAINT chk_mintTxHash CHECK (mintTxHash != '` + strZeroBytes32 + `')
	);
	CREATE INDEX IF NOT EXISTS idx_deposits_user ON deposits (userAddress);`

	kvTable = `CREATE TABLE IF NOT EXISTS kv (
		key VARCHAR(64) PRIMARY KEY NOT NULL,
		value TEXT NOT NULL
	);`
)

const (
	keyLastScannedBlock = "lastScannedBlock"

	payoutColumns  = `id, userAddress, fiat, amount, status, sourceTxHash, logIndex, createdAt, updatedAt`
	depositColumns = `id, userAddress, fiat, amount, mintTxHash, createdAt`
)
