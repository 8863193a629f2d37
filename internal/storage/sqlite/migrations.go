package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure the table and indexes exist.
// The index set mirrors the ledger's query patterns: pair lookups, per-user
// totals, guild leaderboards, and time-ordered listings, each restricted to
// unsettled rows.
const schema = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    creditor_id TEXT NOT NULL,
    debtor_id TEXT NOT NULL,
    amount REAL NOT NULL CHECK (amount >= 0),
    description TEXT,
    guild_id TEXT NOT NULL,
    currency TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    is_settled INTEGER NOT NULL DEFAULT 0,
    settled_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_transactions_pair ON transactions(creditor_id, debtor_id);
CREATE INDEX IF NOT EXISTS idx_transactions_creditor_settled ON transactions(creditor_id, is_settled);
CREATE INDEX IF NOT EXISTS idx_transactions_debtor_settled ON transactions(debtor_id, is_settled);
CREATE INDEX IF NOT EXISTS idx_transactions_guild_settled ON transactions(guild_id, is_settled);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_settled ON transactions(is_settled);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
