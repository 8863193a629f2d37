package models

// Transaction represents a single recorded debt between two users.
// It is the only persisted entity: everything else in the system is an
// aggregation over transactions.
type Transaction struct {
	// ID is the unique identifier for the transaction (UUID format).
	ID string

	// CreditorID is the user who is owed money. Only the creditor may
	// settle, adjust, or close the transaction.
	CreditorID string

	// DebtorID is the user who owes money.
	DebtorID string

	// Amount is the outstanding amount, always >= 0 with two-decimal
	// (currency minor unit) precision. It only ever decreases toward zero
	// through payments; reaching zero settles the transaction.
	Amount float64

	// Description is the free-text reason for the debt. Set at creation,
	// immutable afterwards.
	Description string

	// GuildID is the server the debt was recorded in. Always set at
	// creation; queries may omit it to aggregate across servers.
	GuildID string

	// Currency is the ISO currency code. A deployment supports a single
	// currency, so this is informational.
	Currency string

	// CreatedAt is the Unix timestamp when the debt was recorded.
	CreatedAt int64

	// IsSettled marks the transaction as fully resolved. Settled
	// transactions are excluded from every aggregation but are never
	// deleted, preserving the audit trail.
	IsSettled bool

	// SettledAt is the Unix timestamp of settlement, zero while open.
	SettledAt int64
}
