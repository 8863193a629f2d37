package models

// Summary is the result of a sum/count aggregation over unsettled
// transactions. The zero value is the correct answer for "no matching
// transactions".
type Summary struct {
	TotalAmount float64
	Count       int
}

// DebtorRank is one row of a guild leaderboard: a debtor, their total
// outstanding debt within the guild, and the distinct users they owe.
type DebtorRank struct {
	DebtorID    string
	TotalAmount float64
	Count       int
	CreditorIDs []string
}

// CounterpartySummary is one row of a per-counterparty breakdown: how much
// a user owes to (or is owed by) one specific other user.
type CounterpartySummary struct {
	UserID      string
	TotalAmount float64
	Count       int
}

// PairDetails combines the aggregate position between a creditor and a
// debtor with the itemized list of open transactions, newest first.
type PairDetails struct {
	Summary
	Transactions []*Transaction
}
