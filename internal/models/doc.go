// Package models defines the core domain types for the debt ledger.
//
// # Design Principles
//
// 1. **Append-only ledger**: transactions are never deleted. "Deleting" a
// debt means forcing it to zero and marking it settled, so history survives.
//
// 2. **Opaque identities**: user and guild identifiers are stable strings
// issued by the chat platform. The ledger only ever compares them for
// equality.
//
// 3. **Aggregates are views**: Summary, DebtorRank, CounterpartySummary and
// PairDetails carry no identity of their own; they are computed from the
// transaction collection on every read.
package models
