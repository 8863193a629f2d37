package ledger

import "github.com/debtbot/debtcollector/internal/models"

// PageSize is how many transactions a management view shows per page.
const PageSize = 10

// Page slices a transaction list into the given 1-based page and reports
// the total page count. Out-of-range pages clamp to the nearest valid page;
// an empty list yields an empty page 1 of 1.
func Page(txs []*models.Transaction, page int) ([]*models.Transaction, int, int) {
	totalPages := (len(txs) + PageSize - 1) / PageSize
	if totalPages == 0 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * PageSize
	end := start + PageSize
	if start > len(txs) {
		start = len(txs)
	}
	if end > len(txs) {
		end = len(txs)
	}

	return txs[start:end], page, totalPages
}
