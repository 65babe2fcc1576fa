// Package ledgerrepo manages repository layer of the ledger: account balances, transactions,
// transfers and statements.
//
// All balance mutations go through ExecTx, which holds exclusive locks on the affected
// accounts for the duration of one atomic unit of work. Locks are always taken in ascending
// account id order so that two units touching the same pair of accounts cannot deadlock.
package ledgerrepo

import "sort"

// lockOrder returns the distinct ids in ascending order.
func lockOrder(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}

	return false
}
