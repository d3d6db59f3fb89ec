package relief

import "github.com/shopspring/decimal"

// BatchDelta is the change in one batch reservation between two allocation
// snapshots of a package.
type BatchDelta struct {
	Key   BatchKey
	Old   decimal.Decimal
	New   decimal.Decimal
	Delta decimal.Decimal
}

// ComputeBatchDeltas returns new-old for every key present in either
// snapshot, skipping zero deltas. The result is in lock order.
func ComputeBatchDeltas(oldQty, newQty map[BatchKey]decimal.Decimal) []BatchDelta {
	keys := make([]BatchKey, 0, len(oldQty)+len(newQty))
	seen := make(map[BatchKey]struct{}, len(oldQty)+len(newQty))
	for _, m := range []map[BatchKey]decimal.Decimal{oldQty, newQty} {
		for k := range m {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	SortBatchKeys(keys)

	deltas := make([]BatchDelta, 0, len(keys))
	for _, k := range keys {
		o, n := oldQty[k], newQty[k]
		d := n.Sub(o)
		if d.IsZero() {
			continue
		}
		deltas = append(deltas, BatchDelta{Key: k, Old: o, New: n, Delta: d})
	}
	return deltas
}

// StockKeySet collects aggregate keys and hands them back in lock order.
type StockKeySet map[StockKey]struct{}

// Add records key.
func (s StockKeySet) Add(key StockKey) {
	s[key] = struct{}{}
}

// Sorted returns the keys in lock order.
func (s StockKeySet) Sorted() []StockKey {
	keys := make([]StockKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	SortStockKeys(keys)
	return keys
}
