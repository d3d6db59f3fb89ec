package relief

import (
	"sort"
	"time"
)

// batchOrdering decides which of two batches should be issued first.
type batchOrdering interface {
	Order() IssuanceOrder
	Less(a, b *Batch) bool
}

var (
	minDate = time.Time{}
	maxDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

func dateOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}
	return DateOf(*t)
}

// fefoOrdering issues the earliest expiry first. Batches without expiry go
// last, then the older batch date, then the larger available quantity.
type fefoOrdering struct{ quantityTieBreak bool }

func (fefoOrdering) Order() IssuanceOrder { return IssuanceFEFO }

func (o fefoOrdering) Less(a, b *Batch) bool {
	aNil, bNil := a.ExpiryDate == nil, b.ExpiryDate == nil
	if aNil != bNil {
		return !aNil
	}
	if !aNil {
		ea, eb := DateOf(*a.ExpiryDate), DateOf(*b.ExpiryDate)
		if !ea.Equal(eb) {
			return ea.Before(eb)
		}
	}
	da, db := dateOr(a.BatchDate, maxDate), dateOr(b.BatchDate, maxDate)
	if !da.Equal(db) {
		return da.Before(db)
	}
	return o.quantityTieBreak && a.Available().GreaterThan(b.Available())
}

// fifoOrdering issues the oldest batch date first; a missing date counts as
// the oldest.
type fifoOrdering struct{ quantityTieBreak bool }

func (fifoOrdering) Order() IssuanceOrder { return IssuanceFIFO }

func (o fifoOrdering) Less(a, b *Batch) bool {
	da, db := dateOr(a.BatchDate, minDate), dateOr(b.BatchDate, minDate)
	if !da.Equal(db) {
		return da.Before(db)
	}
	return o.quantityTieBreak && a.Available().GreaterThan(b.Available())
}

// lifoOrdering issues the newest batch date first.
type lifoOrdering struct{}

func (lifoOrdering) Order() IssuanceOrder { return IssuanceLIFO }

func (lifoOrdering) Less(a, b *Batch) bool {
	da, db := dateOr(a.BatchDate, minDate), dateOr(b.BatchDate, minDate)
	if !da.Equal(db) {
		return da.After(db)
	}
	return a.Available().GreaterThan(b.Available())
}

// orderingFor returns the allocation-rule ordering of item.
func orderingFor(item *Item) batchOrdering {
	switch {
	case item.UsesFEFO():
		return fefoOrdering{quantityTieBreak: true}
	case item.IssuanceOrder == IssuanceLIFO:
		return lifoOrdering{}
	default:
		return fifoOrdering{quantityTieBreak: true}
	}
}

// drawerOrderingFor ignores the configured issuance order: expiring items are
// shown FEFO, everything else FIFO, without a quantity tie-break.
func drawerOrderingFor(item *Item) batchOrdering {
	if item.CanExpire {
		return fefoOrdering{}
	}
	return fifoOrdering{}
}

func sortBatches(batches []Batch, ordering batchOrdering) {
	sort.SliceStable(batches, func(i, j int) bool {
		return ordering.Less(&batches[i], &batches[j])
	})
}
