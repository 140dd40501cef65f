package refund

import "github.com/dealmatch/groupbuy/services/api/internal/domain"

// Breakdown splits a total across qtyTotal ordered unit slots. Every slot
// gets Base; the first Remainder slots get one extra unit.
type Breakdown struct {
	Total     int64
	QtyTotal  int
	Base      int64
	Remainder int64
}

func NewBreakdown(total int64, qtyTotal int) (Breakdown, error) {
	if total < 0 {
		return Breakdown{}, domain.ErrInvalidAmount
	}
	if qtyTotal <= 0 {
		return Breakdown{}, domain.ErrInvalidQuantity
	}
	q := int64(qtyTotal)
	return Breakdown{
		Total:     total,
		QtyTotal:  qtyTotal,
		Base:      total / q,
		Remainder: total % q,
	}, nil
}

// Allocate returns the share of slots [alreadyRefunded, alreadyRefunded+refundQty).
// Consecutive non-overlapping calls covering every slot sum to Total.
func (b Breakdown) Allocate(refundQty, alreadyRefunded int) (int64, error) {
	if refundQty < 0 || alreadyRefunded < 0 {
		return 0, domain.ErrInvalidQuantity
	}
	if refundQty == 0 {
		return 0, nil
	}
	start := int64(alreadyRefunded)
	end := start + int64(refundQty)

	amount := b.Base*int64(refundQty) + max(0, min(end, b.Remainder)-start)
	return min(max(amount, 0), b.Total), nil
}

// Prorate is NewBreakdown followed by Allocate.
func Prorate(total int64, qtyTotal, refundQty, alreadyRefunded int) (int64, error) {
	b, err := NewBreakdown(total, qtyTotal)
	if err != nil {
		return 0, err
	}
	return b.Allocate(refundQty, alreadyRefunded)
}
