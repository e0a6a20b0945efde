package usecase

// LineRequest is one raw order line as received at the boundary. Multiple
// lines for the same product are one logical demand.
type LineRequest struct {
	ProductID int64
	Quantity  int64
}

// normalize merges duplicate lines by product id, summing quantities. The
// result has unique keys and every quantity > 0; the check runs after the
// merge so a zero or negative demand hidden inside duplicates is caught too.
func normalize(lines []LineRequest) (map[int64]int64, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	merged := make(map[int64]int64, len(lines))
	for _, l := range lines {
		merged[l.ProductID] += l.Quantity
	}
	for _, qty := range merged {
		if qty <= 0 {
			return nil, ErrInvalidQuantity
		}
	}
	return merged, nil
}
