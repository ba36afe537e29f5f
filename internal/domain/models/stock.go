package models

// StockChange describes the effect of a consume or restock on a product.
type StockChange struct {
	Before   int  `json:"before"`
	After    int  `json:"after"`
	Depleted bool `json:"depleted"`
	Critical bool `json:"critical"`
}

// Consume lowers the remaining stock, saturating at zero. Depleted is set when the
// result is zero; Critical when the stock crosses below CriticalPercent of volume.
func (p *Product) Consume(amount int) (StockChange, error) {
	if amount <= 0 {
		return StockChange{}, NewValidationError("amount", "amount must be a positive number")
	}

	change := StockChange{Before: p.Remaining}
	after := p.Remaining - amount
	if after < 0 {
		after = 0
	}
	p.Remaining = after
	change.After = after
	change.Depleted = after == 0
	change.Critical = !isCritical(change.Before, p.Volume) && isCritical(after, p.Volume)
	return change, nil
}

// Restock raises the remaining stock, capped at the product volume.
func (p *Product) Restock(amount int) (StockChange, error) {
	if amount <= 0 {
		return StockChange{}, NewValidationError("amount", "amount must be a positive number")
	}

	change := StockChange{Before: p.Remaining}
	after := p.Volume
	if amount < p.Volume-p.Remaining {
		after = p.Remaining + amount
	}
	p.Remaining = after
	change.After = after
	return change, nil
}

// isCritical reports remaining/volume < CriticalPercent/100. Volume is split into
// whole hundreds and a remainder so neither side is multiplied past int range.
func isCritical(remaining, volume int) bool {
	diff := remaining - volume/100*CriticalPercent
	switch {
	case diff < 0:
		return true
	case diff >= CriticalPercent:
		return false
	default:
		return diff*100 < volume%100*CriticalPercent
	}
}
