package market

import "math/big"

// Listing is one active fixed-price sale offer for one unit. Absence is the
// sentinel zero price: a price of zero is never valid for an active listing,
// so no separate presence flag is stored. Seller is bookkeeping for proceeds
// crediting and event emission only; authority over the listing is always
// re-derived from live registry ownership.
type Listing struct {
	Seller [20]byte
	Price  *big.Int
}

// Active reports whether the listing represents a live offer rather than the
// absence sentinel.
func (l *Listing) Active() bool {
	return l != nil && l.Price != nil && l.Price.Sign() > 0
}

// PriceOrZero returns the listed price, treating the sentinel as zero.
func (l *Listing) PriceOrZero() *big.Int {
	if l == nil || l.Price == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(l.Price)
}

// Clone returns a deep copy safe for the caller to mutate.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	return &Listing{Seller: l.Seller, Price: l.PriceOrZero()}
}
