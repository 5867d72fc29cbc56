package market

import "errors"

var (
	errNilState    = errors.New("market engine: state not configured")
	errNilRegistry = errors.New("market engine: registry not configured")

	// ErrNotOwner is returned when the caller is not the unit's current owner.
	ErrNotOwner = errors.New("market engine: caller is not the owner")
	// ErrAlreadyListed is returned when an active listing exists for the unit.
	ErrAlreadyListed = errors.New("market engine: unit already listed")
	// ErrNotListed is returned when no active listing exists for the unit.
	ErrNotListed = errors.New("market engine: unit not listed")
	// ErrPriceMustBeAboveZero is returned when a listing price is not strictly positive.
	ErrPriceMustBeAboveZero = errors.New("market engine: price must be above zero")
	// ErrNotApprovedForMarketplace is returned when the marketplace is not
	// authorized to move the unit on the owner's behalf.
	ErrNotApprovedForMarketplace = errors.New("market engine: marketplace not approved for unit")
	// ErrPriceNotMet is returned when the attached payment is below the listed price.
	ErrPriceNotMet = errors.New("market engine: payment below listed price")
	// ErrNoProceeds is returned when a withdrawal finds a zero balance.
	ErrNoProceeds = errors.New("market engine: no proceeds to withdraw")
	// ErrInsufficientFunds is returned when the buyer's account cannot cover the
	// attached payment.
	ErrInsufficientFunds = errors.New("market engine: insufficient balance for payment")
	// ErrTransferFailed wraps a failed custody transfer during purchase or a
	// failed value delivery during withdrawal; the triggering operation is
	// rolled back in full.
	ErrTransferFailed = errors.New("market engine: transfer failed")
)
