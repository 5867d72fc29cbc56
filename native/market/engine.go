package market

import (
	"errors"
	"fmt"
	"math/big"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

type engineState interface {
	ListingGet(collection [20]byte, unit uint64) (*Listing, bool, error)
	ListingPut(collection [20]byte, unit uint64, listing *Listing) error
	ListingDelete(collection [20]byte, unit uint64) error
	ProceedsGet(addr [20]byte) (*big.Int, error)
	ProceedsSet(addr [20]byte, amount *big.Int) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Engine implements the listing ledger, the proceeds escrow, and the purchase
// orchestration on top of a narrow state backend and the registry view. All
// local state mutation for an operation completes before any call that could
// re-enter the ledger (the registry transfer, the withdrawal payout); when
// such a call fails the operation unwinds in full.
type Engine struct {
	state      engineState
	registry   RegistryView
	emitter    events.Emitter
	marketAddr [20]byte
}

// NewEngine creates a marketplace engine with a no-op emitter. Callers must
// configure the state backend, the registry view, and the marketplace address
// before use.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the asset registry capability.
func (e *Engine) SetRegistry(view RegistryView) { e.registry = view }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetMarketAddress configures the marketplace's own account. It is the
// operator identity checked for approvals and the vault that holds attached
// payments until sellers withdraw.
func (e *Engine) SetMarketAddress(addr [20]byte) { e.marketAddr = addr }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if e.registry == nil {
		return errNilRegistry
	}
	return nil
}

// List stores a fixed-price offer for a unit the caller owns. Custody is not
// moved: the marketplace only needs transfer approval, verified live against
// the registry.
func (e *Engine) List(caller, collection [20]byte, unit uint64, price *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if price == nil || price.Sign() <= 0 {
		return ErrPriceMustBeAboveZero
	}
	owner, err := e.isOwner(collection, unit, caller)
	if err != nil {
		return err
	}
	if !owner {
		return ErrNotOwner
	}
	listing, ok, err := e.state.ListingGet(collection, unit)
	if err != nil {
		return err
	}
	if ok && listing.Active() {
		return ErrAlreadyListed
	}
	approved, err := e.isApprovedForMarketplace(collection, unit)
	if err != nil {
		return err
	}
	if !approved {
		return ErrNotApprovedForMarketplace
	}
	stored := &Listing{Seller: caller, Price: new(big.Int).Set(price)}
	if err := e.state.ListingPut(collection, unit, stored); err != nil {
		return err
	}
	e.emit(listedEvent(caller, collection, unit, price))
	return nil
}

// Cancel removes an active listing. Authorization is the unit's *current*
// owner, not the stored seller: a listing orphaned by an out-of-band transfer
// stays cancellable by the new owner.
func (e *Engine) Cancel(caller, collection [20]byte, unit uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, ok, err := e.state.ListingGet(collection, unit)
	if err != nil {
		return err
	}
	if !ok || !listing.Active() {
		return ErrNotListed
	}
	owner, err := e.isOwner(collection, unit, caller)
	if err != nil {
		return err
	}
	if !owner {
		return ErrNotOwner
	}
	if err := e.state.ListingDelete(collection, unit); err != nil {
		return err
	}
	e.emit(canceledEvent(listing.Seller, collection, unit))
	return nil
}

// Update replaces the price of an active listing, keeping the seller. The
// emitted event has the same shape as a fresh listing.
func (e *Engine) Update(caller, collection [20]byte, unit uint64, newPrice *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, ok, err := e.state.ListingGet(collection, unit)
	if err != nil {
		return err
	}
	if !ok || !listing.Active() {
		return ErrNotListed
	}
	owner, err := e.isOwner(collection, unit, caller)
	if err != nil {
		return err
	}
	if !owner {
		return ErrNotOwner
	}
	if newPrice == nil || newPrice.Sign() <= 0 {
		return ErrPriceMustBeAboveZero
	}
	approved, err := e.isApprovedForMarketplace(collection, unit)
	if err != nil {
		return err
	}
	if !approved {
		return ErrNotApprovedForMarketplace
	}
	updated := listing.Clone()
	updated.Price = new(big.Int).Set(newPrice)
	if err := e.state.ListingPut(collection, unit, updated); err != nil {
		return err
	}
	e.emit(listedEvent(updated.Seller, collection, unit, newPrice))
	return nil
}

// GetListing returns the current listing, the sentinel when none is active.
func (e *Engine) GetListing(collection [20]byte, unit uint64) (*Listing, error) {
	if e.state == nil {
		return nil, errNilState
	}
	listing, ok, err := e.state.ListingGet(collection, unit)
	if err != nil {
		return nil, err
	}
	if !ok || !listing.Active() {
		return &Listing{Price: big.NewInt(0)}, nil
	}
	return listing.Clone(), nil
}

// GetProceeds returns a seller's undrawn balance.
func (e *Engine) GetProceeds(addr [20]byte) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	proceeds, err := e.state.ProceedsGet(addr)
	if err != nil {
		return nil, err
	}
	if proceeds == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(proceeds), nil
}

// Buy settles a purchase: the attached payment moves from the buyer to the
// marketplace vault, the seller's proceeds are credited the listed price, the
// listing is deleted, and only then is custody transferred through the
// registry. The proceeds credit and listing deletion strictly precede the
// transfer so a re-entrant call during it observes no active listing and an
// already-credited seller. Payment above the listed price is retained with no
// accounting trail back to the buyer. A failed registry transfer unwinds the
// entire operation.
func (e *Engine) Buy(buyer, collection [20]byte, unit uint64, payment *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, ok, err := e.state.ListingGet(collection, unit)
	if err != nil {
		return err
	}
	if !ok || !listing.Active() {
		return ErrNotListed
	}
	if payment == nil || payment.Cmp(listing.Price) < 0 {
		return ErrPriceNotMet
	}

	buyerAcc, err := e.state.GetAccount(buyer[:])
	if err != nil {
		return err
	}
	buyerAcc = ensureAccount(buyerAcc)
	if buyerAcc.Balance.Cmp(payment) < 0 {
		return ErrInsufficientFunds
	}
	vaultAcc, err := e.state.GetAccount(e.marketAddr[:])
	if err != nil {
		return err
	}
	vaultAcc = ensureAccount(vaultAcc)
	prevProceeds, err := e.state.ProceedsGet(listing.Seller)
	if err != nil {
		return err
	}

	// Snapshots for the all-or-nothing unwind below.
	prevListing := listing.Clone()
	prevBuyerBalance := cloneBigInt(buyerAcc.Balance)
	prevVaultBalance := cloneBigInt(vaultAcc.Balance)
	prevProceeds = cloneBigInt(prevProceeds)

	buyerAcc.Balance = new(big.Int).Sub(buyerAcc.Balance, payment)
	if err := e.state.PutAccount(buyer[:], buyerAcc); err != nil {
		return err
	}
	vaultAcc.Balance = new(big.Int).Add(vaultAcc.Balance, payment)
	if err := e.state.PutAccount(e.marketAddr[:], vaultAcc); err != nil {
		return errors.Join(err, e.restoreBalance(buyer[:], prevBuyerBalance))
	}
	credited := new(big.Int).Add(prevProceeds, listing.Price)
	if err := e.state.ProceedsSet(listing.Seller, credited); err != nil {
		return errors.Join(err, e.unwindBuy(collection, unit, nil, listing.Seller, nil, buyer, prevBuyerBalance, prevVaultBalance))
	}
	if err := e.state.ListingDelete(collection, unit); err != nil {
		return errors.Join(err, e.unwindBuy(collection, unit, nil, listing.Seller, prevProceeds, buyer, prevBuyerBalance, prevVaultBalance))
	}

	if err := e.registry.TransferFrom(collection, listing.Seller, buyer, unit); err != nil {
		transferErr := fmt.Errorf("%w: %v", ErrTransferFailed, err)
		if restoreErr := e.unwindBuy(collection, unit, prevListing, listing.Seller, prevProceeds, buyer, prevBuyerBalance, prevVaultBalance); restoreErr != nil {
			return errors.Join(transferErr, restoreErr)
		}
		return transferErr
	}

	e.emit(boughtEvent(buyer, collection, unit, listing.Price))
	return nil
}

// Withdraw pays out the caller's accumulated proceeds. The stored balance is
// zeroed before any value moves; if delivery from the vault fails, the zeroing
// is rolled back so balance and delivery succeed or fail together.
func (e *Engine) Withdraw(caller [20]byte) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	proceeds, err := e.state.ProceedsGet(caller)
	if err != nil {
		return nil, err
	}
	if proceeds == nil || proceeds.Sign() <= 0 {
		return nil, ErrNoProceeds
	}
	amount := new(big.Int).Set(proceeds)

	if err := e.state.ProceedsSet(caller, big.NewInt(0)); err != nil {
		return nil, err
	}

	vaultAcc, err := e.state.GetAccount(e.marketAddr[:])
	if err != nil {
		return nil, errors.Join(err, e.restoreProceeds(caller, amount))
	}
	vaultAcc = ensureAccount(vaultAcc)
	if vaultAcc.Balance.Cmp(amount) < 0 {
		deliveryErr := fmt.Errorf("%w: vault underfunded", ErrTransferFailed)
		return nil, errors.Join(deliveryErr, e.restoreProceeds(caller, amount))
	}
	prevVaultBalance := cloneBigInt(vaultAcc.Balance)
	vaultAcc.Balance = new(big.Int).Sub(vaultAcc.Balance, amount)
	if err := e.state.PutAccount(e.marketAddr[:], vaultAcc); err != nil {
		return nil, errors.Join(err, e.restoreProceeds(caller, amount))
	}
	callerAcc, err := e.state.GetAccount(caller[:])
	if err == nil {
		callerAcc = ensureAccount(callerAcc)
		callerAcc.Balance = new(big.Int).Add(callerAcc.Balance, amount)
		err = e.state.PutAccount(caller[:], callerAcc)
	}
	if err != nil {
		deliveryErr := fmt.Errorf("%w: %v", ErrTransferFailed, err)
		restoreErr := errors.Join(
			e.restoreBalance(e.marketAddr[:], prevVaultBalance),
			e.restoreProceeds(caller, amount),
		)
		if restoreErr != nil {
			return nil, errors.Join(deliveryErr, restoreErr)
		}
		return nil, deliveryErr
	}
	return amount, nil
}

func (e *Engine) unwindBuy(collection [20]byte, unit uint64, listing *Listing, seller [20]byte, proceeds *big.Int, buyer [20]byte, buyerBalance, vaultBalance *big.Int) error {
	var errs []error
	if listing != nil {
		if err := e.state.ListingPut(collection, unit, listing); err != nil {
			errs = append(errs, err)
		}
	}
	if proceeds != nil {
		if err := e.state.ProceedsSet(seller, proceeds); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.restoreBalance(e.marketAddr[:], vaultBalance); err != nil {
		errs = append(errs, err)
	}
	if err := e.restoreBalance(buyer[:], buyerBalance); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) restoreBalance(addr []byte, balance *big.Int) error {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	acc.Balance = cloneBigInt(balance)
	return e.state.PutAccount(addr, acc)
}

func (e *Engine) restoreProceeds(addr [20]byte, amount *big.Int) error {
	return e.state.ProceedsSet(addr, cloneBigInt(amount))
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}
