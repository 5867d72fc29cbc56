package market

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

type listingID struct {
	collection [20]byte
	unit       uint64
}

type mockState struct {
	listings map[listingID]*Listing
	proceeds map[[20]byte]*big.Int
	accounts map[[20]byte]*types.Account
}

func newMockState() *mockState {
	return &mockState{
		listings: make(map[listingID]*Listing),
		proceeds: make(map[[20]byte]*big.Int),
		accounts: make(map[[20]byte]*types.Account),
	}
}

func (m *mockState) ListingGet(collection [20]byte, unit uint64) (*Listing, bool, error) {
	listing, ok := m.listings[listingID{collection, unit}]
	if !ok {
		return nil, false, nil
	}
	return listing.Clone(), true, nil
}

func (m *mockState) ListingPut(collection [20]byte, unit uint64, listing *Listing) error {
	if listing == nil {
		return fmt.Errorf("nil listing")
	}
	m.listings[listingID{collection, unit}] = listing.Clone()
	return nil
}

func (m *mockState) ListingDelete(collection [20]byte, unit uint64) error {
	delete(m.listings, listingID{collection, unit})
	return nil
}

func (m *mockState) ProceedsGet(addr [20]byte) (*big.Int, error) {
	amount, ok := m.proceeds[addr]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(amount), nil
}

func (m *mockState) ProceedsSet(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid proceeds amount")
	}
	if amount.Sign() == 0 {
		delete(m.proceeds, addr)
		return nil
	}
	m.proceeds[addr] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	acc, ok := m.accounts[key]
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return &types.Account{Nonce: acc.Nonce, Balance: new(big.Int).Set(acc.Balance)}, nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("nil account")
	}
	var key [20]byte
	copy(key[:], addr)
	balance := big.NewInt(0)
	if account.Balance != nil {
		balance = new(big.Int).Set(account.Balance)
	}
	m.accounts[key] = &types.Account{Nonce: account.Nonce, Balance: balance}
	return nil
}

func (m *mockState) setBalance(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	acc, ok := m.accounts[addr]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.Balance)
}

type registryPair struct {
	owner    [20]byte
	operator [20]byte
}

type mockRegistry struct {
	owners      map[uint64][20]byte
	approved    map[uint64][20]byte
	operators   map[registryPair]bool
	transferErr error
	onTransfer  func()
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		owners:    make(map[uint64][20]byte),
		approved:  make(map[uint64][20]byte),
		operators: make(map[registryPair]bool),
	}
}

func (r *mockRegistry) OwnerOf(_ [20]byte, unit uint64) ([20]byte, error) {
	owner, ok := r.owners[unit]
	if !ok {
		return [20]byte{}, fmt.Errorf("unknown unit %d", unit)
	}
	return owner, nil
}

func (r *mockRegistry) GetApproved(_ [20]byte, unit uint64) ([20]byte, error) {
	return r.approved[unit], nil
}

func (r *mockRegistry) IsApprovedForAll(_ [20]byte, owner, operator [20]byte) (bool, error) {
	return r.operators[registryPair{owner, operator}], nil
}

func (r *mockRegistry) TransferFrom(_ [20]byte, from, to [20]byte, unit uint64) error {
	if r.onTransfer != nil {
		r.onTransfer()
	}
	if r.transferErr != nil {
		return r.transferErr
	}
	owner, ok := r.owners[unit]
	if !ok {
		return fmt.Errorf("unknown unit %d", unit)
	}
	if owner != from {
		return fmt.Errorf("from is not the owner")
	}
	r.owners[unit] = to
	delete(r.approved, unit)
	return nil
}

type captureEmitter struct {
	events []*types.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	payload, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	c.events = append(c.events, payload.Event())
}

func (c *captureEmitter) last() *types.Event {
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var testCollection = newTestAddress(0xC0)

type testHarness struct {
	engine   *Engine
	state    *mockState
	registry *mockRegistry
	emitter  *captureEmitter
	market   [20]byte
}

func newTestHarness() *testHarness {
	h := &testHarness{
		state:    newMockState(),
		registry: newMockRegistry(),
		emitter:  &captureEmitter{},
		market:   newTestAddress(0xEE),
	}
	h.engine = NewEngine()
	h.engine.SetState(h.state)
	h.engine.SetRegistry(h.registry)
	h.engine.SetEmitter(h.emitter)
	h.engine.SetMarketAddress(h.market)
	return h
}

// mintTo registers a unit owned by addr with the marketplace approved as the
// unit-level operator, the normal pre-listing setup.
func (h *testHarness) mintTo(addr [20]byte, unit uint64) {
	h.registry.owners[unit] = addr
	h.registry.approved[unit] = h.market
}

func TestListValidations(t *testing.T) {
	seller := newTestAddress(0xAA)
	stranger := newTestAddress(0xBB)

	cases := []struct {
		name    string
		setup   func(h *testHarness)
		caller  [20]byte
		price   *big.Int
		wantErr error
	}{
		{
			name:    "zero price",
			setup:   func(h *testHarness) { h.mintTo(seller, 0) },
			caller:  seller,
			price:   big.NewInt(0),
			wantErr: ErrPriceMustBeAboveZero,
		},
		{
			name:    "negative price",
			setup:   func(h *testHarness) { h.mintTo(seller, 0) },
			caller:  seller,
			price:   big.NewInt(-5),
			wantErr: ErrPriceMustBeAboveZero,
		},
		{
			name:    "nil price",
			setup:   func(h *testHarness) { h.mintTo(seller, 0) },
			caller:  seller,
			price:   nil,
			wantErr: ErrPriceMustBeAboveZero,
		},
		{
			name:    "caller is not the owner",
			setup:   func(h *testHarness) { h.mintTo(seller, 0) },
			caller:  stranger,
			price:   big.NewInt(100),
			wantErr: ErrNotOwner,
		},
		{
			name: "already listed",
			setup: func(h *testHarness) {
				h.mintTo(seller, 0)
				if err := h.engine.List(seller, testCollection, 0, big.NewInt(100)); err != nil {
					t.Fatalf("seed listing: %v", err)
				}
			},
			caller:  seller,
			price:   big.NewInt(200),
			wantErr: ErrAlreadyListed,
		},
		{
			name: "marketplace not approved",
			setup: func(h *testHarness) {
				h.registry.owners[0] = seller
			},
			caller:  seller,
			price:   big.NewInt(100),
			wantErr: ErrNotApprovedForMarketplace,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHarness()
			tc.setup(h)
			err := h.engine.List(tc.caller, testCollection, 0, tc.price)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestListStoresListingWithoutMovingCustody(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)
	h.mintTo(seller, 0)
	price := big.NewInt(1_000)

	if err := h.engine.List(seller, testCollection, 0, price); err != nil {
		t.Fatalf("list: %v", err)
	}

	listing, err := h.engine.GetListing(testCollection, 0)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing.Price.Cmp(price) != 0 {
		t.Fatalf("expected price %s, got %s", price, listing.Price)
	}
	if listing.Seller != seller {
		t.Fatalf("expected seller recorded")
	}
	if h.registry.owners[0] != seller {
		t.Fatalf("listing must not move custody")
	}

	evt := h.emitter.last()
	if evt == nil || evt.Type != EventTypeListed {
		t.Fatalf("expected %s event, got %+v", EventTypeListed, evt)
	}
	if evt.Attributes["price"] != price.String() {
		t.Fatalf("expected price attribute %s, got %s", price, evt.Attributes["price"])
	}
}

func TestListApprovedViaOperatorForAll(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)
	h.registry.owners[0] = seller
	h.registry.operators[registryPair{seller, h.market}] = true

	if err := h.engine.List(seller, testCollection, 0, big.NewInt(100)); err != nil {
		t.Fatalf("list with operator-for-all approval: %v", err)
	}
}

func TestCancel(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)
	h.mintTo(seller, 0)

	if err := h.engine.Cancel(seller, testCollection, 0); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed, got %v", err)
	}

	if err := h.engine.List(seller, testCollection, 0, big.NewInt(100)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := h.engine.Cancel(newTestAddress(0xBB), testCollection, 0); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := h.engine.Cancel(seller, testCollection, 0); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	listing, err := h.engine.GetListing(testCollection, 0)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing.Price.Sign() != 0 {
		t.Fatalf("expected sentinel price after cancel, got %s", listing.Price)
	}
	evt := h.emitter.last()
	if evt == nil || evt.Type != EventTypeCanceled {
		t.Fatalf("expected %s event, got %+v", EventTypeCanceled, evt)
	}
}

func TestCancelAuthorityFollowsLiveOwnership(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)
	newOwner := newTestAddress(0xBB)
	h.mintTo(seller, 0)

	if err := h.engine.List(seller, testCollection, 0, big.NewInt(100)); err != nil {
		t.Fatalf("list: %v", err)
	}

	// The unit changes hands outside the marketplace, orphaning the listing.
	h.registry.owners[0] = newOwner

	if err := h.engine.Cancel(seller, testCollection, 0); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("stale seller must not cancel, got %v", err)
	}
	if err := h.engine.Cancel(newOwner, testCollection, 0); err != nil {
		t.Fatalf("new owner cancel: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)
	h.mintTo(seller, 0)

	if err := h.engine.Update(seller, testCollection, 0, big.NewInt(200)); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed, got %v", err)
	}

	if err := h.engine.List(seller, testCollection, 0, big.NewInt(100)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := h.engine.Update(seller, testCollection, 0, big.NewInt(0)); !errors.Is(err, ErrPriceMustBeAboveZero) {
		t.Fatalf("expected ErrPriceMustBeAboveZero, got %v", err)
	}
	if err := h.engine.Update(newTestAddress(0xBB), testCollection, 0, big.NewInt(200)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	newPrice := big.NewInt(200)
	if err := h.engine.Update(seller, testCollection, 0, newPrice); err != nil {
		t.Fatalf("update: %v", err)
	}
	listing, err := h.engine.GetListing(testCollection, 0)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing.Price.Cmp(newPrice) != 0 {
		t.Fatalf("expected updated price %s, got %s", newPrice, listing.Price)
	}
	if listing.Seller != seller {
		t.Fatalf("update must keep the seller")
	}
	evt := h.emitter.last()
	if evt == nil || evt.Type != EventTypeListed {
		t.Fatalf("update must emit the listed event shape, got %+v", evt)
	}
}

func TestBuyValidations(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)
	buyer := newTestAddress(0xBB)
	h.mintTo(seller, 0)

	if err := h.engine.Buy(buyer, testCollection, 0, big.NewInt(100)); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed, got %v", err)
	}

	if err := h.engine.List(seller, testCollection, 0, big.NewInt(100)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := h.engine.Buy(buyer, testCollection, 0, big.NewInt(99)); !errors.Is(err, ErrPriceNotMet) {
		t.Fatalf("expected ErrPriceNotMet, got %v", err)
	}
	if err := h.engine.Buy(buyer, testCollection, 0, big.NewInt(100)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds for unfunded buyer, got %v", err)
	}
}

func TestBuySettles(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)
	buyer := newTestAddress(0xBB)
	h.mintTo(seller, 0)
	h.state.setBalance(buyer, 1_000)

	price := big.NewInt(100)
	if err := h.engine.List(seller, testCollection, 0, price); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := h.engine.Buy(buyer, testCollection, 0, price); err != nil {
		t.Fatalf("buy: %v", err)
	}

	if h.registry.owners[0] != buyer {
		t.Fatalf("custody must move to the buyer")
	}
	proceeds, err := h.engine.GetProceeds(seller)
	if err != nil {
		t.Fatalf("get proceeds: %v", err)
	}
	if proceeds.Cmp(price) != 0 {
		t.Fatalf("expected proceeds %s, got %s", price, proceeds)
	}
	listing, err := h.engine.GetListing(testCollection, 0)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing.Price.Sign() != 0 {
		t.Fatalf("expected sentinel listing after purchase, got price %s", listing.Price)
	}
	if got := h.state.balance(buyer); got.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("expected buyer balance 900, got %s", got)
	}
	if got := h.state.balance(h.market); got.Cmp(price) != 0 {
		t.Fatalf("expected vault balance %s, got %s", price, got)
	}
	evt := h.emitter.last()
	if evt == nil || evt.Type != EventTypeBought {
		t.Fatalf("expected %s event, got %+v", EventTypeBought, evt)
	}
	if evt.Attributes["price"] != price.String() {
		t.Fatalf("bought event must carry the listed price")
	}
}

func TestBuyRetainsOverpayment(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)
	buyer := newTestAddress(0xBB)
	h.mintTo(seller, 0)
	h.state.setBalance(buyer, 1_000)

	price := big.NewInt(100)
	payment := big.NewInt(150)
	if err := h.engine.List(seller, testCollection, 0, price); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := h.engine.Buy(buyer, testCollection, 0, payment); err != nil {
		t.Fatalf("buy: %v", err)
	}

	proceeds, err := h.engine.GetProceeds(seller)
	if err != nil {
		t.Fatalf("get proceeds: %v", err)
	}
	// The seller is credited the listed price only; the excess stays in the
	// vault with no trail back to the buyer.
	if proceeds.Cmp(price) != 0 {
		t.Fatalf("expected proceeds %s, got %s", price, proceeds)
	}
	if got := h.state.balance(buyer); got.Cmp(big.NewInt(850)) != 0 {
		t.Fatalf("expected buyer debited the full payment, balance %s", got)
	}
	if got := h.state.balance(h.market); got.Cmp(payment) != 0 {
		t.Fatalf("expected vault holding the full payment, got %s", got)
	}
}

func TestBuyRollsBackWhenTransferFails(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)
	buyer := newTestAddress(0xBB)
	h.mintTo(seller, 0)
	h.state.setBalance(buyer, 1_000)

	price := big.NewInt(100)
	if err := h.engine.List(seller, testCollection, 0, price); err != nil {
		t.Fatalf("list: %v", err)
	}
	h.registry.transferErr = fmt.Errorf("registry rejected the transfer")

	err := h.engine.Buy(buyer, testCollection, 0, price)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}

	listing, getErr := h.engine.GetListing(testCollection, 0)
	if getErr != nil {
		t.Fatalf("get listing: %v", getErr)
	}
	if listing.Price.Cmp(price) != 0 || listing.Seller != seller {
		t.Fatalf("expected listing restored, got %+v", listing)
	}
	proceeds, getErr := h.engine.GetProceeds(seller)
	if getErr != nil {
		t.Fatalf("get proceeds: %v", getErr)
	}
	if proceeds.Sign() != 0 {
		t.Fatalf("expected proceeds rolled back to zero, got %s", proceeds)
	}
	if got := h.state.balance(buyer); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected buyer balance restored, got %s", got)
	}
	if got := h.state.balance(h.market); got.Sign() != 0 {
		t.Fatalf("expected vault balance restored, got %s", got)
	}
	if h.registry.owners[0] != seller {
		t.Fatalf("custody must stay with the seller")
	}
}

func TestBuyReentrantObserverSeesSettledLedger(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)
	buyer := newTestAddress(0xBB)
	h.mintTo(seller, 0)
	h.state.setBalance(buyer, 1_000)

	price := big.NewInt(100)
	if err := h.engine.List(seller, testCollection, 0, price); err != nil {
		t.Fatalf("list: %v", err)
	}

	// A callback during the custody transfer must find the listing already
	// gone and the seller already credited: the local mutations precede the
	// external call.
	var observedActive bool
	var observedProceeds *big.Int
	h.registry.onTransfer = func() {
		listing, err := h.engine.GetListing(testCollection, 0)
		if err != nil {
			t.Fatalf("reentrant get listing: %v", err)
		}
		observedActive = listing.Active()
		proceeds, err := h.engine.GetProceeds(seller)
		if err != nil {
			t.Fatalf("reentrant get proceeds: %v", err)
		}
		observedProceeds = proceeds
	}

	if err := h.engine.Buy(buyer, testCollection, 0, price); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if observedActive {
		t.Fatalf("reentrant observer saw an active listing during transfer")
	}
	if observedProceeds == nil || observedProceeds.Cmp(price) != 0 {
		t.Fatalf("reentrant observer saw proceeds %s, want %s", observedProceeds, price)
	}
}

func TestWithdraw(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)

	if _, err := h.engine.Withdraw(seller); !errors.Is(err, ErrNoProceeds) {
		t.Fatalf("expected ErrNoProceeds, got %v", err)
	}

	// Settle a sale so proceeds and vault funds line up.
	buyer := newTestAddress(0xBB)
	h.mintTo(seller, 0)
	h.state.setBalance(buyer, 1_000)
	price := big.NewInt(100)
	if err := h.engine.List(seller, testCollection, 0, price); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := h.engine.Buy(buyer, testCollection, 0, price); err != nil {
		t.Fatalf("buy: %v", err)
	}

	amount, err := h.engine.Withdraw(seller)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Cmp(price) != 0 {
		t.Fatalf("expected withdrawal of %s, got %s", price, amount)
	}
	proceeds, err := h.engine.GetProceeds(seller)
	if err != nil {
		t.Fatalf("get proceeds: %v", err)
	}
	if proceeds.Sign() != 0 {
		t.Fatalf("expected zero proceeds after withdrawal, got %s", proceeds)
	}
	if got := h.state.balance(seller); got.Cmp(price) != 0 {
		t.Fatalf("expected seller delivered %s, got %s", price, got)
	}
	if got := h.state.balance(h.market); got.Sign() != 0 {
		t.Fatalf("expected vault drained, got %s", got)
	}
}

func TestWithdrawRollsBackWhenDeliveryFails(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)

	// Proceeds recorded but the vault holds nothing: delivery cannot happen
	// and the zeroing must unwind with it.
	credited := big.NewInt(100)
	if err := h.state.ProceedsSet(seller, credited); err != nil {
		t.Fatalf("seed proceeds: %v", err)
	}

	_, err := h.engine.Withdraw(seller)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	proceeds, getErr := h.engine.GetProceeds(seller)
	if getErr != nil {
		t.Fatalf("get proceeds: %v", getErr)
	}
	if proceeds.Cmp(credited) != 0 {
		t.Fatalf("expected proceeds restored to %s, got %s", credited, proceeds)
	}
	if got := h.state.balance(seller); got.Sign() != 0 {
		t.Fatalf("expected no delivery, seller balance %s", got)
	}
}

func TestQueriesDoNotMutate(t *testing.T) {
	h := newTestHarness()
	seller := newTestAddress(0xAA)
	h.mintTo(seller, 0)
	if err := h.engine.List(seller, testCollection, 0, big.NewInt(100)); err != nil {
		t.Fatalf("list: %v", err)
	}

	before := len(h.state.listings)
	proceedsBefore := len(h.state.proceeds)
	for i := 0; i < 3; i++ {
		if _, err := h.engine.GetListing(testCollection, 0); err != nil {
			t.Fatalf("get listing: %v", err)
		}
		if _, err := h.engine.GetListing(testCollection, 99); err != nil {
			t.Fatalf("get absent listing: %v", err)
		}
		if _, err := h.engine.GetProceeds(seller); err != nil {
			t.Fatalf("get proceeds: %v", err)
		}
	}
	if len(h.state.listings) != before || len(h.state.proceeds) != proceedsBefore {
		t.Fatalf("read-only queries mutated state")
	}
}
