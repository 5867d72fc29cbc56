package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftmarket/core/events"
	mktstate "nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/native/market"
	"nftmarket/native/registry"
	"nftmarket/storage"
)

var (
	// ErrUnknownCollection is returned when a marketplace call names a
	// collection this node does not serve.
	ErrUnknownCollection = errors.New("core: unknown collection")
	// ErrFaucetDisabled is returned when the dev faucet is invoked on a node
	// that has it switched off.
	ErrFaucetDisabled = errors.New("core: dev faucet disabled")
	// ErrInvalidAmount is returned for non-positive faucet amounts.
	ErrInvalidAmount = errors.New("core: amount must be positive")
)

// recentEventCap bounds the in-memory event tail served to observers.
const recentEventCap = 256

// Node is the central controller, wiring storage, state, and the engines
// together. Every public operation runs under one global mutex: the ledger's
// correctness depends on one-operation-at-a-time transactional semantics, and
// the RPC server serves requests concurrently.
type Node struct {
	db storage.Database

	stateMu sync.Mutex

	marketAddr     [20]byte
	collectionAddr [20]byte
	tokenURI       string
	devFaucet      bool

	eventsMu     sync.Mutex
	recentEvents []types.Event
}

// NewNode opens the ledger on top of the provided database.
func NewNode(db storage.Database) (*Node, error) {
	if db == nil {
		return nil, errors.New("core: nil database")
	}
	n := &Node{
		db:             db,
		marketAddr:     moduleAddress("nftmarket/market-vault"),
		collectionAddr: moduleAddress("nftmarket/basic-nft"),
	}
	return n, nil
}

// moduleAddress derives a stable 20-byte account for a module-owned role from
// its name, the way contract-less chains reserve system accounts.
func moduleAddress(name string) [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte(name))[12:])
	return addr
}

// SetTokenURI overrides the issuer's static metadata URI.
func (n *Node) SetTokenURI(uri string) { n.tokenURI = uri }

// SetDevFaucet enables the development faucet.
func (n *Node) SetDevFaucet(enabled bool) { n.devFaucet = enabled }

// MarketAddress returns the marketplace vault/operator account.
func (n *Node) MarketAddress() [20]byte { return n.marketAddr }

// CollectionAddress returns the address of the built-in collection.
func (n *Node) CollectionAddress() [20]byte { return n.collectionAddr }

func (n *Node) newRegistryEngine(manager *mktstate.Manager) *registry.Engine {
	engine := registry.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(nodeEmitter{node: n})
	engine.SetTokenURI(n.tokenURI)
	return engine
}

func (n *Node) newMarketEngine(manager *mktstate.Manager) *market.Engine {
	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetRegistry(&registryDispatch{node: n, engine: n.newRegistryEngine(manager)})
	engine.SetEmitter(nodeEmitter{node: n})
	engine.SetMarketAddress(n.marketAddr)
	return engine
}

// registryDispatch routes marketplace registry calls to the collection engine
// serving that address. One collection is built in; anything else is unknown.
type registryDispatch struct {
	node   *Node
	engine *registry.Engine
}

func (d *registryDispatch) resolve(collection [20]byte) (*registry.Engine, error) {
	if collection != d.node.collectionAddr {
		return nil, fmt.Errorf("%w: %x", ErrUnknownCollection, collection)
	}
	return d.engine, nil
}

func (d *registryDispatch) OwnerOf(collection [20]byte, unit uint64) ([20]byte, error) {
	engine, err := d.resolve(collection)
	if err != nil {
		return [20]byte{}, err
	}
	return engine.OwnerOf(unit)
}

func (d *registryDispatch) GetApproved(collection [20]byte, unit uint64) ([20]byte, error) {
	engine, err := d.resolve(collection)
	if err != nil {
		return [20]byte{}, err
	}
	return engine.GetApproved(unit)
}

func (d *registryDispatch) IsApprovedForAll(collection [20]byte, owner, operator [20]byte) (bool, error) {
	engine, err := d.resolve(collection)
	if err != nil {
		return false, err
	}
	return engine.IsApprovedForAll(owner, operator)
}

func (d *registryDispatch) TransferFrom(collection [20]byte, from, to [20]byte, unit uint64) error {
	engine, err := d.resolve(collection)
	if err != nil {
		return err
	}
	// The marketplace acts as the approved operator when settling a purchase.
	return engine.TransferFrom(d.node.marketAddr, from, to, unit)
}

// nodeEmitter collects engine events into the node's bounded tail.
type nodeEmitter struct {
	node *Node
}

func (e nodeEmitter) Emit(evt events.Event) {
	payload, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	raw := payload.Event()
	if raw == nil {
		return
	}
	e.node.eventsMu.Lock()
	defer e.node.eventsMu.Unlock()
	e.node.recentEvents = append(e.node.recentEvents, *raw)
	if len(e.node.recentEvents) > recentEventCap {
		e.node.recentEvents = e.node.recentEvents[len(e.node.recentEvents)-recentEventCap:]
	}
}

// RecentEvents returns a copy of the buffered event tail, oldest first.
func (n *Node) RecentEvents() []types.Event {
	n.eventsMu.Lock()
	defer n.eventsMu.Unlock()
	out := make([]types.Event, len(n.recentEvents))
	copy(out, n.recentEvents)
	return out
}

// --- Registry operations ---

func (n *Node) MintNFT(caller [20]byte) (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newRegistryEngine(manager).Mint(caller)
}

func (n *Node) NFTApprove(caller, operator [20]byte, unit uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newRegistryEngine(manager).Approve(caller, operator, unit)
}

func (n *Node) NFTSetApprovalForAll(caller, operator [20]byte, approved bool) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newRegistryEngine(manager).SetApprovalForAll(caller, operator, approved)
}

func (n *Node) NFTTransferFrom(caller, from, to [20]byte, unit uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newRegistryEngine(manager).TransferFrom(caller, from, to, unit)
}

func (n *Node) NFTOwnerOf(unit uint64) ([20]byte, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newRegistryEngine(manager).OwnerOf(unit)
}

func (n *Node) NFTTokenURI(unit uint64) (string, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newRegistryEngine(manager).TokenURI(unit)
}

func (n *Node) NFTGetCounter() (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newRegistryEngine(manager).GetCounter()
}

// --- Marketplace operations ---

func (n *Node) MarketList(caller, collection [20]byte, unit uint64, price *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newMarketEngine(manager).List(caller, collection, unit, price)
}

func (n *Node) MarketCancel(caller, collection [20]byte, unit uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newMarketEngine(manager).Cancel(caller, collection, unit)
}

func (n *Node) MarketUpdate(caller, collection [20]byte, unit uint64, newPrice *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newMarketEngine(manager).Update(caller, collection, unit, newPrice)
}

func (n *Node) MarketBuy(buyer, collection [20]byte, unit uint64, payment *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newMarketEngine(manager).Buy(buyer, collection, unit, payment)
}

func (n *Node) MarketWithdraw(caller [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newMarketEngine(manager).Withdraw(caller)
}

func (n *Node) MarketGetListing(collection [20]byte, unit uint64) (*market.Listing, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newMarketEngine(manager).GetListing(collection, unit)
}

func (n *Node) MarketGetProceeds(addr [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return n.newMarketEngine(manager).GetProceeds(addr)
}

// --- Accounts ---

func (n *Node) GetAccount(addr []byte) (*types.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	return manager.GetAccount(addr)
}

// FaucetFund credits an account for development networks. Disabled unless the
// node was configured with the faucet on.
func (n *Node) FaucetFund(addr [20]byte, amount *big.Int) error {
	if !n.devFaucet {
		return ErrFaucetDisabled
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mktstate.NewManager(n.db)
	account, err := manager.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return manager.PutAccount(addr[:], account)
}
