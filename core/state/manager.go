package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/core/types"
	"nftmarket/native/market"
	"nftmarket/native/registry"
	"nftmarket/storage"
)

// Manager reads and writes ledger records through the key-value store. Records
// are RLP encoded under keccak256-hashed prefixed keys. It implements the
// state backends of the market and registry engines; engines stay unaware of
// encoding and key layout.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) getRecord(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (m *Manager) putRecord(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return m.db.Put(key, encoded)
}

// --- Accounts ---

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount loads an account, returning a zero-balance account when the
// address has never been written.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	stored := new(storedAccount)
	ok, err := m.getRecord(accountKey(addr), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	balance := big.NewInt(0)
	if stored.Balance != nil {
		balance = new(big.Int).Set(stored.Balance)
	}
	return &types.Account{Nonce: stored.Nonce, Balance: balance}, nil
}

// PutAccount persists an account record.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account for %x", addr)
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		if account.Balance.Sign() < 0 {
			return fmt.Errorf("state: negative balance for %x", addr)
		}
		balance = new(big.Int).Set(account.Balance)
	}
	return m.putRecord(accountKey(addr), &storedAccount{Nonce: account.Nonce, Balance: balance})
}

// --- Registry tokens ---

type storedToken struct {
	Owner    [20]byte
	Approved [20]byte
}

func (m *Manager) TokenGet(unit uint64) (*registry.Token, bool, error) {
	stored := new(storedToken)
	ok, err := m.getRecord(tokenKey(unit), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &registry.Token{Owner: stored.Owner, Approved: stored.Approved}, true, nil
}

func (m *Manager) TokenPut(unit uint64, token *registry.Token) error {
	if token == nil {
		return fmt.Errorf("state: nil token record for unit %d", unit)
	}
	return m.putRecord(tokenKey(unit), &storedToken{Owner: token.Owner, Approved: token.Approved})
}

func (m *Manager) TokenCounter() (uint64, error) {
	var counter uint64
	ok, err := m.getRecord(tokenCounterKey, &counter)
	if err != nil || !ok {
		return 0, err
	}
	return counter, nil
}

func (m *Manager) TokenSetCounter(count uint64) error {
	return m.putRecord(tokenCounterKey, count)
}

func (m *Manager) OperatorApprovalGet(owner, operator [20]byte) (bool, error) {
	var approved bool
	ok, err := m.getRecord(operatorKey(owner, operator), &approved)
	if err != nil || !ok {
		return false, err
	}
	return approved, nil
}

func (m *Manager) OperatorApprovalSet(owner, operator [20]byte, approved bool) error {
	if !approved {
		return m.db.Delete(operatorKey(owner, operator))
	}
	return m.putRecord(operatorKey(owner, operator), true)
}

// --- Market listings ---

type storedListing struct {
	Seller [20]byte
	Price  *big.Int
}

func (m *Manager) ListingGet(collection [20]byte, unit uint64) (*market.Listing, bool, error) {
	stored := new(storedListing)
	ok, err := m.getRecord(listingKey(collection, unit), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	price := big.NewInt(0)
	if stored.Price != nil {
		price = new(big.Int).Set(stored.Price)
	}
	return &market.Listing{Seller: stored.Seller, Price: price}, true, nil
}

func (m *Manager) ListingPut(collection [20]byte, unit uint64, listing *market.Listing) error {
	if listing == nil {
		return fmt.Errorf("state: nil listing record for unit %d", unit)
	}
	price := big.NewInt(0)
	if listing.Price != nil {
		price = new(big.Int).Set(listing.Price)
	}
	return m.putRecord(listingKey(collection, unit), &storedListing{Seller: listing.Seller, Price: price})
}

func (m *Manager) ListingDelete(collection [20]byte, unit uint64) error {
	return m.db.Delete(listingKey(collection, unit))
}

// --- Proceeds ---

func (m *Manager) ProceedsGet(addr [20]byte) (*big.Int, error) {
	proceeds := new(big.Int)
	ok, err := m.getRecord(proceedsKey(addr), proceeds)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return proceeds, nil
}

func (m *Manager) ProceedsSet(addr [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative proceeds for %x", addr)
	}
	if amount.Sign() == 0 {
		return m.db.Delete(proceedsKey(addr))
	}
	return m.putRecord(proceedsKey(addr), amount)
}
