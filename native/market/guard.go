package market

// The access guard is stateless: both predicates re-derive their answer from
// the live registry on every call. The stored seller field is never consulted
// for authority, only for bookkeeping. A unit transferred outside the
// marketplace must leave the new owner, not the stale seller, in control.

// RegistryView is the capability contract the marketplace holds on the asset
// registry. Custody and approval state live behind it; the marketplace never
// caches answers.
type RegistryView interface {
	OwnerOf(collection [20]byte, unit uint64) ([20]byte, error)
	GetApproved(collection [20]byte, unit uint64) ([20]byte, error)
	IsApprovedForAll(collection [20]byte, owner, operator [20]byte) (bool, error)
	TransferFrom(collection [20]byte, from, to [20]byte, unit uint64) error
}

func (e *Engine) isOwner(collection [20]byte, unit uint64, identity [20]byte) (bool, error) {
	owner, err := e.registry.OwnerOf(collection, unit)
	if err != nil {
		return false, err
	}
	return owner == identity, nil
}

// isApprovedForMarketplace holds when the marketplace address is the unit's
// approved operator, or an operator-for-all of the unit's current owner.
func (e *Engine) isApprovedForMarketplace(collection [20]byte, unit uint64) (bool, error) {
	approved, err := e.registry.GetApproved(collection, unit)
	if err != nil {
		return false, err
	}
	if approved == e.marketAddr && e.marketAddr != ([20]byte{}) {
		return true, nil
	}
	owner, err := e.registry.OwnerOf(collection, unit)
	if err != nil {
		return false, err
	}
	return e.registry.IsApprovedForAll(collection, owner, e.marketAddr)
}
