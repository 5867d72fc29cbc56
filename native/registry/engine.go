package registry

import (
	"errors"
	"fmt"

	"nftmarket/core/events"
)

var (
	errNilState = errors.New("registry engine: state not configured")

	// ErrUnknownUnit is returned when a queried or transferred unit was never minted.
	ErrUnknownUnit = errors.New("registry engine: unknown unit")
	// ErrNotAuthorized is returned when the caller is neither the owner, the
	// unit-approved operator, nor an operator-for-all of the owner.
	ErrNotAuthorized = errors.New("registry engine: caller not authorized")
	// ErrFromMismatch is returned when the declared sender of a transfer is not
	// the current owner.
	ErrFromMismatch = errors.New("registry engine: from is not the current owner")
	// ErrZeroAddress is returned when a transfer or approval names the zero
	// address where a real account is required.
	ErrZeroAddress = errors.New("registry engine: zero address")
)

type engineState interface {
	TokenGet(unit uint64) (*Token, bool, error)
	TokenPut(unit uint64, token *Token) error
	TokenCounter() (uint64, error)
	TokenSetCounter(count uint64) error
	OperatorApprovalGet(owner, operator [20]byte) (bool, error)
	OperatorApprovalSet(owner, operator [20]byte, approved bool) error
}

// Engine implements the asset registry and the minimal issuer backing it:
// sequential minting, ownership and approval bookkeeping, and the transfer
// primitive the marketplace settles purchases through.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	tokenURI string
}

// NewEngine constructs a registry engine with a no-op emitter and the default
// metadata URI.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		tokenURI: TokenURIDefault,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetTokenURI overrides the static metadata URI served for every unit.
func (e *Engine) SetTokenURI(uri string) {
	if uri == "" {
		e.tokenURI = TokenURIDefault
		return
	}
	e.tokenURI = uri
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// Mint assigns the next sequential unit id to the caller, starting at zero.
func (e *Engine) Mint(caller [20]byte) (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	if caller == ([20]byte{}) {
		return 0, ErrZeroAddress
	}
	counter, err := e.state.TokenCounter()
	if err != nil {
		return 0, err
	}
	unit := counter
	if err := e.state.TokenPut(unit, &Token{Owner: caller}); err != nil {
		return 0, err
	}
	if err := e.state.TokenSetCounter(counter + 1); err != nil {
		return 0, err
	}
	e.emit(mintedEvent(caller, unit))
	return unit, nil
}

// TokenURI returns the static metadata URI for a minted unit.
func (e *Engine) TokenURI(unit uint64) (string, error) {
	if e.state == nil {
		return "", errNilState
	}
	if _, ok, err := e.state.TokenGet(unit); err != nil {
		return "", err
	} else if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownUnit, unit)
	}
	return e.tokenURI, nil
}

// GetCounter returns the number of units minted so far.
func (e *Engine) GetCounter() (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	return e.state.TokenCounter()
}

// OwnerOf returns the current owner of a unit.
func (e *Engine) OwnerOf(unit uint64) ([20]byte, error) {
	token, err := e.token(unit)
	if err != nil {
		return [20]byte{}, err
	}
	return token.Owner, nil
}

// GetApproved returns the unit-level approved operator, zero when none is set.
func (e *Engine) GetApproved(unit uint64) ([20]byte, error) {
	token, err := e.token(unit)
	if err != nil {
		return [20]byte{}, err
	}
	return token.Approved, nil
}

// IsApprovedForAll reports whether operator may move every unit owned by owner.
func (e *Engine) IsApprovedForAll(owner, operator [20]byte) (bool, error) {
	if e.state == nil {
		return false, errNilState
	}
	return e.state.OperatorApprovalGet(owner, operator)
}

// Approve sets (or, with the zero operator, clears) the unit-level approval.
// The caller must be the owner or an operator-for-all of the owner.
func (e *Engine) Approve(caller, operator [20]byte, unit uint64) error {
	token, err := e.token(unit)
	if err != nil {
		return err
	}
	if caller != token.Owner {
		forAll, err := e.state.OperatorApprovalGet(token.Owner, caller)
		if err != nil {
			return err
		}
		if !forAll {
			return ErrNotAuthorized
		}
	}
	token.Approved = operator
	if err := e.state.TokenPut(unit, token); err != nil {
		return err
	}
	e.emit(approvedEvent(token.Owner, operator, unit))
	return nil
}

// SetApprovalForAll grants or revokes operator rights over every unit the
// caller owns now or later.
func (e *Engine) SetApprovalForAll(caller, operator [20]byte, approved bool) error {
	if e.state == nil {
		return errNilState
	}
	if operator == ([20]byte{}) {
		return ErrZeroAddress
	}
	if err := e.state.OperatorApprovalSet(caller, operator, approved); err != nil {
		return err
	}
	e.emit(approvalForAllEvent(caller, operator, approved))
	return nil
}

// TransferFrom moves custody of a unit from its current owner to a recipient.
// The caller must be the owner, the unit-approved operator, or an
// operator-for-all of the owner. A successful transfer clears the unit-level
// approval.
func (e *Engine) TransferFrom(caller, from, to [20]byte, unit uint64) error {
	token, err := e.token(unit)
	if err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	if from != token.Owner {
		return ErrFromMismatch
	}
	authorized := caller == token.Owner || (token.HasApproval() && caller == token.Approved)
	if !authorized {
		forAll, err := e.state.OperatorApprovalGet(token.Owner, caller)
		if err != nil {
			return err
		}
		authorized = forAll
	}
	if !authorized {
		return ErrNotAuthorized
	}
	token.Owner = to
	token.Approved = [20]byte{}
	if err := e.state.TokenPut(unit, token); err != nil {
		return err
	}
	e.emit(transferredEvent(from, to, unit))
	return nil
}

func (e *Engine) token(unit uint64) (*Token, error) {
	if e.state == nil {
		return nil, errNilState
	}
	token, ok, err := e.state.TokenGet(unit)
	if err != nil {
		return nil, err
	}
	if !ok || token == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownUnit, unit)
	}
	return token, nil
}
