package registry

import (
	"bytes"
	"errors"
	"testing"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

type operatorPair struct {
	owner    [20]byte
	operator [20]byte
}

type mockState struct {
	tokens    map[uint64]*Token
	counter   uint64
	operators map[operatorPair]bool
}

func newMockState() *mockState {
	return &mockState{
		tokens:    make(map[uint64]*Token),
		operators: make(map[operatorPair]bool),
	}
}

func (m *mockState) TokenGet(unit uint64) (*Token, bool, error) {
	token, ok := m.tokens[unit]
	if !ok {
		return nil, false, nil
	}
	clone := *token
	return &clone, true, nil
}

func (m *mockState) TokenPut(unit uint64, token *Token) error {
	clone := *token
	m.tokens[unit] = &clone
	return nil
}

func (m *mockState) TokenCounter() (uint64, error) { return m.counter, nil }

func (m *mockState) TokenSetCounter(count uint64) error {
	m.counter = count
	return nil
}

func (m *mockState) OperatorApprovalGet(owner, operator [20]byte) (bool, error) {
	return m.operators[operatorPair{owner, operator}], nil
}

func (m *mockState) OperatorApprovalSet(owner, operator [20]byte, approved bool) error {
	if !approved {
		delete(m.operators, operatorPair{owner, operator})
		return nil
	}
	m.operators[operatorPair{owner, operator}] = true
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

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestEngine() (*Engine, *mockState, *captureEmitter) {
	state := newMockState()
	emitter := &captureEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEmitter(emitter)
	return engine, state, emitter
}

func TestMintAssignsSequentialUnits(t *testing.T) {
	engine, _, emitter := newTestEngine()
	owner := newTestAddress(0xAA)

	unit, err := engine.Mint(owner)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if unit != 0 {
		t.Fatalf("expected first unit id 0, got %d", unit)
	}
	counter, err := engine.GetCounter()
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if counter != 1 {
		t.Fatalf("expected counter 1 after first mint, got %d", counter)
	}

	got, err := engine.OwnerOf(unit)
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if got != owner {
		t.Fatalf("expected minted unit owned by the caller")
	}

	uri, err := engine.TokenURI(unit)
	if err != nil {
		t.Fatalf("token uri: %v", err)
	}
	if uri != TokenURIDefault {
		t.Fatalf("expected the fixed metadata URI, got %q", uri)
	}

	second, err := engine.Mint(newTestAddress(0xBB))
	if err != nil {
		t.Fatalf("second mint: %v", err)
	}
	if second != 1 {
		t.Fatalf("expected sequential unit id 1, got %d", second)
	}

	if len(emitter.events) != 2 || emitter.events[0].Type != EventTypeMinted {
		t.Fatalf("expected minted events, got %+v", emitter.events)
	}
}

func TestTokenURIUnknownUnit(t *testing.T) {
	engine, _, _ := newTestEngine()
	if _, err := engine.TokenURI(7); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
}

func TestApproveRequiresOwnership(t *testing.T) {
	engine, _, _ := newTestEngine()
	owner := newTestAddress(0xAA)
	operator := newTestAddress(0xCC)
	unit, err := engine.Mint(owner)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := engine.Approve(newTestAddress(0xBB), operator, unit); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if err := engine.Approve(owner, operator, unit); err != nil {
		t.Fatalf("approve: %v", err)
	}
	approved, err := engine.GetApproved(unit)
	if err != nil {
		t.Fatalf("get approved: %v", err)
	}
	if approved != operator {
		t.Fatalf("expected unit approval recorded")
	}

	// Clearing with the zero operator.
	if err := engine.Approve(owner, [20]byte{}, unit); err != nil {
		t.Fatalf("clear approval: %v", err)
	}
	approved, err = engine.GetApproved(unit)
	if err != nil {
		t.Fatalf("get approved: %v", err)
	}
	if approved != ([20]byte{}) {
		t.Fatalf("expected approval cleared")
	}
}

func TestTransferFromAuthorization(t *testing.T) {
	owner := newTestAddress(0xAA)
	operator := newTestAddress(0xCC)
	recipient := newTestAddress(0xBB)

	cases := []struct {
		name    string
		setup   func(e *Engine, unit uint64)
		caller  [20]byte
		from    [20]byte
		to      [20]byte
		wantErr error
	}{
		{
			name:    "owner transfers",
			setup:   func(e *Engine, unit uint64) {},
			caller:  owner,
			from:    owner,
			to:      recipient,
			wantErr: nil,
		},
		{
			name: "unit-approved operator transfers",
			setup: func(e *Engine, unit uint64) {
				if err := e.Approve(owner, operator, unit); err != nil {
					t.Fatalf("approve: %v", err)
				}
			},
			caller:  operator,
			from:    owner,
			to:      recipient,
			wantErr: nil,
		},
		{
			name: "operator-for-all transfers",
			setup: func(e *Engine, unit uint64) {
				if err := e.SetApprovalForAll(owner, operator, true); err != nil {
					t.Fatalf("set approval for all: %v", err)
				}
			},
			caller:  operator,
			from:    owner,
			to:      recipient,
			wantErr: nil,
		},
		{
			name:    "stranger cannot transfer",
			setup:   func(e *Engine, unit uint64) {},
			caller:  newTestAddress(0xDD),
			from:    owner,
			to:      recipient,
			wantErr: ErrNotAuthorized,
		},
		{
			name:    "from must be the owner",
			setup:   func(e *Engine, unit uint64) {},
			caller:  owner,
			from:    recipient,
			to:      owner,
			wantErr: ErrFromMismatch,
		},
		{
			name:    "zero recipient rejected",
			setup:   func(e *Engine, unit uint64) {},
			caller:  owner,
			from:    owner,
			to:      [20]byte{},
			wantErr: ErrZeroAddress,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, _, _ := newTestEngine()
			unit, err := engine.Mint(owner)
			if err != nil {
				t.Fatalf("mint: %v", err)
			}
			tc.setup(engine, unit)
			err = engine.TransferFrom(tc.caller, tc.from, tc.to, unit)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("transfer: %v", err)
				}
				got, err := engine.OwnerOf(unit)
				if err != nil {
					t.Fatalf("owner of: %v", err)
				}
				if got != tc.to {
					t.Fatalf("expected custody moved")
				}
				approved, err := engine.GetApproved(unit)
				if err != nil {
					t.Fatalf("get approved: %v", err)
				}
				if approved != ([20]byte{}) {
					t.Fatalf("transfer must clear the unit approval")
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTransferUnknownUnit(t *testing.T) {
	engine, _, _ := newTestEngine()
	err := engine.TransferFrom(newTestAddress(0xAA), newTestAddress(0xAA), newTestAddress(0xBB), 42)
	if !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
}
