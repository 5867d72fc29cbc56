package registry

import (
	"strconv"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/crypto"
)

const (
	// EventTypeMinted is emitted when the issuer assigns a new unit.
	EventTypeMinted = "registry.minted"
	// EventTypeTransferred is emitted when custody of a unit changes hands.
	EventTypeTransferred = "registry.transferred"
	// EventTypeApproved is emitted when a unit-level approval is set or cleared.
	EventTypeApproved = "registry.approved"
	// EventTypeApprovalForAll is emitted when an operator-for-all grant changes.
	EventTypeApprovalForAll = "registry.approvalForAll"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func addrString(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.MarketPrefix, addr[:]).String()
}

func mintedEvent(owner [20]byte, unit uint64) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeMinted,
		Attributes: map[string]string{
			"owner": addrString(owner),
			"unit":  strconv.FormatUint(unit, 10),
		},
	})
}

func transferredEvent(from, to [20]byte, unit uint64) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeTransferred,
		Attributes: map[string]string{
			"from": addrString(from),
			"to":   addrString(to),
			"unit": strconv.FormatUint(unit, 10),
		},
	})
}

func approvedEvent(owner, operator [20]byte, unit uint64) events.Event {
	attrs := map[string]string{
		"owner": addrString(owner),
		"unit":  strconv.FormatUint(unit, 10),
	}
	if operator != ([20]byte{}) {
		attrs["operator"] = addrString(operator)
	}
	return WrapEvent(&types.Event{Type: EventTypeApproved, Attributes: attrs})
}

func approvalForAllEvent(owner, operator [20]byte, approved bool) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeApprovalForAll,
		Attributes: map[string]string{
			"owner":    addrString(owner),
			"operator": addrString(operator),
			"approved": strconv.FormatBool(approved),
		},
	})
}
