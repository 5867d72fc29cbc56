package market

import (
	"math/big"
	"strconv"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/crypto"
)

const (
	// EventTypeListed is emitted for a fresh listing and for a price update;
	// from the event stream the two are observationally identical.
	EventTypeListed = "market.listed"
	// EventTypeCanceled is emitted when a listing is withdrawn by the current owner.
	EventTypeCanceled = "market.canceled"
	// EventTypeBought is emitted after a purchase settles.
	EventTypeBought = "market.bought"
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

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func listedEvent(seller, collection [20]byte, unit uint64, price *big.Int) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeListed,
		Attributes: map[string]string{
			"seller":     addrString(seller),
			"collection": addrString(collection),
			"unit":       strconv.FormatUint(unit, 10),
			"price":      formatAmount(price),
		},
	})
}

func canceledEvent(seller, collection [20]byte, unit uint64) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeCanceled,
		Attributes: map[string]string{
			"seller":     addrString(seller),
			"collection": addrString(collection),
			"unit":       strconv.FormatUint(unit, 10),
		},
	})
}

func boughtEvent(buyer, collection [20]byte, unit uint64, price *big.Int) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeBought,
		Attributes: map[string]string{
			"buyer":      addrString(buyer),
			"collection": addrString(collection),
			"unit":       strconv.FormatUint(unit, 10),
			"price":      formatAmount(price),
		},
	})
}
