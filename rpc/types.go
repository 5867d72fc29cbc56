package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"nftmarket/core"
	"nftmarket/crypto"
	"nftmarket/native/market"
	"nftmarket/native/registry"
)

// Per-module error codes carved out of the implementation-defined JSON-RPC range.
const (
	codeMarketInvalidParams = -32041
	codeMarketNotFound      = -32042
	codeMarketForbidden     = -32043
	codeMarketConflict      = -32044
	codeMarketPrecondition  = -32045
	codeMarketInternal      = -32046
)

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(field, value string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(value)
	if err != nil {
		return out, fmt.Errorf("%s: %w", field, err)
	}
	if decoded.Prefix() != crypto.MarketPrefix {
		return out, fmt.Errorf("%s: unexpected address prefix %q", field, decoded.Prefix())
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid decimal amount %q", field, value)
	}
	return amount, nil
}

// marketErrorResponse maps ledger precondition failures onto HTTP status and
// module error codes. Anything unrecognized is an internal error: the ledger
// rolled the operation back, the caller should not retry blindly.
func marketErrorResponse(err error) (int, int, string) {
	switch {
	case errors.Is(err, market.ErrNotListed),
		errors.Is(err, registry.ErrUnknownUnit),
		errors.Is(err, core.ErrUnknownCollection):
		return http.StatusNotFound, codeMarketNotFound, "not_found"
	case errors.Is(err, market.ErrNotOwner),
		errors.Is(err, market.ErrNotApprovedForMarketplace),
		errors.Is(err, registry.ErrNotAuthorized):
		return http.StatusForbidden, codeMarketForbidden, "forbidden"
	case errors.Is(err, market.ErrAlreadyListed):
		return http.StatusConflict, codeMarketConflict, "conflict"
	case errors.Is(err, market.ErrPriceMustBeAboveZero),
		errors.Is(err, registry.ErrZeroAddress),
		errors.Is(err, registry.ErrFromMismatch),
		errors.Is(err, core.ErrInvalidAmount):
		return http.StatusBadRequest, codeMarketInvalidParams, "invalid_params"
	case errors.Is(err, market.ErrPriceNotMet),
		errors.Is(err, market.ErrInsufficientFunds),
		errors.Is(err, market.ErrNoProceeds),
		errors.Is(err, core.ErrFaucetDisabled):
		return http.StatusUnprocessableEntity, codeMarketPrecondition, "precondition_failed"
	default:
		return http.StatusInternalServerError, codeMarketInternal, "internal_error"
	}
}

func writeModuleError(w http.ResponseWriter, id interface{}, err error) {
	status, code, message := marketErrorResponse(err)
	writeError(w, status, id, code, message, err.Error())
}

func addrToString(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.MarketPrefix, addr[:]).String()
}
