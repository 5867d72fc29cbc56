package types

import "math/big"

// Account tracks the spendable balance backing marketplace payments. Balances
// only move through purchases, withdrawals, and the dev faucet; a missing
// account reads as a zero balance.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}
