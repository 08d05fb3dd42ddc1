package testutils

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account derives a deterministic address from a human-readable label, so
// tests can name actors ("owner", "attacker", "pool-a") and still get stable
// ledger identities.
func Account(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(label))[12:])
}

// Token is an alias of Account for readability when the address names an
// asset rather than an actor.
func Token(symbol string) common.Address {
	return Account("token:" + symbol)
}
