// Package venue defines the swap venue contract the engine executes routes
// against. A venue settles optimistically: it sends the output first, then
// invokes the recipient's swap callback, during which the input payment must
// arrive, and finally verifies its own balances.
package venue

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NoPriceLimit is the sentinel passed by callers that accept any resulting
// price. Slippage protection, if any, is the caller's problem.
var NoPriceLimit *big.Int

// Venue is one external liquidity pool over a fixed token pair.
type Venue interface {
	// Address is the venue's identity on the ledger and in callback
	// authentication.
	Address() common.Address

	Token0() common.Address
	Token1() common.Address

	// Swap trades amountIn of one side of the pair for the other.
	// zeroForOne selects the direction (token0 in, token1 out when true).
	// Before returning, the venue synchronously invokes recipient.SwapSettle
	// with the two signed balance deltas; the positive delta is the amount
	// the recipient owes the venue and must transfer during the callback.
	// The returned deltas mirror the callback's.
	Swap(ctx context.Context, recipient SwapReceiver, zeroForOne bool, amountIn, priceLimit *big.Int, data []byte) (delta0, delta1 *big.Int, err error)
}

// SwapReceiver is implemented by callers of Swap. SwapSettle is invoked by
// the venue mid-swap; caller is the venue's own address and must be
// authenticated by the receiver against the call it just issued.
type SwapReceiver interface {
	Address() common.Address
	SwapSettle(ctx context.Context, caller common.Address, delta0, delta1 *big.Int, data []byte) error
}
