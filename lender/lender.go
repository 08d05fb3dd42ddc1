// Package lender defines the flash-lending contracts the engine borrows
// through. Two primitives exist: the pool-native pair flash (zero fee,
// repayment pushed back before the call returns) and the pooled multi-asset
// loan (proportional premium, repayment pulled through an allowance). Both
// deliver funds and then invoke a loan callback on the receiver before the
// lending call returns.
package lender

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/flasharb/types"
)

// FundingSource is the quoting surface the engine selects a lender with.
// Concrete sources additionally implement FlashSource or PooledSource.
type FundingSource interface {
	Address() common.Address
	Kind() types.LenderKind

	// FeeQuote returns the fee charged on borrowing amount of asset, or an
	// error if the source cannot lend that asset at all.
	FeeQuote(asset common.Address, amount *big.Int) (*big.Int, error)

	// Liquidity returns how much of asset the source can lend right now.
	Liquidity(asset common.Address) (*big.Int, error)

	String() string
}

// FlashSource is the pool-native pair flash primitive.
type FlashSource interface {
	FundingSource

	Token0() common.Address
	Token1() common.Address

	// Flash transfers amount0 of token0 and amount1 of token1 to the
	// recipient, invokes OnFlash, and fails unless its balances are restored
	// (plus fees) by the time the callback returns.
	Flash(ctx context.Context, recipient FlashReceiver, amount0, amount1 *big.Int, data []byte) error
}

// FlashReceiver receives a pair flash. caller is the lending pool's address.
type FlashReceiver interface {
	Address() common.Address
	OnFlash(ctx context.Context, caller common.Address, fee0, fee1 *big.Int, data []byte) error
}

// PooledSource is the multi-asset pooled lending primitive.
type PooledSource interface {
	FundingSource

	// FlashLoan transfers amounts of assets to the receiver, invokes
	// OnFlashLoan with onBehalfOf as the declared initiator, and afterwards
	// pulls amount+fee per asset from the receiver through its allowance.
	FlashLoan(ctx context.Context, receiver FlashLoanReceiver, assets []common.Address, amounts []*big.Int, onBehalfOf common.Address, data []byte) error
}

// FlashLoanReceiver receives a pooled loan. The callback must return true and
// have granted the pool an allowance covering amount+fee per asset.
type FlashLoanReceiver interface {
	Address() common.Address
	OnFlashLoan(ctx context.Context, caller common.Address, assets []common.Address, amounts, fees []*big.Int, initiator common.Address, data []byte) (bool, error)
}
