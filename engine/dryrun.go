package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/flasharb/types"
)

// DryRun executes the full borrow/route/verify/repay path and then reverts
// every ledger effect unconditionally, reporting what a real invocation
// would have done. It holds the same latch as ExecuteArbitrage and fails
// with the same taxonomy, so an unprofitable route surfaces as the exact
// SolvencyError a live run would hit.
func (e *Engine) DryRun(ctx context.Context, caller, asset common.Address, amount *big.Int, route types.Route) (*types.ExecutionRecord, error) {
	return e.execute(ctx, caller, asset, amount, route, true)
}
