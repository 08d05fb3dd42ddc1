package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flasharb/lender"
	"github.com/michaelpento.lv/flasharb/types"
	"github.com/michaelpento.lv/flasharb/venue"
)

// repayMode distinguishes how the debt goes back to the lender: pushed as a
// direct transfer (pool-native flash) or pulled through an allowance the
// callback grants (pooled lender).
type repayMode int

const (
	repayPush repayMode = iota
	repayApprove
)

// OnFlash is the pool-native loan callback. It fires once, synchronously,
// inside the lender's Flash call, with the borrowed funds already delivered.
func (e *Engine) OnFlash(ctx context.Context, caller common.Address, fee0, fee1 *big.Int, data []byte) error {
	if err := e.authenticateLender(caller); err != nil {
		return err
	}
	req, err := decodeLoanContext(data)
	if err != nil {
		return err
	}

	fee := fee1
	if src, ok := e.activeSource.(lender.FlashSource); ok && req.Asset == src.Token0() {
		fee = fee0
	}
	if fee == nil {
		fee = new(big.Int)
	}
	return e.runLoan(ctx, caller, req, fee, repayPush)
}

// OnFlashLoan is the pooled loan callback. Beyond caller authentication it
// verifies the declared initiator is this engine, so a third party cannot
// trigger a repayment flow by requesting a loan on the engine's behalf.
func (e *Engine) OnFlashLoan(ctx context.Context, caller common.Address, assets []common.Address, amounts, fees []*big.Int, initiator common.Address, data []byte) (bool, error) {
	if err := e.authenticateLender(caller); err != nil {
		return false, err
	}
	if initiator != e.addr {
		return false, fmt.Errorf("%w: declared initiator %s", ErrBadInitiator, initiator.Hex())
	}
	if len(assets) != 1 || len(amounts) != 1 || len(fees) != 1 {
		return false, fmt.Errorf("single-asset loans only, got %d assets", len(assets))
	}
	req, err := decodeLoanContext(data)
	if err != nil {
		return false, err
	}
	if req.Asset != assets[0] || req.Amount.Cmp(amounts[0]) != 0 {
		return false, fmt.Errorf("loan context does not match delivered funds")
	}
	if err := e.runLoan(ctx, caller, req, fees[0], repayApprove); err != nil {
		return false, err
	}
	return true, nil
}

// runLoan is the shared loan-callback body: fold the route, validate the
// terminal asset, check solvency against the re-read balance, and settle the
// debt. Both lender variants reduce to this.
func (e *Engine) runLoan(ctx context.Context, lenderAddr common.Address, req *types.LoanRequest, fee *big.Int, mode repayMode) error {
	current := new(big.Int).Set(req.Amount)
	currentAsset := req.Asset
	for i, step := range req.Route {
		v, ok := e.venues[step.Venue]
		if !ok {
			return fmt.Errorf("%w: step %d venue %s", ErrUnknownVenue, i, step.Venue.Hex())
		}
		out, outAsset, err := e.swap(ctx, v, step.ZeroForOne, current)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		e.log.Debug("route step executed",
			zap.Int("step", i),
			zap.String("venue", step.Venue.Hex()),
			zap.String("in", current.String()),
			zap.String("out", out.String()))
		current, currentAsset = out, outAsset
	}

	// Only the terminal asset is validated; intermediate step wiring is the
	// route builder's responsibility.
	if currentAsset != req.Asset {
		return fmt.Errorf("%w: ended in %s, borrowed %s",
			ErrRouteTerminal, currentAsset.Hex(), req.Asset.Hex())
	}

	debt := new(big.Int).Add(req.Amount, fee)
	required := new(big.Int).Add(debt, e.MinProfit())

	// The solvency check trusts the re-read ledger balance, never the folded
	// running total.
	balance := e.ledger.BalanceOf(req.Asset, e.addr)
	if balance.Cmp(required) < 0 {
		return &SolvencyError{Required: required, Actual: balance}
	}

	switch mode {
	case repayPush:
		if err := e.ledger.Transfer(req.Asset, e.addr, lenderAddr, debt); err != nil {
			return fmt.Errorf("repay lender %s: %w", lenderAddr.Hex(), err)
		}
	case repayApprove:
		e.ledger.Approve(req.Asset, e.addr, lenderAddr, debt)
	}

	e.pendingRecord = &types.ExecutionRecord{
		Asset:        req.Asset,
		Amount:       new(big.Int).Set(req.Amount),
		FinalBalance: balance,
		Fee:          new(big.Int).Set(fee),
		Profit:       new(big.Int).Sub(balance, debt),
		Lender:       lenderAddr,
		RouteID:      req.Route.ID(),
	}
	return nil
}

// swap executes one route step through a venue, arming the expected-venue
// slot for the settlement callback the venue will issue mid-call.
func (e *Engine) swap(ctx context.Context, v venue.Venue, zeroForOne bool, amountIn *big.Int) (*big.Int, common.Address, error) {
	e.expectedVenue = v.Address()
	defer func() { e.expectedVenue = common.Address{} }()

	delta0, delta1, err := v.Swap(ctx, e, zeroForOne, amountIn, venue.NoPriceLimit, nil)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("swap on %s: %w", v.Address().Hex(), err)
	}

	// The received amount is the negative delta; its token is the output.
	switch {
	case delta0 != nil && delta0.Sign() < 0:
		return new(big.Int).Neg(delta0), v.Token0(), nil
	case delta1 != nil && delta1.Sign() < 0:
		return new(big.Int).Neg(delta1), v.Token1(), nil
	default:
		return nil, common.Address{}, fmt.Errorf("swap on %s returned nothing", v.Address().Hex())
	}
}

// SwapSettle is the swap settlement callback: the venue calls it mid-swap
// and the engine must push the positive-delta asset back to the venue.
// Zero or negative deltas require no transfer.
func (e *Engine) SwapSettle(ctx context.Context, caller common.Address, delta0, delta1 *big.Int, data []byte) error {
	if e.expectedVenue == (common.Address{}) || caller != e.expectedVenue {
		return fmt.Errorf("%w: swap settlement from %s", ErrUnexpectedCaller, caller.Hex())
	}
	v := e.venues[caller]
	if delta0 != nil && delta0.Sign() > 0 {
		if err := e.ledger.Transfer(v.Token0(), e.addr, caller, delta0); err != nil {
			return fmt.Errorf("settle token0: %w", err)
		}
	}
	if delta1 != nil && delta1.Sign() > 0 {
		if err := e.ledger.Transfer(v.Token1(), e.addr, caller, delta1); err != nil {
			return fmt.Errorf("settle token1: %w", err)
		}
	}
	return nil
}

func (e *Engine) authenticateLender(caller common.Address) error {
	if e.expectedLender == (common.Address{}) || caller != e.expectedLender {
		return fmt.Errorf("%w: loan callback from %s", ErrUnexpectedCaller, caller.Hex())
	}
	return nil
}

func decodeLoanContext(data []byte) (*types.LoanRequest, error) {
	var req types.LoanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode loan context: %w", err)
	}
	if req.Amount == nil {
		return nil, fmt.Errorf("loan context carries no amount")
	}
	return &req, nil
}
