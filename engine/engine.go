// Package engine implements the atomic borrow/execute/verify/repay state
// machine. A top-level invocation borrows from a flash lender, runs the given
// route across registered venues, verifies the resulting balance covers debt
// plus the minimum profit threshold, and repays — all within one nested
// synchronous call chain that either fully commits or fully reverts against
// the ledger.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flasharb/ledger"
	"github.com/michaelpento.lv/flasharb/lender"
	"github.com/michaelpento.lv/flasharb/types"
	"github.com/michaelpento.lv/flasharb/venue"
)

// DefaultHistorySize bounds the retained execution records.
const DefaultHistorySize = 128

// Engine orchestrates atomic flash-loan arbitrage. The owner identity is
// fixed at construction; the minimum profit threshold is the only other
// state that survives across invocations.
type Engine struct {
	addr  common.Address
	owner common.Address

	adminMu   sync.RWMutex
	minProfit *big.Int

	ledger  ledger.Ledger
	venues  map[common.Address]venue.Venue
	sources []lender.FundingSource

	// busy is the reentrancy latch: try-acquired at every top-level entry,
	// released on every exit path. A blocking lock would deadlock on
	// same-stack reentry, so acquisition never waits.
	busy atomic.Bool

	// expectedLender and expectedVenue are the single-slot callback
	// authentication tokens: written immediately before the one external
	// call that may call back, cleared when it returns. Only the invocation
	// holding the latch touches them.
	expectedLender common.Address
	expectedVenue  common.Address
	activeSource   lender.FundingSource
	pendingRecord  *types.ExecutionRecord

	log     *zap.Logger
	metrics engineMetrics
	history *executionHistory
}

// New creates an engine. addr is the engine's own identity on the ledger,
// owner the only address allowed to invoke it.
func New(addr, owner common.Address, l ledger.Ledger, log *zap.Logger) (*Engine, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("owner cannot be the zero address")
	}
	hist, err := newExecutionHistory(DefaultHistorySize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		addr:      addr,
		owner:     owner,
		minProfit: new(big.Int),
		ledger:    l,
		venues:    make(map[common.Address]venue.Venue),
		log:       log,
		metrics:   newEngineMetrics(),
		history:   hist,
	}, nil
}

// Address returns the engine's ledger identity.
func (e *Engine) Address() common.Address { return e.addr }

// Owner returns the owner identity fixed at construction.
func (e *Engine) Owner() common.Address { return e.owner }

// RegisterVenue makes a venue addressable from route steps.
func (e *Engine) RegisterVenue(v venue.Venue) {
	e.venues[v.Address()] = v
}

// RegisterFundingSource adds a flash lender the engine may borrow from.
func (e *Engine) RegisterFundingSource(src lender.FundingSource) {
	e.sources = append(e.sources, src)
}

// ExecuteArbitrage borrows amount of asset, executes the route, verifies
// solvency and repays, atomically. On success it returns the execution
// record; on any failure every ledger effect is rolled back.
func (e *Engine) ExecuteArbitrage(ctx context.Context, caller, asset common.Address, amount *big.Int, route types.Route) (*types.ExecutionRecord, error) {
	return e.execute(ctx, caller, asset, amount, route, false)
}

func (e *Engine) execute(ctx context.Context, caller, asset common.Address, amount *big.Int, route types.Route, dry bool) (rec *types.ExecutionRecord, err error) {
	if caller != e.owner {
		e.metrics.failures.WithLabelValues("authorization").Inc()
		return nil, ErrNotOwner
	}
	if !e.busy.CompareAndSwap(false, true) {
		e.metrics.failures.WithLabelValues("concurrency").Inc()
		return nil, ErrReentrant
	}
	defer e.busy.Store(false)

	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("non-positive borrow amount")
	}

	start := time.Now()
	e.metrics.inFlight.Inc()
	defer e.metrics.inFlight.Dec()
	if !dry {
		e.metrics.attempts.Inc()
		defer func() {
			e.metrics.latency.Observe(time.Since(start).Seconds())
			e.metrics.updateSuccessRate()
		}()
	}

	snap := e.ledger.Snapshot()
	defer func() {
		if err != nil || dry {
			if rerr := e.ledger.RevertTo(snap); rerr != nil {
				e.log.Error("ledger revert failed", zap.Error(rerr))
			}
		} else {
			e.ledger.Discard(snap)
		}
		if err != nil && !dry {
			e.metrics.failures.WithLabelValues(failureLabel(err)).Inc()
		}
	}()

	src, err := e.selectFundingSource(asset, amount)
	if err != nil {
		return nil, err
	}
	e.metrics.lenderSelections.WithLabelValues(src.String()).Inc()

	data, err := json.Marshal(types.LoanRequest{
		Asset:     asset,
		Amount:    amount,
		Route:     route,
		Initiator: e.addr,
	})
	if err != nil {
		return nil, fmt.Errorf("encode loan context: %w", err)
	}

	e.expectedLender = src.Address()
	e.activeSource = src
	e.pendingRecord = nil
	defer func() {
		e.expectedLender = common.Address{}
		e.activeSource = nil
		e.pendingRecord = nil
	}()

	if err = e.borrow(ctx, src, asset, amount, data); err != nil {
		return nil, err
	}
	if e.pendingRecord == nil {
		return nil, fmt.Errorf("lender %s returned without invoking the loan callback", src.Address().Hex())
	}

	rec = e.pendingRecord
	rec.Elapsed = time.Since(start)
	if dry {
		e.log.Debug("dry run completed",
			zap.String("asset", rec.Asset.Hex()),
			zap.String("amount", rec.Amount.String()),
			zap.String("profit", rec.Profit.String()))
		return rec, nil
	}

	e.metrics.executions.Inc()
	e.metrics.borrowedVolume.Add(bigFloat(rec.Amount))
	e.metrics.profitVolume.Add(bigFloat(rec.Profit))
	e.history.add(rec)
	e.log.Info("arbitrage executed",
		zap.String("asset", rec.Asset.Hex()),
		zap.String("amount", rec.Amount.String()),
		zap.String("final_balance", rec.FinalBalance.String()),
		zap.String("fee", rec.Fee.String()),
		zap.String("profit", rec.Profit.String()),
		zap.Uint64("route", rec.RouteID),
		zap.Duration("elapsed", rec.Elapsed))
	return rec, nil
}

// borrow dispatches the loan request to the variant-specific primitive. The
// loan callback fires on the engine before either call returns.
func (e *Engine) borrow(ctx context.Context, src lender.FundingSource, asset common.Address, amount *big.Int, data []byte) error {
	switch s := src.(type) {
	case lender.FlashSource:
		amount0, amount1 := new(big.Int), new(big.Int)
		switch asset {
		case s.Token0():
			amount0 = amount
		case s.Token1():
			amount1 = amount
		default:
			return fmt.Errorf("flash source %s does not hold %s", s.Address().Hex(), asset.Hex())
		}
		if err := s.Flash(ctx, e, amount0, amount1, data); err != nil {
			return fmt.Errorf("flash from %s: %w", s.Address().Hex(), err)
		}
		return nil
	case lender.PooledSource:
		if err := s.FlashLoan(ctx, e, []common.Address{asset}, []*big.Int{amount}, e.addr, data); err != nil {
			return fmt.Errorf("flash loan from %s: %w", s.Address().Hex(), err)
		}
		return nil
	default:
		return fmt.Errorf("funding source %s: unsupported primitive", src.Address().Hex())
	}
}

// selectFundingSource picks the cheapest registered source that can cover
// the request, by fee quote then liquidity.
func (e *Engine) selectFundingSource(asset common.Address, amount *big.Int) (lender.FundingSource, error) {
	var (
		best    lender.FundingSource
		bestFee *big.Int
	)
	for _, src := range e.sources {
		fee, err := src.FeeQuote(asset, amount)
		if err != nil {
			continue
		}
		liq, err := src.Liquidity(asset)
		if err != nil || liq.Cmp(amount) < 0 {
			continue
		}
		if bestFee == nil || fee.Cmp(bestFee) < 0 {
			best, bestFee = src, fee
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no source holds %s of %s", ErrNoLender, amount, asset.Hex())
	}
	return best, nil
}

func bigFloat(x *big.Int) float64 {
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}
