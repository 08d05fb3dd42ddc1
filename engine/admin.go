package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MinProfit returns the current minimum profit threshold.
func (e *Engine) MinProfit() *big.Int {
	e.adminMu.RLock()
	defer e.adminMu.RUnlock()
	return new(big.Int).Set(e.minProfit)
}

// SetMinProfit updates the minimum profit threshold. Owner only.
func (e *Engine) SetMinProfit(caller common.Address, threshold *big.Int) error {
	if caller != e.owner {
		return ErrNotOwner
	}
	if threshold == nil || threshold.Sign() < 0 {
		return fmt.Errorf("threshold must be non-negative")
	}
	e.adminMu.Lock()
	defer e.adminMu.Unlock()
	e.minProfit = new(big.Int).Set(threshold)
	e.log.Info("min profit threshold updated", zap.String("threshold", threshold.String()))
	return nil
}

// Withdraw transfers the engine's entire balance of asset to the owner.
// A zero balance is a successful no-op. Owner only.
func (e *Engine) Withdraw(caller, asset common.Address) (*big.Int, error) {
	return e.sweep(caller, asset, e.owner)
}

// Recover transfers the engine's entire balance of asset to an arbitrary
// recipient, for assets stranded by aborted or misrouted flows. Owner only.
func (e *Engine) Recover(caller, asset, to common.Address) (*big.Int, error) {
	if to == (common.Address{}) {
		return nil, fmt.Errorf("recover to the zero address")
	}
	return e.sweep(caller, asset, to)
}

func (e *Engine) sweep(caller, asset, to common.Address) (*big.Int, error) {
	if caller != e.owner {
		return nil, ErrNotOwner
	}
	balance := e.ledger.BalanceOf(asset, e.addr)
	if balance.Sign() == 0 {
		return balance, nil
	}
	if err := e.ledger.Transfer(asset, e.addr, to, balance); err != nil {
		return nil, fmt.Errorf("withdraw %s: %w", asset.Hex(), err)
	}
	e.log.Info("balance withdrawn",
		zap.String("asset", asset.Hex()),
		zap.String("amount", balance.String()),
		zap.String("to", to.Hex()))
	return balance, nil
}
