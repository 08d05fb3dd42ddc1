// Package uniswap implements a constant-product venue over the ledger. The
// pool's reserves are its ledger balances; pricing follows x*y=k with a
// basis-point fee taken from the input amount.
package uniswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/flasharb/ledger"
	"github.com/michaelpento.lv/flasharb/venue"
)

// Pool is a two-token constant-product market maker venue.
type Pool struct {
	addr   common.Address
	token0 common.Address
	token1 common.Address
	feeBps uint16
	ledger ledger.Ledger
}

// NewPool creates a constant-product venue. Reserves are whatever the pool's
// address holds on the ledger; seed them before the first swap.
func NewPool(addr, token0, token1 common.Address, feeBps uint16, l ledger.Ledger) (*Pool, error) {
	if feeBps >= 10000 {
		return nil, fmt.Errorf("fee %d bps exceeds 100%%", feeBps)
	}
	return &Pool{addr: addr, token0: token0, token1: token1, feeBps: feeBps, ledger: l}, nil
}

func (p *Pool) Address() common.Address { return p.addr }
func (p *Pool) Token0() common.Address  { return p.token0 }
func (p *Pool) Token1() common.Address  { return p.token1 }

// Reserves returns the pool's current holdings of both tokens.
func (p *Pool) Reserves() (reserve0, reserve1 *big.Int) {
	return p.ledger.BalanceOf(p.token0, p.addr), p.ledger.BalanceOf(p.token1, p.addr)
}

// GetAmountOut calculates the output for amountIn against the given reserves.
func (p *Pool) GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	scale := big.NewInt(10000)
	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(10000-int64(p.feeBps)))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Add(
		new(big.Int).Mul(reserveIn, scale),
		amountInWithFee,
	)
	return new(big.Int).Div(numerator, denominator)
}

// GetAmountIn calculates the input required for a desired amountOut.
func (p *Pool) GetAmountIn(amountOut, reserveIn, reserveOut *big.Int) *big.Int {
	numerator := new(big.Int).Mul(
		new(big.Int).Mul(reserveIn, amountOut),
		big.NewInt(10000),
	)
	denominator := new(big.Int).Mul(
		new(big.Int).Sub(reserveOut, amountOut),
		big.NewInt(10000-int64(p.feeBps)),
	)
	return new(big.Int).Add(
		new(big.Int).Div(numerator, denominator),
		big.NewInt(1),
	)
}

// Swap trades against the pool. Output goes out first; the recipient's
// settlement callback must deliver the input before the call returns.
func (p *Pool) Swap(ctx context.Context, recipient venue.SwapReceiver, zeroForOne bool, amountIn, priceLimit *big.Int, data []byte) (*big.Int, *big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, nil, fmt.Errorf("pool %s: non-positive input", p.addr.Hex())
	}
	reserve0, reserve1 := p.Reserves()
	reserveIn, reserveOut := reserve0, reserve1
	tokenIn, tokenOut := p.token0, p.token1
	if !zeroForOne {
		reserveIn, reserveOut = reserve1, reserve0
		tokenIn, tokenOut = p.token1, p.token0
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, nil, fmt.Errorf("pool %s: no liquidity", p.addr.Hex())
	}

	amountOut := p.GetAmountOut(amountIn, reserveIn, reserveOut)
	if amountOut.Sign() <= 0 {
		return nil, nil, fmt.Errorf("pool %s: output rounds to zero", p.addr.Hex())
	}
	if err := p.ledger.Transfer(tokenOut, p.addr, recipient.Address(), amountOut); err != nil {
		return nil, nil, fmt.Errorf("pool %s: pay out: %w", p.addr.Hex(), err)
	}

	delta0 := new(big.Int).Set(amountIn)
	delta1 := new(big.Int).Neg(amountOut)
	if !zeroForOne {
		delta0, delta1 = delta1, delta0
	}
	if err := recipient.SwapSettle(ctx, p.addr, delta0, delta1, data); err != nil {
		return nil, nil, err
	}

	owed := new(big.Int).Add(reserveIn, amountIn)
	if p.ledger.BalanceOf(tokenIn, p.addr).Cmp(owed) < 0 {
		return nil, nil, fmt.Errorf("pool %s: input not settled", p.addr.Hex())
	}
	return delta0, delta1, nil
}
