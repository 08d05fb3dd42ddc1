package venue

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/flasharb/ledger"
)

const bpsDenominator = 10000

// RatePool is a venue that quotes a fixed exchange rate with a basis-point
// fee on the input amount. Output is exact-rate with no price impact, which
// makes leg outputs predictable to the last unit:
//
//	out = in * (10000 - feeBps) / 10000 * rateNum / rateDen
//
// for token0 -> token1; the rate inverts for the other direction.
type RatePool struct {
	addr    common.Address
	token0  common.Address
	token1  common.Address
	rateNum *big.Int
	rateDen *big.Int
	feeBps  uint16
	ledger  ledger.Ledger
}

// NewRatePool creates a fixed-rate venue. rateNum/rateDen is the token1 price
// of one unit of token0; feeBps is charged on the input of every leg.
func NewRatePool(addr, token0, token1 common.Address, rateNum, rateDen int64, feeBps uint16, l ledger.Ledger) (*RatePool, error) {
	if rateNum <= 0 || rateDen <= 0 {
		return nil, fmt.Errorf("invalid rate %d/%d", rateNum, rateDen)
	}
	if feeBps >= bpsDenominator {
		return nil, fmt.Errorf("fee %d bps exceeds 100%%", feeBps)
	}
	return &RatePool{
		addr:    addr,
		token0:  token0,
		token1:  token1,
		rateNum: big.NewInt(rateNum),
		rateDen: big.NewInt(rateDen),
		feeBps:  feeBps,
		ledger:  l,
	}, nil
}

func (p *RatePool) Address() common.Address { return p.addr }
func (p *RatePool) Token0() common.Address  { return p.token0 }
func (p *RatePool) Token1() common.Address  { return p.token1 }

// AmountOut quotes the output for amountIn in the given direction.
func (p *RatePool) AmountOut(zeroForOne bool, amountIn *big.Int) *big.Int {
	net := new(big.Int).Mul(amountIn, big.NewInt(bpsDenominator-int64(p.feeBps)))
	net.Div(net, big.NewInt(bpsDenominator))
	if zeroForOne {
		net.Mul(net, p.rateNum)
		return net.Div(net, p.rateDen)
	}
	net.Mul(net, p.rateDen)
	return net.Div(net, p.rateNum)
}

// Swap sends the output optimistically, collects the input through the
// recipient's settlement callback, and fails the whole call if the input
// payment did not arrive in full.
func (p *RatePool) Swap(ctx context.Context, recipient SwapReceiver, zeroForOne bool, amountIn, priceLimit *big.Int, data []byte) (*big.Int, *big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, nil, fmt.Errorf("rate pool %s: non-positive input", p.addr.Hex())
	}
	amountOut := p.AmountOut(zeroForOne, amountIn)

	tokenIn, tokenOut := p.token0, p.token1
	if !zeroForOne {
		tokenIn, tokenOut = p.token1, p.token0
	}

	inBefore := p.ledger.BalanceOf(tokenIn, p.addr)
	if err := p.ledger.Transfer(tokenOut, p.addr, recipient.Address(), amountOut); err != nil {
		return nil, nil, fmt.Errorf("rate pool %s: pay out: %w", p.addr.Hex(), err)
	}

	delta0 := new(big.Int).Set(amountIn)
	delta1 := new(big.Int).Neg(amountOut)
	if !zeroForOne {
		delta0, delta1 = delta1, delta0
	}
	if err := recipient.SwapSettle(ctx, p.addr, delta0, delta1, data); err != nil {
		return nil, nil, err
	}

	inAfter := p.ledger.BalanceOf(tokenIn, p.addr)
	owed := new(big.Int).Add(inBefore, amountIn)
	if inAfter.Cmp(owed) < 0 {
		return nil, nil, fmt.Errorf("rate pool %s: input not settled: have %s, want %s",
			p.addr.Hex(), inAfter, owed)
	}
	return delta0, delta1, nil
}
