package uniswap

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/flasharb/ledger"
	"github.com/michaelpento.lv/flasharb/utils/testutils"
	"github.com/michaelpento.lv/flasharb/venue"
)

var (
	poolAddr = testutils.Account("cp-pool")
	trader   = testutils.Account("trader")
	tokenA   = testutils.Token("A")
	tokenB   = testutils.Token("B")
)

type payingReceiver struct {
	addr common.Address
	reg  *ledger.Registry
	p    *Pool
}

func (r *payingReceiver) Address() common.Address { return r.addr }

func (r *payingReceiver) SwapSettle(ctx context.Context, caller common.Address, delta0, delta1 *big.Int, data []byte) error {
	if delta0.Sign() > 0 {
		return r.reg.Transfer(r.p.Token0(), r.addr, caller, delta0)
	}
	if delta1.Sign() > 0 {
		return r.reg.Transfer(r.p.Token1(), r.addr, caller, delta1)
	}
	return nil
}

func newTestPool(t *testing.T, reserve0, reserve1 int64) (*Pool, *ledger.Registry) {
	t.Helper()
	reg := ledger.NewRegistry()
	p, err := NewPool(poolAddr, tokenA, tokenB, 30, reg)
	require.NoError(t, err)
	reg.Mint(tokenA, poolAddr, big.NewInt(reserve0))
	reg.Mint(tokenB, poolAddr, big.NewInt(reserve1))
	return p, reg
}

func TestGetAmountOut(t *testing.T) {
	p, _ := newTestPool(t, 0, 0)

	amountIn := big.NewInt(1000000000000000000)
	reserveIn := big.NewInt(10000000000000000)
	reserveOut := big.NewInt(5000000000)

	out := p.GetAmountOut(amountIn, reserveIn, reserveOut)
	assert.NotNil(t, out)
	assert.Positive(t, out.Sign())
	assert.Negative(t, out.Cmp(reserveOut), "output is bounded by the reserve")
}

func TestGetAmountInRoundTrip(t *testing.T) {
	p, _ := newTestPool(t, 0, 0)

	reserveIn := big.NewInt(1_000_000)
	reserveOut := big.NewInt(1_000_000)
	amountOut := big.NewInt(50_000)

	amountIn := p.GetAmountIn(amountOut, reserveIn, reserveOut)
	back := p.GetAmountOut(amountIn, reserveIn, reserveOut)
	assert.GreaterOrEqual(t, back.Cmp(amountOut), 0, "amountIn must buy at least amountOut")
}

func TestSwapMovesPriceAgainstTrader(t *testing.T) {
	p, reg := newTestPool(t, 1_000_000, 1_000_000)
	recv := &payingReceiver{addr: trader, reg: reg, p: p}
	reg.Mint(tokenA, trader, big.NewInt(20_000))

	d0a, d1a, err := p.Swap(context.Background(), recv, true, big.NewInt(10_000), venue.NoPriceLimit, nil)
	require.NoError(t, err)
	outA := new(big.Int).Neg(d1a)

	d0b, d1b, err := p.Swap(context.Background(), recv, true, big.NewInt(10_000), venue.NoPriceLimit, nil)
	require.NoError(t, err)
	outB := new(big.Int).Neg(d1b)

	assert.Zero(t, d0a.Cmp(big.NewInt(10_000)))
	assert.Zero(t, d0b.Cmp(big.NewInt(10_000)))
	assert.Negative(t, outB.Cmp(outA), "second identical trade gets a worse price")

	r0, r1 := p.Reserves()
	assert.Zero(t, r0.Cmp(big.NewInt(1_020_000)))
	wantR1 := new(big.Int).Sub(big.NewInt(1_000_000), new(big.Int).Add(outA, outB))
	assert.Zero(t, r1.Cmp(wantR1))
}

func TestSwapRejectsEmptyPool(t *testing.T) {
	p, _ := newTestPool(t, 0, 0)
	_, _, err := p.Swap(context.Background(), &payingReceiver{addr: trader}, true, big.NewInt(1), venue.NoPriceLimit, nil)
	assert.Error(t, err)
}
