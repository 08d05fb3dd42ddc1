package venue

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/flasharb/ledger"
	"github.com/michaelpento.lv/flasharb/utils/testutils"
)

var (
	poolAddr = testutils.Account("pool")
	trader   = testutils.Account("trader")
	tokenA   = testutils.Token("A")
	tokenB   = testutils.Token("B")
)

// payingReceiver settles the positive delta in full.
type payingReceiver struct {
	addr   common.Address
	reg    *ledger.Registry
	token0 common.Address
	token1 common.Address
	deltas []*big.Int
}

func (r *payingReceiver) Address() common.Address { return r.addr }

func (r *payingReceiver) SwapSettle(ctx context.Context, caller common.Address, delta0, delta1 *big.Int, data []byte) error {
	r.deltas = []*big.Int{delta0, delta1}
	if delta0.Sign() > 0 {
		return r.reg.Transfer(r.token0, r.addr, caller, delta0)
	}
	if delta1.Sign() > 0 {
		return r.reg.Transfer(r.token1, r.addr, caller, delta1)
	}
	return nil
}

// stiffingReceiver takes the output and pays nothing.
type stiffingReceiver struct {
	addr common.Address
}

func (r *stiffingReceiver) Address() common.Address { return r.addr }

func (r *stiffingReceiver) SwapSettle(ctx context.Context, caller common.Address, delta0, delta1 *big.Int, data []byte) error {
	return nil
}

func newTestPool(t *testing.T, rateNum, rateDen int64, feeBps uint16) (*RatePool, *ledger.Registry) {
	t.Helper()
	reg := ledger.NewRegistry()
	p, err := NewRatePool(poolAddr, tokenA, tokenB, rateNum, rateDen, feeBps, reg)
	require.NoError(t, err)
	reg.Mint(tokenA, poolAddr, big.NewInt(1_000_000))
	reg.Mint(tokenB, poolAddr, big.NewInt(1_000_000))
	return p, reg
}

func TestAmountOut(t *testing.T) {
	tests := []struct {
		name       string
		rateNum    int64
		rateDen    int64
		feeBps     uint16
		zeroForOne bool
		in         int64
		want       int64
	}{
		{"par no fee", 1, 1, 0, true, 1000, 1000},
		{"par 30 bps", 1, 1, 30, true, 1000, 997},
		{"par 30 bps reverse", 1, 1, 30, false, 1000, 997},
		{"2:1 rate", 2, 1, 0, true, 500, 1000},
		{"2:1 rate reverse", 2, 1, 0, false, 1000, 500},
		{"fee then rate, floor division", 3, 7, 30, true, 10000, 4272},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPool(t, tt.rateNum, tt.rateDen, tt.feeBps)
			got := p.AmountOut(tt.zeroForOne, big.NewInt(tt.in))
			assert.Zero(t, got.Cmp(big.NewInt(tt.want)), "got %s", got)
		})
	}
}

func TestSwapSettlesThroughCallback(t *testing.T) {
	p, reg := newTestPool(t, 1, 1, 30)
	recv := &payingReceiver{addr: trader, reg: reg, token0: tokenA, token1: tokenB}
	reg.Mint(tokenA, trader, big.NewInt(1000))

	delta0, delta1, err := p.Swap(context.Background(), recv, true, big.NewInt(1000), NoPriceLimit, nil)
	require.NoError(t, err)

	assert.Zero(t, delta0.Cmp(big.NewInt(1000)), "owed input")
	assert.Zero(t, delta1.Cmp(big.NewInt(-997)), "received output")
	assert.Zero(t, reg.BalanceOf(tokenB, trader).Cmp(big.NewInt(997)))
	assert.Zero(t, reg.BalanceOf(tokenA, trader).Sign())
	assert.Zero(t, reg.BalanceOf(tokenA, poolAddr).Cmp(big.NewInt(1_001_000)))
}

func TestSwapRejectsUnderpayment(t *testing.T) {
	p, reg := newTestPool(t, 1, 1, 30)

	_, _, err := p.Swap(context.Background(), &stiffingReceiver{addr: trader}, true, big.NewInt(1000), NoPriceLimit, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input not settled")
	assert.Zero(t, reg.BalanceOf(tokenA, poolAddr).Cmp(big.NewInt(1_000_000)), "no input arrived")
}

func TestSwapPropagatesCallbackError(t *testing.T) {
	p, reg := newTestPool(t, 1, 1, 0)
	recv := &payingReceiver{addr: trader, reg: reg, token0: tokenA, token1: tokenB}
	// Trader holds nothing, so settling the input fails inside the callback.
	_, _, err := p.Swap(context.Background(), recv, true, big.NewInt(1000), NoPriceLimit, nil)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientBalance))
}

func TestSwapRejectsNonPositiveInput(t *testing.T) {
	p, _ := newTestPool(t, 1, 1, 0)
	_, _, err := p.Swap(context.Background(), &stiffingReceiver{addr: trader}, true, big.NewInt(0), NoPriceLimit, nil)
	assert.Error(t, err)
}

func TestNewRatePoolValidation(t *testing.T) {
	reg := ledger.NewRegistry()
	_, err := NewRatePool(poolAddr, tokenA, tokenB, 0, 1, 0, reg)
	assert.Error(t, err)
	_, err = NewRatePool(poolAddr, tokenA, tokenB, 1, 1, 10000, reg)
	assert.Error(t, err)
}
