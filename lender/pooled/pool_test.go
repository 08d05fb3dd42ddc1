package pooled

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/flasharb/ledger"
	"github.com/michaelpento.lv/flasharb/types"
	"github.com/michaelpento.lv/flasharb/utils/testutils"
)

var (
	poolAddr = testutils.Account("pooled-lender")
	borrower = testutils.Account("borrower")
	tokenA   = testutils.Token("A")
)

// approvingBorrower grants the pool an allowance over amount+fee and records
// what it was told.
type approvingBorrower struct {
	addr      common.Address
	reg       *ledger.Registry
	initiator common.Address
	fees      []*big.Int
	approve   bool
	accept    bool
}

func (b *approvingBorrower) Address() common.Address { return b.addr }

func (b *approvingBorrower) OnFlashLoan(ctx context.Context, caller common.Address, assets []common.Address, amounts, fees []*big.Int, initiator common.Address, data []byte) (bool, error) {
	b.initiator = initiator
	b.fees = fees
	if b.approve {
		for i, asset := range assets {
			debt := new(big.Int).Add(amounts[i], fees[i])
			b.reg.Approve(asset, b.addr, caller, debt)
		}
	}
	return b.accept, nil
}

func newTestPool(t *testing.T, premiumBps uint16) (*Pool, *ledger.Registry) {
	t.Helper()
	reg := ledger.NewRegistry()
	p := New(poolAddr, premiumBps, reg)
	reg.Mint(tokenA, poolAddr, big.NewInt(1_000_000))
	return p, reg
}

func TestFeeQuote(t *testing.T) {
	p, _ := newTestPool(t, 9)
	assert.Equal(t, types.KindPooled, p.Kind())

	fee, err := p.FeeQuote(tokenA, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Zero(t, fee.Cmp(big.NewInt(900)), "9 bps of 1e6")

	// Floor division: amounts below 10000/premium round to zero.
	fee, err = p.FeeQuote(tokenA, big.NewInt(1000))
	require.NoError(t, err)
	assert.Zero(t, fee.Cmp(big.NewInt(0)))
}

func TestFlashLoanPullsDebt(t *testing.T) {
	p, reg := newTestPool(t, 9)
	b := &approvingBorrower{addr: borrower, reg: reg, approve: true, accept: true}
	// The borrower must end the callback holding amount+fee; seed the fee.
	reg.Mint(tokenA, borrower, big.NewInt(900))

	err := p.FlashLoan(context.Background(), b,
		[]common.Address{tokenA}, []*big.Int{big.NewInt(1_000_000)}, borrower, nil)
	require.NoError(t, err)

	assert.Equal(t, borrower, b.initiator, "onBehalfOf is forwarded as the initiator")
	require.Len(t, b.fees, 1)
	assert.Zero(t, b.fees[0].Cmp(big.NewInt(900)))

	assert.Zero(t, reg.BalanceOf(tokenA, poolAddr).Cmp(big.NewInt(1_000_900)), "pool keeps the premium")
	assert.Zero(t, reg.BalanceOf(tokenA, borrower).Sign())
}

func TestFlashLoanWithoutAllowanceFails(t *testing.T) {
	p, reg := newTestPool(t, 0)
	b := &approvingBorrower{addr: borrower, reg: reg, approve: false, accept: true}

	err := p.FlashLoan(context.Background(), b,
		[]common.Address{tokenA}, []*big.Int{big.NewInt(1000)}, borrower, nil)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientAllowance))
}

func TestFlashLoanRejectedByCallback(t *testing.T) {
	p, reg := newTestPool(t, 0)
	b := &approvingBorrower{addr: borrower, reg: reg, approve: true, accept: false}

	err := p.FlashLoan(context.Background(), b,
		[]common.Address{tokenA}, []*big.Int{big.NewInt(1000)}, borrower, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestFlashLoanMalformedRequests(t *testing.T) {
	p, reg := newTestPool(t, 0)
	b := &approvingBorrower{addr: borrower, reg: reg, approve: true, accept: true}

	err := p.FlashLoan(context.Background(), b, nil, nil, borrower, nil)
	assert.Error(t, err)

	err = p.FlashLoan(context.Background(), b,
		[]common.Address{tokenA}, []*big.Int{big.NewInt(1), big.NewInt(2)}, borrower, nil)
	assert.Error(t, err)

	err = p.FlashLoan(context.Background(), b,
		[]common.Address{tokenA}, []*big.Int{big.NewInt(0)}, borrower, nil)
	assert.Error(t, err)
}
