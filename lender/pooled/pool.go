// Package pooled implements the multi-asset pooled lender. It charges a
// proportional premium on each borrowed asset and pulls repayment through an
// allowance the loan callback must have granted before returning.
package pooled

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/flasharb/ledger"
	"github.com/michaelpento.lv/flasharb/lender"
	"github.com/michaelpento.lv/flasharb/types"
)

// DefaultPremiumBps matches the usual pooled-lender premium of 0.09%.
const DefaultPremiumBps = 9

// Pool is a pooled multi-asset flash lender.
type Pool struct {
	addr       common.Address
	premiumBps uint16
	ledger     ledger.Ledger
}

// New creates a pooled lender charging premiumBps on every borrowed amount.
func New(addr common.Address, premiumBps uint16, l ledger.Ledger) *Pool {
	return &Pool{addr: addr, premiumBps: premiumBps, ledger: l}
}

func (p *Pool) Address() common.Address { return p.addr }
func (p *Pool) Kind() types.LenderKind  { return types.KindPooled }
func (p *Pool) String() string          { return "pooled" }

// FeeQuote returns amount * premiumBps / 10000, floor division.
func (p *Pool) FeeQuote(asset common.Address, amount *big.Int) (*big.Int, error) {
	fee := new(big.Int).Mul(amount, big.NewInt(int64(p.premiumBps)))
	return fee.Div(fee, big.NewInt(10000)), nil
}

// Liquidity returns the pool's on-hand balance of asset.
func (p *Pool) Liquidity(asset common.Address) (*big.Int, error) {
	return p.ledger.BalanceOf(asset, p.addr), nil
}

// FlashLoan lends amounts of assets to the receiver, invokes its loan
// callback with onBehalfOf as the declared initiator, and pulls amount+fee
// per asset from the receiver afterwards. A callback that returns false, or
// an allowance short of the debt, fails the whole call.
func (p *Pool) FlashLoan(ctx context.Context, receiver lender.FlashLoanReceiver, assets []common.Address, amounts []*big.Int, onBehalfOf common.Address, data []byte) error {
	if len(assets) == 0 || len(assets) != len(amounts) {
		return fmt.Errorf("pooled lender %s: malformed request: %d assets, %d amounts",
			p.addr.Hex(), len(assets), len(amounts))
	}

	fees := make([]*big.Int, len(assets))
	for i, asset := range assets {
		if amounts[i] == nil || amounts[i].Sign() <= 0 {
			return fmt.Errorf("pooled lender %s: non-positive amount for %s", p.addr.Hex(), asset.Hex())
		}
		fee, err := p.FeeQuote(asset, amounts[i])
		if err != nil {
			return err
		}
		fees[i] = fee
		if err := p.ledger.Transfer(asset, p.addr, receiver.Address(), amounts[i]); err != nil {
			return fmt.Errorf("pooled lender %s: lend %s: %w", p.addr.Hex(), asset.Hex(), err)
		}
	}

	ok, err := receiver.OnFlashLoan(ctx, p.addr, assets, amounts, fees, onBehalfOf, data)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("pooled lender %s: loan callback rejected", p.addr.Hex())
	}

	for i, asset := range assets {
		debt := new(big.Int).Add(amounts[i], fees[i])
		if err := p.ledger.TransferFrom(asset, p.addr, receiver.Address(), p.addr, debt); err != nil {
			return fmt.Errorf("pooled lender %s: pull repayment of %s: %w", p.addr.Hex(), asset.Hex(), err)
		}
	}
	return nil
}
