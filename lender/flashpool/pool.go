// Package flashpool implements the pool-native flash lender: a two-token
// pool that lends either side of its pair at zero fee and reverts the whole
// call unless its balances are restored before the loan callback returns.
package flashpool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/flasharb/ledger"
	"github.com/michaelpento.lv/flasharb/lender"
	"github.com/michaelpento.lv/flasharb/types"
)

// Pool is a flash-capable token pair.
type Pool struct {
	addr   common.Address
	token0 common.Address
	token1 common.Address
	ledger ledger.Ledger
}

// New creates a flash pool over the given pair. Liquidity is whatever the
// pool's address holds on the ledger.
func New(addr, token0, token1 common.Address, l ledger.Ledger) *Pool {
	return &Pool{addr: addr, token0: token0, token1: token1, ledger: l}
}

func (p *Pool) Address() common.Address { return p.addr }
func (p *Pool) Token0() common.Address  { return p.token0 }
func (p *Pool) Token1() common.Address  { return p.token1 }
func (p *Pool) Kind() types.LenderKind  { return types.KindFlashPool }
func (p *Pool) String() string          { return "flashpool" }

// FeeQuote returns zero for either side of the pair and an error for any
// other asset.
func (p *Pool) FeeQuote(asset common.Address, amount *big.Int) (*big.Int, error) {
	if asset != p.token0 && asset != p.token1 {
		return nil, fmt.Errorf("flash pool %s does not hold %s", p.addr.Hex(), asset.Hex())
	}
	return new(big.Int), nil
}

// Liquidity returns the pool's on-hand balance of asset.
func (p *Pool) Liquidity(asset common.Address) (*big.Int, error) {
	if asset != p.token0 && asset != p.token1 {
		return nil, fmt.Errorf("flash pool %s does not hold %s", p.addr.Hex(), asset.Hex())
	}
	return p.ledger.BalanceOf(asset, p.addr), nil
}

// Flash lends amount0/amount1 to the recipient, invokes its loan callback,
// and fails unless both sides of the pair are back in the pool afterwards.
func (p *Pool) Flash(ctx context.Context, recipient lender.FlashReceiver, amount0, amount1 *big.Int, data []byte) error {
	if amount0 == nil {
		amount0 = new(big.Int)
	}
	if amount1 == nil {
		amount1 = new(big.Int)
	}
	if amount0.Sign() == 0 && amount1.Sign() == 0 {
		return fmt.Errorf("flash pool %s: nothing borrowed", p.addr.Hex())
	}

	pre0 := p.ledger.BalanceOf(p.token0, p.addr)
	pre1 := p.ledger.BalanceOf(p.token1, p.addr)

	if err := p.ledger.Transfer(p.token0, p.addr, recipient.Address(), amount0); err != nil {
		return fmt.Errorf("flash pool %s: lend token0: %w", p.addr.Hex(), err)
	}
	if err := p.ledger.Transfer(p.token1, p.addr, recipient.Address(), amount1); err != nil {
		return fmt.Errorf("flash pool %s: lend token1: %w", p.addr.Hex(), err)
	}

	if err := recipient.OnFlash(ctx, p.addr, new(big.Int), new(big.Int), data); err != nil {
		return err
	}

	if p.ledger.BalanceOf(p.token0, p.addr).Cmp(pre0) < 0 {
		return fmt.Errorf("flash pool %s: token0 not repaid", p.addr.Hex())
	}
	if p.ledger.BalanceOf(p.token1, p.addr).Cmp(pre1) < 0 {
		return fmt.Errorf("flash pool %s: token1 not repaid", p.addr.Hex())
	}
	return nil
}
