// Package ledger provides the transactional asset registry the engine and its
// collaborators settle against. Balances and allowances live in memory; a
// snapshot/revert journal gives callers whole-invocation rollback.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNegativeAmount        = errors.New("negative amount")
)

// Ledger is the asset registry contract the engine operates against. Every
// mutation is journaled so a Snapshot taken before an invocation can be
// reverted on any failure path.
type Ledger interface {
	BalanceOf(asset, holder common.Address) *big.Int
	Transfer(asset, from, to common.Address, amount *big.Int) error
	Approve(asset, owner, spender common.Address, amount *big.Int)
	Allowance(asset, owner, spender common.Address) *big.Int
	TransferFrom(asset, spender, from, to common.Address, amount *big.Int) error
	Snapshot() int
	RevertTo(id int) error
	Discard(id int)
}

type balanceKey struct {
	asset  common.Address
	holder common.Address
}

type allowanceKey struct {
	asset   common.Address
	owner   common.Address
	spender common.Address
}

type journalEntry struct {
	balance    *balanceKey
	allowance  *allowanceKey
	prev       *big.Int
	prevExists bool
}

// Registry is the in-memory Ledger implementation.
type Registry struct {
	mu         sync.Mutex
	balances   map[balanceKey]*big.Int
	allowances map[allowanceKey]*big.Int
	journal    []journalEntry
	snapshots  []int
}

// NewRegistry creates an empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		balances:   make(map[balanceKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

// Mint credits amount of asset to holder out of thin air. Used to seed pools
// and accounts; not part of the Ledger contract the engine sees.
func (r *Registry) Mint(asset, holder common.Address, amount *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := balanceKey{asset, holder}
	r.journalBalance(k)
	cur := r.balance(k)
	r.balances[k] = new(big.Int).Add(cur, amount)
}

// BalanceOf returns a copy of holder's balance of asset.
func (r *Registry) BalanceOf(asset, holder common.Address) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return new(big.Int).Set(r.balance(balanceKey{asset, holder}))
}

// Transfer moves amount of asset from one holder to another.
func (r *Registry) Transfer(asset, from, to common.Address, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transfer(asset, from, to, amount)
}

// Approve sets spender's allowance over owner's balance of asset.
func (r *Registry) Approve(asset, owner, spender common.Address, amount *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := allowanceKey{asset, owner, spender}
	r.journalAllowance(k)
	r.allowances[k] = new(big.Int).Set(amount)
}

// Allowance returns a copy of spender's remaining allowance over owner's asset.
func (r *Registry) Allowance(asset, owner, spender common.Address) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.allowances[allowanceKey{asset, owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// TransferFrom moves amount of asset from `from` to `to` on spender's
// authority, consuming spender's allowance.
func (r *Registry) TransferFrom(asset, spender, from, to common.Address, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	ak := allowanceKey{asset, from, spender}
	allowed, ok := r.allowances[ak]
	if !ok || allowed.Cmp(amount) < 0 {
		have := new(big.Int)
		if ok {
			have = allowed
		}
		return fmt.Errorf("%w: spender %s has %s, needs %s",
			ErrInsufficientAllowance, spender.Hex(), have, amount)
	}
	if err := r.transfer(asset, from, to, amount); err != nil {
		return err
	}
	r.journalAllowance(ak)
	r.allowances[ak] = new(big.Int).Sub(allowed, amount)
	return nil
}

// Snapshot marks the current state and returns an id RevertTo accepts.
// Snapshots nest; reverting to an outer snapshot discards inner ones.
func (r *Registry) Snapshot() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := len(r.snapshots)
	r.snapshots = append(r.snapshots, len(r.journal))
	return id
}

// RevertTo unwinds every mutation made since the given snapshot.
func (r *Registry) RevertTo(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.snapshots) {
		return fmt.Errorf("unknown snapshot %d", id)
	}
	mark := r.snapshots[id]
	for i := len(r.journal) - 1; i >= mark; i-- {
		e := r.journal[i]
		switch {
		case e.balance != nil:
			if e.prevExists {
				r.balances[*e.balance] = e.prev
			} else {
				delete(r.balances, *e.balance)
			}
		case e.allowance != nil:
			if e.prevExists {
				r.allowances[*e.allowance] = e.prev
			} else {
				delete(r.allowances, *e.allowance)
			}
		}
	}
	r.journal = r.journal[:mark]
	r.snapshots = r.snapshots[:id]
	return nil
}

// Discard forgets the given snapshot without reverting, keeping mutations.
func (r *Registry) Discard(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id >= 0 && id < len(r.snapshots) {
		r.snapshots = r.snapshots[:id]
	}
	if len(r.snapshots) == 0 {
		r.journal = r.journal[:0]
	}
}

func (r *Registry) transfer(asset, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	fk := balanceKey{asset, from}
	cur := r.balance(fk)
	if cur.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s",
			ErrInsufficientBalance, from.Hex(), cur, asset.Hex(), amount)
	}
	tk := balanceKey{asset, to}
	r.journalBalance(fk)
	r.journalBalance(tk)
	r.balances[fk] = new(big.Int).Sub(cur, amount)
	r.balances[tk] = new(big.Int).Add(r.balance(tk), amount)
	return nil
}

func (r *Registry) balance(k balanceKey) *big.Int {
	if b, ok := r.balances[k]; ok {
		return b
	}
	return new(big.Int)
}

func (r *Registry) journalBalance(k balanceKey) {
	prev, ok := r.balances[k]
	e := journalEntry{balance: &k, prevExists: ok}
	if ok {
		e.prev = new(big.Int).Set(prev)
	}
	r.journal = append(r.journal, e)
}

func (r *Registry) journalAllowance(k allowanceKey) {
	prev, ok := r.allowances[k]
	e := journalEntry{allowance: &k, prevExists: ok}
	if ok {
		e.prev = new(big.Int).Set(prev)
	}
	r.journal = append(r.journal, e)
}
