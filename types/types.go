package types

import (
	"encoding/binary"
	"math/big"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
)

// LenderKind identifies the flash-lending primitive a funding source speaks.
type LenderKind int

const (
	// KindFlashPool is the pool-native pair flash: zero fee, the pool checks
	// its own balances after the callback returns.
	KindFlashPool LenderKind = iota
	// KindPooled is the multi-asset pooled lender: proportional premium,
	// repayment pulled through a pre-granted allowance.
	KindPooled
)

func (k LenderKind) String() string {
	switch k {
	case KindFlashPool:
		return "flashpool"
	case KindPooled:
		return "pooled"
	default:
		return "unknown"
	}
}

// SwapStep is one leg of a route: which venue to hit and in which direction.
// TokenIn/TokenOut are carried for bookkeeping; only the route's terminal
// asset is validated against the borrowed asset.
type SwapStep struct {
	Venue      common.Address `json:"venue"`
	ZeroForOne bool           `json:"zero_for_one"`
	TokenIn    common.Address `json:"token_in"`
	TokenOut   common.Address `json:"token_out"`
}

// Route is an ordered chain of swap steps. A zero-length route is legal and
// degenerates to borrow-then-repay.
type Route []SwapStep

// ID returns a stable digest of the route, used as a log/history key.
func (r Route) ID() uint64 {
	h := xxhash.New()
	var dir [1]byte
	for _, s := range r {
		h.Write(s.Venue.Bytes())
		if s.ZeroForOne {
			dir[0] = 1
		} else {
			dir[0] = 0
		}
		h.Write(dir[:])
		h.Write(s.TokenIn.Bytes())
		h.Write(s.TokenOut.Bytes())
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(r)))
	h.Write(n[:])
	return h.Sum64()
}

// LoanRequest is the context carried through a flash loan: created when the
// engine requests funds, decoded inside the loan callback, and discarded when
// the invocation ends.
type LoanRequest struct {
	Asset     common.Address `json:"asset"`
	Amount    *big.Int       `json:"amount"`
	Route     Route          `json:"route"`
	Initiator common.Address `json:"initiator"`
}

// ExecutionRecord is emitted once per successful top-level invocation.
type ExecutionRecord struct {
	Asset        common.Address
	Amount       *big.Int
	FinalBalance *big.Int
	Fee          *big.Int
	Profit       *big.Int
	Lender       common.Address
	RouteID      uint64
	Elapsed      time.Duration
}
