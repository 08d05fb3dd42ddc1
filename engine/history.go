package engine

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/michaelpento.lv/flasharb/types"
)

// executionHistory keeps a bounded, insertion-ordered window of recent
// execution records.
type executionHistory struct {
	seq   atomic.Uint64
	cache *lru.Cache
}

func newExecutionHistory(size int) (*executionHistory, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &executionHistory{cache: c}, nil
}

func (h *executionHistory) add(rec *types.ExecutionRecord) {
	h.cache.Add(h.seq.Add(1), rec)
}

func (h *executionHistory) list() []*types.ExecutionRecord {
	keys := h.cache.Keys()
	out := make([]*types.ExecutionRecord, 0, len(keys))
	for _, k := range keys {
		if v, ok := h.cache.Peek(k); ok {
			out = append(out, v.(*types.ExecutionRecord))
		}
	}
	return out
}

// History returns the retained execution records, oldest first.
func (e *Engine) History() []*types.ExecutionRecord {
	return e.history.list()
}
