package preview

import "sync/atomic"

// Tracker hands out generation tokens. Only a result carrying the latest
// token may be applied; anything older is stale.
type Tracker struct {
	n atomic.Uint64
}

// Next invalidates every earlier token and returns the new one.
func (t *Tracker) Next() uint64 {
	return t.n.Add(1)
}

func (t *Tracker) Current() uint64 {
	return t.n.Load()
}

func (t *Tracker) IsCurrent(token uint64) bool {
	return t.n.Load() == token
}
