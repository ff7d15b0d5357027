package mysync

import (
	"sync"
)

// Progress combines the progress of concurrent workers into a single callback. The callback is never called
// concurrently and sees monotonically increasing values.
type Progress struct {
	mu    sync.Mutex
	done  int
	total int
	fn    func(float64)
}

func NewProgress(total int, fn func(float64)) *Progress {
	return &Progress{total: total, fn: fn}
}

// Add marks n more units of work as done.
func (p *Progress) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
	if p.total > 0 {
		p.fn(float64(p.done) / float64(p.total))
	}
}
