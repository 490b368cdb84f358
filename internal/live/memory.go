package live

import (
	"context"
	"sync"

	"github.com/apiwatch/apiwatch/internal/model"
)

// MemoryFeed is the in-process fallback RecentStore used when Redis is not
// configured: a fixed-size ring of the latest events.
type MemoryFeed struct {
	mu      sync.Mutex
	maxSize int
	records []*model.Event
	next    int
	full    bool
}

func NewMemoryFeed(maxSize int) *MemoryFeed {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryFeed{
		maxSize: maxSize,
		records: make([]*model.Event, maxSize),
	}
}

func (f *MemoryFeed) Push(_ context.Context, e *model.Event) error {
	if e == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[f.next] = e
	f.next++
	if f.next == f.maxSize {
		f.next = 0
		f.full = true
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (f *MemoryFeed) Recent(_ context.Context, limit int) ([]*model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	size := f.next
	if f.full {
		size = f.maxSize
	}
	if limit > size {
		limit = size
	}

	out := make([]*model.Event, 0, limit)
	idx := f.next - 1
	for i := 0; i < limit; i++ {
		if idx < 0 {
			idx = f.maxSize - 1
		}
		out = append(out, f.records[idx])
		idx--
	}
	return out, nil
}
