package services

import (
	"sort"
	"sync"
)

// productLocks hands out one mutex per product id. Entries are dropped once
// nobody holds or waits on them.
type productLocks struct {
	mu sync.Mutex
	m  map[string]*productLock
}

type productLock struct {
	mu   sync.Mutex
	refs int
}

func newProductLocks() *productLocks {
	return &productLocks{m: map[string]*productLock{}}
}

// lock acquires every id in sorted order so two placements sharing products
// can not deadlock. The returned func releases them.
func (l *productLocks) lock(ids []string) func() {
	keys := uniqueSorted(ids)
	held := make([]*productLock, 0, len(keys))
	for _, k := range keys {
		l.mu.Lock()
		pl, ok := l.m[k]
		if !ok {
			pl = &productLock{}
			l.m[k] = pl
		}
		pl.refs++
		l.mu.Unlock()

		pl.mu.Lock()
		held = append(held, pl)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.m, keys[i])
			}
			l.mu.Unlock()
		}
	}
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
