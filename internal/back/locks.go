package back

import (
	"sort"
	"sync"

	"ladder/internal/util"
)

// keyLocks is a set of mutexes created on demand and dropped once
// nobody holds or waits for them.
type keyLocks struct {
	mu    sync.Mutex
	locks map[util.UUIDAsBlob]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[util.UUIDAsBlob]*keyLock)}
}

// lock acquires every given key in ascending order and returns the function
// releasing them. Duplicated keys are only locked once.
func (l *keyLocks) lock(keys ...util.UUIDAsBlob) (unlock func()) {
	keys = uniqueSorted(keys)
	held := make([]*keyLock, 0, len(keys))

	for _, k := range keys {
		l.mu.Lock()
		kl, ok := l.locks[k]
		if !ok {
			kl = &keyLock{}
			l.locks[k] = kl
		}
		kl.refs++
		l.mu.Unlock()

		kl.Lock()
		held = append(held, kl)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()

			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, keys[i])
			}
			l.mu.Unlock()
		}
	}
}

func (l *keyLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func uniqueSorted(keys []util.UUIDAsBlob) []util.UUIDAsBlob {
	out := make([]util.UUIDAsBlob, 0, len(keys))
	seen := make(map[util.UUIDAsBlob]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
