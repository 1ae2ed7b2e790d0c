package back

import (
	"sync"
	"testing"

	"ladder/internal/util"

	"github.com/stretchr/testify/assert"
)

func TestKeyLocksSerializeAndRelease(t *testing.T) {
	locks := newKeyLocks()
	a, b := util.NewUUIDAsBlob(), util.NewUUIDAsBlob()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var unlock func()
			// Opposite argument orders must not deadlock.
			if i%2 == 0 {
				unlock = locks.lock(a, b)
			} else {
				unlock = locks.lock(b, a, b)
			}
			counter++
			unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.len())
}

func TestUniqueSorted(t *testing.T) {
	a, b := util.NewUUIDAsBlob(), util.NewUUIDAsBlob()
	if b.Less(a) {
		a, b = b, a
	}

	assert.Equal(t, []util.UUIDAsBlob{a, b}, uniqueSorted([]util.UUIDAsBlob{b, a, b, a}))
	assert.Empty(t, uniqueSorted(nil))
}
