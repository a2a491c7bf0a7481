package ledger

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryClaim_FirstWins(t *testing.T) {
	s := NewSet()
	assert.True(t, s.TryClaim("H0001"))
	assert.False(t, s.TryClaim("H0001"))
	assert.True(t, s.TryClaim("H0002"))
	assert.Equal(t, 2, s.Len())
}

func TestTryClaim_ConcurrentExactlyOnce(t *testing.T) {
	s := NewSet()

	const workers = 16
	const keys = 500

	var claimed int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < keys; k++ {
				if s.TryClaim(fmt.Sprintf("key-%d", k)) {
					atomic.AddInt64(&claimed, 1)
				}
			}
		}()
	}
	wg.Wait()

	// Every key claimed exactly once regardless of worker interleaving.
	assert.Equal(t, int64(keys), claimed)
	assert.Equal(t, keys, s.Len())
}
