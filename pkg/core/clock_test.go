package core

import (
	"sync"
	"testing"
)

func TestNextStampMonotonic(t *testing.T) {
	prev := nextStamp()
	for i := 0; i < 10000; i++ {
		next := nextStamp()
		if next <= prev {
			t.Fatalf("Stamp went backwards: %d after %d", next, prev)
		}
		prev = next
	}
}

func TestNextStampUniqueAcrossGoroutines(t *testing.T) {
	const workers, perWorker = 8, 1000

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, perWorker)
			for i := range local {
				local[i] = nextStamp()
			}
			mu.Lock()
			defer mu.Unlock()
			for _, s := range local {
				seen[s] = struct{}{}
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("Expected %d unique stamps, got %d", workers*perWorker, len(seen))
	}
}
