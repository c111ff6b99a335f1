package boundary

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInflightDrained(t *testing.T) {
	var f inflight

	select {
	case <-f.drained():
	default:
		t.Fatal("an idle counter is drained")
	}

	f.add()
	f.add()
	ch := f.drained()
	f.done()
	select {
	case <-ch:
		t.Fatal("one report is still running")
	default:
	}

	f.done()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("not drained after the last done")
	}

	f.add()
	select {
	case <-f.drained():
		t.Fatal("a new generation is not drained")
	default:
	}
	f.done()
}

func TestFlushConcurrentWithCapture(t *testing.T) {
	tb := newTestBoundary(t)

	for round := 0; round < 50; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := Capture(tb.Boundary, "foo", func() (int, error) { return 0, errBoom }, nil)
				assert.NoError(t, err)
			}()
			go func() {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				assert.NoError(t, tb.Flush(ctx))
			}()
		}
		wg.Wait()
	}

	tb.flush(t)
	require.Len(t, tb.reporter.all(), 1, "Error is reported once")
}
