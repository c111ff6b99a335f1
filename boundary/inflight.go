package boundary

import "sync"

// inflight counts detached report goroutines. Unlike a WaitGroup it may be
// incremented while another goroutine waits for it to drain.
type inflight struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (f *inflight) add() {
	f.mu.Lock()
	if f.n == 0 {
		f.idle = make(chan struct{})
	}
	f.n++
	f.mu.Unlock()
}

func (f *inflight) done() {
	f.mu.Lock()
	f.n--
	if f.n == 0 {
		close(f.idle)
		f.idle = nil
	}
	f.mu.Unlock()
}

// drained is closed once the count drops to zero. Reports started after the
// call belong to a later generation and are not waited for.
func (f *inflight) drained() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		return closedChan
	}
	return f.idle
}
