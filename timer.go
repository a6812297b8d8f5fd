package arq

import (
	"sync"
	"time"
)

// retransmissionTimer is the single-shot timer capability injected into the
// sender. At most one timer is outstanding per sender: start replaces any
// timer still armed, stop is idempotent.
type retransmissionTimer interface {
	start(d time.Duration)
	stop()
}

// rtoTimer runs the retransmission timeout on wall-clock time. The callback
// fires on a runtime timer goroutine, so it must hand off into whatever
// serializes the sender's events (see SenderEndpoint).
type rtoTimer struct {
	mu     sync.Mutex
	onFire func()
	timer  *time.Timer
}

func newRtoTimer(onFire func()) *rtoTimer {
	return &rtoTimer{onFire: onFire}
}

func (t *rtoTimer) start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, t.onFire)
}

func (t *rtoTimer) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
