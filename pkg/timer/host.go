package timer

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Host is a Timer driven by a dedicated goroutine locked to its OS thread.
// Firing precision is whatever the Go runtime timer gives on this host.
type Host struct {
	id      int
	mu      sync.Mutex // held while the handler runs
	handler atomic.Pointer[Handler]
	period  atomic.Int64
	enabled atomic.Bool
	kick    chan struct{}
	done    chan struct{}
	once    sync.Once
	fired   atomic.Uint64
}

var _ Timer = (*Host)(nil)

// NewHost starts the timer goroutine. The timer begins disabled.
func NewHost(id int) *Host {
	t := &Host{
		id:   id,
		kick: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	t.period.Store(int64(time.Millisecond))
	go t.loop()
	return t
}

func (t *Host) ID() int { return t.id }

func (t *Host) SetHandler(h Handler) {
	if h == nil {
		t.handler.Store(nil)
		return
	}
	t.handler.Store(&h)
}

func (t *Host) Schedule(d time.Duration) {
	if d <= 0 {
		d = time.Microsecond
	}
	t.period.Store(int64(d))
}

func (t *Host) Enable() {
	t.enabled.Store(true)
	t.poke()
}

func (t *Host) Disable() {
	t.enabled.Store(false)
	t.poke()
	// wait out a running handler
	t.mu.Lock()
	t.mu.Unlock()
}

func (t *Host) Enabled() bool { return t.enabled.Load() }

// Fired returns how many times the handler has run.
func (t *Host) Fired() uint64 { return t.fired.Load() }

// Close stops the timer goroutine. The timer cannot be reused afterwards.
func (t *Host) Close() error {
	t.once.Do(func() {
		t.Disable()
		close(t.done)
	})
	return nil
}

func (t *Host) poke() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

func (t *Host) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tm := time.NewTimer(time.Hour)
	tm.Stop()
	for {
		if !t.enabled.Load() {
			select {
			case <-t.kick:
				continue
			case <-t.done:
				return
			}
		}

		tm.Reset(time.Duration(t.period.Load()))
		select {
		case <-tm.C:
		case <-t.kick:
			tm.Stop()
			continue
		case <-t.done:
			tm.Stop()
			return
		}

		t.mu.Lock()
		if t.enabled.Load() {
			if h := t.handler.Load(); h != nil {
				(*h)()
				t.fired.Add(1)
			}
		}
		t.mu.Unlock()
	}
}
