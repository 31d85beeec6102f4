package session

import "sync"

// Dispatcher runs callbacks one at a time, in submission order, on a single
// goroutine. Delegate callbacks go through it so host code never runs on a
// network goroutine and never runs concurrently with itself.
type Dispatcher struct {
	mu      sync.Mutex
	pending []func()
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

// Async queues fn. It never blocks and reports false once the dispatcher is closed.
func (d *Dispatcher) Async(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.pending = append(d.pending, fn)
	d.mu.Unlock()

	d.signal()
	return true
}

// Close runs what is already queued, then stops. It must not be called from
// a dispatched callback.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.signal()
	<-d.done
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		d.mu.Lock()
		batch := d.pending
		d.pending = nil
		closed := d.closed
		d.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		if len(batch) == 0 {
			if closed {
				return
			}
			<-d.wake
		}
	}
}
