package service

import "sync"

// outbox runs the side effects of one document (room broadcasts, update log
// writes) on its own goroutine, in the order they were queued. Tree and
// replica listeners only push to it, so no transaction waits on the network.
type outbox struct {
	mu     sync.Mutex
	jobs   []func()
	wake   chan struct{}
	closed bool
}

func newOutbox() *outbox {
	o := &outbox{wake: make(chan struct{}, 1)}
	go o.run()
	return o
}

// push queues job. It never blocks and reports false once the outbox is closed.
func (o *outbox) push(job func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.jobs = append(o.jobs, job)
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return true
}

func (o *outbox) run() {
	for range o.wake {
		for {
			o.mu.Lock()
			if len(o.jobs) == 0 {
				o.mu.Unlock()
				break
			}
			job := o.jobs[0]
			o.jobs[0] = nil
			o.jobs = o.jobs[1:]
			o.mu.Unlock()
			job()
		}
	}
}

// flush waits until every job queued so far has run.
func (o *outbox) flush() bool {
	done := make(chan struct{})
	if !o.push(func() { close(done) }) {
		return false
	}
	<-done
	return true
}

// close stops the outbox once the queued jobs have run.
func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.wake)
}
