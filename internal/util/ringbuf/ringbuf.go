package ringbuf

import "sync"

// Ringbuf keeps the last size values. It is safe for concurrent use.
type Ringbuf[T any] struct {
	mu  sync.Mutex
	buf []T
	p   int
	s   int
}

func NewRingbuf[T any](size int) *Ringbuf[T] {
	return &Ringbuf[T]{
		s: size,
	}
}

func (r *Ringbuf[T]) Add(v T) {
	if r.s <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) < r.s {
		r.buf = append(r.buf, v)
		return
	}
	r.buf[r.p] = v
	r.p = (r.p + 1) % r.s
}

// Items returns a copy ordered from oldest to newest.
func (r *Ringbuf[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, 0, len(r.buf))
	out = append(out, r.buf[r.p:]...)
	out = append(out, r.buf[:r.p]...)
	return out
}

func (r *Ringbuf[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}
