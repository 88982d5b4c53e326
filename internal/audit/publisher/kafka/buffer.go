package kafka

import (
	"sync"

	"bastion/internal/audit"
)

// ringBuffer is a bounded FIFO of security events. When full, the oldest
// event is dropped so producers never block.
type ringBuffer struct {
	mu       sync.Mutex
	events   []audit.SecurityEvent
	head     int
	tail     int
	count    int
	capacity int
	dropped  int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &ringBuffer{
		events:   make([]audit.SecurityEvent, capacity),
		capacity: capacity,
	}
}

func (b *ringBuffer) enqueue(event audit.SecurityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
	}
	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
}

func (b *ringBuffer) dequeueBatch(n int) []audit.SecurityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	n = min(n, b.count)
	if n == 0 {
		return nil
	}
	out := make([]audit.SecurityEvent, n)
	for i := range n {
		out[i] = b.events[b.tail]
		b.events[b.tail] = audit.SecurityEvent{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *ringBuffer) droppedCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
