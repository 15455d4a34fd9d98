package session

import "sync"

// outboundQueueCapacity bounds how many pending outbound frames a
// CognitionJob may queue ahead of the pacing consumer before it blocks.
const outboundQueueCapacity = 64

// OutboundQueue is the bounded, ordered sequence of outbound audio frames
// awaiting paced emission. It is written by the cognition dispatcher, read
// by the egress loop, and may be drained by the ingest loop on barge-in.
// Draining never contends with routine pacing: DrainAndCancel swaps in a
// fresh channel so a concurrent egress Pop never blocks mid-drain.
type OutboundQueue struct {
	mu sync.Mutex
	ch chan []byte
}

// NewOutboundQueue creates an empty queue.
func NewOutboundQueue() *OutboundQueue {
	return &OutboundQueue{ch: make(chan []byte, outboundQueueCapacity)}
}

// Push enqueues a frame. It blocks if the queue is full, providing
// backpressure to the cognition dispatcher.
func (q *OutboundQueue) Push(frame []byte) {
	q.mu.Lock()
	ch := q.ch
	q.mu.Unlock()
	ch <- frame
}

// Pop returns the channel to read outbound frames from. The egress loop
// selects on it directly so it can also observe session shutdown.
func (q *OutboundQueue) Pop() <-chan []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ch
}

// Depth reports the number of frames currently queued, for metrics.
func (q *OutboundQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ch)
}

// DrainAndCancel discards any queued frames and installs a fresh channel, so
// frames pushed by a cancelled CognitionJob racing with this call land in the
// old, now-abandoned channel instead of being played out. Called on barge-in.
func (q *OutboundQueue) DrainAndCancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ch = make(chan []byte, outboundQueueCapacity)
}
