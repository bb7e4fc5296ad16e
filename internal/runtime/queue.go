package runtime

import (
	"sync"

	"github.com/roach88/tastefi/internal/ledger"
)

// txQueue is a thread-safe FIFO queue of verified transactions.
//
// The queue is unbounded so Submit never blocks on a busy runtime.
// Any goroutine may enqueue; only the Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type txQueue struct {
	mu     sync.Mutex
	txs    []*ledger.Transaction
	closed bool
	signal chan struct{} // Signals availability (buffered, size 1)
}

func newTxQueue() *txQueue {
	return &txQueue{
		txs:    make([]*ledger.Transaction, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds tx to the back of the queue.
// Returns false if the queue is closed.
func (q *txQueue) Enqueue(tx *ledger.Transaction) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.txs = append(q.txs, tx)

	// Non-blocking: the size-1 buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front transaction without blocking.
func (q *txQueue) TryDequeue() (*ledger.Transaction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.txs) == 0 {
		return nil, false
	}

	tx := q.txs[0]
	q.txs[0] = nil // release for GC
	if len(q.txs) == 1 {
		q.txs = q.txs[:0]
	} else {
		q.txs = q.txs[1:]
	}
	return tx, true
}

// Wait returns a channel that signals when transactions may be available.
// The channel is closed when the queue is closed.
func (q *txQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *txQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.txs)
}

// Closed reports whether Close has been called.
func (q *txQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes the Run loop.
func (q *txQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
