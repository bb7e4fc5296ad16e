package runtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tastefi/internal/ledger"
)

func testTx(n byte) *ledger.Transaction {
	return &ledger.Transaction{Signatures: []ledger.SignaturePair{{Signature: ledger.Signature{n}}}}
}

func TestTxQueue_FIFO(t *testing.T) {
	q := newTxQueue()
	for i := byte(1); i <= 3; i++ {
		require.True(t, q.Enqueue(testTx(i)))
	}
	assert.Equal(t, 3, q.Len())

	for i := byte(1); i <= 3; i++ {
		tx, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, tx.Signatures[0].Signature[0])
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestTxQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newTxQueue()
	q.Close()
	q.Close() // idempotent

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(testTx(1)))

	select {
	case <-q.Wait():
	default:
		t.Fatal("Wait channel not closed")
	}
}

func TestTxQueue_ConcurrentEnqueue(t *testing.T) {
	q := newTxQueue()
	const workers = 10
	const each = 50

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.Enqueue(testTx(0))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, workers*each, q.Len())
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, uint64(0), c.Current())
	assert.Equal(t, uint64(1), c.Next())
	assert.Equal(t, uint64(2), c.Next())
	assert.Equal(t, uint64(2), c.Current())

	resumed := NewClockAt(10)
	assert.Equal(t, uint64(11), resumed.Next())
}
