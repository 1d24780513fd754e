package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDeduplicatesInFlightScan(t *testing.T) {
	started := make(chan string, 4)
	proceed := make(chan struct{})
	var mu sync.Mutex
	var handled []string

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		handled = append(handled, job.ScanID)
		mu.Unlock()
		started <- job.ScanID
		<-proceed
		return nil
	}, QueueConfig{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j-1", ScanID: "scan-1", Kind: "advance"}))
	<-started

	// scan-1 is still running; a second enqueue is silently dropped.
	require.NoError(t, q.Enqueue(Job{ID: "j-2", ScanID: "scan-1", Kind: "advance"}))
	require.NoError(t, q.Enqueue(Job{ID: "j-3", ScanID: "scan-2", Kind: "advance"}))

	close(proceed)
	<-started

	// Once released, the same scan can run again.
	require.NoError(t, q.Enqueue(Job{ID: "j-4", ScanID: "scan-1", Kind: "advance"}))

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(handled)
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("jobs were not processed in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"scan-1", "scan-2", "scan-1"}, handled)
}

func TestEnqueueRequiresStartedQueue(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "j-1", ScanID: "scan-1"})
	assert.Error(t, err)
}
