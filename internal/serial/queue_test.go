package serial

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := New()
	defer q.Close()

	var (
		mu  sync.Mutex
		got []int
	)
	var last <-chan struct{}
	for i := 0; i < 50; i++ {
		last = q.PushDone(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	<-last
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueueNestedPush(t *testing.T) {
	q := New()
	defer q.Close()

	inner := make(chan struct{})
	q.Push(func() {
		q.Push(func() { close(inner) })
	})
	select {
	case <-inner:
	case <-time.After(time.Second):
		t.Fatal("nested push did not run")
	}
}

func TestQueueCloseDrains(t *testing.T) {
	q := New()
	release := make(chan struct{})
	ran := 0
	q.Push(func() { <-release })
	q.Push(func() { ran++ })
	q.Close()

	assert.False(t, q.Push(func() { ran++ }))
	close(release)
	<-q.Done()
	assert.Equal(t, 1, ran)
}

func TestQueuePushDoneAfterClose(t *testing.T) {
	q := New()
	q.Close()
	<-q.Done()
	ran := false
	<-q.PushDone(func() { ran = true })
	assert.False(t, ran)
	q.Close()
}
