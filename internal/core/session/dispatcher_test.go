package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_RunsInOrder(t *testing.T) {
	d := NewDispatcher()

	var got []int
	for i := range 100 {
		d.Async(func() { got = append(got, i) })
	}
	d.Close()

	want := make([]int, 100)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestDispatcher_NeverConcurrent(t *testing.T) {
	d := NewDispatcher()

	var (
		mu      sync.Mutex
		running int
		peak    int
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				d.Async(func() {
					mu.Lock()
					running++
					peak = max(peak, running)
					mu.Unlock()

					mu.Lock()
					running--
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()
	d.Close()

	assert.Equal(t, 1, peak)
}

func TestDispatcher_CallbackCanQueueMore(t *testing.T) {
	d := NewDispatcher()

	done := make(chan struct{})
	d.Async(func() {
		d.Async(func() { close(done) })
	})
	<-done
	d.Close()
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	d := NewDispatcher()
	d.Close()

	assert.False(t, d.Async(func() { t.Error("ran after close") }))
}
