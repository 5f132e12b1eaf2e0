//nolint:thelper // ok for tests
package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	var zero T
	return zero
}

func TestBroadcastServer_FanOut(t *testing.T) {
	src := make(chan int)
	bs := NewBroadcastServer("run", "test", src)
	defer bs.Close()

	a := bs.Subscribe()
	b := bs.Subscribe()

	go func() { src <- 1 }()
	assert.Equal(t, 1, receive(t, a))
	assert.Equal(t, 1, receive(t, b))

	bs.CancelSubscription(a)
	_, ok := <-a
	assert.False(t, ok, "cancelled subscription must be closed")

	go func() { src <- 2 }()
	assert.Equal(t, 2, receive(t, b))
}

func TestBroadcastServer_SkipsSlowListener(t *testing.T) {
	src := make(chan string)
	bs := NewBroadcastServer("run", "slow", src, WithSendTimeout[string](5*time.Millisecond))
	defer bs.Close()

	slow := bs.Subscribe()
	fast := bs.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Equal(t, "a", receive(t, fast))
		assert.Equal(t, "b", receive(t, fast))
	}()
	src <- "a"
	src <- "b"
	<-done

	select {
	case v := <-slow:
		t.Fatalf("slow listener unexpectedly got %q", v)
	default:
	}
}

func TestBroadcastServer_CloseClosesListeners(t *testing.T) {
	src := make(chan int)
	bs := NewBroadcastServer("run", "close", src)
	ch := bs.Subscribe()
	bs.Close()
	_, ok := <-ch
	assert.False(t, ok)

	late := bs.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")
}

func TestBroadcastServer_SourceClosed(t *testing.T) {
	src := make(chan int)
	bs := NewBroadcastServer("run", "eof", src)
	ch := bs.Subscribe()
	close(src)
	_, ok := <-ch
	assert.False(t, ok)
}
