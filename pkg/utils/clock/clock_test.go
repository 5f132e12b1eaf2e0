package clock

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestMock_Advance(t *testing.T) {
	m := NewMock(start)
	tk := m.NewTicker(200 * time.Millisecond)
	assert.Equal(t, m.Tickers(), 1)

	m.Advance(100 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("ticker fired too early")
	default:
	}

	m.Advance(100 * time.Millisecond)
	got := <-tk.C()
	assert.Equal(t, got, start.Add(200*time.Millisecond))
	assert.Equal(t, m.Now(), start.Add(200*time.Millisecond))
}

func TestMock_DropsTicksForSlowReceivers(t *testing.T) {
	m := NewMock(start)
	tk := m.NewTicker(time.Second)
	m.Advance(time.Second)
	m.Advance(time.Second)
	assert.Equal(t, <-tk.C(), start.Add(time.Second))
	select {
	case <-tk.C():
		t.Fatal("expected the second tick to be dropped")
	default:
	}
}

func TestMock_Stop(t *testing.T) {
	m := NewMock(start)
	tk := m.NewTicker(time.Second)
	tk.Stop()
	m.Advance(time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestReal(t *testing.T) {
	var c Clock = Real{}
	assert.Assert(t, !c.Now().IsZero())
	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()
	<-tk.C()
}
