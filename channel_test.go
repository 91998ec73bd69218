package mymuduo

import (
	"testing"
	"time"

	"github.com/kongxin123456/mymuduo/internal/netpoll"
)

func TestChannelDispatchOrder(t *testing.T) {
	ch := &Channel{}

	var order []string
	ch.SetCloseCallback(func() { order = append(order, "close") })
	ch.SetErrorCallback(func() { order = append(order, "error") })
	ch.SetReadCallback(func(time.Time) { order = append(order, "read") })
	ch.SetWriteCallback(func() { order = append(order, "write") })

	ch.SetRevents(netpoll.EventRead | netpoll.EventErr | netpoll.EventWrite)
	ch.HandleEvent(time.Now())

	want := []string{"error", "read", "write"}
	if len(order) != len(want) {
		t.Fatalf("got callbacks %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got callbacks %v, want %v", order, want)
		}
	}
}

func TestChannelHupWithoutReadFiresClose(t *testing.T) {
	ch := &Channel{}
	closed := false
	ch.SetCloseCallback(func() { closed = true })
	ch.SetRevents(netpoll.EventHup)
	ch.HandleEvent(time.Now())
	if !closed {
		t.Fatal("expected close callback on HUP without IN")
	}
}

func TestChannelHupWithReadDoesNotFireClose(t *testing.T) {
	ch := &Channel{}
	closed, read := false, false
	ch.SetCloseCallback(func() { closed = true })
	ch.SetReadCallback(func(time.Time) { read = true })
	ch.SetRevents(netpoll.EventHup | netpoll.EventRead)
	ch.HandleEvent(time.Now())
	if closed {
		t.Fatal("close callback should not fire when IN accompanies HUP")
	}
	if !read {
		t.Fatal("expected read callback to still fire")
	}
}

func TestChannelTiedSkipsDispatchWhenDead(t *testing.T) {
	ch := &Channel{}
	fired := false
	ch.SetReadCallback(func(time.Time) { fired = true })
	ch.SetRevents(netpoll.EventRead)
	ch.Tie(func() bool { return false })

	ch.HandleEvent(time.Now())
	if fired {
		t.Fatal("expected dispatch to be skipped when tie reports dead")
	}
}

func TestChannelEnableDisableInterest(t *testing.T) {
	r, w, err := pipePair()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	loop := newTestLoop(t)
	ch := NewChannel(loop, int(r.Fd()))
	if ch.IsReading() || ch.IsWriting() {
		t.Fatal("new channel should have no interest")
	}

	run(t, loop, func() {
		ch.EnableReading()
		if !ch.IsReading() {
			t.Fatal("expected reading enabled")
		}
		ch.EnableWriting()
		if !ch.IsWriting() {
			t.Fatal("expected writing enabled")
		}
		ch.DisableWriting()
		if ch.IsWriting() {
			t.Fatal("expected writing disabled")
		}
		ch.DisableAll()
		if !ch.IsNoneEvent() {
			t.Fatal("expected no interest after DisableAll")
		}
	})
}
