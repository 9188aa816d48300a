package bridge

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"walkduino-go/board"
	"walkduino-go/bus"
	"walkduino-go/serial"
)

type recordLine struct {
	mu  sync.Mutex
	buf []byte
}

func (l *recordLine) Feed(p []byte) {
	l.mu.Lock()
	l.buf = append(l.buf, p...)
	l.mu.Unlock()
}

func (l *recordLine) bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.buf...)
}

// pipeTransport hands out the local end of a fresh net.Pipe per Open.
type pipeTransport struct {
	remotes chan net.Conn
}

func (p *pipeTransport) Open(context.Context) (io.ReadWriteCloser, error) {
	lc, rc := net.Pipe()
	p.remotes <- rc
	return lc, nil
}

func (p *pipeTransport) String() string { return "pipe" }

func registerPipe(t *testing.T) *pipeTransport {
	t.Helper()
	p := &pipeTransport{remotes: make(chan net.Conn, 4)}
	RegisterTransport("pipe", func(TransportConfig) (Transport, error) { return p, nil })
	return p
}

func TestRelaysBothWaysAndReportsState(t *testing.T) {
	pipe := registerPipe(t)
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge_test")
	line := &recordLine{}
	br := New(conn, line)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go br.Run(ctx)

	stateSub := conn.Subscribe(TopicState)
	defer conn.Unsubscribe(stateSub)
	expectState(t, nextState(t, stateSub, 500*time.Millisecond), LevelIdle, "awaiting_config")

	conn.Publish(conn.NewMessage(TopicConfig, `{"transport":{"type":"pipe"}}`, false))
	expectState(t, nextState(t, stateSub, time.Second), LevelUp, "link_established")

	var remote net.Conn
	select {
	case remote = <-pipe.remotes:
	case <-time.After(time.Second):
		t.Fatal("transport never opened")
	}

	// Host to board.
	if _, err := remote.Write([]byte("hi")); err != nil {
		t.Fatalf("remote write: %v", err)
	}
	waitFor(t, func() bool { return bytes.Equal(line.bytes(), []byte("hi")) })

	// Board to host.
	br.Send('o')
	br.Send('k')
	got := make([]byte, 0, 2)
	buf := make([]byte, 2)
	_ = remote.SetReadDeadline(time.Now().Add(time.Second))
	for len(got) < 2 {
		n, err := remote.Read(buf)
		if err != nil {
			t.Fatalf("remote read: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "ok" {
		t.Fatalf("host received %q", got)
	}

	_ = remote.Close()
	expectState(t, nextState(t, stateSub, time.Second), LevelDegraded, "link_lost_retrying")
}

func TestBadConfigReportsError(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("bridge_test_bad")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go New(conn, &recordLine{}).Run(ctx)

	stateSub := conn.Subscribe(TopicState)
	defer conn.Unsubscribe(stateSub)
	_ = nextState(t, stateSub, 500*time.Millisecond)

	conn.Publish(conn.NewMessage(TopicConfig, `{"transport":{"type":"bogus"}}`, false))
	expectState(t, nextState(t, stateSub, time.Second), LevelError, "transport_init_failed")

	conn.Publish(conn.NewMessage(TopicConfig, `{"transport":{"type":"serial"}}`, false))
	expectState(t, nextState(t, stateSub, time.Second), LevelError, "transport_init_failed")

	conn.Publish(conn.NewMessage(TopicConfig, 42, false))
	expectState(t, nextState(t, stateSub, time.Second), LevelError, "config_decode_failed")
}

func TestSendDropsWhenFull(t *testing.T) {
	svc := New(bus.NewBus(1).NewConnection("x"), &recordLine{})
	for i := 0; i < outQueue+5; i++ {
		svc.Send(byte(i))
	}
	if svc.Dropped() != 5 {
		t.Fatalf("dropped %d want 5", svc.Dropped())
	}
}

func TestFeedsSimulatedBoard(t *testing.T) {
	pipe := registerPipe(t)
	s := board.NewSim()
	if err := s.Serial.Begin(115200, serial.Format8N1); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	conn := bus.NewBus(8).NewConnection("bridge")
	svc := New(conn, s.USARTD1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)
	stateSub := conn.Subscribe(TopicState)
	_ = nextState(t, stateSub, 500*time.Millisecond)
	conn.Publish(conn.NewMessage(TopicConfig, Config{Transport: TransportConfig{Type: "pipe"}}, false))
	remote := <-pipe.remotes
	defer remote.Close()

	if _, err := remote.Write([]byte("xy")); err != nil {
		t.Fatalf("remote write: %v", err)
	}
	waitFor(t, func() bool { return s.USARTD1.Pending() == 2 })
	s.Core.Run(4)
	if n := s.Serial.Available(); n != 2 {
		t.Fatalf("Available=%d want 2", n)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func nextState(t *testing.T, sub *bus.Subscription, d time.Duration) State {
	t.Helper()
	select {
	case m := <-sub.Channel():
		st, ok := m.Payload.(State)
		if !ok {
			t.Fatalf("state payload %T", m.Payload)
		}
		return st
	case <-time.After(d):
		t.Fatal("timeout waiting for bridge/state")
		return State{}
	}
}

func expectState(t *testing.T, st State, level Level, status string) {
	t.Helper()
	if st.Level != level || st.Status != status {
		t.Fatalf("state %s/%s (err %q), want %s/%s", st.Level, st.Status, st.Error, level, status)
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	bo := backoff{min: 250 * time.Millisecond, max: time.Second}
	want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second, time.Second}
	for i, w := range want {
		if got := bo.next(); got != w {
			t.Fatalf("step %d: %s want %s", i, got, w)
		}
	}
	bo.reset()
	if got := bo.next(); got != 250*time.Millisecond {
		t.Fatalf("after reset: %s", got)
	}
}
