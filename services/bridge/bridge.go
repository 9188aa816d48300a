// Package bridge relays bytes between a host link (a real serial port, by
// default) and the far end of a simulated board USART, so host tools can
// talk to firmware running in the simulator.
//
// The service listens for JSON config on {"config","bridge"}, supervises the
// link with exponential backoff and publishes its state, retained, on
// {"bridge","state"}.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"walkduino-go/bus"
)

var (
	TopicConfig = bus.T("config", "bridge")
	TopicState  = bus.T("bridge", "state")
)

// outQueue bounds the bytes waiting for the host link.
const outQueue = 1024

// Line is the remote end of a simulated USART; sim.USART implements it.
type Line interface {
	Feed(p []byte)
}

// Config is the JSON-encoded configuration expected on TopicConfig.
type Config struct {
	Transport TransportConfig `json:"transport"`
}

type TransportConfig struct {
	// "serial" (provided here) or other names registered via RegisterTransport.
	Type   string        `json:"type"`
	Serial *SerialConfig `json:"serial,omitempty"`
}

// SerialConfig selects a host serial device.
type SerialConfig struct {
	Device        string `json:"device"`
	Baud          int    `json:"baud"`
	ReadTimeoutMS int    `json:"read_timeout_ms,omitempty"` // 0 selects 100 ms
}

// Level is the coarse health reported in State.
type Level string

const (
	LevelIdle     Level = "idle"
	LevelUp       Level = "up"
	LevelDegraded Level = "degraded"
	LevelError    Level = "error"
)

// State is the retained payload on TopicState.
type State struct {
	Level  Level  `json:"level"`
	Status string `json:"status"`
	TSms   int64  `json:"ts_ms"`
	Error  string `json:"error,omitempty"`
}

// Bridge owns at most one host link at a time.
type Bridge struct {
	conn *bus.Connection
	line Line

	out     chan byte
	dropped atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a bridge feeding line. Connect the board side of the line to
// Send.
func New(conn *bus.Connection, line Line) *Bridge {
	return &Bridge{conn: conn, line: line, out: make(chan byte, outQueue)}
}

// Send queues one byte the board transmitted for the host link. It never
// blocks; bytes are counted and dropped while the queue is full.
func (b *Bridge) Send(c byte) {
	select {
	case b.out <- c:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns how many board bytes were discarded.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// Run waits for config and restarts the link on every new one. It blocks
// until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	sub := b.conn.Subscribe(TopicConfig)
	defer b.conn.Unsubscribe(sub)

	b.report(LevelIdle, "awaiting_config", nil)
	for {
		select {
		case <-ctx.Done():
			b.restart(ctx, nil)
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				b.report(LevelError, "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				b.report(LevelError, "config_decode_failed", err)
				continue
			}
			tr, err := newTransport(cfg.Transport)
			if err != nil {
				b.report(LevelError, "transport_init_failed", err)
				continue
			}
			b.restart(ctx, func(c context.Context) { b.supervise(c, tr) })
		}
	}
}

// restart cancels the running link, if any, and starts fn in its place.
func (b *Bridge) restart(parent context.Context, fn func(context.Context)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	if fn == nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	b.cancel = cancel
	go fn(ctx)
}

func (b *Bridge) supervise(ctx context.Context, tr Transport) {
	bo := backoff{min: 250 * time.Millisecond, max: 5 * time.Second}
	for ctx.Err() == nil {
		rwc, err := tr.Open(ctx)
		if err != nil {
			if !b.retry(ctx, &bo, "dial_failed_retrying", err) {
				return
			}
			continue
		}

		glog.Infof("bridge: %s link up", tr)
		b.report(LevelUp, "link_established", nil)
		bo.reset()
		err = b.pump(ctx, rwc)
		_ = rwc.Close()
		if err == nil {
			b.report(LevelIdle, "link_closed", nil)
			return
		}
		if !b.retry(ctx, &bo, "link_lost_retrying", err) {
			return
		}
	}
}

// retry reports a degraded link and waits out the next backoff step. It
// returns false if ctx ended first.
func (b *Bridge) retry(ctx context.Context, bo *backoff, status string, err error) bool {
	d := bo.next()
	b.report(LevelDegraded, status, fmt.Errorf("%v (retry in %s)", err, d))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// pump moves bytes both ways until ctx ends (nil) or the link fails.
func (b *Bridge) pump(ctx context.Context, rwc io.ReadWriteCloser) error {
	rerr := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := rwc.Read(buf)
			if n > 0 {
				b.line.Feed(buf[:n])
			}
			if err != nil || ctx.Err() != nil {
				rerr <- err
				return
			}
		}
	}()

	batch := make([]byte, 0, 64)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-rerr:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case c := <-b.out:
			batch = append(batch[:0], c)
		fill:
			for len(batch) < cap(batch) {
				select {
				case c := <-b.out:
					batch = append(batch, c)
				default:
					break fill
				}
			}
			if _, err := rwc.Write(batch); err != nil {
				return err
			}
		}
	}
}

// Transport opens the host side of the link.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

type transportFactory func(TransportConfig) (Transport, error)

var (
	transportsMu sync.RWMutex
	transports   = map[string]transportFactory{"serial": newSerialTransport}
)

// RegisterTransport adds or replaces a named transport.
func RegisterTransport(name string, f transportFactory) {
	transportsMu.Lock()
	transports[name] = f
	transportsMu.Unlock()
}

func newTransport(cfg TransportConfig) (Transport, error) {
	transportsMu.RLock()
	f, ok := transports[cfg.Type]
	transportsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("bridge: unknown transport %q", cfg.Type)
	}
	return f(cfg)
}

func decodeConfig(p any) (Config, error) {
	var raw []byte
	switch v := p.(type) {
	case Config:
		return v, nil
	case *Config:
		return *v, nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return Config{}, fmt.Errorf("bridge: config payload %T", p)
	}
	var cfg Config
	err := json.Unmarshal(raw, &cfg)
	return cfg, err
}

func (b *Bridge) report(level Level, status string, err error) {
	st := State{Level: level, Status: status, TSms: time.Now().UnixMilli()}
	if err != nil {
		st.Error = err.Error()
		glog.Warningf("bridge: %s: %v", status, err)
	}
	b.conn.Publish(b.conn.NewMessage(TopicState, st, true))
}

// backoff doubles from min up to max.
type backoff struct {
	min, max, cur time.Duration
}

func (b *backoff) next() time.Duration {
	if b.cur == 0 {
		b.cur = b.min
	}
	d := b.cur
	if b.cur *= 2; b.cur > b.max {
		b.cur = b.max
	}
	return d
}

func (b *backoff) reset() { b.cur = 0 }
