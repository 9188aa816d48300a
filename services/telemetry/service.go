// Package telemetry samples the board gyro on a fixed interval and publishes
// the readings on the bus.
//
// The service goroutine owns the two-wire bus for as long as it runs: on the
// host simulator every transfer advances the simulated core, so no other
// goroutine may drive the board meanwhile.
package telemetry

import (
	"context"
	"time"

	"github.com/golang/glog"

	"walkduino-go/bus"
	"walkduino-go/drivers/itg3200"
	"walkduino-go/x/mathx"
)

var (
	TopicRotation    = bus.T("gyro", "rotation")
	TopicTemperature = bus.T("gyro", "temperature")
	TopicError       = bus.T("gyro", "error")
	TopicConfig      = bus.T("config", "telemetry")
)

const (
	// DefaultInterval applies when Service.Interval is zero.
	DefaultInterval = 100 * time.Millisecond

	MinInterval = time.Millisecond
	MaxInterval = time.Hour
)

// interval bounds a requested sampling period.
func interval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultInterval
	}
	return mathx.Clamp(d, MinInterval, MaxInterval)
}

// Gyro is the part of the ITG-3200 driver the service uses.
type Gyro interface {
	ReadRotation() (itg3200.Sample, error)
	ReadTemperature() (int32, error)
}

// Reading is published on TopicRotation.
type Reading struct {
	Seq    uint32
	At     time.Time
	Sample itg3200.Sample
}

// Config is accepted on TopicConfig to change the running service.
type Config struct {
	Interval time.Duration
}

type Service struct {
	Gyro     Gyro
	Interval time.Duration

	seq uint32
}

// Start runs the service in a goroutine until ctx is cancelled.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go s.Run(ctx, conn)
}

// Run samples until ctx is cancelled.
func (s *Service) Run(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(TopicConfig)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(interval(s.Interval))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			glog.V(1).Info("telemetry: stopping")
			return
		case <-tick.C:
			s.sample(conn)
		case msg := <-cfgSub.Channel():
			if c, ok := msg.Payload.(Config); ok && c.Interval > 0 {
				iv := interval(c.Interval)
				tick.Reset(iv)
				glog.Infof("telemetry: interval set to %s", iv)
			}
		}
	}
}

// sample takes one reading and publishes it. Failures go to TopicError and
// do not stop the service.
func (s *Service) sample(conn *bus.Connection) {
	rot, err := s.Gyro.ReadRotation()
	if err != nil {
		glog.Warningf("telemetry: rotation: %v", err)
		conn.Publish(conn.NewMessage(TopicError, err, false))
		return
	}
	s.seq++
	conn.Publish(conn.NewMessage(TopicRotation, Reading{Seq: s.seq, At: time.Now(), Sample: rot}, true))

	mc, err := s.Gyro.ReadTemperature()
	if err != nil {
		glog.Warningf("telemetry: temperature: %v", err)
		conn.Publish(conn.NewMessage(TopicError, err, false))
		return
	}
	conn.Publish(conn.NewMessage(TopicTemperature, mc, true))
}
