// Package monitor polls the chip registers and publishes snapshots to
// MQTT. Configuration requests received from MQTT are applied in the
// same goroutine which polls, so the device is never accessed
// concurrently.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/pga308/pkg/config"
	"github.com/robotalks/pga308/pkg/mqtt"
	"github.com/robotalks/pga308/pkg/pga308"
)

// Topics relative to "<prefix><id>/".
const (
	TopicSnapshot  = "snapshot"
	TopicConfigure = "configure"
	TopicResult    = "result"
)

// Broker is the subset of mqtt.Queue used by Monitor.
type Broker interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler mqtt.Handler) (io.Closer, error)
}

// Monitor implements framework.Runnable.
type Monitor struct {
	Device   *pga308.Device
	Broker   Broker
	ID       string
	Interval time.Duration
	Format   string

	requests chan pga308.Settings
	wake     chan struct{}
	snap     pga308.Snapshot
}

// New creates a Monitor.
func New(dev *pga308.Device, broker Broker, id string) *Monitor {
	return &Monitor{
		Device:   dev,
		Broker:   broker,
		ID:       id,
		Interval: time.Second,
		Format:   config.FormatJSON,
		requests: make(chan pga308.Settings, 1),
		wake:     make(chan struct{}, 1),
	}
}

// Wake requests a poll without waiting for the next interval, e.g. after
// the broker connection is restored. It doesn't block.
func (m *Monitor) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Name implements framework.Named.
func (m *Monitor) Name() string {
	return "monitor:" + m.ID
}

func (m *Monitor) topic(name string) string {
	return m.ID + "/" + name
}

// Run implements Runnable.
func (m *Monitor) Run(ctx context.Context) error {
	if m.requests == nil {
		m.requests = make(chan pga308.Settings, 1)
	}
	if m.wake == nil {
		m.wake = make(chan struct{}, 1)
	}
	sub, err := m.Broker.Subscribe(m.topic(TopicConfigure), m.handleConfigure)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	m.Poll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Poll()
		case <-m.wake:
			m.Poll()
		case s := <-m.requests:
			m.Apply(s)
		}
	}
}

func (m *Monitor) handleConfigure(topic string, payload []byte) {
	var s pga308.Settings
	if err := json.Unmarshal(payload, &s); err != nil {
		glog.Warningf("invalid configure request: %v", err)
		m.publish(TopicResult, InvalidRequest(err))
		return
	}
	select {
	case m.requests <- s:
	default:
		glog.Warning("configure request dropped, previous one pending")
	}
}

// Poll reads all registers and publishes the snapshot. Registers which
// fail to read keep their last known values and the failures are listed
// in the published snapshot.
func (m *Monitor) Poll() {
	err := m.Device.Refresh(&m.snap)
	if err != nil {
		glog.Warningf("poll: %v", err)
	}
	payload, err := Encode(m.Format, &m.snap, err, time.Now())
	if err != nil {
		glog.Errorf("encode snapshot: %v", err)
		return
	}
	if err := m.Broker.Publish(m.topic(TopicSnapshot), payload); err != nil {
		glog.Warningf("publish snapshot: %v", err)
	}
}

// Apply configures the chip and publishes the result.
func (m *Monitor) Apply(s pga308.Settings) error {
	err := m.Device.Configure(s)
	if err != nil {
		glog.Errorf("configure: %v", err)
	} else {
		glog.Infof("configured %+v", s)
	}
	m.publish(TopicResult, NewResult(err))
	return err
}

// OutcomeInvalidRequest is reported for configure requests which can't be
// decoded. The chip isn't accessed.
const OutcomeInvalidRequest = "invalid-request"

// Result is the payload published after a configure request.
type Result struct {
	Outcome string `json:"outcome"`
	Step    string `json:"step,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewResult describes the outcome of Configure.
func NewResult(err error) Result {
	r := Result{Outcome: pga308.OutcomeOf(err).String()}
	if err != nil {
		r.Error = err.Error()
		var stepErr *pga308.StepError
		if errors.As(err, &stepErr) {
			r.Step = stepErr.Step.String()
		}
	}
	return r
}

// InvalidRequest describes a rejected configure request.
func InvalidRequest(err error) Result {
	return Result{Outcome: OutcomeInvalidRequest, Error: err.Error()}
}

func (m *Monitor) publish(name string, r Result) {
	payload, _ := json.Marshal(r)
	if err := m.Broker.Publish(m.topic(name), payload); err != nil {
		glog.Warningf("publish %s: %v", name, err)
	}
}

type snapshotJSON struct {
	Time      time.Time        `json:"time"`
	Registers *pga308.Snapshot `json:"registers"`
	Locked    bool             `json:"locked"`
	Errors    []string         `json:"errors,omitempty"`
}

func errorList(err error) []string {
	if err == nil {
		return nil
	}
	if agg, ok := err.(interface{ Unwrap() []error }); ok {
		var msgs []string
		for _, e := range agg.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}

// Encode encodes a snapshot in format. readErr lists the registers that
// failed to read.
func Encode(format string, snap *pga308.Snapshot, readErr error, now time.Time) ([]byte, error) {
	switch format {
	case config.FormatJSON:
		return json.Marshal(&snapshotJSON{
			Time:      now.UTC(),
			Registers: snap,
			Locked:    snap.Locked(),
			Errors:    errorList(readErr),
		})
	case config.FormatProto:
		return proto.Marshal(snapshotStruct(snap, readErr, now))
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

func snapshotStruct(snap *pga308.Snapshot, readErr error, now time.Time) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"time":   {Kind: &structpb.Value_StringValue{StringValue: now.UTC().Format(time.RFC3339Nano)}},
		"locked": {Kind: &structpb.Value_BoolValue{BoolValue: snap.Locked()}},
	}
	for _, f := range snap.Fields() {
		fields[strings.ToLower(f.Register.String())] = &structpb.Value{
			Kind: &structpb.Value_NumberValue{NumberValue: float64(f.Value)},
		}
	}
	if errs := errorList(readErr); len(errs) > 0 {
		list := &structpb.ListValue{}
		for _, msg := range errs {
			list.Values = append(list.Values, &structpb.Value{
				Kind: &structpb.Value_StringValue{StringValue: msg},
			})
		}
		fields["errors"] = &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: list}}
	}
	return &structpb.Struct{Fields: fields}
}
