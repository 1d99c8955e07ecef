package app

import (
	"context"
	"errors"
	"sync"

	"github.com/kilianp07/rainbarrel/config"
	"github.com/kilianp07/rainbarrel/core/hardware"
	coremetrics "github.com/kilianp07/rainbarrel/core/metrics"
	coremqtt "github.com/kilianp07/rainbarrel/core/mqtt"
)

type message struct {
	topic   string
	payload string
}

// fakeSession connects synchronously and runs ready callbacks inline.
type fakeSession struct {
	mu           sync.Mutex
	subs         map[string]coremqtt.Handler
	ready        []func()
	published    []message
	connectErr   error
	connects     int
	disconnected bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{subs: make(map[string]coremqtt.Handler)}
}

func (s *fakeSession) Subscribe(topic string, h coremqtt.Handler) error {
	s.mu.Lock()
	s.subs[topic] = h
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Publish(topic string, payload []byte) error {
	s.mu.Lock()
	s.published = append(s.published, message{topic, string(payload)})
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) OnReady(f func()) {
	s.mu.Lock()
	s.ready = append(s.ready, f)
	s.mu.Unlock()
}

func (s *fakeSession) Connect(ctx context.Context) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	s.reconnect()
	return nil
}

// reconnect simulates a successful (re)connect.
func (s *fakeSession) reconnect() {
	s.mu.Lock()
	s.connects++
	ready := append([]func(){}, s.ready...)
	s.mu.Unlock()
	for _, f := range ready {
		f()
	}
}

func (s *fakeSession) Disconnect() {
	s.mu.Lock()
	s.disconnected = true
	s.mu.Unlock()
}

func (s *fakeSession) deliver(topic, payload string) bool {
	s.mu.Lock()
	h, ok := s.subs[topic]
	s.mu.Unlock()
	if ok {
		h(topic, []byte(payload))
	}
	return ok
}

func (s *fakeSession) messages(topic string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.published {
		if m.topic == topic {
			out = append(out, m.payload)
		}
	}
	return out
}

func (s *fakeSession) isDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// fakeBoard has a recording valve and a fixed-distance ranger.
type fakeBoard struct {
	mu       sync.Mutex
	open     bool
	switches int
	distance float64
	reads    int
	closed   bool
}

func (b *fakeBoard) Valve() hardware.Output  { return fakeValve{b} }
func (b *fakeBoard) Ranger() hardware.Ranger { return fakeRanger{b} }

func (b *fakeBoard) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBoard) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *fakeBoard) readCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

type fakeValve struct{ b *fakeBoard }

func (v fakeValve) SetEnergized(on bool) {
	v.b.mu.Lock()
	v.b.open = on
	v.b.switches++
	v.b.mu.Unlock()
}

type fakeRanger struct{ b *fakeBoard }

func (r fakeRanger) Distance() float64 {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	r.b.reads++
	return r.b.distance
}

// fakeProbe returns out or err.
type fakeProbe struct {
	mu    sync.Mutex
	out   string
	err   error
	calls int
}

func (p *fakeProbe) Measure(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.out, p.err
}

func (p *fakeProbe) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// sampleSink records sample outcomes.
type sampleSink struct {
	mu       sync.Mutex
	outcomes []string
}

func (s *sampleSink) RecordSample(rec coremetrics.SampleRecord) error {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, rec.Outcome)
	s.mu.Unlock()
	return nil
}

func (s *sampleSink) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.outcomes...)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SetDefaults()
	return cfg
}

var errBroker = errors.New("broker unreachable")
