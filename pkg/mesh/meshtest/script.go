// Package meshtest provides a scripted mesh.Network for deterministic tests
// of node control loops driven by a simulated clock.
package meshtest

import (
	"sync"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh"
)

// Frame is one scripted or recorded frame. At is measured from the
// creation of the Script on its clock.
type Frame struct {
	At      time.Duration
	Header  mesh.Header
	Payload []byte
}

// Signal decodes the payload as a signal.
func (f Frame) Signal() model.Signal { return model.DecodeSignal(f.Payload) }

// Script is a Network whose inbound frames become available at fixed
// offsets of its clock.
type Script struct {
	self  model.NodeAddress
	clock clock.Clock
	start time.Time

	mu      sync.Mutex
	inbound []Frame
	sent    []Frame
	updates int

	// Accept decides whether a write is delivered. nil accepts all.
	Accept func(f Frame) bool
	// OnWrite runs after every delivered write, typically to schedule a reply.
	OnWrite func(s *Script, f Frame)
}

func New(self model.NodeAddress, c clock.Clock) *Script {
	return &Script{self: self, clock: c, start: c.Now()}
}

// Elapsed is the clock time since the script was created.
func (s *Script) Elapsed() time.Duration { return s.clock.Now().Sub(s.start) }

// Deliver schedules payload from sender at offset at.
func (s *Script) Deliver(at time.Duration, from model.NodeAddress, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbound = append(s.inbound, Frame{
		At:      at,
		Header:  mesh.Header{From: from, To: s.self},
		Payload: append([]byte(nil), payload...),
	})
}

func (s *Script) DeliverSignal(at time.Duration, from model.NodeAddress, sig model.Signal) {
	s.Deliver(at, from, sig.Bytes())
}

func (s *Script) Update() {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
}

func (s *Script) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

func (s *Script) due() int {
	now := s.Elapsed()
	for i, f := range s.inbound {
		if f.At <= now {
			return i
		}
	}
	return -1
}

func (s *Script) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.due() >= 0
}

func (s *Script) Read(buf []byte) (mesh.Header, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.due()
	if i < 0 {
		return mesh.Header{}, 0
	}
	f := s.inbound[i]
	s.inbound = append(s.inbound[:i], s.inbound[i+1:]...)
	return f.Header, copy(buf, f.Payload)
}

func (s *Script) Write(h mesh.Header, payload []byte) bool {
	h.From = s.self
	f := Frame{At: s.Elapsed(), Header: h, Payload: append([]byte(nil), payload...)}
	if s.Accept != nil && !s.Accept(f) {
		return false
	}
	s.mu.Lock()
	s.sent = append(s.sent, f)
	s.mu.Unlock()
	if s.OnWrite != nil {
		s.OnWrite(s, f)
	}
	return true
}

// Sent returns the delivered writes in order.
func (s *Script) Sent() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.sent...)
}

// SentSignals decodes every delivered write of SignalSize bytes.
func (s *Script) SentSignals() []model.Signal {
	var out []model.Signal
	for _, f := range s.Sent() {
		if len(f.Payload) == model.SignalSize {
			out = append(out, f.Signal())
		}
	}
	return out
}

// Pending returns how many scripted frames have not been read yet.
func (s *Script) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inbound)
}
