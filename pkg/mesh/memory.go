package mesh

import (
	"math/rand"
	"sync"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

// Memory is an in-process mesh hub. Every attached node gets an Endpoint.
// It can drop frames at random and split payloads larger than MaxFrame into
// several frames, which is how a radio mesh behaves.
type Memory struct {
	mu        sync.Mutex
	endpoints map[model.NodeAddress]*Endpoint
	rnd       *rand.Rand

	dropRate float64
	maxFrame int
}

type MemoryOption func(*Memory)

// WithDropRate makes each Write fail with probability p.
func WithDropRate(p float64, seed int64) MemoryOption {
	return func(m *Memory) {
		m.dropRate = p
		m.rnd = rand.New(rand.NewSource(seed))
	}
}

// WithMaxFrame splits payloads into frames of at most n bytes.
func WithMaxFrame(n int) MemoryOption {
	return func(m *Memory) { m.maxFrame = n }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{endpoints: make(map[model.NodeAddress]*Endpoint)}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Attach registers addr on the hub. Attaching an address twice returns the
// existing endpoint.
func (m *Memory) Attach(addr model.NodeAddress) *Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ep, ok := m.endpoints[addr]; ok {
		return ep
	}
	ep := &Endpoint{hub: m, addr: addr}
	m.endpoints[addr] = ep
	return ep
}

// Detach removes addr; writes to it fail from now on. A detached node is a
// powered-off node.
func (m *Memory) Detach(addr model.NodeAddress) {
	m.mu.Lock()
	delete(m.endpoints, addr)
	m.mu.Unlock()
}

func (m *Memory) deliver(h Header, payload []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	dst, ok := m.endpoints[h.To]
	if !ok {
		return false
	}
	if m.rnd != nil && m.rnd.Float64() < m.dropRate {
		return false
	}
	chunk := len(payload)
	if m.maxFrame > 0 && chunk > m.maxFrame {
		chunk = m.maxFrame
	}
	dst.mu.Lock()
	defer dst.mu.Unlock()
	if len(payload) == 0 {
		dst.inbox = append(dst.inbox, pending{h: h})
		return true
	}
	for off := 0; off < len(payload); off += chunk {
		end := min(off+chunk, len(payload))
		dst.inbox = append(dst.inbox, pending{h: h, data: append([]byte(nil), payload[off:end]...)})
	}
	return true
}

type pending struct {
	h    Header
	data []byte
}

// Endpoint is one node's Network on a Memory hub.
type Endpoint struct {
	hub  *Memory
	addr model.NodeAddress

	mu      sync.Mutex
	inbox   []pending
	updates int
}

func (e *Endpoint) Address() model.NodeAddress { return e.addr }

func (e *Endpoint) Update() {
	e.mu.Lock()
	e.updates++
	e.mu.Unlock()
}

// Updates reports how often Update was called.
func (e *Endpoint) Updates() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updates
}

func (e *Endpoint) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inbox) > 0
}

func (e *Endpoint) Read(buf []byte) (Header, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.inbox) == 0 {
		return Header{}, 0
	}
	p := e.inbox[0]
	e.inbox = e.inbox[1:]
	return p.h, copy(buf, p.data)
}

func (e *Endpoint) Write(h Header, payload []byte) bool {
	h.From = e.addr
	return e.hub.deliver(h, payload)
}

// Pending returns the number of queued frames.
func (e *Endpoint) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inbox)
}
