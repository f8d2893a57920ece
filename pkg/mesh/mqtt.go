package mesh

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/dedup"
	"github.com/LeonardoBeccarini/aquarius/pkg/rabbitmq"
)

// PublisherFactory returns the publisher bound to topic.
type PublisherFactory func(topic string) rabbitmq.IPublisher

// NodeTopic is the topic a node listens on.
func NodeTopic(prefix string, addr model.NodeAddress) string {
	return fmt.Sprintf("%s/node/%d", prefix, uint16(addr))
}

const defaultInboxSize = 64

// MQTTNetwork carries mesh frames over an MQTT broker. Each node subscribes to
// its own NodeTopic and feeds HandleFrame; Write publishes the CBOR envelope
// to the recipient's topic at QoS 0. Frames redelivered by the broker are
// dropped by (sender, boot, id).
type MQTTNetwork struct {
	self    model.NodeAddress
	prefix  string
	factory PublisherFactory
	dedup   *dedup.Deduper
	logger  *log.Logger

	mu    sync.Mutex
	pubs  map[model.NodeAddress]rabbitmq.IPublisher
	inbox []pending
	max   int
}

func NewMQTTNetwork(self model.NodeAddress, prefix string, factory PublisherFactory, logger *log.Logger) *MQTTNetwork {
	if logger == nil {
		logger = log.Default()
	}
	return &MQTTNetwork{
		self:    self,
		prefix:  prefix,
		factory: factory,
		dedup:   dedup.New(time.Minute, 4096, nil),
		logger:  logger,
		pubs:    make(map[model.NodeAddress]rabbitmq.IPublisher),
		max:     defaultInboxSize,
	}
}

// Topic is the topic this node must subscribe to.
func (n *MQTTNetwork) Topic() string { return NodeTopic(n.prefix, n.self) }

// HandleFrame is the rabbitmq.Handler of the node's subscription.
func (n *MQTTNetwork) HandleFrame(topic string, data []byte) error {
	h, payload, err := DecodeFrame(data)
	if err != nil {
		return err
	}
	if h.To != n.self {
		return fmt.Errorf("frame %s on %s is not for %s", h, topic, n.self)
	}
	if !n.dedup.ShouldProcess(fmt.Sprintf("%d|%x|%d", h.From, h.Boot, h.ID)) {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.inbox) >= n.max {
		n.logger.Printf("mesh: inbox full, dropping oldest frame %s", n.inbox[0].h)
		n.inbox = n.inbox[1:]
	}
	n.inbox = append(n.inbox, pending{h: h, data: payload})
	return nil
}

// Update is a no-op: the MQTT client runs its own network goroutines.
func (n *MQTTNetwork) Update() {}

func (n *MQTTNetwork) Available() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.inbox) > 0
}

func (n *MQTTNetwork) Read(buf []byte) (Header, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.inbox) == 0 {
		return Header{}, 0
	}
	p := n.inbox[0]
	n.inbox = n.inbox[1:]
	return p.h, copy(buf, p.data)
}

func (n *MQTTNetwork) Write(h Header, payload []byte) bool {
	h.From = n.self
	data, err := EncodeFrame(h, payload)
	if err != nil {
		n.logger.Printf("mesh: encode %s: %v", h, err)
		return false
	}
	// failures are retried by the channel until its deadline
	return n.publisher(h.To).PublishMessage(data) == nil
}

func (n *MQTTNetwork) publisher(to model.NodeAddress) rabbitmq.IPublisher {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.pubs[to]
	if !ok {
		p = n.factory(NodeTopic(n.prefix, to))
		n.pubs[to] = p
	}
	return p
}
