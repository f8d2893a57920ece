package mesh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
)

// ErrTimeout is the only failure of a channel operation: the deadline passed
// before the frame left the node or before the expected bytes arrived.
var ErrTimeout = errors.New("mesh: timed out")

type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// PollInterval is the pause between two attempts, 1ms when zero.
	PollInterval time.Duration
	Clock        clock.Clock
	Metrics      *Metrics
}

// Channel is the timeout-bounded message channel of one node. It is owned by
// the node's single control loop.
type Channel struct {
	net  Network
	self model.NodeAddress
	opts Options

	boot uint32

	mu         sync.Mutex
	seq        uint32
	lastSender model.NodeAddress
}

func NewChannel(net Network, self model.NodeAddress, opts Options) *Channel {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Channel{net: net, self: self, opts: opts, boot: uuid.New().ID()}
}

func (c *Channel) Self() model.NodeAddress { return c.self }

func (c *Channel) Clock() clock.Clock { return c.opts.Clock }

func (c *Channel) ReadTimeout() time.Duration { return c.opts.ReadTimeout }

func (c *Channel) WriteTimeout() time.Duration { return c.opts.WriteTimeout }

// Send delivers payload to recipient within the write timeout.
func (c *Channel) Send(ctx context.Context, to model.NodeAddress, payload []byte) error {
	return c.SendWithin(ctx, to, payload, c.opts.WriteTimeout)
}

// SendWithin retries delivery, driving the network on every attempt, until
// it succeeds or timeout elapses. At least one attempt is always made.
func (c *Channel) SendWithin(ctx context.Context, to model.NodeAddress, payload []byte, timeout time.Duration) error {
	c.mu.Lock()
	c.seq++
	h := Header{From: c.self, To: to, ID: c.seq, Boot: c.boot}
	c.mu.Unlock()

	deadline := c.opts.Clock.Now().Add(timeout)
	err := c.poll(ctx, deadline, func() bool {
		c.net.Update()
		return c.net.Write(h, payload)
	})
	c.opts.Metrics.send(c.self.String(), outcome(err))
	return err
}

// Receive fills buf completely within the read timeout.
func (c *Channel) Receive(ctx context.Context, buf []byte) error {
	return c.ReceiveWithin(ctx, buf, c.opts.ReadTimeout)
}

// ReceiveWithin accumulates successive frames into buf until exactly len(buf)
// bytes have arrived or timeout elapses. On ErrTimeout buf may hold a partial
// accumulation that must not be used.
func (c *Channel) ReceiveWithin(ctx context.Context, buf []byte, timeout time.Duration) error {
	got := 0
	deadline := c.opts.Clock.Now().Add(timeout)
	err := c.poll(ctx, deadline, func() bool {
		c.net.Update()
		if !c.net.Available() {
			return false
		}
		h, n := c.net.Read(buf[got:])
		got += n
		if got < len(buf) {
			return false
		}
		c.mu.Lock()
		c.lastSender = h.From
		c.mu.Unlock()
		return true
	})
	c.opts.Metrics.receive(c.self.String(), outcome(err))
	return err
}

// LastSender is the sender of the most recently completed receive.
func (c *Channel) LastSender() model.NodeAddress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSender
}

func (c *Channel) SendSignal(ctx context.Context, to model.NodeAddress, s model.Signal) error {
	return c.Send(ctx, to, s.Bytes())
}

func (c *Channel) SendSignalWithin(ctx context.Context, to model.NodeAddress, s model.Signal, timeout time.Duration) error {
	return c.SendWithin(ctx, to, s.Bytes(), timeout)
}

func (c *Channel) ReceiveSignal(ctx context.Context) (model.Signal, error) {
	return c.ReceiveSignalWithin(ctx, c.opts.ReadTimeout)
}

func (c *Channel) ReceiveSignalWithin(ctx context.Context, timeout time.Duration) (model.Signal, error) {
	var buf [model.SignalSize]byte
	if err := c.ReceiveWithin(ctx, buf[:], timeout); err != nil {
		return 0, err
	}
	return model.DecodeSignal(buf[:]), nil
}

// poll runs attempt until it reports done or the deadline passes. Sleeps never
// overshoot the deadline.
func (c *Channel) poll(ctx context.Context, deadline time.Time, attempt func() bool) error {
	clk := c.opts.Clock
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt() {
			return nil
		}
		remaining := deadline.Sub(clk.Now())
		if remaining <= 0 {
			return ErrTimeout
		}
		wait := c.opts.PollInterval
		if wait <= 0 {
			wait = time.Millisecond
		}
		clk.Sleep(min(wait, remaining))
	}
}
