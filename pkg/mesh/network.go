// Package mesh is the node-to-node transport of the rig: a best-effort
// frame network (no ordering, no delivery guarantee) and the timeout-bounded
// Channel every node talks through.
package mesh

import (
	"fmt"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

// Header addresses one frame.
type Header struct {
	From model.NodeAddress
	To   model.NodeAddress
	// ID is a per-sender sequence number, used to drop broker redeliveries.
	ID uint32
	// Boot is drawn once per channel, so a restarted sender whose ID starts
	// again from 1 is not taken for a redelivery.
	Boot uint32
}

func (h Header) String() string {
	return fmt.Sprintf("%s->%s#%d", h.From, h.To, h.ID)
}

// Network is a single node's view of the mesh.
//
// Update drives the network's internal bookkeeping and must be called on
// every polling attempt. Write makes one delivery attempt and reports whether
// the frame left the node. Read copies at most len(buf) bytes of the oldest
// pending frame into buf; a frame larger than buf is truncated.
type Network interface {
	Update()
	Available() bool
	Read(buf []byte) (Header, int)
	Write(h Header, payload []byte) bool
}
