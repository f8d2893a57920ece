package model

import (
	"encoding/binary"
	"fmt"
)

// Signal is the control discriminator carried by every control message.
// Values are wire constants shared by all nodes.
type Signal int16

const (
	SigHarvestStart Signal = 1
	SigRefillStart  Signal = 2
	SigRefillStop   Signal = 3
	SigPatrolStart  Signal = 4
	SigPatrolStop   Signal = 5
	SigNeedWaterYes Signal = 6
	SigNeedWaterNo  Signal = 7
	SigRefillAck    Signal = 8
)

// SignalSize is the wire size of a signal (a 16 bit little endian int).
const SignalSize = 2

var signalNames = map[Signal]string{
	SigHarvestStart: "HARVEST_START",
	SigRefillStart:  "REFILL_START",
	SigRefillStop:   "REFILL_STOP",
	SigPatrolStart:  "PATROL_START",
	SigPatrolStop:   "PATROL_STOP",
	SigNeedWaterYes: "NEED_WATER_Y",
	SigNeedWaterNo:  "NEED_WATER_N",
	SigRefillAck:    "REFILL_ACK",
}

func (s Signal) String() string {
	if n, ok := signalNames[s]; ok {
		return n
	}
	return fmt.Sprintf("SIGNAL(%d)", int16(s))
}

// Valid reports whether s is one of the known signal codes.
func (s Signal) Valid() bool {
	_, ok := signalNames[s]
	return ok
}

// Bytes encodes s for the wire.
func (s Signal) Bytes() []byte {
	b := make([]byte, SignalSize)
	binary.LittleEndian.PutUint16(b, uint16(s))
	return b
}

// DecodeSignal decodes a wire signal. Unknown values are returned as-is;
// callers compare against the value they expect.
func DecodeSignal(b []byte) Signal {
	if len(b) < SignalSize {
		return 0
	}
	return Signal(int16(binary.LittleEndian.Uint16(b)))
}
