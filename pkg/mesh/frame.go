package mesh

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

// frame is the broker envelope. Integer keys keep it small.
type frame struct {
	From    uint16 `cbor:"1,keyasint"`
	To      uint16 `cbor:"2,keyasint"`
	ID      uint32 `cbor:"3,keyasint"`
	Payload []byte `cbor:"4,keyasint"`
	Boot    uint32 `cbor:"5,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("mesh: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{MaxArrayElements: 1024}.DecMode()
	if err != nil {
		panic("mesh: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeFrame wraps payload in the CBOR envelope.
func EncodeFrame(h Header, payload []byte) ([]byte, error) {
	return encMode.Marshal(frame{
		From:    uint16(h.From),
		To:      uint16(h.To),
		ID:      h.ID,
		Payload: payload,
		Boot:    h.Boot,
	})
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(data []byte) (Header, []byte, error) {
	var f frame
	if err := decMode.Unmarshal(data, &f); err != nil {
		return Header{}, nil, fmt.Errorf("decode frame: %w", err)
	}
	return Header{
		From: model.NodeAddress(f.From),
		To:   model.NodeAddress(f.To),
		ID:   f.ID,
		Boot: f.Boot,
	}, f.Payload, nil
}
