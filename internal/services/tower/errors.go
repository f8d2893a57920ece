package tower

import (
	"errors"
	"fmt"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

// Indicator error codes.
const (
	CodeWriteTimeout = 1
	CodeReadTimeout  = 2
	CodeInvalidData  = 3
	CodeForeignNode  = 4
)

// ErrHalted is returned by Tick while a failed phase waits for Resume.
var ErrHalted = errors.New("tower: cycle halted")

// PhaseError reports which phase failed, against which node and why.
// Node is the tower itself for failures that involve no peer.
type PhaseError struct {
	Phase model.Phase
	Node  model.NodeAddress
	Kind  model.Fault
	Code  int
	Err   error
}

func (e *PhaseError) Error() string {
	msg := fmt.Sprintf("phase %s", e.Phase)
	if e.Node != model.NodeControlTower {
		msg += fmt.Sprintf(" (%s)", e.Node)
	}
	msg += fmt.Sprintf(": %v, code %d", e.Kind, e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Is matches the fault kind, so errors.Is(err, model.FaultTimeout) works
// whatever the underlying cause.
func (e *PhaseError) Is(target error) bool {
	f, ok := target.(model.Fault)
	return ok && f == e.Kind
}

func fail(phase model.Phase, node model.NodeAddress, kind model.Fault, code int, err error) *PhaseError {
	return &PhaseError{Phase: phase, Node: node, Kind: kind, Code: code, Err: err}
}
