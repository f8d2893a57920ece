package model

// Fault is the kind of a protocol or safety failure. It is itself an error
// so callers can test with errors.Is(err, model.FaultTimeout).
type Fault int

const (
	// FaultTimeout: no reply or ack within the bound.
	FaultTimeout Fault = iota + 1
	// FaultInvalidData: all-zero or otherwise implausible payload.
	FaultInvalidData
	// FaultUnexpectedSignal: the received signal or sender does not match.
	FaultUnexpectedSignal
	// FaultSafetyAbort: a physical threshold was crossed.
	FaultSafetyAbort
	// FaultConnection: an external collaborator could not be reached.
	FaultConnection
)

func (f Fault) Error() string {
	switch f {
	case FaultTimeout:
		return "timeout"
	case FaultInvalidData:
		return "invalid data"
	case FaultUnexpectedSignal:
		return "unexpected signal"
	case FaultSafetyAbort:
		return "safety abort"
	case FaultConnection:
		return "connection failure"
	}
	return "unknown fault"
}
