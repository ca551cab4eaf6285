package breaker

import "fmt"

// Phase is the admission phase of a circuit.
type Phase int

const (
	// PhaseClosed admits every call.
	PhaseClosed Phase = iota
	// PhaseOpen rejects every call until the retry time is reached.
	PhaseOpen
	// PhaseHalfOpen admits a bounded number of concurrent probes.
	PhaseHalfOpen
	// PhasePartialAdmission admits calls with the circuit's admission probability.
	PhasePartialAdmission
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseOpen:
		return "open"
	case PhaseHalfOpen:
		return "half_open"
	case PhasePartialAdmission:
		return "partial_admission"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{PhaseClosed, PhaseOpen, PhaseHalfOpen, PhasePartialAdmission} {
		if candidate.String() == string(text) {
			*p = candidate

			return nil
		}
	}

	return fmt.Errorf("unknown phase %q", text)
}

// score is the phase component of the health score.
func (p Phase) score() float64 {
	switch p {
	case PhaseClosed:
		return 100
	case PhaseHalfOpen, PhasePartialAdmission:
		return 50
	default:
		return 0
	}
}
