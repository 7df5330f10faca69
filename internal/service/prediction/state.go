package prediction

// State is the orchestrator lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateDegraded
	StateNotServing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateNotServing:
		return "not_serving"
	default:
		return "unknown"
	}
}

// Message is the human readable status shown to clients.
func (s State) Message() string {
	switch s {
	case StateUninitialized:
		return "Inicializando sistema..."
	case StateReady:
		return "Sistema listo"
	case StateDegraded:
		return "Sistema listo con audio o registro limitados"
	case StateNotServing:
		return "Modelo no disponible"
	default:
		return "Estado desconocido"
	}
}

// Serving reports whether predictions are answered in this state.
func (s State) Serving() bool {
	return s == StateReady || s == StateDegraded
}
