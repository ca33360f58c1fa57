package model

// ServiceState lifecycle: Stopped -> Starting -> Running -> Stopping -> Stopped
type ServiceState int32

const (
	StateStopped ServiceState = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s ServiceState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}
