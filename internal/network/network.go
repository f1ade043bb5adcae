// Package network abstracts metered-network introspection. The scheduler and
// queue consult it for the unmetered-only constraint; on a server host there
// is usually nothing to detect, so the default implementation is static.
package network

// Info reports the current network's metering state.
type Info interface {
	IsMetered() bool
}

// Static is an Info with a fixed answer, driven by configuration.
type Static struct {
	Metered bool
}

func (s Static) IsMetered() bool {
	return s.Metered
}
