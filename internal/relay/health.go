package relay

import "time"

// Health is the read-only view served by the health endpoint.
type Health struct {
	Status    string    `json:"status"`
	Clients   int       `json:"clients"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthReporter reports the registry size.
type HealthReporter struct {
	registry *Registry
	now      func() time.Time
}

func NewHealthReporter(registry *Registry) *HealthReporter {
	return &HealthReporter{registry: registry, now: time.Now}
}

// Report always succeeds.
func (h *HealthReporter) Report() Health {
	clients := 0
	if h.registry != nil {
		clients = h.registry.Size()
	}
	return Health{
		Status:    "healthy",
		Clients:   clients,
		Timestamp: h.now().UTC(),
	}
}
