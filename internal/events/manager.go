package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Manager handles event emission and logging
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus for subscribers
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Emit publishes typed data to the bus and logs it
func (m *Manager) Emit(module string, data EventData) {
	m.bus.Publish(module, data)

	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = []byte("null")
	}
	m.log.Info().
		Str("event_type", string(data.EventType())).
		Str("module", module).
		RawJSON("data", dataJSON).
		Msg("Event emitted")
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	m.Emit(module, &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	})
}
