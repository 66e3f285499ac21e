package alerting

import (
	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
)

// DefaultRules returns the built-in starter rules seeded on first start.
// Missing rules are re-created by name, so partial seeds self-heal.
func DefaultRules() []entities.AlertRule {
	return []entities.AlertRule{
		{
			Name:            "Person detected",
			Description:     "Notifies when a person is detected with high confidence",
			Enabled:         true,
			BuiltIn:         true,
			Conditions:      `{"object_types":["person"],"min_confidence":70}`,
			Actions:         `{"notify":true}`,
			CooldownMinutes: 10,
		},
		{
			Name:            "Package delivered",
			Description:     "Notifies when a package appears in view",
			Enabled:         true,
			BuiltIn:         true,
			Conditions:      `{"object_types":["package"],"min_confidence":60}`,
			Actions:         `{"notify":true}`,
			CooldownMinutes: 30,
		},
		{
			Name:            "Vehicle at night",
			Description:     "Notifies when a vehicle is detected between 22:00 and 06:00",
			Enabled:         false,
			BuiltIn:         true,
			Conditions:      `{"object_types":["car","truck"],"time_start":"22:00","time_end":"06:00","min_confidence":65}`,
			Actions:         `{"notify":true}`,
			CooldownMinutes: 15,
		},
		{
			Name:            "Unusual activity",
			Description:     "Notifies when the anomaly score indicates unusual activity",
			Enabled:         false,
			BuiltIn:         true,
			Conditions:      `{"min_anomaly_score":0.8}`,
			Actions:         `{"notify":true}`,
			CooldownMinutes: 30,
		},
	}
}
