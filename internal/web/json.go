package web

import (
	"encoding/json"

	"github.com/sweeney/lacrosse-receiver/internal/logic"
	"github.com/sweeney/lacrosse-receiver/internal/status"
)

// ReadingsJSON is the envelope for /sensors.json and /history.json.
type ReadingsJSON struct {
	Readings []status.SensorJSON `json:"readings"`
}

func formatSensors(rs []logic.Reading) []byte {
	data, _ := json.MarshalIndent(ReadingsJSON{Readings: status.Sensors(rs)}, "", "  ")
	return data
}
