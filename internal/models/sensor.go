package models

// Sensor is read-only device metadata, used only to enrich display text.
type Sensor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Unit     string `json:"unit"`
}
