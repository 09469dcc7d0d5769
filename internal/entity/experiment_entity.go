package entity

import "time"

type ExperimentVariation struct {
	Id     string  `json:"id"`
	Name   string  `json:"name"`
	Key    string  `json:"key"`
	Weight float64 `json:"weight"`
}

// Experiment is only read here, to enrich experiment rules for the authoring UI.
type Experiment struct {
	Id           string
	Organization string
	TrackingKey  string
	Name         string
	Status       string
	Variations   []ExperimentVariation
	DateCreated  time.Time
	DateUpdated  time.Time
}
