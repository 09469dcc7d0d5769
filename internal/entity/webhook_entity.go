package entity

import (
	"time"

	"github.com/google/uuid"
)

// Webhook receives the compiled definitions whenever a matching feature changes.
// An empty Project matches every project; an empty Environment means production.
type Webhook struct {
	Id           uuid.UUID
	Organization string
	Name         string
	Endpoint     string
	SigningKey   string
	Project      string
	Environment  string
	LastSuccess  *time.Time
	Error        string
	CreatedAt    time.Time
}
