package entity

import "time"

// DefaultEnvironments apply to organizations that never configured their own.
var DefaultEnvironments = []Environment{
	{Id: "dev", Description: "Local development"},
	{Id: "production", Description: "Production"},
}

type Environment struct {
	Id          string `json:"id"`
	Description string `json:"description,omitempty"`
}

type Organization struct {
	Id           string
	Name         string
	Environments []Environment
	CreatedAt    time.Time
}

// EnvironmentIds lists the configured environment ids, falling back to the defaults.
func (o *Organization) EnvironmentIds() []string {
	envs := o.Environments
	if len(envs) == 0 {
		envs = DefaultEnvironments
	}
	ids := make([]string, 0, len(envs))
	for _, e := range envs {
		ids = append(ids, e.Id)
	}
	return ids
}

func (o *Organization) HasEnvironment(env string) bool {
	for _, id := range o.EnvironmentIds() {
		if id == env {
			return true
		}
	}
	return false
}

// ApiKey grants read access to the compiled definitions of one environment.
type ApiKey struct {
	Key          string
	Organization string
	Environment  string
	Description  string
	CreatedAt    time.Time
}
