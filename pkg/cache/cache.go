// Package cache stores compiled definitions payloads keyed by organization, environment and project.
package cache

import (
	"context"
	"fmt"
)

// Key identifies one compiled payload. An empty Project means "all projects".
type Key struct {
	Organization string
	Environment  string
	Project      string
}

func (k Key) String() string {
	return fmt.Sprintf("features:%s:%s:%s", k.Organization, k.Environment, k.Project)
}

// DefinitionsCache holds serialized payloads. Implementations must be safe for concurrent use.
type DefinitionsCache interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Set(ctx context.Context, key Key, payload []byte) error
	Invalidate(ctx context.Context, keys ...Key) error
}

// KeysFor expands the cartesian product of environments and projects for one organization.
func KeysFor(organization string, environments []string, projects []string) []Key {
	seen := make(map[Key]struct{})
	keys := make([]Key, 0, len(environments)*len(projects))
	for _, env := range environments {
		for _, project := range projects {
			k := Key{Organization: organization, Environment: env, Project: project}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}
