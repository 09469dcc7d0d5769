// FILE: internal/entity/feature_entity.go
// Domain entities for feature flags and their per-environment rules
package entity

import (
	"sort"
	"time"
)

type ValueType string

const (
	ValueTypeBoolean ValueType = "boolean"
	ValueTypeString  ValueType = "string"
	ValueTypeNumber  ValueType = "number"
	ValueTypeJSON    ValueType = "json"
)

func (v ValueType) Valid() bool {
	switch v {
	case ValueTypeBoolean, ValueTypeString, ValueTypeNumber, ValueTypeJSON:
		return true
	}
	return false
}

type RuleType string

const (
	RuleTypeForce      RuleType = "force"
	RuleTypeRollout    RuleType = "rollout"
	RuleTypeExperiment RuleType = "experiment"
)

func (t RuleType) Valid() bool {
	switch t {
	case RuleTypeForce, RuleTypeRollout, RuleTypeExperiment:
		return true
	}
	return false
}

// ExperimentValue is one variation of an experiment rule.
type ExperimentValue struct {
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

// Rule is a single ordered decision inside an environment.
// Which value fields are meaningful depends on Type.
type Rule struct {
	Id            string            `json:"id"`
	Type          RuleType          `json:"type"`
	Description   string            `json:"description"`
	Condition     string            `json:"condition,omitempty"`
	Enabled       bool              `json:"enabled"`
	Value         string            `json:"value,omitempty"`         // force, rollout
	Coverage      *float64          `json:"coverage,omitempty"`      // rollout, experiment
	HashAttribute string            `json:"hashAttribute,omitempty"` // rollout, experiment
	TrackingKey   string            `json:"trackingKey,omitempty"`   // experiment
	Values        []ExperimentValue `json:"values,omitempty"`        // experiment
}

type EnvironmentSettings struct {
	Enabled bool   `json:"enabled"`
	Rules   []Rule `json:"rules"`
}

// Feature is an organization-owned flag. Id is the lowercased feature key.
type Feature struct {
	Id                  string
	Organization        string
	DefaultValue        string
	ValueType           ValueType
	Description         string
	Project             string
	EnvironmentSettings map[string]EnvironmentSettings
	DateCreated         time.Time
	DateUpdated         time.Time
	Version             int64
}

// FeatureUpdate holds the fields a partial update may touch.
// Id, Organization and DateCreated have no counterpart here on purpose.
type FeatureUpdate struct {
	DefaultValue        *string
	ValueType           *ValueType
	Description         *string
	Project             *string
	EnvironmentSettings map[string]EnvironmentSettings
}

// RulePatch is a partial rule used by rule edits. Nil fields are left untouched.
type RulePatch struct {
	Type          *RuleType
	Description   *string
	Condition     *string
	Enabled       *bool
	Value         *string
	Coverage      *float64
	HashAttribute *string
	TrackingKey   *string
	Values        []ExperimentValue
}

// Apply merges the patch into r. The rule id is never touched.
func (p RulePatch) Apply(r Rule) Rule {
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Condition != nil {
		r.Condition = *p.Condition
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if p.Value != nil {
		r.Value = *p.Value
	}
	if p.Coverage != nil {
		c := *p.Coverage
		r.Coverage = &c
	}
	if p.HashAttribute != nil {
		r.HashAttribute = *p.HashAttribute
	}
	if p.TrackingKey != nil {
		r.TrackingKey = *p.TrackingKey
	}
	if p.Values != nil {
		r.Values = append([]ExperimentValue(nil), p.Values...)
	}
	return r
}

// Clone returns a deep copy so callers can mutate rules without aliasing the original.
func (f *Feature) Clone() *Feature {
	if f == nil {
		return nil
	}
	c := *f
	c.EnvironmentSettings = CloneEnvironmentSettings(f.EnvironmentSettings)
	return &c
}

// EnabledEnvironments returns the sorted ids of environments with enabled=true.
func (f *Feature) EnabledEnvironments() []string {
	envs := make([]string, 0, len(f.EnvironmentSettings))
	for id, settings := range f.EnvironmentSettings {
		if settings.Enabled {
			envs = append(envs, id)
		}
	}
	sort.Strings(envs)
	return envs
}

// EnvironmentIds returns the sorted ids of every environment with settings, enabled or not.
func (f *Feature) EnvironmentIds() []string {
	envs := make([]string, 0, len(f.EnvironmentSettings))
	for id := range f.EnvironmentSettings {
		envs = append(envs, id)
	}
	sort.Strings(envs)
	return envs
}

func CloneEnvironmentSettings(in map[string]EnvironmentSettings) map[string]EnvironmentSettings {
	if in == nil {
		return nil
	}
	out := make(map[string]EnvironmentSettings, len(in))
	for env, settings := range in {
		rules := make([]Rule, len(settings.Rules))
		for i, r := range settings.Rules {
			rules[i] = r.clone()
		}
		out[env] = EnvironmentSettings{Enabled: settings.Enabled, Rules: rules}
	}
	return out
}

func (r Rule) clone() Rule {
	if r.Coverage != nil {
		c := *r.Coverage
		r.Coverage = &c
	}
	if r.Values != nil {
		r.Values = append([]ExperimentValue(nil), r.Values...)
	}
	return r
}
