// FILE: internal/dto/feature_dto.go
// Request and response bodies of the feature management API
package dto

import (
	"encoding/json"
	"time"

	"feature-flags-be/internal/entity"
)

type RuleRequest struct {
	Id            string                   `json:"id"`
	Type          entity.RuleType          `json:"type" validate:"required,oneof=force rollout experiment"`
	Description   string                   `json:"description"`
	Condition     string                   `json:"condition"`
	Enabled       *bool                    `json:"enabled"`
	Value         string                   `json:"value"`
	Coverage      *float64                 `json:"coverage" validate:"omitempty,gte=0,lte=1"`
	HashAttribute string                   `json:"hashAttribute"`
	TrackingKey   string                   `json:"trackingKey"`
	Values        []entity.ExperimentValue `json:"values"`
}

// ToEntity converts the request. Rules are enabled unless told otherwise.
func (r RuleRequest) ToEntity() entity.Rule {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	rule := entity.Rule{
		Id:            r.Id,
		Type:          r.Type,
		Description:   r.Description,
		Condition:     r.Condition,
		Enabled:       enabled,
		Value:         r.Value,
		HashAttribute: r.HashAttribute,
		TrackingKey:   r.TrackingKey,
		Values:        append([]entity.ExperimentValue(nil), r.Values...),
	}
	if r.Coverage != nil {
		c := *r.Coverage
		rule.Coverage = &c
	}
	return rule
}

type EnvironmentSettingsRequest struct {
	Enabled bool          `json:"enabled"`
	Rules   []RuleRequest `json:"rules" validate:"dive"`
}

func ToEnvironmentSettings(in map[string]EnvironmentSettingsRequest) map[string]entity.EnvironmentSettings {
	if in == nil {
		return nil
	}
	out := make(map[string]entity.EnvironmentSettings, len(in))
	for env, s := range in {
		rules := make([]entity.Rule, 0, len(s.Rules))
		for _, r := range s.Rules {
			rules = append(rules, r.ToEntity())
		}
		out[env] = entity.EnvironmentSettings{Enabled: s.Enabled, Rules: rules}
	}
	return out
}

type CreateFeatureRequest struct {
	Id                  string                                `json:"id"`
	DefaultValue        string                                `json:"defaultValue"`
	ValueType           entity.ValueType                      `json:"valueType" validate:"omitempty,oneof=boolean string number json"`
	Description         string                                `json:"description"`
	Project             string                                `json:"project"`
	EnvironmentSettings map[string]EnvironmentSettingsRequest `json:"environmentSettings" validate:"dive"`
}

// UpdateFeatureRequest is a partial update. The immutable fields are decoded only
// so their presence can be rejected.
type UpdateFeatureRequest struct {
	Id           json.RawMessage `json:"id"`
	Organization json.RawMessage `json:"organization"`
	DateCreated  json.RawMessage `json:"dateCreated"`
	DateUpdated  json.RawMessage `json:"dateUpdated"`

	DefaultValue        *string                               `json:"defaultValue"`
	ValueType           *entity.ValueType                     `json:"valueType" validate:"omitempty,oneof=boolean string number json"`
	Description         *string                               `json:"description"`
	Project             *string                               `json:"project"`
	EnvironmentSettings map[string]EnvironmentSettingsRequest `json:"environmentSettings" validate:"omitempty,dive"`
}

// TouchesImmutableFields is true when the body names id, organization or a date,
// even with a null value.
func (r UpdateFeatureRequest) TouchesImmutableFields() bool {
	return len(r.Id) > 0 || len(r.Organization) > 0 || len(r.DateCreated) > 0 || len(r.DateUpdated) > 0
}

func (r UpdateFeatureRequest) ToEntity() entity.FeatureUpdate {
	return entity.FeatureUpdate{
		DefaultValue:        r.DefaultValue,
		ValueType:           r.ValueType,
		Description:         r.Description,
		Project:             r.Project,
		EnvironmentSettings: ToEnvironmentSettings(r.EnvironmentSettings),
	}
}

type AddRuleRequest struct {
	Environment string      `json:"environment" validate:"required"`
	Rule        RuleRequest `json:"rule"`
}

// RulePatchRequest mirrors RuleRequest with every field optional.
type RulePatchRequest struct {
	Type          *entity.RuleType         `json:"type" validate:"omitempty,oneof=force rollout experiment"`
	Description   *string                  `json:"description"`
	Condition     *string                  `json:"condition"`
	Enabled       *bool                    `json:"enabled"`
	Value         *string                  `json:"value"`
	Coverage      *float64                 `json:"coverage" validate:"omitempty,gte=0,lte=1"`
	HashAttribute *string                  `json:"hashAttribute"`
	TrackingKey   *string                  `json:"trackingKey"`
	Values        []entity.ExperimentValue `json:"values"`
}

func (r RulePatchRequest) ToEntity() entity.RulePatch {
	return entity.RulePatch{
		Type:          r.Type,
		Description:   r.Description,
		Condition:     r.Condition,
		Enabled:       r.Enabled,
		Value:         r.Value,
		Coverage:      r.Coverage,
		HashAttribute: r.HashAttribute,
		TrackingKey:   r.TrackingKey,
		Values:        r.Values,
	}
}

type EditRuleRequest struct {
	Environment string           `json:"environment" validate:"required"`
	Index       *int             `json:"i" validate:"required"`
	Rule        RulePatchRequest `json:"rule"`
}

type DeleteRuleRequest struct {
	Environment string `json:"environment" validate:"required"`
	Index       *int   `json:"i" validate:"required"`
}

type MoveRuleRequest struct {
	Environment string `json:"environment" validate:"required"`
	From        *int   `json:"from" validate:"required"`
	To          *int   `json:"to" validate:"required"`
}

type ToggleEnvironmentRequest struct {
	Environment string `json:"environment" validate:"required"`
	State       *bool  `json:"state" validate:"required"`
}

type FeatureResponse struct {
	Id                  string                                `json:"id"`
	Organization        string                                `json:"organization"`
	DefaultValue        string                                `json:"defaultValue"`
	ValueType           entity.ValueType                      `json:"valueType"`
	Description         string                                `json:"description"`
	Project             string                                `json:"project"`
	EnvironmentSettings map[string]entity.EnvironmentSettings `json:"environmentSettings"`
	DateCreated         time.Time                             `json:"dateCreated"`
	DateUpdated         time.Time                             `json:"dateUpdated"`
}

func NewFeatureResponse(f *entity.Feature) *FeatureResponse {
	settings := f.EnvironmentSettings
	if settings == nil {
		settings = map[string]entity.EnvironmentSettings{}
	}
	return &FeatureResponse{
		Id:                  f.Id,
		Organization:        f.Organization,
		DefaultValue:        f.DefaultValue,
		ValueType:           f.ValueType,
		Description:         f.Description,
		Project:             f.Project,
		EnvironmentSettings: settings,
		DateCreated:         f.DateCreated,
		DateUpdated:         f.DateUpdated,
	}
}

func NewFeatureResponses(features []*entity.Feature) []*FeatureResponse {
	out := make([]*FeatureResponse, 0, len(features))
	for _, f := range features {
		out = append(out, NewFeatureResponse(f))
	}
	return out
}

type ExperimentResponse struct {
	Id          string                       `json:"id"`
	TrackingKey string                       `json:"trackingKey"`
	Name        string                       `json:"name"`
	Status      string                       `json:"status"`
	Variations  []entity.ExperimentVariation `json:"variations"`
	DateCreated time.Time                    `json:"dateCreated"`
	DateUpdated time.Time                    `json:"dateUpdated"`
}

func NewExperimentResponse(e *entity.Experiment) ExperimentResponse {
	return ExperimentResponse{
		Id:          e.Id,
		TrackingKey: e.TrackingKey,
		Name:        e.Name,
		Status:      e.Status,
		Variations:  e.Variations,
		DateCreated: e.DateCreated,
		DateUpdated: e.DateUpdated,
	}
}

type FeatureDetailResponse struct {
	Feature     *FeatureResponse              `json:"feature"`
	Experiments map[string]ExperimentResponse `json:"experiments"`
}
