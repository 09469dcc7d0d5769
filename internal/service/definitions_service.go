// FILE: internal/service/definitions_service.go
package service

import (
	"context"
	"encoding/json"
	"time"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/pkg/apperror"
	"feature-flags-be/internal/pkg/logger"
	"feature-flags-be/internal/repository/specification"
	"feature-flags-be/internal/repository/unitofwork"
	"feature-flags-be/pkg/cache"
	"feature-flags-be/pkg/metrics"

	"golang.org/x/sync/singleflight"
)

const (
	definitionsModule  = "DEFINITIONS"
	defaultEnvironment = "production"
)

// DefinitionRule is one rule as SDKs evaluate it.
type DefinitionRule struct {
	Condition     json.RawMessage `json:"condition,omitempty"`
	Force         interface{}     `json:"force,omitempty"`
	Key           string          `json:"key,omitempty"`
	Variations    []interface{}   `json:"variations,omitempty"`
	Weights       []float64       `json:"weights,omitempty"`
	Coverage      *float64        `json:"coverage,omitempty"`
	HashAttribute string          `json:"hashAttribute,omitempty"`
}

type FeatureDefinition struct {
	DefaultValue interface{}      `json:"defaultValue"`
	Rules        []DefinitionRule `json:"rules,omitempty"`
}

// DefinitionsPayload maps feature key to its public definition.
type DefinitionsPayload map[string]FeatureDefinition

type IDefinitionsService interface {
	// Compile builds the payload of one environment straight from storage.
	Compile(ctx context.Context, organizationId, environment, project string) (DefinitionsPayload, error)
	// GetPublicDefinitions resolves the API key and returns the cached, serialized payload.
	GetPublicDefinitions(ctx context.Context, apiKey, project string) (json.RawMessage, error)
	// ResolveApiKey returns the key with its environment defaulted, or an UpstreamAuth error.
	ResolveApiKey(ctx context.Context, apiKey string) (*entity.ApiKey, error)
}

type definitionsService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      cache.DefinitionsCache
	logger     logger.ILogger
	group      singleflight.Group
}

func NewDefinitionsService(
	uowFactory unitofwork.RepositoryFactory,
	definitionsCache cache.DefinitionsCache,
	logger logger.ILogger,
) IDefinitionsService {
	return &definitionsService{
		uowFactory: uowFactory,
		cache:      definitionsCache,
		logger:     logger,
	}
}

func (s *definitionsService) Compile(ctx context.Context, organizationId, environment, project string) (DefinitionsPayload, error) {
	start := time.Now()
	defer func() {
		metrics.DefinitionsCompileDuration.Observe(time.Since(start).Seconds())
	}()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	features, err := uow.FeatureRepository().FindAll(ctx,
		specification.ByOrganization{OrganizationID: organizationId},
		specification.ByProject{Project: project},
	)
	if err != nil {
		return nil, apperror.Internal("Failed to get features", err)
	}

	payload := make(DefinitionsPayload, len(features))
	for _, f := range features {
		payload[f.Id] = compileFeature(f, environment)
	}
	return payload, nil
}

// compileFeature keeps features whose environment is disabled or missing,
// with their default value and no rules.
func compileFeature(f *entity.Feature, environment string) FeatureDefinition {
	def := FeatureDefinition{DefaultValue: DecodeValue(f.ValueType, f.DefaultValue)}

	settings, ok := f.EnvironmentSettings[environment]
	if !ok || !settings.Enabled {
		return def
	}

	for _, r := range settings.Rules {
		if !r.Enabled {
			continue
		}
		rule, ok := compileRule(f, r)
		if !ok {
			continue
		}
		def.Rules = append(def.Rules, rule)
	}
	return def
}

func compileRule(f *entity.Feature, r entity.Rule) (DefinitionRule, bool) {
	var rule DefinitionRule
	if r.Condition != "" && r.Condition != "{}" {
		// an unparseable condition would otherwise apply the rule to everyone
		if !json.Valid([]byte(r.Condition)) {
			return rule, false
		}
		rule.Condition = json.RawMessage(r.Condition)
	}

	switch r.Type {
	case entity.RuleTypeForce:
		rule.Force = DecodeValue(f.ValueType, r.Value)
	case entity.RuleTypeRollout:
		rule.Force = DecodeValue(f.ValueType, r.Value)
		coverage := 1.0
		if r.Coverage != nil {
			coverage = *r.Coverage
		}
		rule.Coverage = &coverage
		rule.HashAttribute = r.HashAttribute
	case entity.RuleTypeExperiment:
		rule.Key = r.TrackingKey
		if rule.Key == "" {
			rule.Key = f.Id
		}
		rule.Variations = make([]interface{}, 0, len(r.Values))
		rule.Weights = make([]float64, 0, len(r.Values))
		for _, v := range r.Values {
			rule.Variations = append(rule.Variations, DecodeValue(f.ValueType, v.Value))
			rule.Weights = append(rule.Weights, v.Weight)
		}
		if r.Coverage != nil {
			c := *r.Coverage
			rule.Coverage = &c
		}
		rule.HashAttribute = r.HashAttribute
	default:
		return rule, false
	}
	return rule, true
}

func (s *definitionsService) ResolveApiKey(ctx context.Context, apiKey string) (*entity.ApiKey, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	key, err := uow.OrganizationRepository().FindApiKey(ctx, apiKey)
	if err != nil {
		return nil, apperror.Internal("Failed to get features", err)
	}
	if key == nil {
		return nil, apperror.InvalidApiKey()
	}
	if key.Environment == "" {
		key.Environment = defaultEnvironment
	}
	return key, nil
}

func (s *definitionsService) GetPublicDefinitions(ctx context.Context, apiKey, project string) (json.RawMessage, error) {
	key, err := s.ResolveApiKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	environment := key.Environment
	cacheKey := cache.Key{Organization: key.Organization, Environment: environment, Project: project}

	cached, found, err := s.cache.Get(ctx, cacheKey)
	switch {
	case err != nil:
		metrics.DefinitionsCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn(definitionsModule, "Definitions cache read failed", map[string]interface{}{
			"key":   cacheKey.String(),
			"error": err.Error(),
		})
	case found:
		metrics.DefinitionsCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.DefinitionsCacheLookups.WithLabelValues("miss").Inc()
	}

	v, err, _ := s.group.Do(cacheKey.String(), func() (interface{}, error) {
		// shared by every waiting caller, so it must not die with the first request
		buildCtx := context.WithoutCancel(ctx)
		payload, err := s.Compile(buildCtx, key.Organization, environment, project)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, apperror.Internal("Failed to get features", err)
		}
		if err := s.cache.Set(buildCtx, cacheKey, b); err != nil {
			s.logger.Warn(definitionsModule, "Definitions cache write failed", map[string]interface{}{
				"key":   cacheKey.String(),
				"error": err.Error(),
			})
		}
		return json.RawMessage(b), nil
	})
	if err != nil {
		s.logger.Error(definitionsModule, "Failed to compile definitions", map[string]interface{}{
			"organization": key.Organization,
			"environment":  environment,
			"error":        err.Error(),
		})
		return nil, err
	}
	return v.(json.RawMessage), nil
}
