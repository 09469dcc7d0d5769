// FILE: internal/service/feature_service.go
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"feature-flags-be/internal/dto"
	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/pkg/apperror"
	"feature-flags-be/internal/pkg/logger"
	"feature-flags-be/internal/repository/contract"
	"feature-flags-be/internal/repository/specification"
	"feature-flags-be/internal/repository/unitofwork"
)

const (
	featureModule = "FEATURE"
	// maxWriteAttempts bounds the read-modify-write loop when a concurrent writer wins.
	maxWriteAttempts = 3
)

type IFeatureService interface {
	Create(ctx context.Context, organizationId string, req *dto.CreateFeatureRequest) (*dto.FeatureResponse, error)
	AddRule(ctx context.Context, organizationId, featureId string, req *dto.AddRuleRequest) error
	EditRule(ctx context.Context, organizationId, featureId string, req *dto.EditRuleRequest) error
	ToggleEnvironment(ctx context.Context, organizationId, featureId string, req *dto.ToggleEnvironmentRequest) error
	MoveRule(ctx context.Context, organizationId, featureId string, req *dto.MoveRuleRequest) error
	DeleteRule(ctx context.Context, organizationId, featureId string, req *dto.DeleteRuleRequest) error
	Update(ctx context.Context, organizationId, featureId string, req *dto.UpdateFeatureRequest) (*dto.FeatureResponse, error)
	Delete(ctx context.Context, organizationId, featureId string) error
	Get(ctx context.Context, organizationId, featureId string) (*dto.FeatureDetailResponse, error)
	List(ctx context.Context, organizationId, project string) ([]*dto.FeatureResponse, error)
}

type featureService struct {
	uowFactory unitofwork.RepositoryFactory
	propagator IPropagatorService
	logger     logger.ILogger
	now        func() time.Time
}

func NewFeatureService(
	uowFactory unitofwork.RepositoryFactory,
	propagator IPropagatorService,
	logger logger.ILogger,
) IFeatureService {
	return &featureService{
		uowFactory: uowFactory,
		propagator: propagator,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// loadOrganization falls back to an organization with the default environments
// when the account service never synced it here.
func (s *featureService) loadOrganization(ctx context.Context, uow unitofwork.UnitOfWork, organizationId string) (*entity.Organization, error) {
	org, err := uow.OrganizationRepository().FindByID(ctx, organizationId)
	if err != nil {
		return nil, apperror.Internal("Failed to load organization", err)
	}
	if org == nil {
		org = &entity.Organization{Id: organizationId}
	}
	return org, nil
}

func (s *featureService) findFeature(ctx context.Context, uow unitofwork.UnitOfWork, organizationId, featureId string) (*entity.Feature, error) {
	feature, err := uow.FeatureRepository().FindOne(ctx,
		specification.ByOrganization{OrganizationID: organizationId},
		specification.ByID{ID: strings.ToLower(featureId)},
	)
	if err != nil {
		return nil, apperror.Internal("Failed to load feature", err)
	}
	if feature == nil {
		return nil, apperror.NotFound("Could not find feature")
	}
	return feature, nil
}

func (s *featureService) Create(ctx context.Context, organizationId string, req *dto.CreateFeatureRequest) (*dto.FeatureResponse, error) {
	if err := ValidateFeatureKey(req.Id); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	org, err := s.loadOrganization(ctx, uow, organizationId)
	if err != nil {
		return nil, err
	}

	now := s.now()
	feature := &entity.Feature{
		Id:                  strings.ToLower(req.Id),
		Organization:        organizationId,
		DefaultValue:        req.DefaultValue,
		ValueType:           req.ValueType,
		Description:         req.Description,
		Project:             req.Project,
		EnvironmentSettings: dto.ToEnvironmentSettings(req.EnvironmentSettings),
		DateCreated:         now,
		DateUpdated:         now,
	}
	if feature.ValueType == "" {
		feature.ValueType = entity.ValueTypeBoolean
	}
	if !feature.ValueType.Valid() {
		return nil, apperror.Validation("Invalid value type %q", feature.ValueType)
	}
	if feature.EnvironmentSettings == nil {
		feature.EnvironmentSettings = make(map[string]entity.EnvironmentSettings)
	}
	for _, env := range org.EnvironmentIds() {
		if _, ok := feature.EnvironmentSettings[env]; !ok {
			feature.EnvironmentSettings[env] = entity.EnvironmentSettings{Enabled: true, Rules: []entity.Rule{}}
		}
	}
	AddIdsToRules(feature.EnvironmentSettings)
	if err := validateEnvironmentSettings(feature.EnvironmentSettings); err != nil {
		return nil, err
	}

	existing, err := uow.FeatureRepository().FindOne(ctx,
		specification.ByOrganization{OrganizationID: organizationId},
		specification.ByID{ID: feature.Id},
	)
	if err != nil {
		return nil, apperror.Internal("Failed to create feature", err)
	}
	if existing != nil {
		return nil, apperror.Validation("Feature key '%s' already exists.", feature.Id)
	}

	if err := uow.FeatureRepository().Create(ctx, feature); err != nil {
		// a concurrent create won between the lookup and the insert
		if errors.Is(err, contract.ErrDuplicateFeature) {
			return nil, apperror.Validation("Feature key '%s' already exists.", feature.Id)
		}
		return nil, apperror.Internal("Failed to create feature", err)
	}

	s.logger.Info(featureModule, "Feature created", map[string]interface{}{
		"organization": organizationId,
		"feature":      feature.Id,
	})
	s.propagator.NotifyChanged(ctx, feature, ChangeFrom(org, feature))

	return dto.NewFeatureResponse(feature), nil
}

// mutate re-reads the feature, lets fn change a copy and writes the returned columns
// guarded by the feature version. A lost race is retried with fresh state.
func (s *featureService) mutate(
	ctx context.Context,
	organizationId, featureId string,
	fn func(org *entity.Organization, after *entity.Feature) ([]string, error),
) (*entity.Feature, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		uow := s.uowFactory.NewUnitOfWork(ctx)

		before, err := s.findFeature(ctx, uow, organizationId, featureId)
		if err != nil {
			return nil, err
		}
		org, err := s.loadOrganization(ctx, uow, organizationId)
		if err != nil {
			return nil, err
		}

		after := before.Clone()
		if after.EnvironmentSettings == nil {
			after.EnvironmentSettings = make(map[string]entity.EnvironmentSettings)
		}
		columns, err := fn(org, after)
		if err != nil {
			return nil, err
		}
		after.DateUpdated = s.now()

		err = uow.FeatureRepository().UpdateFields(ctx, after, columns...)
		if errors.Is(err, contract.ErrVersionConflict) {
			s.logger.Warn(featureModule, "Concurrent feature write, retrying", map[string]interface{}{
				"organization": organizationId,
				"feature":      before.Id,
				"attempt":      attempt,
			})
			continue
		}
		if err != nil {
			return nil, apperror.Internal("Failed to update feature", err)
		}

		if RequiresNotification(before, after) {
			s.propagator.NotifyChanged(ctx, after, ChangeFrom(org, before))
		}
		return after, nil
	}

	return nil, apperror.Conflict("Feature %s is being modified concurrently, please retry", featureId)
}

// mutateRules runs fn on the rules of one environment the feature already has.
func (s *featureService) mutateRules(ctx context.Context, organizationId, featureId, environment string, fn func(rules []entity.Rule) ([]entity.Rule, error)) error {
	_, err := s.mutate(ctx, organizationId, featureId, func(_ *entity.Organization, after *entity.Feature) ([]string, error) {
		settings, ok := after.EnvironmentSettings[environment]
		if !ok {
			return nil, apperror.NotFound("Unknown environment %s", environment)
		}
		rules, err := fn(settings.Rules)
		if err != nil {
			return nil, err
		}
		settings.Rules = rules
		after.EnvironmentSettings[environment] = settings
		return []string{contract.FeatureColumnEnvironmentSettings}, nil
	})
	return err
}

func (s *featureService) AddRule(ctx context.Context, organizationId, featureId string, req *dto.AddRuleRequest) error {
	rule := req.Rule.ToEntity()
	if rule.Id == "" {
		rule.Id = NewRuleId()
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	return s.mutateRules(ctx, organizationId, featureId, req.Environment, func(rules []entity.Rule) ([]entity.Rule, error) {
		return append(rules, rule), nil
	})
}

func (s *featureService) EditRule(ctx context.Context, organizationId, featureId string, req *dto.EditRuleRequest) error {
	if req.Index == nil {
		return apperror.Validation("Must specify rule index")
	}
	index := *req.Index
	patch := req.Rule.ToEntity()

	return s.mutateRules(ctx, organizationId, featureId, req.Environment, func(rules []entity.Rule) ([]entity.Rule, error) {
		if err := checkIndex(rules, index); err != nil {
			return nil, err
		}
		edited := patch.Apply(rules[index])
		if err := validateRule(edited); err != nil {
			return nil, err
		}
		rules[index] = edited
		return rules, nil
	})
}

func (s *featureService) MoveRule(ctx context.Context, organizationId, featureId string, req *dto.MoveRuleRequest) error {
	if req.From == nil || req.To == nil {
		return apperror.Validation("Must specify from and to")
	}
	from, to := *req.From, *req.To

	return s.mutateRules(ctx, organizationId, featureId, req.Environment, func(rules []entity.Rule) ([]entity.Rule, error) {
		if err := checkIndex(rules, from); err != nil {
			return nil, err
		}
		if err := checkIndex(rules, to); err != nil {
			return nil, err
		}
		return ArrayMove(rules, from, to), nil
	})
}

func (s *featureService) DeleteRule(ctx context.Context, organizationId, featureId string, req *dto.DeleteRuleRequest) error {
	if req.Index == nil {
		return apperror.Validation("Must specify rule index")
	}
	index := *req.Index

	return s.mutateRules(ctx, organizationId, featureId, req.Environment, func(rules []entity.Rule) ([]entity.Rule, error) {
		if err := checkIndex(rules, index); err != nil {
			return nil, err
		}
		out := make([]entity.Rule, 0, len(rules)-1)
		out = append(out, rules[:index]...)
		return append(out, rules[index+1:]...), nil
	})
}

func (s *featureService) ToggleEnvironment(ctx context.Context, organizationId, featureId string, req *dto.ToggleEnvironmentRequest) error {
	if req.State == nil {
		return apperror.Validation("Must specify state")
	}
	enabled := *req.State

	_, err := s.mutate(ctx, organizationId, featureId, func(org *entity.Organization, after *entity.Feature) ([]string, error) {
		settings, ok := after.EnvironmentSettings[req.Environment]
		if !ok {
			if !org.HasEnvironment(req.Environment) {
				return nil, apperror.NotFound("Unknown environment %s", req.Environment)
			}
			settings = entity.EnvironmentSettings{Rules: []entity.Rule{}}
		}
		settings.Enabled = enabled
		after.EnvironmentSettings[req.Environment] = settings
		return []string{contract.FeatureColumnEnvironmentSettings}, nil
	})
	return err
}

func (s *featureService) Update(ctx context.Context, organizationId, featureId string, req *dto.UpdateFeatureRequest) (*dto.FeatureResponse, error) {
	if req.TouchesImmutableFields() {
		return nil, apperror.Validation("Invalid update fields for feature")
	}
	update := req.ToEntity()
	if update.ValueType != nil && !update.ValueType.Valid() {
		return nil, apperror.Validation("Invalid value type %q", *update.ValueType)
	}
	if update.EnvironmentSettings != nil {
		AddIdsToRules(update.EnvironmentSettings)
		if err := validateEnvironmentSettings(update.EnvironmentSettings); err != nil {
			return nil, err
		}
	}

	after, err := s.mutate(ctx, organizationId, featureId, func(_ *entity.Organization, after *entity.Feature) ([]string, error) {
		return applyUpdate(after, update), nil
	})
	if err != nil {
		return nil, err
	}

	return dto.NewFeatureResponse(after), nil
}

// applyUpdate merges a partial update and returns the columns it touched.
func applyUpdate(f *entity.Feature, u entity.FeatureUpdate) []string {
	var columns []string
	if u.DefaultValue != nil {
		f.DefaultValue = *u.DefaultValue
		columns = append(columns, contract.FeatureColumnDefaultValue)
	}
	if u.ValueType != nil {
		f.ValueType = *u.ValueType
		columns = append(columns, contract.FeatureColumnValueType)
	}
	if u.Description != nil {
		f.Description = *u.Description
		columns = append(columns, contract.FeatureColumnDescription)
	}
	if u.Project != nil {
		f.Project = *u.Project
		columns = append(columns, contract.FeatureColumnProject)
	}
	if u.EnvironmentSettings != nil {
		// supplied environments replace stored ones, the rest are kept
		for env, settings := range entity.CloneEnvironmentSettings(u.EnvironmentSettings) {
			if settings.Rules == nil {
				settings.Rules = []entity.Rule{}
			}
			f.EnvironmentSettings[env] = settings
		}
		columns = append(columns, contract.FeatureColumnEnvironmentSettings)
	}
	return columns
}

func (s *featureService) Delete(ctx context.Context, organizationId, featureId string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	feature, err := s.findFeature(ctx, uow, organizationId, featureId)
	if apperror.Is(err, apperror.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	org, err := s.loadOrganization(ctx, uow, organizationId)
	if err != nil {
		return err
	}

	if err := uow.FeatureRepository().Delete(ctx, organizationId, feature.Id); err != nil {
		return apperror.Internal("Failed to delete feature", err)
	}

	s.logger.Info(featureModule, "Feature deleted", map[string]interface{}{
		"organization": organizationId,
		"feature":      feature.Id,
	})
	s.propagator.NotifyChanged(ctx, feature, ChangeFrom(org, feature))
	return nil
}

func (s *featureService) Get(ctx context.Context, organizationId, featureId string) (*dto.FeatureDetailResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	feature, err := s.findFeature(ctx, uow, organizationId, featureId)
	if err != nil {
		return nil, err
	}

	trackingKeys := make(map[string]struct{})
	for _, settings := range feature.EnvironmentSettings {
		for _, r := range settings.Rules {
			if r.Type == entity.RuleTypeExperiment && r.TrackingKey != "" {
				trackingKeys[r.TrackingKey] = struct{}{}
			}
		}
	}

	experiments := make(map[string]dto.ExperimentResponse, len(trackingKeys))
	for key := range trackingKeys {
		exp, err := uow.ExperimentRepository().FindByTrackingKey(ctx, organizationId, key)
		if err != nil {
			return nil, apperror.Internal("Failed to load experiments", err)
		}
		if exp != nil {
			experiments[key] = dto.NewExperimentResponse(exp)
		}
	}

	return &dto.FeatureDetailResponse{
		Feature:     dto.NewFeatureResponse(feature),
		Experiments: experiments,
	}, nil
}

func (s *featureService) List(ctx context.Context, organizationId, project string) ([]*dto.FeatureResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	features, err := uow.FeatureRepository().FindAll(ctx,
		specification.ByOrganization{OrganizationID: organizationId},
		specification.ByProject{Project: project},
	)
	if err != nil {
		return nil, apperror.Internal("Failed to list features", err)
	}

	return dto.NewFeatureResponses(features), nil
}
