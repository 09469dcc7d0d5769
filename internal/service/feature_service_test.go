package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"feature-flags-be/internal/dto"
	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/pkg/apperror"
	"feature-flags-be/internal/pkg/logger"
	"feature-flags-be/internal/repository/unitofwork"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrg = "org_1"

func newFeatureServiceForTest(t *testing.T) (IFeatureService, *fakePropagator, unitofwork.RepositoryFactory) {
	t.Helper()
	factory := newTestFactory(t)
	propagator := &fakePropagator{}
	return NewFeatureService(factory, propagator, logger.NewNopLogger()), propagator, factory
}

func createFeature(t *testing.T, svc IFeatureService, id string, rules ...dto.RuleRequest) *dto.FeatureResponse {
	t.Helper()
	res, err := svc.Create(context.Background(), testOrg, &dto.CreateFeatureRequest{
		Id:           id,
		DefaultValue: "false",
		ValueType:    entity.ValueTypeBoolean,
		EnvironmentSettings: map[string]dto.EnvironmentSettingsRequest{
			"production": {Enabled: true, Rules: rules},
		},
	})
	require.NoError(t, err)
	return res
}

func getFeature(t *testing.T, svc IFeatureService, id string) *dto.FeatureResponse {
	t.Helper()
	res, err := svc.Get(context.Background(), testOrg, id)
	require.NoError(t, err)
	return res.Feature
}

func forceRule(value string) dto.RuleRequest {
	return dto.RuleRequest{Type: entity.RuleTypeForce, Value: value}
}

func TestCreateFeature(t *testing.T) {
	svc, propagator, _ := newFeatureServiceForTest(t)

	res := createFeature(t, svc, "Checkout-V2", forceRule("true"))

	assert.Equal(t, "checkout-v2", res.Id)
	assert.Equal(t, testOrg, res.Organization)
	// default environments are filled in
	assert.Contains(t, res.EnvironmentSettings, "dev")
	require.Len(t, res.EnvironmentSettings["production"].Rules, 1)
	assert.Regexp(t, `^fr_`, res.EnvironmentSettings["production"].Rules[0].Id)
	assert.True(t, res.EnvironmentSettings["production"].Rules[0].Enabled)

	require.Equal(t, 1, propagator.count())
	assert.Equal(t, "checkout-v2", propagator.last().feature.Id)
}

func TestCreateFeatureRejectsBadInput(t *testing.T) {
	svc, _, _ := newFeatureServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, testOrg, &dto.CreateFeatureRequest{Id: "bad key"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	createFeature(t, svc, "dup")
	_, err = svc.Create(ctx, testOrg, &dto.CreateFeatureRequest{Id: "DUP"})
	require.Error(t, err)
	assert.Equal(t, "Feature key 'dup' already exists.", apperror.From(err).Message)

	// the same key is free in another organization
	_, err = svc.Create(ctx, "org_2", &dto.CreateFeatureRequest{Id: "dup"})
	assert.NoError(t, err)

	_, err = svc.Create(ctx, testOrg, &dto.CreateFeatureRequest{Id: "palette", ValueType: "color"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = svc.Get(ctx, testOrg, "palette")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestCreateFeatureConcurrentDuplicates(t *testing.T) {
	svc, _, _ := newFeatureServiceForTest(t)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), testOrg, &dto.CreateFeatureRequest{Id: "banner"})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		// losers see the same message whether the lookup or the insert caught them
		assert.Equal(t, "Feature key 'banner' already exists.", apperror.From(err).Message)
		assert.True(t, apperror.Is(err, apperror.KindValidation))
	}
	assert.Equal(t, 1, created)
}

func TestRuleOperations(t *testing.T) {
	svc, propagator, _ := newFeatureServiceForTest(t)
	ctx := context.Background()
	createFeature(t, svc, "banner", forceRule("a"), forceRule("b"))

	require.NoError(t, svc.AddRule(ctx, testOrg, "banner", &dto.AddRuleRequest{
		Environment: "production",
		Rule:        forceRule("c"),
	}))
	rules := getFeature(t, svc, "banner").EnvironmentSettings["production"].Rules
	require.Len(t, rules, 3)
	assert.Equal(t, "c", rules[2].Value)
	assert.NotEmpty(t, rules[2].Id)

	require.NoError(t, svc.MoveRule(ctx, testOrg, "banner", &dto.MoveRuleRequest{
		Environment: "production",
		From:        intPtr(2),
		To:          intPtr(0),
	}))
	rules = getFeature(t, svc, "banner").EnvironmentSettings["production"].Rules
	assert.Equal(t, []string{"c", "a", "b"}, []string{rules[0].Value, rules[1].Value, rules[2].Value})

	movedId := rules[0].Id
	require.NoError(t, svc.EditRule(ctx, testOrg, "banner", &dto.EditRuleRequest{
		Environment: "production",
		Index:       intPtr(0),
		Rule:        dto.RulePatchRequest{Value: strPtr("z")},
	}))
	rules = getFeature(t, svc, "banner").EnvironmentSettings["production"].Rules
	assert.Equal(t, "z", rules[0].Value)
	assert.Equal(t, movedId, rules[0].Id, "edits keep the rule id")

	require.NoError(t, svc.DeleteRule(ctx, testOrg, "banner", &dto.DeleteRuleRequest{
		Environment: "production",
		Index:       intPtr(1),
	}))
	rules = getFeature(t, svc, "banner").EnvironmentSettings["production"].Rules
	assert.Equal(t, []string{"z", "b"}, []string{rules[0].Value, rules[1].Value})

	// create + add + move + edit + delete
	assert.Equal(t, 5, propagator.count())
}

func TestRuleOperationErrors(t *testing.T) {
	svc, _, _ := newFeatureServiceForTest(t)
	ctx := context.Background()
	createFeature(t, svc, "banner", forceRule("a"))

	err := svc.EditRule(ctx, testOrg, "banner", &dto.EditRuleRequest{Environment: "production", Index: intPtr(5)})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	assert.Equal(t, "Invalid rule index 5", apperror.From(err).Message)

	err = svc.DeleteRule(ctx, testOrg, "banner", &dto.DeleteRuleRequest{Environment: "staging", Index: intPtr(0)})
	require.Error(t, err)
	assert.Equal(t, "Unknown environment staging", apperror.From(err).Message)

	err = svc.AddRule(ctx, testOrg, "missing", &dto.AddRuleRequest{Environment: "production", Rule: forceRule("x")})
	require.Error(t, err)
	assert.Equal(t, "Could not find feature", apperror.From(err).Message)

	err = svc.AddRule(ctx, "org_2", "banner", &dto.AddRuleRequest{Environment: "production", Rule: forceRule("x")})
	assert.True(t, apperror.Is(err, apperror.KindNotFound), "features of other organizations are invisible")

	err = svc.MoveRule(ctx, testOrg, "banner", &dto.MoveRuleRequest{Environment: "production"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestEditRuleDescriptionDoesNotNotify(t *testing.T) {
	svc, propagator, _ := newFeatureServiceForTest(t)
	ctx := context.Background()
	createFeature(t, svc, "banner", forceRule("a"))
	before := propagator.count()

	require.NoError(t, svc.EditRule(ctx, testOrg, "banner", &dto.EditRuleRequest{
		Environment: "production",
		Index:       intPtr(0),
		Rule:        dto.RulePatchRequest{Description: strPtr("just a note")},
	}))

	assert.Equal(t, before, propagator.count())
	assert.Equal(t, "just a note", getFeature(t, svc, "banner").EnvironmentSettings["production"].Rules[0].Description)
}

func TestToggleEnvironment(t *testing.T) {
	svc, propagator, _ := newFeatureServiceForTest(t)
	ctx := context.Background()
	createFeature(t, svc, "banner")

	require.NoError(t, svc.ToggleEnvironment(ctx, testOrg, "banner", &dto.ToggleEnvironmentRequest{
		Environment: "production",
		State:       boolPtr(false),
	}))
	assert.False(t, getFeature(t, svc, "banner").EnvironmentSettings["production"].Enabled)

	// the notification still covers the environment that was just disabled
	assert.Contains(t, propagator.last().environments, "production")

	err := svc.ToggleEnvironment(ctx, testOrg, "banner", &dto.ToggleEnvironmentRequest{
		Environment: "qa",
		State:       boolPtr(true),
	})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestUpdateFeature(t *testing.T) {
	svc, propagator, _ := newFeatureServiceForTest(t)
	ctx := context.Background()
	created := createFeature(t, svc, "banner", forceRule("a"))
	before := propagator.count()

	res, err := svc.Update(ctx, testOrg, "banner", &dto.UpdateFeatureRequest{Description: strPtr("shown on top")})
	require.NoError(t, err)
	assert.Equal(t, "shown on top", res.Description)
	assert.Equal(t, before, propagator.count(), "description changes are not propagated")

	res, err = svc.Update(ctx, testOrg, "banner", &dto.UpdateFeatureRequest{Project: strPtr("web")})
	require.NoError(t, err)
	assert.Equal(t, "web", res.Project)
	require.Equal(t, before+1, propagator.count())
	assert.Equal(t, "", propagator.last().project, "the previous project is reported")

	// untouched environments survive a partial settings update
	_, err = svc.Update(ctx, testOrg, "banner", &dto.UpdateFeatureRequest{
		EnvironmentSettings: map[string]dto.EnvironmentSettingsRequest{"dev": {Enabled: false}},
	})
	require.NoError(t, err)
	got := getFeature(t, svc, "banner")
	assert.Equal(t, created.EnvironmentSettings["production"].Rules[0].Id, got.EnvironmentSettings["production"].Rules[0].Id)
	assert.False(t, got.EnvironmentSettings["dev"].Enabled)

	immutable := []string{
		`{"id":"other"}`,
		`{"id":null}`,
		`{"organization":null}`,
		`{"dateCreated":"2020-01-01T00:00:00Z"}`,
		`{"dateUpdated":null,"description":"x"}`,
	}
	for _, body := range immutable {
		var req dto.UpdateFeatureRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req))
		_, err = svc.Update(ctx, testOrg, "banner", &req)
		assert.True(t, apperror.Is(err, apperror.KindValidation), body)
	}
	assert.Equal(t, "shown on top", getFeature(t, svc, "banner").Description)
}

func TestDeleteFeature(t *testing.T) {
	svc, propagator, _ := newFeatureServiceForTest(t)
	ctx := context.Background()
	createFeature(t, svc, "banner", forceRule("a"))

	require.NoError(t, svc.Delete(ctx, testOrg, "banner"))
	assert.Equal(t, "banner", propagator.last().feature.Id)
	assert.Equal(t, []string{"dev", "production"}, propagator.last().environments)

	_, err := svc.Get(ctx, testOrg, "banner")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	count := propagator.count()
	require.NoError(t, svc.Delete(ctx, testOrg, "banner"), "deleting twice is not an error")
	assert.Equal(t, count, propagator.count())
}

func TestGetJoinsExperiments(t *testing.T) {
	svc, _, factory := newFeatureServiceForTest(t)
	ctx := context.Background()
	createFeature(t, svc, "pricing", dto.RuleRequest{
		Type:        entity.RuleTypeExperiment,
		TrackingKey: "pricing-test",
		Values:      []entity.ExperimentValue{{Value: "true", Weight: 0.5}, {Value: "false", Weight: 0.5}},
	})

	require.NoError(t, factory.NewUnitOfWork(ctx).ExperimentRepository().Create(ctx, &entity.Experiment{
		Id:           "exp_1",
		Organization: testOrg,
		TrackingKey:  "pricing-test",
		Name:         "Pricing test",
		Status:       "running",
	}))

	res, err := svc.Get(ctx, testOrg, "pricing")
	require.NoError(t, err)
	require.Contains(t, res.Experiments, "pricing-test")
	assert.Equal(t, "Pricing test", res.Experiments["pricing-test"].Name)
}

func TestListFiltersByProject(t *testing.T) {
	svc, _, _ := newFeatureServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, testOrg, &dto.CreateFeatureRequest{Id: "a", Project: "web"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, testOrg, &dto.CreateFeatureRequest{Id: "b", Project: "mobile"})
	require.NoError(t, err)

	all, err := svc.List(ctx, testOrg, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	web, err := svc.List(ctx, testOrg, "web")
	require.NoError(t, err)
	require.Len(t, web, 1)
	assert.Equal(t, "a", web[0].Id)
}

func TestConcurrentRuleEditsBothLand(t *testing.T) {
	svc, _, _ := newFeatureServiceForTest(t)
	ctx := context.Background()
	createFeature(t, svc, "banner", forceRule("a"), forceRule("b"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, value := range []string{"x", "y"} {
		wg.Add(1)
		go func(i int, value string) {
			defer wg.Done()
			errs[i] = svc.EditRule(ctx, testOrg, "banner", &dto.EditRuleRequest{
				Environment: "production",
				Index:       intPtr(i),
				Rule:        dto.RulePatchRequest{Value: strPtr(value)},
			})
		}(i, value)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	rules := getFeature(t, svc, "banner").EnvironmentSettings["production"].Rules
	assert.Equal(t, "x", rules[0].Value)
	assert.Equal(t, "y", rules[1].Value)
}
