package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"feature-flags-be/internal/dto"
	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/pkg/logger"
	"feature-flags-be/internal/websocket"
	"feature-flags-be/pkg/cache"
	pkgEvents "feature-flags-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type enqueued struct {
	name    string
	payload interface{}
}

type fakeEnqueuer struct {
	jobs []enqueued
	err  error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, name string, payload interface{}) error {
	f.jobs = append(f.jobs, enqueued{name: name, payload: payload})
	return f.err
}

type fakeEventPublisher struct {
	projects     [][]string
	environments [][]string
}

func (f *fakeEventPublisher) PublishFeatureUpdated(_ context.Context, _, _ string, projects, environments []string) {
	f.projects = append(f.projects, projects)
	f.environments = append(f.environments, environments)
}

type fakeStream struct {
	topics []string
}

func (f *fakeStream) Publish(_ context.Context, topic string, _ websocket.Message) {
	f.topics = append(f.topics, topic)
}

func warmCache(t *testing.T, c cache.DefinitionsCache, keys ...cache.Key) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, c.Set(context.Background(), k, []byte(`{}`)))
	}
}

func cached(t *testing.T, c cache.DefinitionsCache, k cache.Key) bool {
	t.Helper()
	_, found, err := c.Get(context.Background(), k)
	require.NoError(t, err)
	return found
}

func TestNotifyChanged(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute)
	queue := &fakeEnqueuer{}
	publisher := &fakeEventPublisher{}
	stream := &fakeStream{}
	svc := NewPropagatorService(c, queue, publisher, stream, logger.NewNopLogger())

	prodWeb := cache.Key{Organization: testOrg, Environment: "production", Project: "web"}
	prodAll := cache.Key{Organization: testOrg, Environment: "production"}
	devOld := cache.Key{Organization: testOrg, Environment: "dev", Project: "legacy"}
	qaAll := cache.Key{Organization: testOrg, Environment: "qa"}
	otherOrg := cache.Key{Organization: "org_2", Environment: "production"}
	warmCache(t, c, prodWeb, prodAll, devOld, qaAll, otherOrg)

	feature := &entity.Feature{
		Id:           "banner",
		Organization: testOrg,
		Project:      "web",
		EnvironmentSettings: map[string]entity.EnvironmentSettings{
			"production": {Enabled: true},
			"dev":        {Enabled: false},
		},
	}

	// dev was enabled before this change and the feature used to live in "legacy"
	svc.NotifyChanged(context.Background(), feature, Change{Environments: []string{"dev"}, Project: "legacy"})

	assert.False(t, cached(t, c, prodWeb))
	assert.False(t, cached(t, c, prodAll))
	assert.False(t, cached(t, c, devOld))
	assert.True(t, cached(t, c, qaAll))
	assert.True(t, cached(t, c, otherOrg))

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobFireWebhooks, queue.jobs[0].name)
	assert.Equal(t, FireWebhooksPayload{
		Organization: testOrg,
		Feature:      "banner",
		Environments: []string{"dev", "production"},
		Project:      "web",
	}, queue.jobs[0].payload)

	assert.Equal(t, [][]string{{"", "legacy", "web"}}, publisher.projects)
	assert.Equal(t, [][]string{{"dev", "production"}}, publisher.environments)
	assert.Equal(t, []string{testOrg + ":dev", testOrg + ":production"}, stream.topics)
}

func TestNotifyChangedCoversDisabledEnvironments(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute)
	queue := &fakeEnqueuer{}
	publisher := &fakeEventPublisher{}
	stream := &fakeStream{}
	svc := NewPropagatorService(c, queue, publisher, stream, logger.NewNopLogger())

	devAll := cache.Key{Organization: testOrg, Environment: "dev"}
	qaAll := cache.Key{Organization: testOrg, Environment: "qa"}
	warmCache(t, c, devAll, qaAll)

	feature := &entity.Feature{
		Id:           "banner",
		Organization: testOrg,
		EnvironmentSettings: map[string]entity.EnvironmentSettings{
			"production": {Enabled: true},
			"dev":        {Enabled: false},
		},
	}
	org := &entity.Organization{Id: testOrg, Environments: []entity.Environment{{Id: "dev"}, {Id: "production"}, {Id: "qa"}}}

	svc.NotifyChanged(context.Background(), feature, ChangeFrom(org, feature))

	// disabled and missing environments still serve the default value
	assert.False(t, cached(t, c, devAll))
	assert.False(t, cached(t, c, qaAll))

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, []string{"production"}, queue.jobs[0].payload.(FireWebhooksPayload).Environments)
	assert.Equal(t, [][]string{{"dev", "production", "qa"}}, publisher.environments)
	assert.Equal(t, []string{testOrg + ":dev", testOrg + ":production", testOrg + ":qa"}, stream.topics)
}

func TestDisabledEnvironmentPayloadFollowsChanges(t *testing.T) {
	ctx := context.Background()
	factory := newTestFactory(t)
	c := cache.NewMemoryCache(time.Minute)
	queue := &fakeEnqueuer{}
	propagator := NewPropagatorService(c, queue, nil, nil, logger.NewNopLogger())
	features := NewFeatureService(factory, propagator, logger.NewNopLogger())
	definitions := NewDefinitionsService(factory, c, logger.NewNopLogger())
	seedApiKey(t, factory, "key_dev", testOrg, "dev")

	devPayload := func() string {
		t.Helper()
		raw, err := definitions.GetPublicDefinitions(ctx, "key_dev", "")
		require.NoError(t, err)
		return string(raw)
	}

	_, err := features.Create(ctx, testOrg, &dto.CreateFeatureRequest{
		Id:           "banner",
		DefaultValue: "a",
		ValueType:    entity.ValueTypeString,
	})
	require.NoError(t, err)
	require.NoError(t, features.ToggleEnvironment(ctx, testOrg, "banner", &dto.ToggleEnvironmentRequest{
		Environment: "dev",
		State:       boolPtr(false),
	}))
	assert.JSONEq(t, `{"banner":{"defaultValue":"a"}}`, devPayload())

	_, err = features.Update(ctx, testOrg, "banner", &dto.UpdateFeatureRequest{DefaultValue: strPtr("b")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"banner":{"defaultValue":"b"}}`, devPayload())

	// webhooks still only fire for environments where the feature is live
	last := queue.jobs[len(queue.jobs)-1].payload.(FireWebhooksPayload)
	assert.Equal(t, []string{"production"}, last.Environments)

	require.NoError(t, features.Delete(ctx, testOrg, "banner"))
	assert.JSONEq(t, `{}`, devPayload())
}

func TestNotifyChangedContinuesWhenEnqueueFails(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute)
	queue := &fakeEnqueuer{err: errors.New("queue closed")}
	stream := &fakeStream{}
	svc := NewPropagatorService(c, queue, nil, stream, logger.NewNopLogger())

	feature := &entity.Feature{
		Id:                  "banner",
		Organization:        testOrg,
		EnvironmentSettings: map[string]entity.EnvironmentSettings{"production": {Enabled: true}},
	}
	svc.NotifyChanged(context.Background(), feature, Change{})

	assert.Len(t, queue.jobs, 1)
	assert.Equal(t, []string{testOrg + ":production"}, stream.topics)
}

func TestHandleFeatureUpdatedInvalidatesCache(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute)
	svc := NewPropagatorService(c, &fakeEnqueuer{}, nil, nil, logger.NewNopLogger())

	prodWeb := cache.Key{Organization: testOrg, Environment: "production", Project: "web"}
	devLegacy := cache.Key{Organization: testOrg, Environment: "dev", Project: "legacy"}
	devAll := cache.Key{Organization: testOrg, Environment: "dev"}
	qaAll := cache.Key{Organization: testOrg, Environment: "qa"}
	warmCache(t, c, prodWeb, devLegacy, devAll, qaAll)

	// payloads arrive as decoded JSON
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"organization":"org_1","projects":["","legacy","web"],"environments":["dev","production"]}`), &data))

	err := svc.HandleFeatureUpdated(context.Background(), pkgEvents.BaseEvent{Type: pkgEvents.FeatureUpdated, Data: data})
	require.NoError(t, err)
	assert.False(t, cached(t, c, prodWeb))
	assert.False(t, cached(t, c, devLegacy))
	assert.False(t, cached(t, c, devAll))
	assert.True(t, cached(t, c, qaAll))
}
