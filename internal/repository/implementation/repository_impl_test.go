package implementation

import (
	"context"
	"testing"
	"time"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/model"
	"feature-flags-be/internal/repository/contract"
	"feature-flags-be/internal/repository/specification"
	"feature-flags-be/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLiteDB("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Feature{}, &model.Organization{}, &model.ApiKey{}, &model.RealtimeUsage{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newFeature() *entity.Feature {
	now := time.Now().UTC()
	return &entity.Feature{
		Id:           "banner",
		Organization: "org_1",
		DefaultValue: "false",
		ValueType:    entity.ValueTypeBoolean,
		EnvironmentSettings: map[string]entity.EnvironmentSettings{
			"production": {Enabled: true, Rules: []entity.Rule{{Id: "fr_1", Type: entity.RuleTypeForce, Value: "true", Enabled: true}}},
		},
		DateCreated: now,
		DateUpdated: now,
	}
}

func TestFeatureRepositoryRoundTrip(t *testing.T) {
	repo := NewFeatureRepository(newTestDB(t))
	ctx := context.Background()

	f := newFeature()
	require.NoError(t, repo.Create(ctx, f))
	assert.Equal(t, int64(1), f.Version)

	got, err := repo.FindOne(ctx,
		specification.ByOrganization{OrganizationID: "org_1"},
		specification.ByID{ID: "banner"},
	)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, f.EnvironmentSettings, got.EnvironmentSettings)

	missing, err := repo.FindOne(ctx,
		specification.ByOrganization{OrganizationID: "org_2"},
		specification.ByID{ID: "banner"},
	)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFeatureRepositoryCreateDuplicate(t *testing.T) {
	repo := NewFeatureRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newFeature()))

	err := repo.Create(ctx, newFeature())
	assert.ErrorIs(t, err, contract.ErrDuplicateFeature)

	// keys are only unique within an organization
	other := newFeature()
	other.Organization = "org_2"
	assert.NoError(t, repo.Create(ctx, other))
}

func TestFeatureRepositoryUpdateFieldsIsCompareAndSwap(t *testing.T) {
	repo := NewFeatureRepository(newTestDB(t))
	ctx := context.Background()

	f := newFeature()
	require.NoError(t, repo.Create(ctx, f))

	stale := *f

	f.Description = "first writer"
	require.NoError(t, repo.UpdateFields(ctx, f, contract.FeatureColumnDescription))
	assert.Equal(t, int64(2), f.Version)

	stale.Description = "second writer"
	err := repo.UpdateFields(ctx, &stale, contract.FeatureColumnDescription)
	assert.ErrorIs(t, err, contract.ErrVersionConflict)
	assert.Equal(t, int64(1), stale.Version)

	got, err := repo.FindOne(ctx, specification.ByOrganization{OrganizationID: "org_1"}, specification.ByID{ID: "banner"})
	require.NoError(t, err)
	assert.Equal(t, "first writer", got.Description)
	assert.Equal(t, int64(2), got.Version)

	assert.Error(t, repo.UpdateFields(ctx, f, "organization"), "only whitelisted columns can be written")
}

func TestFeatureRepositoryUpdateFieldsLeavesOtherColumns(t *testing.T) {
	repo := NewFeatureRepository(newTestDB(t))
	ctx := context.Background()

	f := newFeature()
	require.NoError(t, repo.Create(ctx, f))

	// a copy that changed the default value in memory but only writes the description
	f.DefaultValue = "true"
	f.Description = "changed"
	require.NoError(t, repo.UpdateFields(ctx, f, contract.FeatureColumnDescription))

	got, err := repo.FindOne(ctx, specification.ByOrganization{OrganizationID: "org_1"}, specification.ByID{ID: "banner"})
	require.NoError(t, err)
	assert.Equal(t, "false", got.DefaultValue)
	assert.Equal(t, "changed", got.Description)
}

func TestUsageRepositoryDeleteBefore(t *testing.T) {
	repo := NewUsageRepository(newTestDB(t))
	ctx := context.Background()

	for _, hour := range []string{"2024-03-01T09", "2024-03-01T10", "2024-03-01T11"} {
		require.NoError(t, repo.Create(ctx, &entity.UsageBucket{Organization: "org_1", Hour: hour}))
	}

	deleted, err := repo.DeleteBefore(ctx, "2024-03-01T11")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	kept, err := repo.FindByHour(ctx, "org_1", "2024-03-01T11")
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.NotNil(t, kept.Features)
}

func TestOrganizationRepositoryApiKeys(t *testing.T) {
	repo := NewOrganizationRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.CreateApiKey(ctx, &entity.ApiKey{Key: "key_1", Organization: "org_1", Environment: "dev"}))

	key, err := repo.FindApiKey(ctx, "key_1")
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, "org_1", key.Organization)
	assert.Equal(t, "dev", key.Environment)

	missing, err := repo.FindApiKey(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	org, err := repo.FindByID(ctx, "org_1")
	require.NoError(t, err)
	assert.Nil(t, org)
}
