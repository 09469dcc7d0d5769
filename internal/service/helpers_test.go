package service

import (
	"context"
	"sync"
	"testing"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/model"
	"feature-flags-be/internal/repository/unitofwork"
	"feature-flags-be/pkg/database"
	pkgEvents "feature-flags-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewSQLiteDB("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Organization{},
		&model.ApiKey{},
		&model.Feature{},
		&model.RealtimeUsage{},
		&model.Experiment{},
		&model.Webhook{},
	))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestFactory(t *testing.T) unitofwork.RepositoryFactory {
	t.Helper()
	return unitofwork.NewRepositoryFactory(newTestDB(t))
}

func seedApiKey(t *testing.T, factory unitofwork.RepositoryFactory, key, organization, environment string) {
	t.Helper()
	err := factory.NewUnitOfWork(context.Background()).OrganizationRepository().CreateApiKey(context.Background(), &entity.ApiKey{
		Key:          key,
		Organization: organization,
		Environment:  environment,
	})
	require.NoError(t, err)
}

type notification struct {
	feature      *entity.Feature
	environments []string
	affected     []string
	project      string
}

type fakePropagator struct {
	mu            sync.Mutex
	notifications []notification
}

func (f *fakePropagator) NotifyChanged(_ context.Context, feature *entity.Feature, change Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, notification{
		feature:      feature.Clone(),
		environments: append([]string(nil), change.Environments...),
		affected:     append([]string(nil), change.Affected...),
		project:      change.Project,
	})
}

func (f *fakePropagator) HandleFeatureUpdated(context.Context, pkgEvents.Event) error {
	return nil
}

func (f *fakePropagator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notifications)
}

func (f *fakePropagator) last() notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notifications[len(f.notifications)-1]
}

func intPtr(i int) *int { return &i }
func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }
func floatPtr(f float64) *float64 { return &f }
