// FILE: internal/service/usage_service.go
package service

import (
	"context"
	"time"

	"feature-flags-be/internal/dto"
	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/pkg/apperror"
	"feature-flags-be/internal/pkg/logger"
	"feature-flags-be/internal/repository/unitofwork"
)

const (
	usageModule = "USAGE"
	// WindowMinutes is the length of the realtime usage window.
	WindowMinutes = 30
)

type IUsageService interface {
	// Window returns, per feature, WindowMinutes samples ordered oldest minute first.
	Window(ctx context.Context, organizationId string, now time.Time) (map[string][]entity.UsageSample, error)
	GetRealtimeUsage(ctx context.Context, organizationId string) (map[string]dto.FeatureRealtimeUsage, error)
	// Record adds SDK-reported counts to the current minute of the current hour.
	Record(ctx context.Context, apiKey string, req *dto.RecordUsageRequest) error
	// Prune deletes hourly buckets older than the retention period.
	Prune(ctx context.Context) (int64, error)
}

type usageService struct {
	uowFactory unitofwork.RepositoryFactory
	retention  time.Duration
	logger     logger.ILogger
	now        func() time.Time
}

func NewUsageService(uowFactory unitofwork.RepositoryFactory, retention time.Duration, logger logger.ILogger) IUsageService {
	return &usageService{
		uowFactory: uowFactory,
		retention:  retention,
		logger:     logger,
		now:        time.Now,
	}
}

// Window resolves each of the WindowMinutes slots by its minute offset from now,
// reading the previous hour only when the window reaches into it.
func (s *usageService) Window(ctx context.Context, organizationId string, now time.Time) (map[string][]entity.UsageSample, error) {
	now = now.UTC()
	uow := s.uowFactory.NewUnitOfWork(ctx)

	current, err := uow.UsageRepository().FindByHour(ctx, organizationId, entity.HourKey(now))
	if err != nil {
		return nil, apperror.Internal("Failed to load usage", err)
	}

	var previous *entity.UsageBucket
	if now.Minute() < WindowMinutes-1 {
		previous, err = uow.UsageRepository().FindByHour(ctx, organizationId, entity.HourKey(now.Add(-time.Hour)))
		if err != nil {
			return nil, apperror.Internal("Failed to load usage", err)
		}
	}

	keys := make(map[string]struct{})
	for _, b := range []*entity.UsageBucket{current, previous} {
		if b == nil {
			continue
		}
		for feature := range b.Features {
			keys[feature] = struct{}{}
		}
	}

	usage := make(map[string][]entity.UsageSample, len(keys))
	for feature := range keys {
		samples := make([]entity.UsageSample, WindowMinutes)
		for slot := 0; slot < WindowMinutes; slot++ {
			offset := WindowMinutes - 1 - slot
			minute := now.Minute() - offset
			bucket := current
			if minute < 0 {
				minute += entity.MinutesPerHour
				bucket = previous
			}
			samples[slot] = sampleAt(bucket, feature, minute)
		}
		usage[feature] = samples
	}
	return usage, nil
}

func sampleAt(b *entity.UsageBucket, feature string, minute int) entity.UsageSample {
	if b == nil {
		return entity.UsageSample{}
	}
	f, ok := b.Features[feature]
	if !ok {
		return entity.UsageSample{}
	}
	return entity.UsageSample{Used: f.Used[minute], Skipped: f.Skipped[minute]}
}

func (s *usageService) GetRealtimeUsage(ctx context.Context, organizationId string) (map[string]dto.FeatureRealtimeUsage, error) {
	window, err := s.Window(ctx, organizationId, s.now())
	if err != nil {
		return nil, err
	}
	out := make(map[string]dto.FeatureRealtimeUsage, len(window))
	for feature, samples := range window {
		out[feature] = dto.FeatureRealtimeUsage{Realtime: samples}
	}
	return out, nil
}

func (s *usageService) Record(ctx context.Context, apiKey string, req *dto.RecordUsageRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	key, err := uow.OrganizationRepository().FindApiKey(ctx, apiKey)
	if err != nil {
		return apperror.Internal("Failed to record usage", err)
	}
	if key == nil {
		return apperror.InvalidApiKey()
	}
	for feature, sample := range req.Features {
		if sample.Used < 0 || sample.Skipped < 0 {
			return apperror.Validation("Usage counts for %s cannot be negative", feature)
		}
	}
	if len(req.Features) == 0 {
		return nil
	}

	now := s.now().UTC()
	// a concurrent first write of the same hour loses on the primary key; the retry sees its row
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if lastErr = s.addToBucket(ctx, key.Organization, now, req.Features); lastErr == nil {
			return nil
		}
	}
	s.logger.Error(usageModule, "Failed to record usage", map[string]interface{}{
		"organization": key.Organization,
		"error":        lastErr.Error(),
	})
	return apperror.Internal("Failed to record usage", lastErr)
}

func (s *usageService) addToBucket(ctx context.Context, organizationId string, now time.Time, features map[string]entity.UsageSample) (err error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback()
		}
	}()

	repo := uow.UsageRepository()
	hour := entity.HourKey(now)
	bucket, err := repo.FindByHourForUpdate(ctx, organizationId, hour)
	if err != nil {
		return err
	}

	isNew := bucket == nil
	if isNew {
		bucket = &entity.UsageBucket{
			Organization: organizationId,
			Hour:         hour,
			Features:     make(map[string]entity.FeatureUsage),
		}
	}
	if bucket.Features == nil {
		bucket.Features = make(map[string]entity.FeatureUsage)
	}

	minute := now.Minute()
	for feature, sample := range features {
		f := bucket.Features[feature]
		f.Used[minute] += sample.Used
		f.Skipped[minute] += sample.Skipped
		bucket.Features[feature] = f
	}

	if isNew {
		err = repo.Create(ctx, bucket)
	} else {
		err = repo.Update(ctx, bucket)
	}
	if err != nil {
		return err
	}
	return uow.Commit()
}

func (s *usageService) Prune(ctx context.Context) (int64, error) {
	cutoff := entity.HourKey(s.now().Add(-s.retention))
	uow := s.uowFactory.NewUnitOfWork(ctx)

	deleted, err := uow.UsageRepository().DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, apperror.Internal("Failed to prune usage", err)
	}
	if deleted > 0 {
		s.logger.Info(usageModule, "Pruned realtime usage", map[string]interface{}{
			"cutoff":  cutoff,
			"deleted": deleted,
		})
	}
	return deleted, nil
}
