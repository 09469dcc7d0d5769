package events

import (
	"context"
	"time"

	"feature-flags-be/internal/pkg/logger"
	pkgEvents "feature-flags-be/pkg/events"
)

// Bus is the subset of the NATS publisher used here.
type Bus interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

// Publisher abstracts domain events emitted by the feature store.
type Publisher interface {
	PublishFeatureUpdated(ctx context.Context, organization, featureId string, projects, environments []string)
}

// NatsPublisher is best effort: a nil bus disables it and failures are only logged.
type NatsPublisher struct {
	bus    Bus
	logger logger.ILogger
}

func NewNatsPublisher(bus Bus, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		bus:    bus,
		logger: logger,
	}
}

// PublishFeatureUpdated emits FEATURE_UPDATED with every project and environment whose
// cached payloads the change touched.
func (p *NatsPublisher) PublishFeatureUpdated(ctx context.Context, organization, featureId string, projects, environments []string) {
	if p.bus == nil {
		return
	}

	now := time.Now()
	evt := pkgEvents.BaseEvent{
		Type: pkgEvents.FeatureUpdated,
		Data: map[string]interface{}{
			"organization": organization,
			"feature":      featureId,
			"projects":     projects,
			"environments": environments,
			"entity_type":  "feature",
			"entity_id":    featureId,
			"occurred_at":  now,
		},
		OccurredAt: now,
	}

	if err := p.bus.Publish(ctx, evt); err != nil {
		p.logger.Error("PROPAGATOR", "Failed to publish FEATURE_UPDATED event", map[string]interface{}{
			"organization": organization,
			"feature":      featureId,
			"error":        err.Error(),
		})
	}
}
