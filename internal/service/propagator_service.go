// FILE: internal/service/propagator_service.go
package service

import (
	"context"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/events"
	"feature-flags-be/internal/pkg/logger"
	"feature-flags-be/internal/websocket"
	"feature-flags-be/pkg/cache"
	pkgEvents "feature-flags-be/pkg/events"
	"feature-flags-be/pkg/jobs"
	"feature-flags-be/pkg/metrics"
)

const (
	JobFireWebhooks       = "fireWebhooks"
	JobPruneRealtimeUsage = "pruneRealtimeUsage"
	StreamFeaturesUpdated = "features_updated"
	propagatorModule      = "PROPAGATOR"
)

// FireWebhooksPayload is the body of the fireWebhooks job.
type FireWebhooksPayload struct {
	Organization string   `json:"organization"`
	Feature      string   `json:"feature"`
	Environments []string `json:"environments"`
	Project      string   `json:"project"`
}

// Change describes the state a mutation started from.
type Change struct {
	// Environments the feature was enabled in. Webhooks fire for these and the current ones.
	Environments []string
	// Affected lists every environment whose payload may carry the feature, enabled or not.
	Affected []string
	// Project the feature belonged to.
	Project string
}

// ChangeFrom captures what feature looked like in org before a mutation.
func ChangeFrom(org *entity.Organization, feature *entity.Feature) Change {
	return Change{
		Environments: feature.EnabledEnvironments(),
		Affected:     unionSorted(org.EnvironmentIds(), feature.EnvironmentIds()),
		Project:      feature.Project,
	}
}

// StreamPublisher pushes messages to connected SDK streams.
type StreamPublisher interface {
	Publish(ctx context.Context, topic string, msg websocket.Message)
}

type IPropagatorService interface {
	// NotifyChanged fans a change out to caches, webhooks, the event bus and SDK streams.
	NotifyChanged(ctx context.Context, feature *entity.Feature, change Change)
	// HandleFeatureUpdated applies a FEATURE_UPDATED event coming from another instance.
	HandleFeatureUpdated(ctx context.Context, event pkgEvents.Event) error
}

type propagatorService struct {
	cache     cache.DefinitionsCache
	queue     jobs.Enqueuer
	publisher events.Publisher
	stream    StreamPublisher
	logger    logger.ILogger
}

// NewPropagatorService accepts nil publisher and stream; those side effects are then skipped.
func NewPropagatorService(
	definitionsCache cache.DefinitionsCache,
	queue jobs.Enqueuer,
	publisher events.Publisher,
	stream StreamPublisher,
	logger logger.ILogger,
) IPropagatorService {
	return &propagatorService{
		cache:     definitionsCache,
		queue:     queue,
		publisher: publisher,
		stream:    stream,
		logger:    logger,
	}
}

func (s *propagatorService) NotifyChanged(ctx context.Context, feature *entity.Feature, change Change) {
	webhookEnvs := unionSorted(change.Environments, feature.EnabledEnvironments())
	// disabled environments still serve the default value, so their payloads go stale too
	affected := unionSorted(change.Affected, feature.EnvironmentIds(), webhookEnvs)
	projects := unionSorted([]string{change.Project, feature.Project, ""})
	metrics.Propagations.WithLabelValues("change").Inc()

	s.invalidate(ctx, feature.Organization, affected, projects)

	payload := FireWebhooksPayload{
		Organization: feature.Organization,
		Feature:      feature.Id,
		Environments: webhookEnvs,
		Project:      feature.Project,
	}
	if err := s.queue.Enqueue(ctx, JobFireWebhooks, payload); err != nil {
		s.logger.Error(propagatorModule, "Failed to enqueue webhook job", map[string]interface{}{
			"organization": feature.Organization,
			"feature":      feature.Id,
			"error":        err.Error(),
		})
	}

	if s.publisher != nil {
		s.publisher.PublishFeatureUpdated(ctx, feature.Organization, feature.Id, projects, affected)
	}

	if s.stream != nil {
		for _, env := range affected {
			s.stream.Publish(ctx, websocket.Topic(feature.Organization, env), websocket.Message{
				Type: StreamFeaturesUpdated,
				Data: map[string]interface{}{"feature": feature.Id, "project": feature.Project},
			})
		}
	}

	s.logger.Info(propagatorModule, "Feature change propagated", map[string]interface{}{
		"organization": feature.Organization,
		"feature":      feature.Id,
		"environments": affected,
	})
}

func (s *propagatorService) invalidate(ctx context.Context, organization string, envs, projects []string) {
	keys := cache.KeysFor(organization, envs, projects)
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Error(propagatorModule, "Failed to invalidate definitions cache", map[string]interface{}{
			"organization": organization,
			"error":        err.Error(),
		})
	}
}

func (s *propagatorService) HandleFeatureUpdated(ctx context.Context, event pkgEvents.Event) error {
	data := event.Payload()
	organization, _ := data["organization"].(string)
	if organization == "" {
		return nil
	}

	projects := append(stringList(data["projects"]), "")
	if project, ok := data["project"].(string); ok {
		projects = append(projects, project)
	}
	envs := stringList(data["environments"])

	metrics.Propagations.WithLabelValues("remote").Inc()
	s.invalidate(ctx, organization, envs, unionSorted(projects))
	return nil
}

// stringList reads a JSON-decoded array of strings, ignoring other elements.
func stringList(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
