package service

import (
	"context"
	"encoding/json"
	"time"

	"feature-flags-be/pkg/jobs"
)

// JobRegistry is the part of the job queue handlers are registered on.
type JobRegistry interface {
	Handle(name string, fn jobs.HandlerFunc)
	Every(name string, interval time.Duration)
}

// RegisterJobs binds the background jobs to their handlers and schedules usage pruning.
func RegisterJobs(registry JobRegistry, webhookService IWebhookService, usageService IUsageService, pruneInterval time.Duration) {
	registry.Handle(JobFireWebhooks, jobs.TypedHandler(webhookService.FireWebhooks))

	registry.Handle(JobPruneRealtimeUsage, func(ctx context.Context, _ json.RawMessage) error {
		_, err := usageService.Prune(ctx)
		return err
	})
	registry.Every(JobPruneRealtimeUsage, pruneInterval)
}
