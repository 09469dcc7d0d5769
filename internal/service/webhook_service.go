// FILE: internal/service/webhook_service.go
package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/pkg/logger"
	"feature-flags-be/internal/repository/specification"
	"feature-flags-be/internal/repository/unitofwork"

	"github.com/hashicorp/go-cleanhttp"
)

const (
	webhookModule   = "WEBHOOK"
	SignatureHeader = "X-Features-Signature"
)

// WebhookBody is what subscribers receive.
type WebhookBody struct {
	Timestamp   int64              `json:"timestamp"`
	Environment string             `json:"environment"`
	Project     string             `json:"project,omitempty"`
	Changed     string             `json:"changed"`
	Features    DefinitionsPayload `json:"features"`
}

type IWebhookService interface {
	// FireWebhooks delivers fresh definitions to every webhook matching the change.
	FireWebhooks(ctx context.Context, payload FireWebhooksPayload) error
}

type webhookService struct {
	uowFactory  unitofwork.RepositoryFactory
	definitions IDefinitionsService
	client      *http.Client
	logger      logger.ILogger
	now         func() time.Time
}

func NewWebhookService(
	uowFactory unitofwork.RepositoryFactory,
	definitions IDefinitionsService,
	timeout time.Duration,
	logger logger.ILogger,
) IWebhookService {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = timeout
	return &webhookService{
		uowFactory:  uowFactory,
		definitions: definitions,
		client:      client,
		logger:      logger,
		now:         time.Now,
	}
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(signingKey string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookMatches(w *entity.Webhook, payload FireWebhooksPayload) (string, bool) {
	if w.Project != "" && w.Project != payload.Project {
		return "", false
	}
	env := w.Environment
	if env == "" {
		env = defaultEnvironment
	}
	for _, e := range payload.Environments {
		if e == env {
			return env, true
		}
	}
	return "", false
}

func (s *webhookService) FireWebhooks(ctx context.Context, payload FireWebhooksPayload) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	webhooks, err := uow.WebhookRepository().FindAll(ctx, specification.ByOrganization{OrganizationID: payload.Organization})
	if err != nil {
		return fmt.Errorf("load webhooks: %w", err)
	}

	var errs []error
	for _, w := range webhooks {
		env, ok := webhookMatches(w, payload)
		if !ok {
			continue
		}

		if err := s.deliver(ctx, w, env, payload); err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", w.Id, err))
			if markErr := uow.WebhookRepository().MarkFailure(ctx, w.Id, err.Error()); markErr != nil {
				errs = append(errs, markErr)
			}
			s.logger.Warn(webhookModule, "Webhook delivery failed", map[string]interface{}{
				"webhook":  w.Id.String(),
				"endpoint": w.Endpoint,
				"error":    err.Error(),
			})
			continue
		}

		if err := uow.WebhookRepository().MarkSuccess(ctx, w.Id, s.now()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *webhookService) deliver(ctx context.Context, w *entity.Webhook, environment string, payload FireWebhooksPayload) error {
	features, err := s.definitions.Compile(ctx, payload.Organization, environment, w.Project)
	if err != nil {
		return err
	}

	body, err := json.Marshal(WebhookBody{
		Timestamp:   s.now().Unix(),
		Environment: environment,
		Project:     w.Project,
		Changed:     payload.Feature,
		Features:    features,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(w.SigningKey, body))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint responded with status %d", resp.StatusCode)
	}
	return nil
}
