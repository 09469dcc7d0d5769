package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/pkg/logger"
	"feature-flags-be/internal/repository/specification"
	"feature-flags-be/internal/repository/unitofwork"
	"feature-flags-be/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receivedHook struct {
	body      []byte
	signature string
}

type hookReceiver struct {
	mu       sync.Mutex
	received []receivedHook
	status   int
}

func (h *hookReceiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	h.mu.Lock()
	h.received = append(h.received, receivedHook{body: body, signature: r.Header.Get(SignatureHeader)})
	h.mu.Unlock()
	w.WriteHeader(h.status)
}

func storeWebhook(t *testing.T, factory unitofwork.RepositoryFactory, w *entity.Webhook) {
	t.Helper()
	w.Organization = testOrg
	require.NoError(t, factory.NewUnitOfWork(context.Background()).WebhookRepository().Create(context.Background(), w))
}

func webhooksByName(t *testing.T, factory unitofwork.RepositoryFactory) map[string]*entity.Webhook {
	t.Helper()
	hooks, err := factory.NewUnitOfWork(context.Background()).WebhookRepository().FindAll(context.Background(),
		specification.ByOrganization{OrganizationID: testOrg})
	require.NoError(t, err)
	out := make(map[string]*entity.Webhook, len(hooks))
	for _, h := range hooks {
		out[h.Name] = h
	}
	return out
}

func TestFireWebhooks(t *testing.T) {
	factory := newTestFactory(t)
	definitions := NewDefinitionsService(factory, cache.NewMemoryCache(time.Minute), logger.NewNopLogger())
	svc := NewWebhookService(factory, definitions, 5*time.Second, logger.NewNopLogger())

	ok := &hookReceiver{status: http.StatusOK}
	okServer := httptest.NewServer(ok)
	defer okServer.Close()
	failing := &hookReceiver{status: http.StatusInternalServerError}
	failingServer := httptest.NewServer(failing)
	defer failingServer.Close()

	storeFeature(t, factory, &entity.Feature{Id: "banner", DefaultValue: "true", Project: "web"})
	storeWebhook(t, factory, &entity.Webhook{Name: "prod", Endpoint: okServer.URL, SigningKey: "secret"})
	storeWebhook(t, factory, &entity.Webhook{Name: "dev", Endpoint: okServer.URL, SigningKey: "secret", Environment: "dev"})
	storeWebhook(t, factory, &entity.Webhook{Name: "mobile", Endpoint: okServer.URL, SigningKey: "secret", Project: "mobile"})
	storeWebhook(t, factory, &entity.Webhook{Name: "broken", Endpoint: failingServer.URL, SigningKey: "other"})

	err := svc.FireWebhooks(context.Background(), FireWebhooksPayload{
		Organization: testOrg,
		Feature:      "banner",
		Environments: []string{"production"},
		Project:      "web",
	})
	require.Error(t, err, "the failing endpoint is reported")

	require.Len(t, ok.received, 1, "only the production webhook without a project filter matches")
	hook := ok.received[0]
	assert.Equal(t, Sign("secret", hook.body), hook.signature)

	var body WebhookBody
	require.NoError(t, json.Unmarshal(hook.body, &body))
	assert.Equal(t, "production", body.Environment)
	assert.Equal(t, "banner", body.Changed)
	require.Contains(t, body.Features, "banner")
	assert.Equal(t, true, body.Features["banner"].DefaultValue)

	require.Len(t, failing.received, 1)

	hooks := webhooksByName(t, factory)
	assert.NotNil(t, hooks["prod"].LastSuccess)
	assert.Empty(t, hooks["prod"].Error)
	assert.Nil(t, hooks["dev"].LastSuccess)
	assert.Nil(t, hooks["broken"].LastSuccess)
	assert.Contains(t, hooks["broken"].Error, "500")
}

func TestSignIsStable(t *testing.T) {
	a := Sign("key", []byte(`{"a":1}`))
	assert.Equal(t, a, Sign("key", []byte(`{"a":1}`)))
	assert.NotEqual(t, a, Sign("other", []byte(`{"a":1}`)))
	assert.Len(t, a, 64)
}
