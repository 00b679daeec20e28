package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/pkg/logger"
)

type fakeConstructor struct {
	event domain.WebhookEvent
	err   error
}

func (f *fakeConstructor) ConstructWebhookEvent(rawBody []byte, signature string) (domain.WebhookEvent, error) {
	return f.event, f.err
}

type fakeWebhookService struct {
	processed []domain.WebhookEvent
	err       error
}

func (f *fakeWebhookService) ProcessEvent(_ context.Context, event domain.WebhookEvent) error {
	f.processed = append(f.processed, event)
	return f.err
}

func newWebhookRouter(t *testing.T, constructor *fakeConstructor, svc *fakeWebhookService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)

	r := gin.New()
	r.POST("/subscription/webhook", NewWebhookHandler(constructor, svc, log).HandleWebhook)
	return r
}

func postWebhook(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/subscription/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleWebhookAcksValidEvent(t *testing.T) {
	svc := &fakeWebhookService{}
	constructor := &fakeConstructor{event: domain.WebhookEvent{Name: domain.WebhookEventSubscriptionUpdated}}
	r := newWebhookRouter(t, constructor, svc)

	w := postWebhook(r, []byte(`{"meta":{}}`), "abc")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())
	require.Len(t, svc.processed, 1)
	assert.Equal(t, domain.WebhookEventSubscriptionUpdated, svc.processed[0].Name)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	svc := &fakeWebhookService{}
	constructor := &fakeConstructor{err: domain.ErrSignatureInvalid}
	r := newWebhookRouter(t, constructor, svc)

	w := postWebhook(r, []byte(`{"meta":{}}`), "bad")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.processed)
}

func TestHandleWebhookRejectsEmptyBody(t *testing.T) {
	svc := &fakeWebhookService{}
	r := newWebhookRouter(t, &fakeConstructor{}, svc)

	w := postWebhook(r, nil, "abc")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.processed)
}

func TestHandleWebhookAcksProcessingFailure(t *testing.T) {
	svc := &fakeWebhookService{err: assert.AnError}
	constructor := &fakeConstructor{event: domain.WebhookEvent{Name: domain.WebhookEventOrderCreated}}
	r := newWebhookRouter(t, constructor, svc)

	w := postWebhook(r, []byte(`{"meta":{}}`), "abc")

	// The provider only needs the delivery acknowledged.
	assert.Equal(t, http.StatusOK, w.Code)
}
