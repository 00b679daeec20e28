package lemonsqueezy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSubscriptionDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/789", r.URL.Path)
		w.Write([]byte(`{
			"data": {
				"type": "subscriptions",
				"id": "789",
				"attributes": {
					"status": "active",
					"customer_id": 456,
					"variant_id": 100,
					"order_id": 123,
					"cancelled": false,
					"renews_at": "2025-03-01T00:00:00Z",
					"ends_at": null,
					"created_at": "2025-02-01T00:00:00Z",
					"urls": {"customer_portal": "https://portal.example/789"}
				}
			}
		}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	sub, err := c.GetSubscription(context.Background(), "789")
	require.NoError(t, err)

	assert.Equal(t, "789", sub.ID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "100", sub.VariantID)
	assert.Equal(t, "123", sub.OrderID)
	assert.False(t, sub.Cancelled)
	require.NotNil(t, sub.RenewsAt)
	assert.Nil(t, sub.EndsAt)
}

func TestCancelSubscriptionUsesDelete(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.Write([]byte(`{"data": {"type": "subscriptions", "id": "789", "attributes": {"status": "cancelled", "cancelled": true}}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	require.NoError(t, c.CancelSubscription(context.Background(), "789"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/subscriptions/789", path)
}

func TestReactivateSubscriptionPatchesCancelledFlag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		attrs := payload["data"].(map[string]any)["attributes"].(map[string]any)
		assert.Equal(t, false, attrs["cancelled"])

		w.Write([]byte(`{"data": {"type": "subscriptions", "id": "789", "attributes": {"status": "active", "cancelled": false}}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	require.NoError(t, c.ReactivateSubscription(context.Background(), "789"))
}

func TestGetPortalURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"data": {
				"type": "subscriptions",
				"id": "789",
				"attributes": {"status": "active", "urls": {"customer_portal": "https://portal.example/789"}}
			}
		}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	url, err := c.GetPortalURL(context.Background(), "789")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example/789", url)
}
