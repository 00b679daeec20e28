package lemonsqueezy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrilog/billing-service/internal/domain"
)

func TestGetOrderDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/123", r.URL.Path)
		assert.Equal(t, "Bearer key_test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.api+json", r.Header.Get("Accept"))

		w.Write([]byte(`{
			"data": {
				"type": "orders",
				"id": "123",
				"attributes": {
					"status": "paid",
					"user_email": "user@example.com",
					"customer_id": 456,
					"total": 2999,
					"currency": "EUR",
					"created_at": "2025-02-01T10:00:00Z",
					"first_order_item": {"variant_id": 100}
				},
				"relationships": {
					"subscription": {"data": {"type": "subscriptions", "id": "789"}}
				}
			}
		}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	order, err := c.GetOrder(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, "123", order.ID)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, "456", order.CustomerID)
	// The subscription id comes from the relationship when the
	// attribute is absent.
	assert.Equal(t, "789", order.SubscriptionID)
	assert.Equal(t, "100", order.VariantID)
	assert.Equal(t, int64(2999), order.TotalCents)
}

func TestGetOrderNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.GetOrder(context.Background(), "999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetOrderUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.GetOrder(context.Background(), "1")
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
}

func TestListOrdersByEmailSetsFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "user@example.com", query.Get("filter[user_email]"))
		assert.Equal(t, "2", query.Get("page[number]"))
		assert.Equal(t, "10", query.Get("page[size]"))
		assert.Equal(t, "-createdAt", query.Get("sort"))

		w.Write([]byte(`{
			"data": [
				{"type": "orders", "id": "2", "attributes": {"status": "paid", "total": 999, "first_order_item": {"variant_id": 100}}},
				{"type": "orders", "id": "1", "attributes": {"status": "refunded", "total": 999, "first_order_item": {"variant_id": 100}}}
			]
		}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	orders, err := c.ListOrdersByEmail(context.Background(), "user@example.com", 2, 10)
	require.NoError(t, err)

	require.Len(t, orders, 2)
	assert.Equal(t, "2", orders[0].ID)
	assert.Equal(t, "refunded", orders[1].Status)
}

func TestCreateCheckoutPayloadAndResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkouts", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		data := payload["data"].(map[string]any)
		attrs := data["attributes"].(map[string]any)
		custom := attrs["checkout_data"].(map[string]any)["custom"].(map[string]any)
		assert.Equal(t, "user-1", custom["user_id"])
		assert.Equal(t, "monthly", custom["plan"])
		variant := data["relationships"].(map[string]any)["variant"].(map[string]any)["data"].(map[string]any)
		assert.Equal(t, "100", variant["id"])

		w.Write([]byte(`{
			"data": {
				"type": "checkouts",
				"id": "chk_1",
				"attributes": {"url": "https://pay.example/chk_1"}
			}
		}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	session, err := c.CreateCheckout(context.Background(), domain.CheckoutRequest{
		VariantID:  "100",
		UserID:     "user-1",
		PlanID:     "monthly",
		Email:      "user@example.com",
		SuccessURL: "https://app.example/success",
	})
	require.NoError(t, err)

	assert.Equal(t, "chk_1", session.ID)
	assert.Equal(t, "https://pay.example/chk_1", session.URL)
}

func TestGetCheckoutOrderIDProbing(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "attribute",
			body: `{"data": {"type": "checkouts", "id": "c1", "attributes": {"url": "u", "order_id": 11}}}`,
			want: "11",
		},
		{
			name: "checkout data",
			body: `{"data": {"type": "checkouts", "id": "c2", "attributes": {"url": "u", "checkout_data": {"order_id": "22"}}}}`,
			want: "22",
		},
		{
			name: "to-one relationship",
			body: `{"data": {"type": "checkouts", "id": "c3", "attributes": {"url": "u"}, "relationships": {"order": {"data": {"type": "orders", "id": 33}}}}}`,
			want: "33",
		},
		{
			name: "to-many relationship",
			body: `{"data": {"type": "checkouts", "id": "c4", "attributes": {"url": "u"}, "relationships": {"orders": {"data": [{"type": "orders", "id": "44"}]}}}}`,
			want: "44",
		},
		{
			name: "no order yet",
			body: `{"data": {"type": "checkouts", "id": "c5", "attributes": {"url": "u"}}}`,
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)
			view, err := c.GetCheckout(context.Background(), "any")
			require.NoError(t, err)
			assert.Equal(t, tc.want, view.OrderID)
		})
	}
}
