package lemonsqueezy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nutrilog/billing-service/internal/domain"
)

// GetSubscription fetches a single recurring subscription by provider id
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (domain.SubscriptionView, error) {
	body, err := c.do(ctx, http.MethodGet, "/subscriptions/"+subscriptionID, nil, nil)
	if err != nil {
		return domain.SubscriptionView{}, err
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return domain.SubscriptionView{}, fmt.Errorf("failed to decode subscription response: %w", err)
	}

	return subscriptionViewFromResource(doc.Data)
}

// ListSubscriptionsByEmail returns one page of the customer's recurring
// subscriptions, optionally filtered by provider status
func (c *Client) ListSubscriptionsByEmail(ctx context.Context, email, status string, page, pageSize int) ([]domain.SubscriptionView, error) {
	query := url.Values{}
	query.Set("filter[user_email]", email)
	if status != "" {
		query.Set("filter[status]", status)
	}
	query.Set("page[number]", strconv.Itoa(page))
	query.Set("page[size]", strconv.Itoa(pageSize))
	query.Set("sort", "-createdAt")

	body, err := c.do(ctx, http.MethodGet, "/subscriptions", query, nil)
	if err != nil {
		return nil, err
	}

	var doc listDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode subscriptions response: %w", err)
	}

	subs := make([]domain.SubscriptionView, 0, len(doc.Data))
	for _, res := range doc.Data {
		view, err := subscriptionViewFromResource(res)
		if err != nil {
			c.log.Warnw("Skipping undecodable subscription in listing", "subscription_id", res.ID, "error", err)
			continue
		}
		subs = append(subs, view)
	}

	return subs, nil
}

// CancelSubscription asks the provider to cancel at period end
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/subscriptions/"+subscriptionID, nil, nil)
	return err
}

// ReactivateSubscription clears a pending cancellation at the provider
func (c *Client) ReactivateSubscription(ctx context.Context, subscriptionID string) error {
	payload := map[string]any{
		"data": map[string]any{
			"type": "subscriptions",
			"id":   subscriptionID,
			"attributes": map[string]any{
				"cancelled": false,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode reactivation request: %w", err)
	}

	_, err = c.do(ctx, http.MethodPatch, "/subscriptions/"+subscriptionID, nil, body)
	return err
}

// GetPortalURL returns the provider-hosted customer portal link, empty
// when the provider does not supply one
func (c *Client) GetPortalURL(ctx context.Context, subscriptionID string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/subscriptions/"+subscriptionID, nil, nil)
	if err != nil {
		return "", err
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("failed to decode subscription response: %w", err)
	}

	var attrs subscriptionAttributes
	if err := json.Unmarshal(doc.Data.Attributes, &attrs); err != nil {
		return "", fmt.Errorf("failed to decode subscription attributes: %w", err)
	}

	return attrs.URLs.CustomerPortal, nil
}
