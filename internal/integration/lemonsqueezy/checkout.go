package lemonsqueezy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nutrilog/billing-service/internal/domain"
)

// CreateCheckout opens a hosted checkout for the given variant. The
// internal user id and plan travel in checkout custom data so webhooks
// and order lookups can be tied back to the user.
func (c *Client) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	payload := map[string]any{
		"data": map[string]any{
			"type": "checkouts",
			"attributes": map[string]any{
				"checkout_data": map[string]any{
					"email": req.Email,
					"name":  req.Name,
					"custom": map[string]any{
						"user_id": req.UserID,
						"plan":    req.PlanID,
					},
				},
				"product_options": map[string]any{
					"redirect_url": req.SuccessURL,
				},
			},
			"relationships": map[string]any{
				"variant": map[string]any{
					"data": map[string]any{
						"type": "variants",
						"id":   req.VariantID,
					},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("failed to encode checkout request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/checkouts", nil, body)
	if err != nil {
		return domain.CheckoutSession{}, err
	}

	var doc document
	if err := json.Unmarshal(respBody, &doc); err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("failed to decode checkout response: %w", err)
	}

	view, err := checkoutViewFromResource(doc.Data)
	if err != nil {
		return domain.CheckoutSession{}, err
	}

	return domain.CheckoutSession{ID: view.ID, URL: view.URL}, nil
}

// GetCheckout fetches a checkout session by id
func (c *Client) GetCheckout(ctx context.Context, checkoutID string) (domain.CheckoutView, error) {
	body, err := c.do(ctx, http.MethodGet, "/checkouts/"+checkoutID, nil, nil)
	if err != nil {
		return domain.CheckoutView{}, err
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return domain.CheckoutView{}, fmt.Errorf("failed to decode checkout response: %w", err)
	}

	return checkoutViewFromResource(doc.Data)
}
