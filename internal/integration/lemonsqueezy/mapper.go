package lemonsqueezy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nutrilog/billing-service/internal/domain"
)

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}

func orderViewFromResource(res resource) (domain.OrderView, error) {
	var attrs orderAttributes
	if err := json.Unmarshal(res.Attributes, &attrs); err != nil {
		return domain.OrderView{}, fmt.Errorf("failed to decode order attributes: %w", err)
	}

	view := domain.OrderView{
		ID:             res.ID.String(),
		Status:         attrs.Status,
		UserEmail:      attrs.UserEmail,
		CustomerID:     attrs.CustomerID.String(),
		SubscriptionID: attrs.SubscriptionID.String(),
		VariantID:      attrs.FirstOrderItem.VariantID.String(),
		PlanHint:       attrs.CustomData.str("plan"),
		UserID:         attrs.CustomData.str("user_id"),
		TotalCents:     attrs.Total,
		Currency:       attrs.Currency,
		CreatedAt:      parseTime(attrs.CreatedAt),
	}

	if view.SubscriptionID == "" {
		view.SubscriptionID = res.relatedID("subscription")
	}
	if view.SubscriptionID == "" {
		view.SubscriptionID = res.relatedID("subscriptions")
	}

	return view, nil
}

func subscriptionViewFromResource(res resource) (domain.SubscriptionView, error) {
	var attrs subscriptionAttributes
	if err := json.Unmarshal(res.Attributes, &attrs); err != nil {
		return domain.SubscriptionView{}, fmt.Errorf("failed to decode subscription attributes: %w", err)
	}

	return domain.SubscriptionView{
		ID:         res.ID.String(),
		Status:     attrs.Status,
		CustomerID: attrs.CustomerID.String(),
		VariantID:  attrs.VariantID.String(),
		OrderID:    attrs.OrderID.String(),
		Cancelled:  attrs.Cancelled,
		RenewsAt:   parseTimePtr(attrs.RenewsAt),
		EndsAt:     parseTimePtr(attrs.EndsAt),
		CreatedAt:  parseTime(attrs.CreatedAt),
	}, nil
}

// checkoutViewFromResource probes the known attribute paths and
// relationship links for the resulting order id.
func checkoutViewFromResource(res resource) (domain.CheckoutView, error) {
	var attrs checkoutAttributes
	if err := json.Unmarshal(res.Attributes, &attrs); err != nil {
		return domain.CheckoutView{}, fmt.Errorf("failed to decode checkout attributes: %w", err)
	}

	view := domain.CheckoutView{
		ID:  res.ID.String(),
		URL: attrs.URL,
	}

	switch {
	case attrs.OrderID != "":
		view.OrderID = attrs.OrderID.String()
	case attrs.CheckoutData.OrderID != "":
		view.OrderID = attrs.CheckoutData.OrderID.String()
	default:
		view.OrderID = res.relatedID("order")
		if view.OrderID == "" {
			view.OrderID = res.relatedID("orders")
		}
	}

	return view, nil
}
