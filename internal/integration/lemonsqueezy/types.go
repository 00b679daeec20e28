package lemonsqueezy

import (
	"encoding/json"
	"strconv"
)

// The provider wraps every resource in a JSON:API envelope:
// {"data": {"type": ..., "id": ..., "attributes": {...}, "relationships": {...}}}.
// Identifiers arrive as strings in envelopes but as numbers inside
// attributes, so flexID accepts both.

type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func (f flexID) String() string { return string(f) }

type document struct {
	Data resource `json:"data"`
}

type listDocument struct {
	Data []resource `json:"data"`
}

type resource struct {
	Type          string                  `json:"type"`
	ID            flexID                  `json:"id"`
	Attributes    json.RawMessage         `json:"attributes"`
	Relationships map[string]relationship `json:"relationships"`
}

type relationship struct {
	Data json.RawMessage `json:"data"`
}

// relatedID extracts the id of a to-one or the first of a to-many
// relationship; empty when the link is absent or unparseable.
func (r resource) relatedID(name string) string {
	rel, ok := r.Relationships[name]
	if !ok || len(rel.Data) == 0 || string(rel.Data) == "null" {
		return ""
	}

	var single struct {
		ID flexID `json:"id"`
	}
	if err := json.Unmarshal(rel.Data, &single); err == nil && single.ID != "" {
		return single.ID.String()
	}

	var many []struct {
		ID flexID `json:"id"`
	}
	if err := json.Unmarshal(rel.Data, &many); err == nil && len(many) > 0 {
		return many[0].ID.String()
	}

	return ""
}

type customData map[string]any

func (c customData) str(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

type orderAttributes struct {
	Status         string `json:"status"`
	UserEmail      string `json:"user_email"`
	CustomerID     flexID `json:"customer_id"`
	SubscriptionID flexID `json:"subscription_id"`
	Total          int64  `json:"total"`
	Currency       string `json:"currency"`
	CreatedAt      string `json:"created_at"`
	FirstOrderItem struct {
		VariantID flexID `json:"variant_id"`
	} `json:"first_order_item"`
	CustomData customData `json:"custom_data"`
}

type subscriptionAttributes struct {
	Status     string  `json:"status"`
	CustomerID flexID  `json:"customer_id"`
	VariantID  flexID  `json:"variant_id"`
	OrderID    flexID  `json:"order_id"`
	Cancelled  bool    `json:"cancelled"`
	RenewsAt   *string `json:"renews_at"`
	EndsAt     *string `json:"ends_at"`
	CreatedAt  string  `json:"created_at"`
	URLs       struct {
		CustomerPortal string `json:"customer_portal"`
	} `json:"urls"`
}

type checkoutAttributes struct {
	URL     string `json:"url"`
	OrderID flexID `json:"order_id"`
	// Some API versions nest the resulting order under checkout_data.
	CheckoutData struct {
		OrderID flexID     `json:"order_id"`
		Custom  customData `json:"custom"`
	} `json:"checkout_data"`
}
