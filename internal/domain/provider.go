package domain

import "time"

// Narrow views over the billing provider's JSON:API payloads. Only the
// handful of fields the reconciliation logic needs are extracted; the
// rest of the provider schema is deliberately ignored so upstream drift
// cannot reach the state machine.

// OrderStatusPaid is the provider's payment-confirmed order status
const OrderStatusPaid = "paid"

// OrderView is the extracted shape of a provider order
type OrderView struct {
	ID             string
	Status         string
	UserEmail      string
	CustomerID     string
	SubscriptionID string // set when the order started a recurring subscription
	VariantID      string
	PlanHint       string // plan identifier carried in checkout custom data, may be empty
	UserID         string // internal user id from checkout custom data, may be empty
	TotalCents     int64
	Currency       string
	CreatedAt      time.Time
}

// SubscriptionView is the extracted shape of a provider subscription
type SubscriptionView struct {
	ID         string
	Status     string
	CustomerID string
	VariantID  string
	OrderID    string
	UserID     string // from custom data, may be empty
	PlanHint   string // plan identifier carried in event custom data, may be empty
	Cancelled  bool
	RenewsAt   *time.Time
	EndsAt     *time.Time
	CreatedAt  time.Time
}

// CheckoutView is the extracted shape of a provider checkout session
type CheckoutView struct {
	ID      string
	URL     string
	OrderID string // resolved from whichever attribute or relationship carried it
}

// CheckoutRequest holds what the provider needs to open a hosted checkout
type CheckoutRequest struct {
	VariantID  string
	UserID     string
	PlanID     string
	Email      string
	Name       string
	SuccessURL string
}

// CheckoutSession is the created hosted checkout returned to clients
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
