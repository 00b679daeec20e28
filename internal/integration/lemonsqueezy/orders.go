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

// GetOrder fetches a single order by its provider id
func (c *Client) GetOrder(ctx context.Context, orderID string) (domain.OrderView, error) {
	body, err := c.do(ctx, http.MethodGet, "/orders/"+orderID, nil, nil)
	if err != nil {
		return domain.OrderView{}, err
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return domain.OrderView{}, fmt.Errorf("failed to decode order response: %w", err)
	}

	return orderViewFromResource(doc.Data)
}

// ListOrdersByEmail returns one page of the customer's orders, newest first
func (c *Client) ListOrdersByEmail(ctx context.Context, email string, page, pageSize int) ([]domain.OrderView, error) {
	query := url.Values{}
	query.Set("filter[user_email]", email)
	query.Set("page[number]", strconv.Itoa(page))
	query.Set("page[size]", strconv.Itoa(pageSize))
	query.Set("sort", "-createdAt")

	body, err := c.do(ctx, http.MethodGet, "/orders", query, nil)
	if err != nil {
		return nil, err
	}

	var doc listDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode orders response: %w", err)
	}

	orders := make([]domain.OrderView, 0, len(doc.Data))
	for _, res := range doc.Data {
		view, err := orderViewFromResource(res)
		if err != nil {
			c.log.Warnw("Skipping undecodable order in listing", "order_id", res.ID, "error", err)
			continue
		}
		orders = append(orders, view)
	}

	return orders, nil
}
