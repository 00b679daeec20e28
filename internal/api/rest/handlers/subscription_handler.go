package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nutrilog/billing-service/internal/catalog"
	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/internal/middleware"
	"github.com/nutrilog/billing-service/internal/service"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// SubscriptionHandler serves the authenticated subscription endpoints
type SubscriptionHandler struct {
	subscriptionSvc   service.SubscriptionService
	reconciliationSvc service.ReconciliationService
	entitlementSvc    service.EntitlementService
	catalog           *catalog.Catalog
	log               *logger.Logger
}

// NewSubscriptionHandler creates the subscription handler
func NewSubscriptionHandler(
	subscriptionSvc service.SubscriptionService,
	reconciliationSvc service.ReconciliationService,
	entitlementSvc service.EntitlementService,
	cat *catalog.Catalog,
	log *logger.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionSvc:   subscriptionSvc,
		reconciliationSvc: reconciliationSvc,
		entitlementSvc:    entitlementSvc,
		catalog:           cat,
		log:               log,
	}
}

// GetStatus returns the caller's subscription status and entitlements
func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	view, err := h.subscriptionSvc.GetStatus(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Failed to get subscription status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get subscription status"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetPlans lists the purchasable plans
func (h *SubscriptionHandler) GetPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": h.catalog.Plans()})
}

type createCheckoutRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// CreateCheckout opens a hosted checkout session for a paid plan
func (h *SubscriptionHandler) CreateCheckout(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid checkout request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, ok := catalog.ParsePlan(req.Plan)
	if !ok || !plan.IsPremium() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown or non-purchasable plan"})
		return
	}

	session, err := h.subscriptionSvc.CreateCheckout(c.Request.Context(), service.CheckoutServiceRequest{
		UserID: userID,
		Email:  middleware.UserEmailFromContext(c),
		Plan:   plan,
	})
	if err != nil {
		if errors.Is(err, domain.ErrMissingVariant) {
			h.log.Error("Checkout misconfigured for plan %s: %v", plan, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Plan is not available for purchase"})
			return
		}
		h.log.Error("Failed to create checkout: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session"})
		return
	}

	c.JSON(http.StatusCreated, session)
}

type verifyPaymentRequest struct {
	Token        string `json:"token"`
	ExpectedPlan string `json:"expected_plan"`
}

// VerifyPayment reconciles a post-checkout token against the billing
// provider and returns the resulting subscription.
func (h *SubscriptionHandler) VerifyPayment(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid verify request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var expectedPlan domain.SubscriptionPlan
	if req.ExpectedPlan != "" {
		plan, ok := catalog.ParsePlan(req.ExpectedPlan)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan"})
			return
		}
		expectedPlan = plan
	}

	sub, err := h.reconciliationSvc.VerifyPayment(c.Request.Context(), service.VerifyPaymentRequest{
		UserID:       userID,
		Email:        middleware.UserEmailFromContext(c),
		Token:        req.Token,
		ExpectedPlan: expectedPlan,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrVerificationTimeout):
			c.JSON(http.StatusConflict, gin.H{"error": "Payment not completed"})
		default:
			h.log.Error("Payment verification failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment verification failed"})
		}
		return
	}

	c.JSON(http.StatusOK, sub)
}

type cancelRequest struct {
	Immediately bool `json:"immediately"`
}

// Cancel cancels the caller's recurring subscription
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	sub, err := h.subscriptionSvc.Cancel(c.Request.Context(), userID, req.Immediately)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		case errors.Is(err, domain.ErrNotCancelable):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Subscription cannot be cancelled"})
		default:
			h.log.Error("Failed to cancel subscription: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to cancel subscription"})
		}
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Reactivate undoes a pending cancellation
func (h *SubscriptionHandler) Reactivate(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	sub, err := h.subscriptionSvc.Reactivate(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		case errors.Is(err, domain.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No pending cancellation to undo"})
		default:
			h.log.Error("Failed to reactivate subscription: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reactivate subscription"})
		}
		return
	}

	c.JSON(http.StatusOK, sub)
}

// GetPortalURL returns the provider's self-service billing portal link
func (h *SubscriptionHandler) GetPortalURL(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	url, err := h.subscriptionSvc.GetPortalURL(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No billing portal for this account"})
			return
		}
		h.log.Error("Failed to get portal URL: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to get portal URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CheckFeature evaluates a feature gate for the caller
func (h *SubscriptionHandler) CheckFeature(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	feature := domain.Feature(c.Param("feature"))
	currentCount := 0
	if raw := c.Query("current_count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid current_count"})
			return
		}
		currentCount = parsed
	}

	allowed, err := h.entitlementSvc.CheckFeatureAccess(c.Request.Context(), userID, feature, currentCount)
	if err != nil {
		h.log.Error("Failed to check feature access: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check feature access"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"feature": feature, "allowed": allowed})
}
