package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/util"
)

// CheckoutService is what the handlers need from the service layer.
type CheckoutService interface {
	SaveBillingDetails(ctx context.Context, req *service.SaveBillingRequest) error
	CreateProviderOrder(ctx context.Context, req *service.CreateOrderRequest) (*service.CreateOrderResult, error)
	CapturePayment(ctx context.Context, orderID string) (*service.CaptureResult, error)
	CheckStatus(ctx context.Context, orderID string) (*models.StatusSnapshot, error)
	ValidateDiscountCode(ctx context.Context, code string) (*models.DiscountMatch, error)
}

// Handler contains HTTP handlers
type Handler struct {
	checkout CheckoutService
}

// NewHandler creates a new HTTP handler
func NewHandler(checkout CheckoutService) *Handler {
	return &Handler{
		checkout: checkout,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/save-billing-details", h.saveBillingDetails)
		api.POST("/validate-discount-code", h.validateDiscountCode)

		paypal := api.Group("/paypal")
		{
			paypal.POST("/create-order", h.createOrder)
			paypal.POST("/capture-payment", h.capturePayment)
			paypal.POST("/check-status", h.checkStatus)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// saveBillingDetails persists the billing form for an order
func (h *Handler) saveBillingDetails(c *gin.Context) {
	var req service.SaveBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("Missing required fields: orderID, billingDetails, or paymentProvider"))
		return
	}

	if err := h.checkout.SaveBillingDetails(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Billing details saved successfully",
		"orderID": req.OrderID,
	})
}

// createOrder creates the provider checkout order
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("Missing required fields"))
		return
	}

	result, err := h.checkout.CreateProviderOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// capturePayment finalizes the payment for an order
func (h *Handler) capturePayment(c *gin.Context) {
	var req struct {
		OrderID string `json:"orderID" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("Order ID is required"))
		return
	}

	result, err := h.checkout.CapturePayment(c.Request.Context(), req.OrderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// checkStatus returns the current payment status for an order
func (h *Handler) checkStatus(c *gin.Context) {
	var req struct {
		OrderID string `json:"orderId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("Order ID is required"))
		return
	}

	snap, err := h.checkout.CheckStatus(c.Request.Context(), req.OrderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    snap,
	})
}

// validateDiscountCode resolves a discount code. This endpoint keeps
// its own response shape rather than the success envelope.
func (h *Handler) validateDiscountCode(c *gin.Context) {
	var req struct {
		DiscountCode string `json:"discountCode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.DiscountCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid":   false,
			"message": "Discount code is required",
		})
		return
	}

	match, err := h.checkout.ValidateDiscountCode(c.Request.Context(), req.DiscountCode)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{
			"valid":   false,
			"message": apperr.Message(err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":    true,
		"value":    match.Value,
		"product":  match.Product,
		"currency": match.Currency,
	})
}

// respondError writes the uniform error envelope with the status the
// error taxonomy prescribes.
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"success": false,
		"error":   apperr.Message(err),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
