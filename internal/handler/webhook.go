// This file implements the Stripe webhook handler.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it
// directly. Authentication is the webhook signature verification.
package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/obraguard/obraguard/internal/billing"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/obraguard/obraguard/internal/metrics"
	"github.com/obraguard/obraguard/internal/service"
	"github.com/stripe/stripe-go/v79"
)

// maxWebhookBodyBytes caps webhook payloads at 64KB.
const maxWebhookBodyBytes = 65536

func unixTimeRef(v int64) *time.Time {
	t := time.Unix(v, 0)
	return &t
}

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing    billing.Service
	reconciler service.Reconciler
	logger     *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, reconciler service.Reconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:    billingService,
		reconciler: reconciler,
		logger:     logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// Only a signature failure produces a non-2xx response. Processing errors
// are logged and acknowledged with 200 so Stripe does not retry events
// that will fail the same way; state converges through later events.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "signature_failed").Inc()
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	outcome := "processed"
	switch event.Type {
	case "checkout.session.completed":
		outcome = h.handleCheckoutCompleted(r, event)
	case "customer.subscription.created", "customer.subscription.updated":
		outcome = h.handleSubscriptionChanged(r, event)
	case "customer.subscription.deleted":
		outcome = h.handleSubscriptionDeleted(r, event)
	case "invoice.payment_succeeded":
		outcome = h.handlePaymentSucceeded(r, event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		outcome = "ignored"
	}

	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), outcome).Inc()
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutCompleted(r *http.Request, event stripe.Event) string {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return "parse_failed"
	}

	if err := h.reconciler.ApplyCheckoutCompleted(r.Context(), session.ID); err != nil {
		h.logger.Error("failed to apply checkout completion", "error", err, "session_id", session.ID)
		return "failed"
	}
	return "processed"
}

func (h *WebhookHandler) handleSubscriptionChanged(r *http.Request, event stripe.Event) string {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err, "type", event.Type)
		return "parse_failed"
	}

	ev := domain.SubscriptionEvent{
		SubscriptionID: sub.ID,
		Status:         domain.SubscriptionStatus(sub.Status),
	}
	if sub.Customer != nil {
		ev.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		ev.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodStart != 0 {
		ev.PeriodStart = unixTimeRef(sub.CurrentPeriodStart)
	}
	if sub.CurrentPeriodEnd != 0 {
		ev.PeriodEnd = unixTimeRef(sub.CurrentPeriodEnd)
	}

	if err := h.reconciler.ApplySubscriptionEvent(r.Context(), ev); err != nil {
		h.logger.Error("failed to apply subscription event",
			"error", err, "subscription_id", sub.ID, "type", event.Type)
		return "failed"
	}
	return "processed"
}

func (h *WebhookHandler) handleSubscriptionDeleted(r *http.Request, event stripe.Event) string {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription deleted event", "error", err)
		return "parse_failed"
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription deleted event missing customer", "subscription_id", sub.ID)
		return "skipped"
	}

	if err := h.reconciler.ApplySubscriptionDeleted(r.Context(), sub.Customer.ID); err != nil {
		h.logger.Error("failed to apply subscription deletion",
			"error", err, "customer_id", sub.Customer.ID)
		return "failed"
	}
	return "processed"
}

func (h *WebhookHandler) handlePaymentSucceeded(r *http.Request, event stripe.Event) string {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice event", "error", err)
		return "parse_failed"
	}

	if invoice.Subscription == nil {
		h.logger.Debug("invoice has no subscription, skipping", "invoice_id", invoice.ID)
		return "skipped"
	}

	if err := h.reconciler.ApplyInvoicePaid(r.Context(), invoice.Subscription.ID); err != nil {
		h.logger.Error("failed to apply paid invoice",
			"error", err, "subscription_id", invoice.Subscription.ID)
		return "failed"
	}
	return "processed"
}
