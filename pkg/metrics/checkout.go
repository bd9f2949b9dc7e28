package metrics

import "github.com/prometheus/client_golang/prometheus"

// Payment confirmation sources.
const (
	SourceConfirm = "confirm"
	SourceWebhook = "webhook"
)

// CheckoutMetrics tracks the order and payment pipeline.
type CheckoutMetrics struct {
	ordersCreated     prometheus.Counter
	paymentsConfirmed *prometheus.CounterVec
	gatewayErrors     *prometheus.CounterVec
	webhookEvents     *prometheus.CounterVec
}

// NewCheckoutMetrics registers the pipeline metrics. A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Orders created from carts.",
	})
	paymentsConfirmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payments_confirmed_total",
		Help: "Orders transitioned to paid, by source.",
	}, []string{"source"})
	gatewayErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_gateway_errors_total",
		Help: "Failed payment gateway calls, by operation.",
	}, []string{"operation"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_webhook_events_total",
		Help: "Processed payment webhook events, by type and outcome.",
	}, []string{"type", "outcome"})
	reg.MustRegister(ordersCreated, paymentsConfirmed, gatewayErrors, webhookEvents)
	return &CheckoutMetrics{
		ordersCreated:     ordersCreated,
		paymentsConfirmed: paymentsConfirmed,
		gatewayErrors:     gatewayErrors,
		webhookEvents:     webhookEvents,
	}
}

func (m *CheckoutMetrics) IncOrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *CheckoutMetrics) IncPaymentConfirmed(source string) {
	if m == nil || m.paymentsConfirmed == nil {
		return
	}
	m.paymentsConfirmed.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *CheckoutMetrics) ObserveGatewayError(operation string) {
	if m == nil || m.gatewayErrors == nil {
		return
	}
	m.gatewayErrors.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *CheckoutMetrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
