package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor ties an event type to its aggregate, topic and payload type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	newPayload    func() any
}

// ResolvedEvent is a decoded outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will never publish and should be parked.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func rejectf(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

type topicKind int

const (
	ordersTopic topicKind = iota
	inventoryTopic
)

type eventRoute struct {
	event      enums.OutboxEventType
	aggregate  enums.OutboxAggregateType
	topic      topicKind
	newPayload func() any
}

var knownEvents = []eventRoute{
	{enums.EventOrderCreated, enums.AggregateOrder, ordersTopic, func() any { return &payloads.OrderCreatedEvent{} }},
	{enums.EventOrderPaid, enums.AggregateOrder, ordersTopic, func() any { return &payloads.OrderPaidEvent{} }},
	{enums.EventOrderPaymentFailed, enums.AggregateOrder, ordersTopic, func() any { return &payloads.OrderPaymentStatusEvent{} }},
	{enums.EventOrderRefunded, enums.AggregateOrder, ordersTopic, func() any { return &payloads.OrderPaymentStatusEvent{} }},
	{enums.EventOrderCanceled, enums.AggregateOrder, ordersTopic, func() any { return &payloads.OrderCanceledEvent{} }},
	{enums.EventStockAlertRaised, enums.AggregateSellableUnit, inventoryTopic, func() any { return &payloads.StockAlertRaisedEvent{} }},
}

// EventRegistry resolves outbox rows into typed payloads and destination topics.
type EventRegistry struct {
	entries  map[enums.OutboxEventType]EventDescriptor
	validate *validator.Validate
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topics := map[topicKind]string{
		ordersTopic:    cfg.OrdersTopic,
		inventoryTopic: cfg.InventoryTopic,
	}
	var err error
	if cfg.OrdersTopic == "" {
		err = multierr.Append(err, errors.New("orders topic is required"))
	}
	if cfg.InventoryTopic == "" {
		err = multierr.Append(err, errors.New("inventory topic is required"))
	}
	if err != nil {
		return nil, err
	}

	reg := &EventRegistry{
		entries:  make(map[enums.OutboxEventType]EventDescriptor, len(knownEvents)),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, route := range knownEvents {
		reg.entries[route.event] = EventDescriptor{
			EventType:     route.event,
			AggregateType: route.aggregate,
			Topic:         topics[route.topic],
			newPayload:    route.newPayload,
		}
	}
	return reg, nil
}

// Resolve decodes the row. Every failure is non-retryable since the row
// content will not change between attempts.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, rejectf("unsupported event type %s", event.EventType)
	}
	if desc.AggregateType != event.AggregateType {
		return nil, rejectf("aggregate mismatch for %s: expected %s got %s", event.EventType, desc.AggregateType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, rejectf("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, rejectf("decode envelope: %w", err)
	}
	if envelope.Version > outbox.CurrentVersion {
		return nil, rejectf("envelope version %d is newer than %d", envelope.Version, outbox.CurrentVersion)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, rejectf("payload missing for %s", event.EventType)
	}

	payload := desc.newPayload()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, rejectf("decode %s payload: %w", event.EventType, err)
	}
	if err := r.validate.Struct(payload); err != nil {
		return nil, rejectf("invalid %s payload: %w", event.EventType, err)
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
