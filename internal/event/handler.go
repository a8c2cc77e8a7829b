package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teilehaus/searchsync/pkg/kafka"
)

// Handler dispatches consumed envelope events to their triggers. The event
// set is closed; unknown types are logged and skipped so a producer rollout
// ahead of this service never poisons the consumer group.
type Handler struct {
	triggers *Triggers
	logger   *slog.Logger
}

func NewHandler(triggers *Triggers, logger *slog.Logger) *Handler {
	return &Handler{
		triggers: triggers,
		logger:   logger,
	}
}

// Handle routes one event. Returned errors are retried by the consumer, so
// only failures worth retrying (sync and index errors) propagate; malformed
// payloads are dropped with a log line.
func (h *Handler) Handle(ctx context.Context, e *kafka.Event) error {
	switch e.EventType {
	case TypeProductCreated, TypeProductUpdated:
		var p ProductPayload
		if err := h.decode(ctx, e, &p); err != nil {
			return nil
		}
		return h.triggers.ProductChanged(ctx, h.entityID(e, p.ProductID))

	case TypeProductDeleted:
		var p ProductPayload
		if err := h.decode(ctx, e, &p); err != nil {
			return nil
		}
		return h.triggers.ProductDeleted(ctx, h.entityID(e, p.ProductID))

	case TypeVariantCreated, TypeVariantUpdated, TypeVariantDeleted:
		var p VariantPayload
		if err := h.decode(ctx, e, &p); err != nil {
			return nil
		}
		return h.triggers.VariantChanged(ctx, h.entityID(e, p.VariantID), p.ProductID)

	case TypeCategoryCreated, TypeCategoryUpdated:
		var p CategoryPayload
		if err := h.decode(ctx, e, &p); err != nil {
			return nil
		}
		return h.triggers.CategoryChanged(ctx, h.entityID(e, p.CategoryID))

	case TypeCategoryDeleted:
		var p CategoryPayload
		if err := h.decode(ctx, e, &p); err != nil {
			return nil
		}
		return h.triggers.CategoryDeleted(ctx, h.entityID(e, p.CategoryID))

	case TypeCollectionCreated, TypeCollectionUpdated, TypeCollectionDeleted:
		var p CollectionPayload
		if err := h.decode(ctx, e, &p); err != nil {
			return nil
		}
		return h.triggers.CollectionChanged(ctx, h.entityID(e, p.CollectionID))

	case TypeOrderPlaced, TypeOrderUpdated, TypeOrderCanceled:
		var p OrderPayload
		if err := h.decode(ctx, e, &p); err != nil {
			return nil
		}
		return h.triggers.StockChanged(ctx, orderVariantIDs(p.Items))

	case TypeReservationChanged:
		var p ReservationPayload
		if err := h.decode(ctx, e, &p); err != nil {
			return nil
		}
		if p.VariantID == "" {
			return nil
		}
		return h.triggers.StockChanged(ctx, []string{p.VariantID})

	default:
		h.logger.InfoContext(ctx, "skipping unknown event type",
			slog.String("event_type", e.EventType),
			slog.String("event_id", e.EventID),
		)
		return nil
	}
}

// decode unmarshals the payload; a malformed payload is logged and reported
// as an error value so callers skip the event instead of retrying it.
func (h *Handler) decode(ctx context.Context, e *kafka.Event, target any) error {
	if err := e.UnmarshalData(target); err != nil {
		h.logger.ErrorContext(ctx, "dropping event with malformed payload",
			slog.String("event_type", e.EventType),
			slog.String("event_id", e.EventID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// entityID prefers the typed payload id, falling back to the envelope's
// aggregate id for producers that only fill the envelope.
func (h *Handler) entityID(e *kafka.Event, payloadID string) string {
	if payloadID != "" {
		return payloadID
	}
	return e.AggregateID
}

func orderVariantIDs(items []OrderItem) []string {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.VariantID == "" {
			continue
		}
		if _, dup := seen[item.VariantID]; dup {
			continue
		}
		seen[item.VariantID] = struct{}{}
		ids = append(ids, item.VariantID)
	}
	return ids
}
