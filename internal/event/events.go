package event

import "github.com/teilehaus/searchsync/pkg/kafka"

// Event types carried in the envelope's event_type field. The set is closed:
// the dispatcher logs and skips anything else.
const (
	TypeProductCreated = "product.created"
	TypeProductUpdated = "product.updated"
	TypeProductDeleted = "product.deleted"

	TypeVariantCreated = "variant.created"
	TypeVariantUpdated = "variant.updated"
	TypeVariantDeleted = "variant.deleted"

	TypeCategoryCreated = "category.created"
	TypeCategoryUpdated = "category.updated"
	TypeCategoryDeleted = "category.deleted"

	TypeCollectionCreated = "collection.created"
	TypeCollectionUpdated = "collection.updated"
	TypeCollectionDeleted = "collection.deleted"

	TypeOrderPlaced   = "order.placed"
	TypeOrderUpdated  = "order.updated"
	TypeOrderCanceled = "order.canceled"

	TypeReservationChanged = "reservation.status_changed"
)

// Topics returns every Kafka topic this service subscribes to.
func Topics() []string {
	return []string{
		kafka.Topic("product", "lifecycle"),
		kafka.Topic("variant", "lifecycle"),
		kafka.Topic("category", "lifecycle"),
		kafka.Topic("collection", "lifecycle"),
		kafka.Topic("order", "lifecycle"),
		kafka.Topic("reservation", "lifecycle"),
	}
}

// ProductPayload accompanies product lifecycle events.
type ProductPayload struct {
	ProductID string `json:"product_id"`
}

// VariantPayload accompanies variant lifecycle events. ProductID may be
// empty on older producers; the trigger then resolves it from the catalog.
type VariantPayload struct {
	VariantID string `json:"variant_id"`
	ProductID string `json:"product_id,omitempty"`
}

// CategoryPayload accompanies category lifecycle events.
type CategoryPayload struct {
	CategoryID string `json:"category_id"`
}

// CollectionPayload accompanies collection lifecycle events.
type CollectionPayload struct {
	CollectionID string `json:"collection_id"`
}

// OrderItem is one line of an order or reservation payload. ProductID may be
// absent when the producer only knows the variant.
type OrderItem struct {
	VariantID string `json:"variant_id"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// OrderPayload accompanies order lifecycle events.
type OrderPayload struct {
	OrderID string      `json:"order_id"`
	Items   []OrderItem `json:"items"`
}

// ReservationPayload accompanies inventory reservation status changes.
type ReservationPayload struct {
	ReservationID string `json:"reservation_id"`
	VariantID     string `json:"variant_id"`
	Status        string `json:"status"`
}
