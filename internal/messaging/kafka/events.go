package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderCompleted EventType = "order.completed"
	EventTypeOrderCancelled EventType = "order.cancelled"

	// Stock события
	EventTypeStockDecreased EventType = "stock.decreased"
	EventTypeStockRestored  EventType = "stock.restored"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "orders.order.events"
	TopicStockEvents     = "orders.stock.events"
	TopicDeadLetterQueue = "orders.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	CustomerID string                 `json:"customer_id"`
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// StockEvent представляет изменение остатка товара
type StockEvent struct {
	EventType EventType `json:"event_type"`
	ProductID string    `json:"product_id"`
	OrderID   string    `json:"order_id"`
	Qty       int32     `json:"qty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, customerID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Status:     status,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}

// NewStockEvent создает новое событие изменения остатка
func NewStockEvent(eventType EventType, productID, orderID string, qty int32) *StockEvent {
	return &StockEvent{
		EventType: eventType,
		ProductID: productID,
		OrderID:   orderID,
		Qty:       qty,
		Timestamp: time.Now(),
	}
}
