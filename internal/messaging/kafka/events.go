package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated         EventType = "order.created"
	EventTypeOrderStatusRefreshed EventType = "order.status_refreshed"
	EventTypeOrderCanceled        EventType = "order.canceled"
	EventTypeOrderRefunded        EventType = "order.refunded"

	// Payment события
	EventTypePaymentIssued EventType = "payment.issued"
)

// Topics для Kafka
const (
	TopicOrderEvents = "vizinhos.order.events"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType   EventType              `json:"event_type"`
	OrderID     string                 `json:"order_id"`
	CustomerCPF string                 `json:"customer_cpf"`
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, customerCPF, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:   eventType,
		OrderID:     orderID,
		CustomerCPF: customerCPF,
		Status:      status,
		Timestamp:   time.Now(),
		Metadata:    metadata,
	}
}

// EventPublisher абстрагирует публикацию событий для сервисного слоя.
type EventPublisher interface {
	PublishEvent(topic string, key string, event interface{}) error
}

var _ EventPublisher = (*Producer)(nil)
