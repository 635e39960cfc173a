package app

import (
	"github.com/vizinhos/orders/internal/domain"
	"github.com/vizinhos/orders/internal/messaging/kafka"
	"github.com/vizinhos/orders/internal/service/order"
)

// createManager собирает менеджер заказов с публикацией событий в Kafka или
// без неё, в зависимости от наличия producer.
func createManager(
	deps *Dependencies,
	gateway domain.PaymentGateway,
	producer *kafka.Producer,
) *order.Manager {
	logger := deps.Logger.WithField("layer", "service")

	if producer != nil {
		return order.NewManagerWithKafka(
			deps.Orders,
			deps.Stores,
			deps.Users,
			deps.Timeline,
			deps.Catalog,
			gateway,
			producer,
			logger,
		)
	}

	return order.NewManager(
		deps.Orders,
		deps.Stores,
		deps.Users,
		deps.Timeline,
		deps.Catalog,
		gateway,
		logger,
	)
}
