// Пакет order реализует жизненный цикл заказа: создание с выставлением
// PIX-платежа, сверку статуса с провайдером, отмену и возврат средств.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vizinhos/orders/internal/cache"
	"github.com/vizinhos/orders/internal/domain"
	"github.com/vizinhos/orders/internal/messaging/kafka"
	"github.com/vizinhos/orders/internal/metrics"
	"github.com/vizinhos/orders/internal/service/pricing"
)

// CreateOrderInput — входные данные создания заказа.
type CreateOrderInput struct {
	CustomerCPF  string
	StoreID      string
	DeliveryType string
	Amount       decimal.Decimal
	Items        []domain.OrderItem
}

// CreateOrderResult — созданный заказ вместе с данными PIX-платежа для рендера QR-кода.
type CreateOrderResult struct {
	Order   domain.Order
	Payment domain.PixPayment
}

// CancelResult — итог отмены платежа.
type CancelResult struct {
	OrderID      string
	PaymentID    int64
	Status       domain.PaymentGatewayStatus
	StatusDetail string
}

// RefundResult — итог возврата средств.
type RefundResult struct {
	OrderID     string
	PaymentID   int64
	Refund      domain.Refund
	ProcessedAt time.Time
}

// Manager координирует операции жизненного цикла заказа. Все изменяющие
// операции запрашивают свежий статус платежа у провайдера непосредственно
// перед действием: кэшированное состояние для этого не используется.
type Manager struct {
	orders    domain.OrderRepository
	stores    domain.StoreRepository
	timeline  domain.TimelineRepository
	gateway   domain.PaymentGateway
	verifier  *pricing.Verifier
	users     *cache.ReadThrough[string, domain.User]
	publisher kafka.EventPublisher // опциональный Kafka publisher
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
}

// NewManager создаёт рабочий экземпляр менеджера заказов.
func NewManager(
	orders domain.OrderRepository,
	stores domain.StoreRepository,
	users domain.UserRepository,
	timeline domain.TimelineRepository,
	catalog domain.CatalogRepository,
	gateway domain.PaymentGateway,
	logger *log.Entry,
) *Manager {
	if logger == nil {
		logger = log.New().WithField("component", "order-manager")
	}
	return &Manager{
		orders:   orders,
		stores:   stores,
		timeline: timeline,
		gateway:  gateway,
		verifier: pricing.NewVerifier(catalog, logger),
		users:    cache.NewReadThrough(users.Get),
		metrics:  metrics.NewOrderMetrics(),
		logger:   logger,
	}
}

// NewManagerWithKafka создаёт менеджер с публикацией событий заказа в Kafka.
func NewManagerWithKafka(
	orders domain.OrderRepository,
	stores domain.StoreRepository,
	users domain.UserRepository,
	timeline domain.TimelineRepository,
	catalog domain.CatalogRepository,
	gateway domain.PaymentGateway,
	publisher kafka.EventPublisher,
	logger *log.Entry,
) *Manager {
	m := NewManager(orders, stores, users, timeline, catalog, gateway, logger)
	m.publisher = publisher
	return m
}

// NewManagerWithoutMetrics создаёт менеджер без метрик (для тестов).
func NewManagerWithoutMetrics(
	orders domain.OrderRepository,
	stores domain.StoreRepository,
	users domain.UserRepository,
	timeline domain.TimelineRepository,
	catalog domain.CatalogRepository,
	gateway domain.PaymentGateway,
	logger *log.Entry,
) *Manager {
	m := NewManager(orders, stores, users, timeline, catalog, gateway, logger)
	m.metrics = nil
	return m
}

// CreateOrder проверяет заказ против каталога, выставляет PIX-платёж и только
// после успешного ответа провайдера сохраняет заказ с позициями. Если платёж
// выставить не удалось, локально ничего не остаётся.
func (m *Manager) CreateOrder(ctx context.Context, input CreateOrderInput) (CreateOrderResult, error) {
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.RecordOperationDuration("create", time.Since(start))
		}
	}()

	cpf, err := domain.NormalizeCPF(input.CustomerCPF)
	if err != nil {
		return CreateOrderResult{}, m.failOperation("create", err)
	}
	if input.DeliveryType == "" {
		return CreateOrderResult{}, m.failOperation("create",
			domain.NewValidationError("tipo_entrega é obrigatório"))
	}

	now := domain.Now()
	order := domain.Order{
		ID:           uuid.NewString(),
		CustomerCPF:  cpf,
		StoreID:      input.StoreID,
		Amount:       input.Amount,
		DeliveryType: input.DeliveryType,
		Status:       domain.OrderStatusAwaitingPayment,
		Items:        cloneItems(input.Items),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return CreateOrderResult{}, m.failOperation("create", errors.Join(errs...))
	}

	user, err := m.users.Get(cpf)
	if err != nil {
		return CreateOrderResult{}, m.failOperation("create", err)
	}

	lineItems, err := m.verifier.Verify(order.Items, order.Amount)
	if err != nil {
		return CreateOrderResult{}, m.failOperation("create", err)
	}

	// Токен магазина читается заново при каждом вызове, без кэша.
	store, err := m.stores.Get(order.StoreID)
	if err != nil {
		return CreateOrderResult{}, m.failOperation("create", err)
	}
	if store.AccessToken == "" {
		return CreateOrderResult{}, m.failOperation("create",
			domain.NewValidationError("loja %s não possui token de acesso configurado", store.ID))
	}

	payment, err := m.gateway.CreatePixPayment(ctx, store.AccessToken, domain.PixPaymentRequest{
		Amount:     order.Amount,
		PayerEmail: user.Email,
		Items:      lineItems,
		// Свежий ключ на каждую логическую попытку: повтор запроса с тем же
		// ключом и другим телом провайдер отклоняет.
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"store_id": order.StoreID,
			"cpf":      cpf,
		}).Warn("pix payment creation failed")
		return CreateOrderResult{}, m.failOperation("create", err)
	}

	order.PaymentID = payment.PaymentID
	order.CollectorID = payment.CollectorID

	if err := m.orders.Create(order); err != nil {
		// Платёж у провайдера уже выставлен: фиксируем идентификаторы в логе,
		// чтобы расхождение можно было разобрать вручную.
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id":   order.ID,
			"payment_id": payment.PaymentID,
		}).Error("order persistence failed after payment issuance")
		return CreateOrderResult{}, m.failOperation("create", err)
	}

	m.appendTimeline(order.ID, "OrderCreated", "", order.CreatedAt)
	m.publishOrderEvent(kafka.EventTypeOrderCreated, &order, map[string]interface{}{
		"payment_id":   payment.PaymentID,
		"collector_id": payment.CollectorID,
	})
	if m.metrics != nil {
		m.metrics.RecordOrderCreated()
	}

	m.logger.WithFields(log.Fields{
		"order_id":   order.ID,
		"payment_id": payment.PaymentID,
		"amount":     order.Amount.String(),
	}).Info("order created with issued pix payment")

	return CreateOrderResult{Order: order, Payment: payment}, nil
}

// RefreshStatus запрашивает статус платежа у провайдера и приводит локальный
// статус заказа в соответствие. Операция идемпотентна: повторный вызов при
// неизменном статусе провайдера ничего не меняет.
func (m *Manager) RefreshStatus(ctx context.Context, orderID string) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.RecordOperationDuration("refresh", time.Since(start))
		}
	}()

	order, err := m.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, m.failOperation("refresh", err)
	}
	store, err := m.requirePayment(&order)
	if err != nil {
		return domain.Order{}, m.failOperation("refresh", err)
	}

	info, err := m.gateway.GetPayment(ctx, store.AccessToken, order.PaymentID)
	if err != nil {
		return domain.Order{}, m.failOperation("refresh", err)
	}

	mapped := domain.MapPaymentStatus(info.Status)
	changed := order.Status != mapped

	if err := m.saveWithRetry(&order, func(o *domain.Order) {
		o.Status = mapped
		if mapped == domain.OrderStatusPaid && o.TransactionID == "" {
			// Идентификатор транзакции фиксируется один раз, при первом
			// наблюдении оплаты.
			o.TransactionID = info.TransactionID
		}
		o.UpdatedAt = domain.Now()
	}); err != nil {
		return domain.Order{}, m.failOperation("refresh", err)
	}

	if m.metrics != nil {
		m.metrics.RecordStatusRefresh()
	}
	if changed {
		m.appendTimeline(order.ID, "OrderStatusChanged", string(mapped), order.UpdatedAt)
		m.publishOrderEvent(kafka.EventTypeOrderStatusRefreshed, &order, map[string]interface{}{
			"gateway_status": info.Status,
			"status_detail":  info.StatusDetail,
		})
		m.logger.WithFields(log.Fields{
			"order_id":   order.ID,
			"payment_id": order.PaymentID,
			"status":     mapped,
		}).Info("order status updated from gateway")
	}

	return order, nil
}

// Cancel отменяет платёж заказа. Право на отмену определяется свежим статусом
// провайдера, запрошенным непосредственно перед действием: отменить можно
// только платёж в статусе pending, in_process или authorized.
func (m *Manager) Cancel(ctx context.Context, orderID string) (CancelResult, error) {
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.RecordOperationDuration("cancel", time.Since(start))
		}
	}()

	order, err := m.orders.Get(orderID)
	if err != nil {
		return CancelResult{}, m.failOperation("cancel", err)
	}
	store, err := m.requirePayment(&order)
	if err != nil {
		return CancelResult{}, m.failOperation("cancel", err)
	}

	// Статус провайдера запрашивается заново; при ошибке запроса отмена не
	// предпринимается — допустимость действия по устаревшим данным не
	// предполагается.
	info, err := m.gateway.GetPayment(ctx, store.AccessToken, order.PaymentID)
	if err != nil {
		return CancelResult{}, m.failOperation("cancel", err)
	}
	if !domain.IsCancellable(info.Status) {
		return CancelResult{}, m.failOperation("cancel", domain.NewValidationError(
			"não é possível cancelar o pagamento com status %s; apenas pending, in_process ou authorized",
			info.Status))
	}

	result, err := m.gateway.CancelPayment(ctx, store.AccessToken, order.PaymentID)
	if err != nil {
		// LockedError пробрасывается без изменения заказа: провайдер
		// отклонил повторную идентичную попытку.
		return CancelResult{}, m.failOperation("cancel", err)
	}
	if result.Status != domain.PaymentStatusCancelled {
		return CancelResult{}, m.failOperation("cancel", domain.NewGatewayError(502,
			"provedor não confirmou o cancelamento do pagamento (status %s)", result.Status))
	}

	if err := m.saveWithRetry(&order, func(o *domain.Order) {
		o.Status = domain.OrderStatusCancelled
		o.UpdatedAt = domain.Now()
	}); err != nil {
		// Провайдер уже отменил платёж; локальное состояние догонит сверка.
		m.logger.WithError(err).WithField("order_id", order.ID).
			Error("failed to persist cancellation confirmed by gateway")
		return CancelResult{}, m.failOperation("cancel", err)
	}

	m.appendTimeline(order.ID, "OrderCanceled", result.StatusDetail, order.UpdatedAt)
	m.publishOrderEvent(kafka.EventTypeOrderCanceled, &order, map[string]interface{}{
		"gateway_status": result.Status,
	})
	if m.metrics != nil {
		m.metrics.RecordOrderCanceled()
	}

	m.logger.WithFields(log.Fields{
		"order_id":   order.ID,
		"payment_id": order.PaymentID,
	}).Info("order canceled")

	return CancelResult{
		OrderID:      order.ID,
		PaymentID:    order.PaymentID,
		Status:       result.Status,
		StatusDetail: result.StatusDetail,
	}, nil
}

// Refund выполняет полный возврат средств. Возврат допустим только для платежа
// в статусе approved; статус запрашивается у провайдера непосредственно перед
// действием, и если его не удалось получить, возврат не предпринимается.
func (m *Manager) Refund(ctx context.Context, orderID string) (RefundResult, error) {
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.RecordOperationDuration("refund", time.Since(start))
		}
	}()

	order, err := m.orders.Get(orderID)
	if err != nil {
		return RefundResult{}, m.failOperation("refund", err)
	}
	store, err := m.requirePayment(&order)
	if err != nil {
		return RefundResult{}, m.failOperation("refund", err)
	}

	info, err := m.gateway.GetPayment(ctx, store.AccessToken, order.PaymentID)
	if err != nil {
		return RefundResult{}, m.failOperation("refund", domain.NewGatewayError(503,
			"falha ao verificar o status atual do pagamento; reembolso não realizado"))
	}
	if info.Status != domain.PaymentStatusApproved {
		return RefundResult{}, m.failOperation("refund", domain.NewValidationError(
			"reembolso não permitido: o pagamento está com status %s, apenas approved pode ser reembolsado",
			info.Status))
	}

	refund, err := m.gateway.RefundPayment(ctx, store.AccessToken, order.PaymentID, uuid.NewString())
	if err != nil {
		return RefundResult{}, m.failOperation("refund", err)
	}

	processedAt := domain.Now()
	// Возврат у провайдера уже состоялся: ошибка локального сохранения не
	// отменяет операцию, расхождение закроет сверка.
	if err := m.saveWithRetry(&order, func(o *domain.Order) {
		o.Status = domain.OrderStatusRefunded
		o.RefundID = refund.ID
		o.UpdatedAt = processedAt
	}); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id":  order.ID,
			"refund_id": refund.ID,
		}).Warn("refund succeeded at gateway but local save failed")
	} else {
		m.appendTimeline(order.ID, "OrderRefunded", "", processedAt)
	}

	m.publishOrderEvent(kafka.EventTypeOrderRefunded, &order, map[string]interface{}{
		"refund_id": refund.ID,
	})
	if m.metrics != nil {
		m.metrics.RecordOrderRefunded()
	}

	m.logger.WithFields(log.Fields{
		"order_id":  order.ID,
		"refund_id": refund.ID,
	}).Info("order refunded")

	return RefundResult{
		OrderID:     order.ID,
		PaymentID:   order.PaymentID,
		Refund:      refund,
		ProcessedAt: processedAt,
	}, nil
}

// Timeline возвращает события жизненного цикла заказа.
func (m *Manager) Timeline(orderID string) ([]domain.TimelineEvent, error) {
	if _, err := m.orders.Get(orderID); err != nil {
		return nil, err
	}
	return m.timeline.List(orderID)
}

// requirePayment проверяет, что у заказа есть выставленный платёж и магазин с
// токеном, и возвращает данные магазина.
func (m *Manager) requirePayment(order *domain.Order) (domain.Store, error) {
	if order.PaymentID == 0 {
		return domain.Store{}, domain.NewValidationError(
			"pedido %s não possui pagamento associado", order.ID)
	}
	if order.StoreID == "" {
		return domain.Store{}, domain.NewValidationError(
			"pedido %s não possui loja associada", order.ID)
	}
	store, err := m.stores.Get(order.StoreID)
	if err != nil {
		return domain.Store{}, err
	}
	if store.AccessToken == "" {
		return domain.Store{}, domain.NewValidationError(
			"loja %s não possui token de acesso configurado", store.ID)
	}
	return store, nil
}

// saveWithRetry применяет мутацию и сохраняет заказ, перечитывая свежую версию
// при version conflict. Exponential backoff между попытками.
func (m *Manager) saveWithRetry(order *domain.Order, mutate func(*domain.Order)) error {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		mutate(order)
		prevVersion := order.Version

		if err := m.orders.Save(*order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				m.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := m.orders.Get(order.ID)
				if loadErr != nil {
					m.logger.WithError(loadErr).WithField("order_id", order.ID).
						Error("failed to reload order after conflict")
					return loadErr
				}
				*order = fresh

				delay := baseDelay * time.Duration(1<<uint(attempt))
				time.Sleep(delay)
				continue
			}

			m.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Error("failed to persist order")
			return err
		}

		order.Version = prevVersion + 1
		return nil
	}

	return domain.ErrOrderVersionConflict
}

func (m *Manager) appendTimeline(orderID, eventType, reason string, occurred time.Time) {
	if m.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := m.timeline.Append(event); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("append timeline event failed")
	} else if m.metrics != nil {
		m.metrics.RecordTimelineEvent()
	}
}

// publishOrderEvent публикует событие заказа в Kafka (если publisher настроен).
func (m *Manager) publishOrderEvent(eventType kafka.EventType, order *domain.Order, metadata map[string]interface{}) {
	if m.publisher == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.CustomerCPF, string(order.Status), metadata)
	if err := m.publisher.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		// Kafka опциональна: ошибку логируем, операцию не прерываем.
		m.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

func (m *Manager) failOperation(operation string, err error) error {
	if m.metrics != nil {
		m.metrics.RecordOperationFailed(operation)
	}
	return err
}

func cloneItems(items []domain.OrderItem) []domain.OrderItem {
	copied := make([]domain.OrderItem, len(items))
	copy(copied, items)
	return copied
}
