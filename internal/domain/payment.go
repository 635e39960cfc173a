package domain

import "github.com/shopspring/decimal"

// PaymentGatewayStatus — статус платежа в терминах провайдера (Mercado Pago).
type PaymentGatewayStatus = string

const (
	PaymentStatusPending     PaymentGatewayStatus = "pending"
	PaymentStatusApproved    PaymentGatewayStatus = "approved"
	PaymentStatusAuthorized  PaymentGatewayStatus = "authorized"
	PaymentStatusInProcess   PaymentGatewayStatus = "in_process"
	PaymentStatusInMediation PaymentGatewayStatus = "in_mediation"
	PaymentStatusRejected    PaymentGatewayStatus = "rejected"
	PaymentStatusCancelled   PaymentGatewayStatus = "cancelled"
	PaymentStatusRefunded    PaymentGatewayStatus = "refunded"
	PaymentStatusChargedBack PaymentGatewayStatus = "charged_back"
)

var gatewayStatusMap = map[PaymentGatewayStatus]OrderStatus{
	PaymentStatusPending:     OrderStatusAwaitingPayment,
	PaymentStatusApproved:    OrderStatusPaid,
	PaymentStatusAuthorized:  OrderStatusAuthorized,
	PaymentStatusInProcess:   OrderStatusUnderReview,
	PaymentStatusInMediation: OrderStatusDisputed,
	PaymentStatusRejected:    OrderStatusRejected,
	PaymentStatusCancelled:   OrderStatusCancelled,
	PaymentStatusRefunded:    OrderStatusRefunded,
	PaymentStatusChargedBack: OrderStatusChargedBack,
}

// MapPaymentStatus переводит статус провайдера в локальный статус заказа.
// Функция тотальна: незнакомое значение даёт OrderStatusUnknown, без паники.
func MapPaymentStatus(status PaymentGatewayStatus) OrderStatus {
	if mapped, ok := gatewayStatusMap[status]; ok {
		return mapped
	}
	return OrderStatusUnknown
}

// cancellableStatuses — статусы провайдера, при которых платёж ещё можно отменить.
var cancellableStatuses = map[PaymentGatewayStatus]struct{}{
	PaymentStatusPending:    {},
	PaymentStatusInProcess:  {},
	PaymentStatusAuthorized: {},
}

// IsCancellable сообщает, допускает ли статус провайдера отмену платежа.
func IsCancellable(status PaymentGatewayStatus) bool {
	_, ok := cancellableStatuses[status]
	return ok
}

// PaymentLineItem — позиция заказа, аннотированная данными каталога,
// в том виде, в котором она уходит провайдеру.
type PaymentLineItem struct {
	ID          string
	Title       string
	Description string
	Quantity    int32
	UnitPrice   decimal.Decimal
}

// PixPaymentRequest описывает запрос на выставление PIX-платежа.
// IdempotencyKey обязан быть свежим для каждой логической попытки:
// повторное использование ключа с другим содержимым запрещено провайдером.
type PixPaymentRequest struct {
	Amount         decimal.Decimal
	PayerEmail     string
	Description    string
	Items          []PaymentLineItem
	IdempotencyKey string
}

// PixPayment — результат выставления PIX-платежа: данные для рендера QR-кода.
type PixPayment struct {
	PaymentID    int64
	CollectorID  int64
	Status       PaymentGatewayStatus
	QRCode       string
	QRCodeBase64 string
}

// PaymentInfo — текущее состояние платежа у провайдера.
type PaymentInfo struct {
	PaymentID     int64
	Status        PaymentGatewayStatus
	StatusDetail  string
	TransactionID string
}

// Refund — подтверждение возврата от провайдера.
type Refund struct {
	ID     int64
	Status string
}
