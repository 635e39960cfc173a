package domain

import (
	"context"
	"time"
)

// PaymentGateway описывает взаимодействие с платёжным провайдером.
// Учётные данные (access token магазина) передаются в каждый вызов явно:
// адаптер не кэширует привязку к магазину между заказами.
type PaymentGateway interface {
	// CreatePixPayment выставляет PIX-платёж и возвращает данные QR-кода.
	CreatePixPayment(ctx context.Context, accessToken string, req PixPaymentRequest) (PixPayment, error)
	// GetPayment возвращает текущее состояние платежа у провайдера.
	GetPayment(ctx context.Context, accessToken string, paymentID int64) (PaymentInfo, error)
	// CancelPayment отменяет ещё не списанный платёж.
	// Возвращает LockedError, если провайдер отклонил повторную попытку.
	CancelPayment(ctx context.Context, accessToken string, paymentID int64) (PaymentInfo, error)
	// RefundPayment выполняет полный возврат подтверждённого платежа.
	RefundPayment(ctx context.Context, accessToken string, paymentID int64, idempotencyKey string) (Refund, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
