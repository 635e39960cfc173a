package domain

import (
	"errors"
	"fmt"
)

// ValidationError — входные данные запроса некорректны или несогласованы
// (отсутствующее поле, неверный формат CPF, расхождение суммы заказа).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError создаёт ValidationError с форматированным сообщением.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError — запрошенная сущность (заказ, лот, продукт, магазин,
// пользователь) отсутствует в хранилище.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s não encontrado", e.Resource, e.ID)
}

// NewNotFoundError создаёт NotFoundError для сущности с идентификатором.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// GatewayError — платёжный провайдер недоступен или отклонил запрос.
// StatusCode хранит код ответа провайдера (или 503 при сетевой ошибке),
// чтобы HTTP-слой мог пробросить бизнес-отказ провайдера как есть.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return e.Message
}

// NewGatewayError создаёт GatewayError с кодом провайдера.
func NewGatewayError(statusCode int, format string, args ...any) *GatewayError {
	return &GatewayError{StatusCode: statusCode, Message: fmt.Sprintf(format, args...)}
}

// LockedError — провайдер сообщил, что идентичный изменяющий запрос уже был
// принят недавно (HTTP 423). Это не успех и не жёсткий отказ: вызывающая
// сторона сама решает, когда повторить попытку.
type LockedError struct {
	Message string
}

func (e *LockedError) Error() string {
	return e.Message
}

var (
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrOrderVersionConflict = errors.New("order version conflict")

	// Ошибки слоя идемпотентности HTTP-запросов.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with a different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// IsValidation проверяет, относится ли ошибка к ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound проверяет, относится ли ошибка к NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsGateway проверяет, относится ли ошибка к GatewayError.
func IsGateway(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// IsLocked проверяет, относится ли ошибка к LockedError.
func IsLocked(err error) bool {
	var le *LockedError
	return errors.As(err, &le)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
