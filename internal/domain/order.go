package domain

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа. Значения совпадают с
// метками, уже сохранёнными в существующих записях, и поэтому не переводятся.
type OrderStatus string

const (
	// OrderStatusAwaitingPayment — заказ создан, PIX-платёж выставлен, ожидаем подтверждения.
	OrderStatusAwaitingPayment OrderStatus = "Aguardando Pagamento"
	// OrderStatusPaid — оплата подтверждена платёжным провайдером.
	OrderStatusPaid OrderStatus = "Pago"
	// OrderStatusAuthorized — сумма зарезервирована, но ещё не списана.
	OrderStatusAuthorized OrderStatus = "Autorizado"
	// OrderStatusUnderReview — платёж на проверке у провайдера.
	OrderStatusUnderReview OrderStatus = "Em análise"
	// OrderStatusDisputed — по платежу открыт спор.
	OrderStatusDisputed OrderStatus = "Em disputa"
	// OrderStatusRejected — провайдер отклонил платёж.
	OrderStatusRejected OrderStatus = "Rejeitado"
	// OrderStatusCancelled — платёж отменён до списания. Терминальный статус.
	OrderStatusCancelled OrderStatus = "Cancelado"
	// OrderStatusRefunded — средства возвращены клиенту. Терминальный статус.
	OrderStatusRefunded OrderStatus = "Reembolsado"
	// OrderStatusChargedBack — провайдер зафиксировал chargeback. Терминальный статус.
	OrderStatusChargedBack OrderStatus = "Chargeback"
	// OrderStatusUnknown — провайдер вернул значение вне известного словаря.
	OrderStatusUnknown OrderStatus = "Status desconhecido"
)

// Terminal сообщает, завершает ли статус жизненный цикл заказа.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusRefunded, OrderStatusChargedBack:
		return true
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа. Цена — снимок на момент
// создания заказа: позже она не пересчитывается, даже если каталожная
// цена изменилась.
type OrderItem struct {
	// LotID — ссылка на партию товара (лот), из которой продаётся позиция.
	LotID string
	// Quantity — количество единиц товара.
	Quantity int32
	// UnitPrice — цена за единицу на момент заказа.
	UnitPrice decimal.Decimal
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID           string
	CustomerCPF  string
	StoreID      string
	Amount       decimal.Decimal
	DeliveryType string
	Status       OrderStatus
	// PaymentID — идентификатор платежа у провайдера; 0, пока платёж не выставлен.
	PaymentID int64
	// CollectorID — идентификатор получателя средств у провайдера.
	CollectorID int64
	// TransactionID фиксируется один раз, при первом наблюдении статуса "Pago".
	TransactionID string
	// RefundID заполняется только после успешного возврата.
	RefundID int64
	// ReviewDone — покупатель оставил отзыв по заказу.
	ReviewDone bool
	Items      []OrderItem
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerCPF == "" {
		errs = append(errs, NewValidationError("fk_Usuario_cpf é obrigatório"))
	}
	if o.StoreID == "" {
		errs = append(errs, NewValidationError("id_Loja é obrigatório"))
	}
	if len(o.Items) == 0 {
		errs = append(errs, NewValidationError("pedido deve conter ao menos um item"))
	}
	if o.Amount.IsNegative() {
		errs = append(errs, NewValidationError("valor do pedido não pode ser negativo"))
	}

	// Сверяем сумму заказа с суммой позиций: qty * unit_price, без допусков.
	sum := decimal.Zero
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, NewValidationError("quantidade_item deve ser maior que zero"))
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, NewValidationError("preco_unitario não pode ser negativo"))
		}
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	if !sum.Equal(o.Amount) {
		errs = append(errs, NewValidationError(
			"valor do pedido (%s) não corresponde à soma dos itens (%s)", o.Amount, sum))
	}

	return errs
}

var (
	nonDigits  = regexp.MustCompile(`\D`)
	cpfPattern = regexp.MustCompile(`^\d{11}$`)
)

// NormalizeCPF убирает из CPF всё, кроме цифр, и проверяет длину.
// Возвращает ValidationError при неверном формате.
func NormalizeCPF(cpf string) (string, error) {
	normalized := nonDigits.ReplaceAllString(cpf, "")
	if !cpfPattern.MatchString(normalized) {
		return "", NewValidationError("formatação de CPF inválida")
	}
	return normalized, nil
}
