package httpapi

import (
	"encoding/json"
	"io"

	"github.com/shopspring/decimal"

	"github.com/vizinhos/orders/internal/domain"
	"github.com/vizinhos/orders/internal/service/order"
)

// Имена полей повторяют схему существующих клиентов (португальские ключи),
// менять их нельзя.

type orderItemPayload struct {
	LotID     string          `json:"fk_id_Lote"`
	Quantity  int32           `json:"quantidade_item"`
	UnitPrice decimal.Decimal `json:"preco_unitario"`
}

type createOrderRequest struct {
	CustomerCPF  string             `json:"fk_Usuario_cpf"`
	Amount       decimal.Decimal    `json:"valor"`
	DeliveryType string             `json:"tipo_entrega"`
	Items        []orderItemPayload `json:"item_pedido"`
	StoreID      string             `json:"id_Loja"`
}

type orderIDRequest struct {
	OrderID string `json:"id_Pedido"`
}

type paymentPayload struct {
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	PaymentID    int64  `json:"payment_id"`
	CollectorID  int64  `json:"collector_id"`
}

type createOrderResponse struct {
	OrderID string         `json:"id_Pedido"`
	Status  string         `json:"status_pedido"`
	Payment paymentPayload `json:"pagamento"`
}

type timelineRecord struct {
	Type     string `json:"evento"`
	Reason   string `json:"detalhe,omitempty"`
	Occurred string `json:"ocorrido_em"`
}

type orderRecord struct {
	ID            string             `json:"id_Pedido"`
	CustomerCPF   string             `json:"fk_Usuario_cpf"`
	StoreID       string             `json:"id_Loja"`
	Amount        decimal.Decimal    `json:"valor"`
	DeliveryType  string             `json:"tipo_entrega"`
	Status        string             `json:"status_pedido"`
	PaymentID     int64              `json:"payment_id,omitempty"`
	CollectorID   int64              `json:"collector_id,omitempty"`
	TransactionID string             `json:"transaction_id,omitempty"`
	RefundID      int64              `json:"refund_id,omitempty"`
	ReviewDone    bool               `json:"avaliacao_feita"`
	Items         []orderItemPayload `json:"item_pedido"`
	CreatedAt     string             `json:"data_criacao"`
	UpdatedAt     string             `json:"data_atualizacao"`
	Timeline      []timelineRecord   `json:"historico,omitempty"`
}

type refreshOrderResponse struct {
	Order orderRecord `json:"pedido"`
}

type cancelOrderResponse struct {
	OrderID      string `json:"id_Pedido"`
	PaymentID    int64  `json:"payment_id"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
}

type refundDetailsPayload struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type refundOrderResponse struct {
	OrderID       string               `json:"id_Pedido"`
	PaymentID     int64                `json:"payment_id"`
	RefundDetails refundDetailsPayload `json:"refund_details"`
	ProcessedAt   string               `json:"processed_at"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// decodeCreateOrder разбирает и проверяет тело запроса за один проход,
// останавливаясь на первом некорректном поле.
func decodeCreateOrder(body io.Reader) (createOrderRequest, error) {
	var req createOrderRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return createOrderRequest{}, domain.NewValidationError("corpo da requisição inválido: JSON malformado")
	}

	if req.CustomerCPF == "" {
		return createOrderRequest{}, domain.NewValidationError("campo fk_Usuario_cpf é obrigatório")
	}
	if req.StoreID == "" {
		return createOrderRequest{}, domain.NewValidationError("campo id_Loja é obrigatório")
	}
	if req.DeliveryType == "" {
		return createOrderRequest{}, domain.NewValidationError("campo tipo_entrega é obrigatório")
	}
	if req.Amount.IsZero() || req.Amount.IsNegative() {
		return createOrderRequest{}, domain.NewValidationError("campo valor deve ser maior que zero")
	}
	if len(req.Items) == 0 {
		return createOrderRequest{}, domain.NewValidationError("campo item_pedido deve conter ao menos um item")
	}
	for idx, item := range req.Items {
		if item.LotID == "" {
			return createOrderRequest{}, domain.NewValidationError("item_pedido[%d]: campo fk_id_Lote é obrigatório", idx)
		}
		if item.Quantity <= 0 {
			return createOrderRequest{}, domain.NewValidationError("item_pedido[%d]: quantidade_item deve ser maior que zero", idx)
		}
		if item.UnitPrice.IsNegative() {
			return createOrderRequest{}, domain.NewValidationError("item_pedido[%d]: preco_unitario não pode ser negativo", idx)
		}
	}

	return req, nil
}

func decodeOrderID(body io.Reader) (string, error) {
	var req orderIDRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return "", domain.NewValidationError("corpo da requisição inválido: JSON malformado")
	}
	if req.OrderID == "" {
		return "", domain.NewValidationError("campo id_Pedido é obrigatório")
	}
	return req.OrderID, nil
}

func toDomainItems(items []orderItemPayload) []domain.OrderItem {
	result := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		result = append(result, domain.OrderItem{
			LotID:     item.LotID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return result
}

func toItemPayloads(items []domain.OrderItem) []orderItemPayload {
	result := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		result = append(result, orderItemPayload{
			LotID:     item.LotID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return result
}

func toOrderRecord(ord domain.Order, timeline []domain.TimelineEvent) orderRecord {
	record := orderRecord{
		ID:            ord.ID,
		CustomerCPF:   ord.CustomerCPF,
		StoreID:       ord.StoreID,
		Amount:        ord.Amount,
		DeliveryType:  ord.DeliveryType,
		Status:        string(ord.Status),
		PaymentID:     ord.PaymentID,
		CollectorID:   ord.CollectorID,
		TransactionID: ord.TransactionID,
		RefundID:      ord.RefundID,
		ReviewDone:    ord.ReviewDone,
		Items:         toItemPayloads(ord.Items),
		CreatedAt:     domain.FormatTimestamp(ord.CreatedAt),
		UpdatedAt:     domain.FormatTimestamp(ord.UpdatedAt),
	}
	for _, ev := range timeline {
		record.Timeline = append(record.Timeline, timelineRecord{
			Type:     ev.Type,
			Reason:   ev.Reason,
			Occurred: domain.FormatTimestamp(ev.Occurred),
		})
	}
	return record
}

func toCreateOrderResponse(result order.CreateOrderResult) createOrderResponse {
	return createOrderResponse{
		OrderID: result.Order.ID,
		Status:  string(result.Order.Status),
		Payment: paymentPayload{
			QRCode:       result.Payment.QRCode,
			QRCodeBase64: result.Payment.QRCodeBase64,
			PaymentID:    result.Payment.PaymentID,
			CollectorID:  result.Payment.CollectorID,
		},
	}
}

func toCancelOrderResponse(result order.CancelResult) cancelOrderResponse {
	return cancelOrderResponse{
		OrderID:      result.OrderID,
		PaymentID:    result.PaymentID,
		Status:       string(result.Status),
		StatusDetail: result.StatusDetail,
	}
}

func toRefundOrderResponse(result order.RefundResult) refundOrderResponse {
	return refundOrderResponse{
		OrderID:   result.OrderID,
		PaymentID: result.PaymentID,
		RefundDetails: refundDetailsPayload{
			ID:     result.Refund.ID,
			Status: result.Refund.Status,
		},
		ProcessedAt: domain.FormatTimestamp(result.ProcessedAt),
	}
}
