package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vizinhos/orders/internal/domain"
)

const (
	// DefaultBaseURL — публичный REST API Mercado Pago.
	DefaultBaseURL = "https://api.mercadopago.com"

	defaultRequestTimeout = 15 * time.Second

	paymentMethodPix   = "pix"
	paymentDescription = "Pedido Vizinhos"
)

var (
	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vizinhos_gateway_request_duration_seconds",
		Help:    "Duration of Mercado Pago API calls grouped by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	gatewayErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vizinhos_gateway_errors_total",
		Help: "Total number of failed Mercado Pago API calls grouped by operation.",
	}, []string{"operation"})
)

// Client — HTTP-адаптер к платёжному API Mercado Pago. Учётные данные
// магазина передаются в каждый вызов; клиент не хранит привязку к токену.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Entry
}

// NewClient создаёт адаптер с ограниченным таймаутом запросов.
func NewClient(baseURL string, logger *log.Entry) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = log.New().WithField("component", "mercadopago")
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     logger,
	}
}

// NewClientWithHTTP позволяет подменить http.Client (для тестов).
func NewClientWithHTTP(baseURL string, httpClient *http.Client, logger *log.Entry) *Client {
	c := NewClient(baseURL, logger)
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

type pixPayer struct {
	Email string `json:"email"`
}

type pixLineItem struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type pixAdditionalInfo struct {
	Items []pixLineItem `json:"items"`
}

type pixPaymentPayload struct {
	TransactionAmount decimal.Decimal   `json:"transaction_amount"`
	PaymentMethodID   string            `json:"payment_method_id"`
	Description       string            `json:"description"`
	Payer             pixPayer          `json:"payer"`
	AdditionalInfo    pixAdditionalInfo `json:"additional_info"`
}

type transactionData struct {
	QRCode        string `json:"qr_code"`
	QRCodeBase64  string `json:"qr_code_base64"`
	TransactionID string `json:"transaction_id"`
}

type pointOfInteraction struct {
	TransactionData transactionData `json:"transaction_data"`
}

type paymentResponse struct {
	ID                 int64              `json:"id"`
	CollectorID        int64              `json:"collector_id"`
	Status             string             `json:"status"`
	StatusDetail       string             `json:"status_detail"`
	AuthorizationCode  string             `json:"authorization_code"`
	PointOfInteraction pointOfInteraction `json:"point_of_interaction"`
}

type refundResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// CreatePixPayment выставляет PIX-платёж. Ключ идемпотентности обязан быть
// свежим для каждой логической попытки: при обрыве ответа провайдер сам
// гарантирует, что повторный запрос с тем же ключом не создаст второй платёж.
func (c *Client) CreatePixPayment(ctx context.Context, accessToken string, req domain.PixPaymentRequest) (domain.PixPayment, error) {
	items := make([]pixLineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, pixLineItem{
			ID:          item.ID,
			Title:       item.Title,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	description := req.Description
	if description == "" {
		description = paymentDescription
	}

	payload := pixPaymentPayload{
		TransactionAmount: req.Amount,
		PaymentMethodID:   paymentMethodPix,
		Description:       description,
		Payer:             pixPayer{Email: req.PayerEmail},
		AdditionalInfo:    pixAdditionalInfo{Items: items},
	}

	headers := map[string]string{"X-Idempotency-Key": req.IdempotencyKey}
	var resp paymentResponse
	if err := c.do(ctx, "create_pix_payment", http.MethodPost, "/v1/payments", accessToken, headers, payload, &resp); err != nil {
		return domain.PixPayment{}, err
	}

	return domain.PixPayment{
		PaymentID:    resp.ID,
		CollectorID:  resp.CollectorID,
		Status:       resp.Status,
		QRCode:       resp.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64: resp.PointOfInteraction.TransactionData.QRCodeBase64,
	}, nil
}

// GetPayment возвращает текущее состояние платежа.
func (c *Client) GetPayment(ctx context.Context, accessToken string, paymentID int64) (domain.PaymentInfo, error) {
	var resp paymentResponse
	path := "/v1/payments/" + strconv.FormatInt(paymentID, 10)
	if err := c.do(ctx, "get_payment", http.MethodGet, path, accessToken, nil, nil, &resp); err != nil {
		return domain.PaymentInfo{}, err
	}
	return toPaymentInfo(resp), nil
}

// CancelPayment отменяет платёж. Провайдер допускает отмену только до
// списания средств; за повторную попытку в течение короткого интервала
// возвращается LockedError.
func (c *Client) CancelPayment(ctx context.Context, accessToken string, paymentID int64) (domain.PaymentInfo, error) {
	var resp paymentResponse
	path := "/v1/payments/" + strconv.FormatInt(paymentID, 10)
	payload := map[string]string{"status": domain.PaymentStatusCancelled}
	if err := c.do(ctx, "cancel_payment", http.MethodPut, path, accessToken, nil, payload, &resp); err != nil {
		return domain.PaymentInfo{}, err
	}
	return toPaymentInfo(resp), nil
}

// RefundPayment выполняет полный возврат платежа (частичные возвраты не поддерживаются).
func (c *Client) RefundPayment(ctx context.Context, accessToken string, paymentID int64, idempotencyKey string) (domain.Refund, error) {
	var resp refundResponse
	path := "/v1/payments/" + strconv.FormatInt(paymentID, 10) + "/refunds"
	headers := map[string]string{"X-Idempotency-Key": idempotencyKey}
	if err := c.do(ctx, "refund_payment", http.MethodPost, path, accessToken, headers, nil, &resp); err != nil {
		return domain.Refund{}, err
	}
	return domain.Refund{ID: resp.ID, Status: resp.Status}, nil
}

func toPaymentInfo(resp paymentResponse) domain.PaymentInfo {
	transactionID := resp.PointOfInteraction.TransactionData.TransactionID
	if transactionID == "" {
		transactionID = resp.AuthorizationCode
	}
	return domain.PaymentInfo{
		PaymentID:     resp.ID,
		Status:        resp.Status,
		StatusDetail:  resp.StatusDetail,
		TransactionID: transactionID,
	}
}

// do выполняет HTTP-запрос к провайдеру и разбирает ответ в out.
// Сетевые ошибки и таймауты превращаются в GatewayError с кодом 503:
// по ним нельзя делать выводов о состоянии платежа.
func (c *Client) do(ctx context.Context, operation, method, path, accessToken string, headers map[string]string, payload, out any) error {
	start := time.Now()
	defer func() {
		gatewayRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", operation, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		gatewayErrorsTotal.WithLabelValues(operation).Inc()
		c.logger.WithError(err).WithField("operation", operation).Warn("gateway request failed")
		return domain.NewGatewayError(http.StatusServiceUnavailable, "falha de conexão com o provedor de pagamento")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		gatewayErrorsTotal.WithLabelValues(operation).Inc()
		return domain.NewGatewayError(http.StatusServiceUnavailable, "falha ao ler resposta do provedor de pagamento")
	}

	if resp.StatusCode == http.StatusLocked {
		c.logger.WithFields(log.Fields{
			"operation": operation,
			"status":    resp.StatusCode,
		}).Warn("gateway resource locked")
		return &domain.LockedError{Message: "recurso bloqueado: tentativa idêntica recente no provedor"}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gatewayErrorsTotal.WithLabelValues(operation).Inc()
		var apiErr errorResponse
		message := string(raw)
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
			message = apiErr.Message
		}
		c.logger.WithFields(log.Fields{
			"operation": operation,
			"status":    resp.StatusCode,
		}).Warn("gateway returned error response")
		return domain.NewGatewayError(resp.StatusCode, "erro do provedor de pagamento: %s", message)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			gatewayErrorsTotal.WithLabelValues(operation).Inc()
			return domain.NewGatewayError(http.StatusServiceUnavailable, "resposta inválida do provedor de pagamento")
		}
	}

	return nil
}

var _ domain.PaymentGateway = (*Client)(nil)
