package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vizinhos/orders/internal/domain"
	"github.com/vizinhos/orders/internal/gateway/mercadopago"
	"github.com/vizinhos/orders/internal/httpapi"
	"github.com/vizinhos/orders/internal/service/order"
	"github.com/vizinhos/orders/internal/storage/memory"
)

// fakeGatewayServer эмулирует платёжный API поверх httptest: платежи
// создаются в статусе pending, статус переключается вручную из теста.
type fakeGatewayServer struct {
	mu sync.Mutex

	nextID      int64
	payments    map[int64]string // payment ID -> gateway status
	createCalls int
}

func newFakeGatewayServer() *fakeGatewayServer {
	return &fakeGatewayServer{
		nextID:   9001,
		payments: make(map[int64]string),
	}
}

func (f *fakeGatewayServer) setStatus(paymentID int64, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[paymentID] = status
}

func (f *fakeGatewayServer) creates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

func (f *fakeGatewayServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeGatewayJSON(w, http.StatusUnauthorized, map[string]any{"message": "invalid credentials"})
			return
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/payments":
			id := f.nextID
			f.nextID++
			f.createCalls++
			f.payments[id] = "pending"
			writeGatewayJSON(w, http.StatusCreated, map[string]any{
				"id":           id,
				"collector_id": 77,
				"status":       "pending",
				"point_of_interaction": map[string]any{
					"transaction_data": map[string]any{
						"qr_code":        "pix-qr-data",
						"qr_code_base64": "cGl4LXFyLWRhdGE=",
					},
				},
			})

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/payments/"):
			id, status, ok := f.lookup(r.URL.Path)
			if !ok {
				writeGatewayJSON(w, http.StatusNotFound, map[string]any{"message": "payment not found"})
				return
			}
			payload := map[string]any{"id": id, "status": status, "status_detail": "accredited"}
			if status == "approved" {
				payload["point_of_interaction"] = map[string]any{
					"transaction_data": map[string]any{"transaction_id": fmt.Sprintf("txn-%d", id)},
				}
			}
			writeGatewayJSON(w, http.StatusOK, payload)

		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/v1/payments/"):
			id, _, ok := f.lookup(r.URL.Path)
			if !ok {
				writeGatewayJSON(w, http.StatusNotFound, map[string]any{"message": "payment not found"})
				return
			}
			f.payments[id] = "cancelled"
			writeGatewayJSON(w, http.StatusOK, map[string]any{
				"id": id, "status": "cancelled", "status_detail": "by_collector",
			})

		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/refunds"):
			path := strings.TrimSuffix(r.URL.Path, "/refunds")
			id, status, ok := f.lookup(path)
			if !ok {
				writeGatewayJSON(w, http.StatusNotFound, map[string]any{"message": "payment not found"})
				return
			}
			if status != "approved" {
				writeGatewayJSON(w, http.StatusBadRequest, map[string]any{"message": "payment is not refundable"})
				return
			}
			f.payments[id] = "refunded"
			writeGatewayJSON(w, http.StatusCreated, map[string]any{"id": 5001, "status": "refunded"})

		default:
			writeGatewayJSON(w, http.StatusNotFound, map[string]any{"message": "unknown route"})
		}
	})
}

// lookup вызывается под уже взятым f.mu.
func (f *fakeGatewayServer) lookup(path string) (int64, string, bool) {
	raw := strings.TrimPrefix(path, "/v1/payments/")
	var id int64
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil {
		return 0, "", false
	}
	status, ok := f.payments[id]
	return id, status, ok
}

func writeGatewayJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OrderLifecycleTestSuite прогоняет полный жизненный цикл заказа через
// HTTP API, менеджер и настоящий gateway-клиент против фальшивого провайдера.
type OrderLifecycleTestSuite struct {
	suite.Suite

	gateway    *fakeGatewayServer
	gatewaySrv *httptest.Server
	api        *httpapi.Server
	orders     domain.OrderRepository
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	s.gateway = newFakeGatewayServer()
	s.gatewaySrv = httptest.NewServer(s.gateway.handler())

	stores := memory.NewStoreRepository()
	stores.Put(domain.Store{ID: "loja-1", Name: "Padaria da Ana", AccessToken: "token-loja"})

	users := memory.NewUserRepository()
	users.Put(domain.User{CPF: "48812172830", Name: "João", Email: "joao@example.com"})

	catalog := memory.NewCatalogRepository()
	catalog.PutProduct(domain.Product{ID: "prod-1", StoreID: "loja-1", Name: "Pão de queijo", Price: decimal.NewFromInt(40)})
	catalog.PutProduct(domain.Product{ID: "prod-2", StoreID: "loja-1", Name: "Bolo de fubá", Price: decimal.NewFromInt(50)})
	catalog.PutLot(domain.InventoryLot{ID: "lot-1", ProductID: "prod-1", Quantity: 10, ExpiresAt: "2026-12-01"})
	catalog.PutLot(domain.InventoryLot{ID: "lot-2", ProductID: "prod-2", Quantity: 10, ExpiresAt: "2026-12-01"})

	s.orders = memory.NewOrderRepository()

	client := mercadopago.NewClient(s.gatewaySrv.URL, logger)
	manager := order.NewManagerWithoutMetrics(
		s.orders,
		stores,
		users,
		memory.NewTimelineRepository(),
		catalog,
		client,
		logger,
	)

	s.api = httpapi.NewServer(manager, memory.NewIdempotencyRepository(), logger)
}

func (s *OrderLifecycleTestSuite) TearDownTest() {
	s.gatewaySrv.Close()
}

func (s *OrderLifecycleTestSuite) post(path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.api.ServeHTTP(w, req)
	return w
}

func (s *OrderLifecycleTestSuite) createOrderBody() string {
	return `{
		"fk_Usuario_cpf": "488.121.728-30",
		"valor": 180,
		"tipo_entrega": "Entrega",
		"id_Loja": "loja-1",
		"item_pedido": [
			{"fk_id_Lote": "lot-1", "quantidade_item": 2, "preco_unitario": 40},
			{"fk_id_Lote": "lot-2", "quantidade_item": 2, "preco_unitario": 50}
		]
	}`
}

func (s *OrderLifecycleTestSuite) createOrder() (orderID string, paymentID int64) {
	w := s.post("/create-order", s.createOrderBody(), nil)
	require.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		OrderID string `json:"id_Pedido"`
		Status  string `json:"status_pedido"`
		Payment struct {
			PaymentID int64 `json:"payment_id"`
		} `json:"pagamento"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(s.T(), resp.OrderID)
	require.Equal(s.T(), "Aguardando Pagamento", resp.Status)
	require.NotZero(s.T(), resp.Payment.PaymentID)
	return resp.OrderID, resp.Payment.PaymentID
}

func (s *OrderLifecycleTestSuite) refresh(orderID string) (status, transactionID string) {
	w := s.post("/refresh-order-status", fmt.Sprintf(`{"id_Pedido":%q}`, orderID), nil)
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Order struct {
			Status        string `json:"status_pedido"`
			TransactionID string `json:"transaction_id"`
		} `json:"pedido"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Order.Status, resp.Order.TransactionID
}

func (s *OrderLifecycleTestSuite) TestCreateRefreshRefundFlow() {
	orderID, paymentID := s.createOrder()

	status, _ := s.refresh(orderID)
	require.Equal(s.T(), "Aguardando Pagamento", status)

	s.gateway.setStatus(paymentID, "approved")

	status, transactionID := s.refresh(orderID)
	require.Equal(s.T(), "Pago", status)
	require.Equal(s.T(), fmt.Sprintf("txn-%d", paymentID), transactionID)

	w := s.post("/refund-order", fmt.Sprintf(`{"id_Pedido":%q}`, orderID), nil)
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

	var refund struct {
		PaymentID     int64 `json:"payment_id"`
		RefundDetails struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"refund_details"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &refund))
	require.Equal(s.T(), paymentID, refund.PaymentID)
	require.Equal(s.T(), int64(5001), refund.RefundDetails.ID)
	require.Equal(s.T(), "refunded", refund.RefundDetails.Status)

	stored, err := s.orders.Get(orderID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusRefunded, stored.Status)
}

func (s *OrderLifecycleTestSuite) TestCancelPendingOrder() {
	orderID, _ := s.createOrder()

	w := s.post("/cancel-order", fmt.Sprintf(`{"id_Pedido":%q}`, orderID), nil)
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(s.T(), "cancelled", resp.Status)

	stored, err := s.orders.Get(orderID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusCancelled, stored.Status)
}

func (s *OrderLifecycleTestSuite) TestRefundRequiresApprovedPayment() {
	orderID, _ := s.createOrder()

	w := s.post("/refund-order", fmt.Sprintf(`{"id_Pedido":%q}`, orderID), nil)
	require.Equal(s.T(), http.StatusBadRequest, w.Code, w.Body.String())
}

func (s *OrderLifecycleTestSuite) TestCancelApprovedOrderRejected() {
	orderID, paymentID := s.createOrder()
	s.gateway.setStatus(paymentID, "approved")

	w := s.post("/cancel-order", fmt.Sprintf(`{"id_Pedido":%q}`, orderID), nil)
	require.Equal(s.T(), http.StatusBadRequest, w.Code, w.Body.String())

	stored, err := s.orders.Get(orderID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusAwaitingPayment, stored.Status)
}

func (s *OrderLifecycleTestSuite) TestCreateOrderPriceMismatchRejected() {
	body := strings.Replace(s.createOrderBody(), `"valor": 180`, `"valor": 170`, 1)

	w := s.post("/create-order", body, nil)
	require.Equal(s.T(), http.StatusBadRequest, w.Code, w.Body.String())
	require.Zero(s.T(), s.gateway.creates(), "gateway must not be called on validation failure")
}

func (s *OrderLifecycleTestSuite) TestIdempotentCreateReplay() {
	headers := map[string]string{"Idempotency-Key": "integration-key-1"}

	first := s.post("/create-order", s.createOrderBody(), headers)
	require.Equal(s.T(), http.StatusCreated, first.Code, first.Body.String())

	second := s.post("/create-order", s.createOrderBody(), headers)
	require.Equal(s.T(), http.StatusCreated, second.Code)
	require.Equal(s.T(), first.Body.String(), second.Body.String())
	require.Equal(s.T(), 1, s.gateway.creates(), "replay must not create a second payment")
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
