// Пакет httpapi — JSON-граница сервиса заказов. Здесь живёт разбор запросов,
// сопоставление доменных ошибок HTTP-кодам и идемпотентность create-order.
package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vizinhos/orders/internal/domain"
	"github.com/vizinhos/orders/internal/service/order"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour

	maxBodyBytes = 1 << 20
)

// Server обслуживает операции жизненного цикла заказа поверх Manager.
type Server struct {
	manager  *order.Manager
	idemRepo domain.IdempotencyRepository // опциональный
	logger   *log.Entry
	mux      *http.ServeMux
}

// NewServer создаёт HTTP API. idemRepo может быть nil: тогда заголовок
// Idempotency-Key игнорируется.
func NewServer(manager *order.Manager, idemRepo domain.IdempotencyRepository, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.New().WithField("component", "httpapi")
	}

	s := &Server{
		manager:  manager,
		idemRepo: idemRepo,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("/create-order", s.handleCreateOrder)
	s.mux.HandleFunc("/refresh-order-status", s.handleRefreshStatus)
	s.mux.HandleFunc("/cancel-order", s.handleCancelOrder)
	s.mux.HandleFunc("/refund-order", s.handleRefundOrder)
	return s
}

// ServeHTTP реализует http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(sw, r)
	s.logger.WithFields(log.Fields{
		"method":   r.Method,
		"path":     r.URL.Path,
		"status":   sw.status,
		"duration": time.Since(start).String(),
	}).Info("http request handled")
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, domain.NewValidationError("não foi possível ler o corpo da requisição"))
		return
	}

	idemKey := r.Header.Get(idempotencyHeader)
	if idemKey == "" || s.idemRepo == nil {
		s.runCreateOrder(w, r, body)
		return
	}

	s.withIdempotency(w, r, idemKey, body, s.runCreateOrder)
}

func (s *Server) runCreateOrder(w http.ResponseWriter, r *http.Request, body []byte) {
	req, err := decodeCreateOrder(bytes.NewReader(body))
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.manager.CreateOrder(r.Context(), order.CreateOrderInput{
		CustomerCPF:  req.CustomerCPF,
		StoreID:      req.StoreID,
		DeliveryType: req.DeliveryType,
		Amount:       req.Amount,
		Items:        toDomainItems(req.Items),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, toCreateOrderResponse(result))
}

func (s *Server) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	orderID, err := decodeOrderID(r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	refreshed, err := s.manager.RefreshStatus(r.Context(), orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	timeline, err := s.manager.Timeline(orderID)
	if err != nil {
		// История — вспомогательная часть ответа, заказ уже сверен.
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to load order timeline")
		timeline = nil
	}

	s.writeJSON(w, http.StatusOK, refreshOrderResponse{Order: toOrderRecord(refreshed, timeline)})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	orderID, err := decodeOrderID(r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.manager.Cancel(r.Context(), orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toCancelOrderResponse(result))
}

func (s *Server) handleRefundOrder(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	orderID, err := decodeOrderID(r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.manager.Refund(r.Context(), orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toRefundOrderResponse(result))
}

// withIdempotency выполняет обработчик под защитой idempotency-key: повтор
// идентичного запроса воспроизводит сохранённый ответ, повтор ключа с другим
// телом отклоняется.
func (s *Server) withIdempotency(
	w http.ResponseWriter,
	r *http.Request,
	idemKey string,
	body []byte,
	handler func(http.ResponseWriter, *http.Request, []byte),
) {
	reqHash := buildRequestHash(r.Method, r.URL.Path, body)

	record, err := s.idemRepo.CreateProcessing(idemKey, reqHash, time.Now().UTC().Add(idempotencyTTL))
	if err != nil {
		s.replayIdempotency(w, err, record)
		return
	}

	rec := &recordingWriter{header: make(http.Header)}
	handler(rec, r, body)

	if rec.status >= 200 && rec.status < 300 {
		if markErr := s.idemRepo.MarkDone(idemKey, rec.body.Bytes(), rec.status); markErr != nil {
			s.logger.WithError(markErr).WithField("idempotency_key", idemKey).Warn("failed to store idempotent success response")
		}
	} else {
		if markErr := s.idemRepo.MarkFailed(idemKey, rec.body.Bytes(), rec.status); markErr != nil {
			s.logger.WithError(markErr).WithField("idempotency_key", idemKey).Warn("failed to store idempotency failure response")
		}
	}

	rec.copyTo(w)
}

func (s *Server) replayIdempotency(w http.ResponseWriter, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		s.writeJSON(w, http.StatusConflict, errorResponse{
			Message: "Idempotency-Key já foi usado com um corpo de requisição diferente",
		})
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			if len(record.ResponseBody) == 0 {
				s.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "resposta idempotente armazenada está vazia"})
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(record.HTTPStatus)
			_, _ = w.Write(record.ResponseBody)
		case domain.IdempotencyStatusProcessing:
			s.writeJSON(w, http.StatusConflict, errorResponse{
				Message: "requisição com o mesmo Idempotency-Key ainda está em processamento",
			})
		default:
			s.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "estado idempotente desconhecido"})
		}
	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "falha ao inicializar requisição idempotente"})
	}
}

// recordingWriter буферизует ответ, чтобы его можно было сохранить и воспроизвести.
type recordingWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (w *recordingWriter) Header() http.Header { return w.header }

func (w *recordingWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(data)
}

func (w *recordingWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *recordingWriter) copyTo(dst http.ResponseWriter) {
	for key, values := range w.header {
		for _, value := range values {
			dst.Header().Add(key, value)
		}
	}
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	dst.WriteHeader(status)
	_, _ = dst.Write(w.body.Bytes())
}

func buildRequestHash(method, path string, body []byte) string {
	payload := make([]byte, 0, len(method)+len(path)+len(body)+2)
	payload = append(payload, method...)
	payload = append(payload, ' ')
	payload = append(payload, path...)
	payload = append(payload, ':')
	payload = append(payload, body...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(errorResponse{Message: "método não permitido"})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Warn("failed to encode response")
	}
}

// writeError переводит доменную ошибку в HTTP-код согласно таксономии:
// ValidationError → 400, NotFound → 404, Locked → 423, GatewayError → код
// провайдера (или 5xx), остальное → 500 без деталей.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		ve *domain.ValidationError
		nf *domain.NotFoundError
		le *domain.LockedError
		ge *domain.GatewayError
	)

	switch {
	case errors.As(err, &ve):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: ve.Message})
	case errors.As(err, &nf):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Message: nf.Error()})
	case errors.As(err, &le):
		s.writeJSON(w, http.StatusLocked, errorResponse{Message: le.Message})
	case errors.As(err, &ge):
		status := ge.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusInternalServerError
		}
		s.writeJSON(w, status, errorResponse{Message: ge.Message})
	default:
		s.logger.WithError(err).Error("unexpected error")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "erro interno do servidor"})
	}
}
