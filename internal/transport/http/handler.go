package http

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/elsoug/orders/internal/domain"
	"github.com/elsoug/orders/internal/service/orders"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour

	maxBodyBytes = 1 << 20
)

// Handler обрабатывает HTTP-запросы к API заказов.
type Handler struct {
	service     *orders.Service
	idempotency domain.IdempotencyRepository
	logger      *log.Entry
	now         func() time.Time
}

// NewHandler создаёт handler. idempotency может быть nil — тогда заголовок
// Idempotency-Key игнорируется.
func NewHandler(service *orders.Service, idempotency domain.IdempotencyRepository, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-handler")
	}
	return &Handler{
		service:     service,
		idempotency: idempotency,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder обрабатывает POST /orders с поддержкой Idempotency-Key:
// повторный запрос с тем же ключом и телом возвращает сохранённый ответ.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}

	key := r.Header.Get(idempotencyHeader)
	useIdempotency := key != "" && h.idempotency != nil
	if useIdempotency {
		hash := requestHash(r.Method, r.URL.Path, body)
		if replayed := h.claimIdempotencyKey(w, key, hash); replayed {
			return
		}
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.finishIdempotent(useIdempotency, key, false,
			h.respondError(w, http.StatusBadRequest, "bad_request", "invalid json body"))
		return
	}

	order, err := h.service.CreateOrder(req.toCreateRequest(actor.ID))
	if err != nil {
		status, resp := mapDomainError(err)
		respBody, _ := json.Marshal(resp)
		writeRawJSON(w, status, respBody)
		h.finishIdempotent(useIdempotency, key, false, storedResponse{status: status, body: respBody})
		return
	}

	respBody, err := json.Marshal(toOrderResponse(order))
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal order response")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	writeRawJSON(w, http.StatusCreated, respBody)
	h.finishIdempotent(useIdempotency, key, true, storedResponse{status: http.StatusCreated, body: respBody})
}

type storedResponse struct {
	status int
	body   []byte
}

// respondError пишет ошибку и возвращает её представление для сохранения.
func (h *Handler) respondError(w http.ResponseWriter, status int, code, message string) storedResponse {
	resp := errorResponse{Error: code, Message: message}
	body, _ := json.Marshal(resp)
	writeRawJSON(w, status, body)
	return storedResponse{status: status, body: body}
}

// claimIdempotencyKey регистрирует ключ как processing. Возвращает true,
// если ответ уже записан (replay, конфликт или запрос в обработке).
func (h *Handler) claimIdempotencyKey(w http.ResponseWriter, key, hash string) bool {
	_, err := h.idempotency.CreateProcessing(key, hash, h.now().Add(idempotencyTTL))
	if err == nil {
		return false
	}

	if errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		writeError(w, http.StatusConflict, "idempotency_mismatch", "idempotency key reused with a different request body")
		return true
	}
	if !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		h.logger.WithError(err).WithField("idempotency_key", key).Error("failed to register idempotency key")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return true
	}

	record, getErr := h.idempotency.Get(key)
	if getErr != nil {
		h.logger.WithError(getErr).WithField("idempotency_key", key).Error("failed to load idempotency record")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return true
	}
	if record.RequestHash != hash {
		writeError(w, http.StatusConflict, "idempotency_mismatch", "idempotency key reused with a different request body")
		return true
	}
	if record.Status == domain.IdempotencyStatusProcessing {
		writeError(w, http.StatusConflict, "request_in_progress", "request with this idempotency key is being processed")
		return true
	}

	writeRawJSON(w, record.HTTPStatus, record.ResponseBody)
	return true
}

// finishIdempotent сохраняет итоговый ответ для replay повторных запросов.
func (h *Handler) finishIdempotent(enabled bool, key string, success bool, resp storedResponse) {
	if !enabled {
		return
	}
	var err error
	if success {
		err = h.idempotency.MarkDone(key, resp.body, resp.status)
	} else {
		err = h.idempotency.MarkFailed(key, resp.body, resp.status)
	}
	if err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Error("failed to finalize idempotency record")
	}
}

// GetOrder обрабатывает GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor")
		return
	}

	order, err := h.service.Get(actor, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// ListMyOrders обрабатывает GET /orders/my-orders. По умолчанию возвращает
// покупки актора; ?as=seller — его продажи.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor")
		return
	}

	asSeller := r.URL.Query().Get("as") == "seller"
	list, err := h.service.ListMine(actor, asSeller, queryLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(list))
}

// ListOrders обрабатывает GET /orders — административный список с фильтрами.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor")
		return
	}

	query := r.URL.Query()
	filter := domain.OrderFilter{
		BuyerID:  query.Get("buyer_id"),
		SellerID: query.Get("seller_id"),
		Status:   domain.OrderStatus(query.Get("status")),
		Limit:    queryLimit(r),
	}

	list, err := h.service.ListAll(actor, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(list))
}

// UpdateStatus обрабатывает PUT /orders/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	order, err := h.service.Transition(actor, chi.URLParam(r, "id"), domain.OrderStatus(req.Status), req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// UpdatePayment обрабатывает PUT /orders/{id}/payment.
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor")
		return
	}

	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	order, err := h.service.UpdatePayment(actor, chi.URLParam(r, "id"), orders.PaymentUpdate{
		Status:          domain.PaymentStatus(req.Status),
		TransactionID:   req.TransactionID,
		PaidAmountMinor: req.PaidAmountMinor,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// RateOrder обрабатывает PUT /orders/{id}/rating.
func (h *Handler) RateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor")
		return
	}

	var req rateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	order, err := h.service.RateOrder(actor, chi.URLParam(r, "id"), req.Score, req.Comment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Dispute обрабатывает POST /orders/{id}/dispute (только админ).
func (h *Handler) Dispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor")
		return
	}

	var req disputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	order, err := h.service.MarkDisputed(actor, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Refund обрабатывает POST /orders/{id}/refund (только админ).
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor")
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	order, err := h.service.MarkRefunded(actor, chi.URLParam(r, "id"), req.AmountMinor, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// requestHash связывает idempotency-key с конкретным запросом.
func requestHash(method, path string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte("\n"))
	sum.Write([]byte(path))
	sum.Write([]byte("\n"))
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}

func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}
