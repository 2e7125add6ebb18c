package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/elsoug/orders/internal/domain"
	"github.com/elsoug/orders/internal/service/catalog"
	"github.com/elsoug/orders/internal/service/orders"
	"github.com/elsoug/orders/internal/service/profile"
	"github.com/elsoug/orders/internal/storage/memory"
	transport "github.com/elsoug/orders/internal/transport/http"
)

const testSecret = "test-secret"

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logger.WithField("component", "test")
}

type testServer struct {
	server  *httptest.Server
	catalog *catalog.MemoryCatalog
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	orderRepo := memory.NewOrderRepository()
	outboxRepo := memory.NewOutboxRepository()
	idempotencyRepo := memory.NewIdempotencyRepository()
	cat := catalog.NewMemoryCatalog()
	profiles := profile.NewMemoryDirectory()

	cat.Put(domain.Listing{
		ID:         "listing-1",
		SellerID:   "seller-1",
		Type:       domain.OrderTypeProduct,
		Title:      "Fresh dates",
		Unit:       "kg",
		PriceMinor: 2000,
		Currency:   "SDG",
		Available:  true,
	})

	service := orders.NewServiceWithoutMetrics(orderRepo, outboxRepo, cat, profiles, loggerForTests())
	handler := transport.NewHandler(service, idempotencyRepo, loggerForTests())
	router := transport.NewRouter(handler, []byte(testSecret))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{server: srv, catalog: cat}
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, method, url, authToken string, body interface{}, extraHeaders map[string]string) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func createBody() map[string]interface{} {
	return map[string]interface{}{
		"items":          []map[string]interface{}{{"listing_id": "listing-1", "qty": 2}},
		"payment_method": "cash",
		"delivery":       map[string]interface{}{"type": "pickup"},
	}
}

func createOrder(t *testing.T, ts *testServer) map[string]interface{} {
	t.Helper()
	resp := doRequest(t, http.MethodPost, ts.server.URL+"/orders", token(t, "buyer-1", "buyer"), createBody(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]interface{}
	decodeJSON(t, resp, &created)
	return created
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t)

	resp := doRequest(t, http.MethodGet, ts.server.URL+"/orders/my-orders", "", nil, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.server.URL+"/orders/my-orders", "not-a-jwt", nil, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Токен с чужой подписью отклоняется.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "buyer-1", "role": "buyer"}).
		SignedString([]byte("wrong-secret"))
	require.NoError(t, err)
	resp = doRequest(t, http.MethodGet, ts.server.URL+"/orders/my-orders", forged, nil, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateOrderEndpoint(t *testing.T) {
	ts := newTestServer(t)

	created := createOrder(t, ts)
	require.NotEmpty(t, created["id"])
	require.Regexp(t, `^ELS-\d{8}-[0-9A-F]{8}$`, created["number"])
	require.Equal(t, "pending", created["status"])
	require.Equal(t, float64(4000), created["total_minor"])
	require.Equal(t, "buyer-1", created["buyer_id"])
	require.Equal(t, "seller-1", created["seller_id"])

	items, ok := created["items"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)
}

func TestCreateOrderEndpoint_Invalid(t *testing.T) {
	ts := newTestServer(t)
	buyerToken := token(t, "buyer-1", "buyer")

	body := createBody()
	body["items"] = []map[string]interface{}{{"listing_id": "missing", "qty": 1}}
	resp := doRequest(t, http.MethodPost, ts.server.URL+"/orders", buyerToken, body, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body = createBody()
	body["items"] = []map[string]interface{}{}
	resp = doRequest(t, http.MethodPost, ts.server.URL+"/orders", buyerToken, body, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateOrderEndpoint_Idempotency(t *testing.T) {
	ts := newTestServer(t)
	buyerToken := token(t, "buyer-1", "buyer")
	headers := map[string]string{"Idempotency-Key": "key-1"}

	resp := doRequest(t, http.MethodPost, ts.server.URL+"/orders", buyerToken, createBody(), headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var first map[string]interface{}
	decodeJSON(t, resp, &first)

	// Повтор с тем же ключом и телом возвращает сохранённый ответ.
	resp = doRequest(t, http.MethodPost, ts.server.URL+"/orders", buyerToken, createBody(), headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var second map[string]interface{}
	decodeJSON(t, resp, &second)
	require.Equal(t, first["id"], second["id"])
	require.Equal(t, first["number"], second["number"])

	// Тот же ключ с другим телом — конфликт.
	other := createBody()
	other["notes"] = "different body"
	resp = doRequest(t, http.MethodPost, ts.server.URL+"/orders", buyerToken, other, headers)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	created := createOrder(t, ts)
	orderID := created["id"].(string)
	statusURL := ts.server.URL + "/orders/" + orderID + "/status"

	// Покупатель не может подтвердить заказ.
	resp := doRequest(t, http.MethodPut, statusURL, token(t, "buyer-1", "buyer"),
		map[string]string{"status": "confirmed"}, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Недопустимый переход.
	resp = doRequest(t, http.MethodPut, statusURL, token(t, "seller-1", "seller"),
		map[string]string{"status": "shipped"}, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPut, statusURL, token(t, "seller-1", "seller"),
		map[string]string{"status": "confirmed", "note": "on it"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated map[string]interface{}
	decodeJSON(t, resp, &updated)
	require.Equal(t, "confirmed", updated["status"])

	history, ok := updated["status_history"].([]interface{})
	require.True(t, ok)
	require.Len(t, history, 2)
}

func TestGetOrderEndpoint(t *testing.T) {
	ts := newTestServer(t)
	created := createOrder(t, ts)
	orderID := created["id"].(string)

	resp := doRequest(t, http.MethodGet, ts.server.URL+"/orders/"+orderID, token(t, "buyer-1", "buyer"), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched map[string]interface{}
	decodeJSON(t, resp, &fetched)
	require.Equal(t, orderID, fetched["id"])

	resp = doRequest(t, http.MethodGet, ts.server.URL+"/orders/"+orderID, token(t, "stranger", "buyer"), nil, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.server.URL+"/orders/missing", token(t, "buyer-1", "buyer"), nil, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListEndpoints(t *testing.T) {
	ts := newTestServer(t)
	createOrder(t, ts)
	createOrder(t, ts)

	resp := doRequest(t, http.MethodGet, ts.server.URL+"/orders/my-orders", token(t, "buyer-1", "buyer"), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []map[string]interface{}
	decodeJSON(t, resp, &mine)
	require.Len(t, mine, 2)

	resp = doRequest(t, http.MethodGet, ts.server.URL+"/orders/my-orders?as=seller", token(t, "seller-1", "seller"), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sales []map[string]interface{}
	decodeJSON(t, resp, &sales)
	require.Len(t, sales, 2)

	// Административный список закрыт для обычных пользователей.
	resp = doRequest(t, http.MethodGet, ts.server.URL+"/orders", token(t, "buyer-1", "buyer"), nil, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.server.URL+"/orders?status=pending&limit=1", token(t, "admin-1", "admin"), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []map[string]interface{}
	decodeJSON(t, resp, &all)
	require.Len(t, all, 1)
}

func TestUpdatePaymentEndpoint(t *testing.T) {
	ts := newTestServer(t)
	created := createOrder(t, ts)
	paymentURL := ts.server.URL + "/orders/" + created["id"].(string) + "/payment"

	resp := doRequest(t, http.MethodPut, paymentURL, token(t, "buyer-1", "buyer"),
		map[string]interface{}{"status": "paid"}, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodPut, paymentURL, token(t, "seller-1", "seller"),
		map[string]interface{}{"status": "paid", "transaction_id": "txn-1"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated map[string]interface{}
	decodeJSON(t, resp, &updated)
	payment, ok := updated["payment"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "paid", payment["status"])
	require.Equal(t, "txn-1", payment["transaction_id"])
}

func TestDisputeAndRefundEndpoints(t *testing.T) {
	ts := newTestServer(t)
	created := createOrder(t, ts)
	orderID := created["id"].(string)

	// Доводим заказ до завершения.
	sellerToken := token(t, "seller-1", "seller")
	buyerToken := token(t, "buyer-1", "buyer")
	for _, step := range []struct {
		tok    string
		status string
	}{
		{sellerToken, "confirmed"},
		{sellerToken, "processing"},
		{sellerToken, "shipped"},
		{buyerToken, "delivered"},
		{buyerToken, "completed"},
	} {
		resp := doRequest(t, http.MethodPut, ts.server.URL+"/orders/"+orderID+"/status", step.tok,
			map[string]string{"status": step.status}, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, "transition to %s", step.status)
	}

	// Спор и возврат — только для админа.
	resp := doRequest(t, http.MethodPost, ts.server.URL+"/orders/"+orderID+"/dispute", buyerToken,
		map[string]string{"reason": "damaged"}, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	adminToken := token(t, "admin-1", "admin")
	resp = doRequest(t, http.MethodPost, ts.server.URL+"/orders/"+orderID+"/dispute", adminToken,
		map[string]string{"reason": "damaged"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var disputed map[string]interface{}
	decodeJSON(t, resp, &disputed)
	require.Equal(t, "disputed", disputed["status"])

	resp = doRequest(t, http.MethodPost, ts.server.URL+"/orders/"+orderID+"/refund", adminToken,
		map[string]interface{}{"reason": "resolved"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var refunded map[string]interface{}
	decodeJSON(t, resp, &refunded)
	require.Equal(t, "refunded", refunded["status"])
}

func TestRateOrderEndpoint(t *testing.T) {
	ts := newTestServer(t)
	created := createOrder(t, ts)
	orderID := created["id"].(string)
	ratingURL := ts.server.URL + "/orders/" + orderID + "/rating"
	buyerToken := token(t, "buyer-1", "buyer")

	// До завершения заказа оценка запрещена.
	resp := doRequest(t, http.MethodPut, ratingURL, buyerToken, map[string]interface{}{"score": 5}, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	sellerToken := token(t, "seller-1", "seller")
	for _, step := range []struct {
		tok    string
		status string
	}{
		{sellerToken, "confirmed"},
		{sellerToken, "processing"},
		{sellerToken, "completed"},
	} {
		resp := doRequest(t, http.MethodPut, ts.server.URL+"/orders/"+orderID+"/status", step.tok,
			map[string]string{"status": step.status}, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPut, ratingURL, buyerToken,
		map[string]interface{}{"score": 5, "comment": "excellent"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rated map[string]interface{}
	decodeJSON(t, resp, &rated)
	rating, ok := rated["seller_rating"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, float64(5), rating["score"])

	// Повторная оценка отклоняется.
	resp = doRequest(t, http.MethodPut, ratingURL, buyerToken, map[string]interface{}{"score": 1}, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
