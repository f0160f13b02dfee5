package rest

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

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/service/order"
)

// HeaderIdempotencyKey — заголовок ключа идемпотентности для POST /orders.
const HeaderIdempotencyKey = "Idempotency-Key"

// defaultIdempotencyTTL — срок хранения записи идемпотентности.
const defaultIdempotencyTTL = 24 * time.Hour

// API обслуживает HTTP-интерфейс сервиса заказов. Бизнес-ошибки отдаются
// как HTTP 200 с envelope {code, message}; HTTP 500 означает внутренний сбой.
type API struct {
	engine         *order.Engine
	query          *order.Query
	idempotency    domain.IdempotencyRepository
	idempotencyTTL time.Duration
	logger         *log.Entry
}

// NewAPI создаёт HTTP API. idempotency может быть nil: тогда заголовок
// Idempotency-Key игнорируется.
func NewAPI(engine *order.Engine, query *order.Query, idempotency domain.IdempotencyRepository, logger *log.Entry) *API {
	if logger == nil {
		logger = log.New().WithField("component", "rest")
	}
	return &API{
		engine:         engine,
		query:          query,
		idempotency:    idempotency,
		idempotencyTTL: defaultIdempotencyTTL,
		logger:         logger,
	}
}

// Router собирает маршруты API на стандартном ServeMux.
func (a *API) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", a.handleCreateOrder)
	mux.HandleFunc("PATCH /orders", a.handleCompleteOrder)
	mux.HandleFunc("POST /orders/{orderId}/cancel", a.handleCancelOrder)
	mux.HandleFunc("GET /orders/{orderId}", a.handleGetOrder)
	mux.HandleFunc("GET /orders/{orderId}/timeline", a.handleGetTimeline)
	mux.HandleFunc("GET /orders/customers/{customerId}", a.handleListOrders)
	return mux
}

func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		a.writeInternalError(w, err)
		return
	}

	key := r.Header.Get(HeaderIdempotencyKey)
	if key != "" && a.idempotency != nil {
		a.createOrderIdempotent(w, r, key, body)
		return
	}

	status, payload := a.createOrder(r, body)
	a.writeRaw(w, status, payload)
}

// createOrderIdempotent оборачивает создание заказа в idempotency-запись:
// первый запрос с ключом выполняется, повтор возвращает сохранённый ответ.
func (a *API) createOrderIdempotent(w http.ResponseWriter, r *http.Request, key string, body []byte) {
	hash := sha256.Sum256(body)
	requestHash := hex.EncodeToString(hash[:])

	_, err := a.idempotency.CreateProcessing(key, requestHash, time.Now().UTC().Add(a.idempotencyTTL))
	switch {
	case err == nil:
		// Первый запрос с этим ключом.
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		a.writeEnvelope(w, 500, "idempotency key reused with a different request body")
		return
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		record, getErr := a.idempotency.Get(key)
		if getErr != nil {
			a.writeInternalError(w, getErr)
			return
		}
		if record.Status == domain.IdempotencyStatusProcessing {
			// Транзиентное состояние: первый запрос ещё выполняется,
			// повтор имеет смысл после его завершения.
			a.writeEnvelope(w, 503, "request with this idempotency key is still being processed")
			return
		}
		a.writeRaw(w, record.HTTPStatus, record.ResponseBody)
		return
	default:
		a.writeInternalError(w, err)
		return
	}

	status, payload := a.createOrder(r, body)

	markErr := error(nil)
	if status == http.StatusCreated {
		markErr = a.idempotency.MarkDone(key, payload, status)
	} else {
		markErr = a.idempotency.MarkFailed(key, payload, status)
	}
	if markErr != nil {
		a.logger.WithError(markErr).WithField("idempotency_key", key).Error("failed to store idempotent response")
	}

	a.writeRaw(w, status, payload)
}

// createOrder выполняет команду создания и возвращает готовый к записи ответ.
func (a *API) createOrder(r *http.Request, body []byte) (int, []byte) {
	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return encodeEnvelope(500, "request body is not valid json")
	}

	created, err := a.engine.CreateOrder(r.Context(), order.CreateOrderRequest{
		CustomerID:         req.CustomerID,
		ProductID:          req.ProductID,
		Qty:                req.Quantity,
		PaymentMethodLabel: req.PaymentMethod,
		PaymentAmount:      req.PaymentAmount,
	})
	if err != nil {
		return a.encodeError(err)
	}

	return encodeJSON(http.StatusCreated, orderStatusResponse{
		OrderID: created.ID,
		Status:  created.Status.Label(),
	})
}

func (a *API) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	var req completeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeEnvelope(w, 500, "request body is not valid json")
		return
	}

	completed, err := a.engine.CompleteOrder(r.Context(), order.CompleteOrderRequest{
		OrderID:            req.OrderID,
		PaymentMethodLabel: req.PaymentMethod,
		Amount:             req.PaymentAmount,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, orderStatusResponse{
		OrderID: completed.ID,
		Status:  completed.Status.Label(),
	})
}

func (a *API) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	cancelled, err := a.engine.CancelOrder(r.Context(), r.PathValue("orderId"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, orderStatusResponse{
		OrderID: cancelled.ID,
		Status:  cancelled.Status.Label(),
	})
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	view, err := a.query.GetOrder(r.PathValue("orderId"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, view)
}

func (a *API) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := a.query.GetTimeline(r.PathValue("orderId"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, events)
}

func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	views, err := a.query.ListOrders(r.PathValue("customerId"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, orderListResponse{OrderList: views})
}

// encodeError превращает ошибку в готовый к записи ответ: бизнес-ошибки
// уходят envelope с HTTP 200, всё остальное — HTTP 500.
func (a *API) encodeError(err error) (int, []byte) {
	if be, ok := domain.AsBusinessError(err); ok {
		return encodeEnvelope(be.Code, be.Message)
	}
	a.logger.WithError(err).Error("unexpected internal error")
	return encodeJSON(http.StatusInternalServerError, errorEnvelope{
		Code:    500,
		Message: "internal server error",
	})
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status, payload := a.encodeError(err)
	a.writeRaw(w, status, payload)
}

func (a *API) writeInternalError(w http.ResponseWriter, err error) {
	a.logger.WithError(err).Error("unexpected internal error")
	a.writeRaw(w, http.StatusInternalServerError, mustEncode(errorEnvelope{
		Code:    500,
		Message: "internal server error",
	}))
}

func (a *API) writeEnvelope(w http.ResponseWriter, code int, message string) {
	status, payload := encodeEnvelope(code, message)
	a.writeRaw(w, status, payload)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	a.writeRaw(w, status, mustEncode(body))
}

func (a *API) writeRaw(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		a.logger.WithError(err).Warn("failed to write response")
	}
}

// encodeEnvelope кодирует бизнес-ошибку. Статус всегда 200: код ошибки
// передаётся в теле.
func encodeEnvelope(code int, message string) (int, []byte) {
	return http.StatusOK, mustEncode(errorEnvelope{Code: code, Message: message})
}

func encodeJSON(status int, body any) (int, []byte) {
	return status, mustEncode(body)
}

func mustEncode(body any) []byte {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		// Сюда попадают только программные ошибки вроде несериализуемых типов.
		return []byte(`{"code":500,"message":"internal server error"}`)
	}
	return buf.Bytes()
}
