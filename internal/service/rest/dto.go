package rest

import "github.com/vladislavdragonenkov/orders/internal/service/order"

// createOrderRequest — тело POST /orders.
type createOrderRequest struct {
	CustomerID    string `json:"customerId"`
	ProductID     string `json:"productId"`
	Quantity      int32  `json:"quantity"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	PaymentAmount int64  `json:"paymentAmount,omitempty"`
}

// completeOrderRequest — тело PATCH /orders.
type completeOrderRequest struct {
	OrderID       string `json:"orderId"`
	PaymentMethod string `json:"paymentMethod"`
	PaymentAmount int64  `json:"paymentAmount"`
}

// orderStatusResponse — ответ команд создания, оплаты и отмены заказа.
type orderStatusResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// orderListResponse — ответ GET /orders/customers/{customerId}.
type orderListResponse struct {
	OrderList []order.OrderView `json:"orderList"`
}

// errorEnvelope — единый формат бизнес-ошибок. Отдаётся с HTTP 200:
// числовой код ошибки живёт в теле, а не в статусе ответа
// (совместимость с историческим wire-форматом).
type errorEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
