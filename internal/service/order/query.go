package order

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// OrderItemView — wire-проекция позиции заказа. Цена отдаётся в целых
// денежных единицах.
type OrderItemView struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Price       int64  `json:"price"`
	Quantity    int32  `json:"quantity"`
}

// OrderView — wire-проекция заказа. Заказ без подтверждённой оплаты
// отдаётся с paymentMethod = "UNPAID".
type OrderView struct {
	OrderID       string          `json:"orderId"`
	CustomerID    string          `json:"customerId"`
	OrderItems    []OrderItemView `json:"orderItems"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"paymentMethod"`
	OrderDate     string          `json:"orderDate"`
}

// TimelineEventView — wire-проекция события жизненного цикла заказа.
type TimelineEventView struct {
	Type     string `json:"type"`
	Reason   string `json:"reason,omitempty"`
	Occurred string `json:"occurred"`
}

// Query реализует read-сторону: проекции заказов без блокировок.
// Читаются только зафиксированные данные.
type Query struct {
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	logger   *log.Entry
}

// NewQuery создаёт read-сервис заказов.
func NewQuery(orders domain.OrderRepository, timeline domain.TimelineRepository, logger *log.Entry) *Query {
	if logger == nil {
		logger = log.New().WithField("component", "order-query")
	}
	return &Query{
		orders:   orders,
		timeline: timeline,
		logger:   logger,
	}
}

// GetOrder возвращает проекцию заказа по идентификатору.
func (q *Query) GetOrder(id string) (OrderView, error) {
	if id == "" {
		return OrderView{}, domain.ErrRequestInvalid.WithMessage("order_id is required")
	}
	order, err := q.orders.Get(id)
	if err != nil {
		return OrderView{}, err
	}
	return projectOrder(order), nil
}

// ListOrders возвращает проекции всех заказов клиента в порядке создания.
// Пустой список не является ошибкой.
func (q *Query) ListOrders(customerID string) ([]OrderView, error) {
	if customerID == "" {
		return nil, domain.ErrRequestInvalid.WithMessage("customer_id is required")
	}
	orders, err := q.orders.ListByCustomer(customerID)
	if err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, projectOrder(order))
	}
	return views, nil
}

// GetTimeline возвращает события жизненного цикла заказа в порядке записи.
// Заказ должен существовать.
func (q *Query) GetTimeline(orderID string) ([]TimelineEventView, error) {
	if orderID == "" {
		return nil, domain.ErrRequestInvalid.WithMessage("order_id is required")
	}
	if _, err := q.orders.Get(orderID); err != nil {
		return nil, err
	}

	events, err := q.timeline.List(orderID)
	if err != nil {
		return nil, err
	}

	views := make([]TimelineEventView, 0, len(events))
	for _, event := range events {
		views = append(views, TimelineEventView{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: domain.FormatOrderDate(event.Occurred),
		})
	}
	return views, nil
}

func projectOrder(order domain.Order) OrderView {
	items := make([]OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemView{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.UnitPrice.IntPart(),
			Quantity:    item.Qty,
		})
	}

	payment := domain.PaymentLabelUnpaid
	if order.PaymentMethod != nil {
		payment = order.PaymentMethod.Label()
	}

	return OrderView{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		OrderItems:    items,
		Status:        order.Status.Label(),
		PaymentMethod: payment,
		OrderDate:     domain.FormatOrderDate(order.OrderDate),
	}
}
