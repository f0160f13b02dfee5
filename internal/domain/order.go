package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusCreated — заказ принят, оплата ещё не подтверждена.
	OrderStatusCreated OrderStatus = "created"
	// OrderStatusCompleted — оплата подтверждена, заказ завершён.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusFailed — обработка заказа завершилась ошибкой.
	// Статус зарезервирован для внешних сценариев и не выставляется core-потоками.
	OrderStatusFailed OrderStatus = "failed"
	// OrderStatusCancelled — заказ отменён, остаток возвращён на склад.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Label возвращает человекочитаемую метку статуса для wire-формата.
func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusCreated:
		return "CREATED"
	case OrderStatusCompleted:
		return "COMPLETED"
	case OrderStatusFailed:
		return "FAILED"
	case OrderStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderDateLayout — формат даты заказа в ответах API (yyyy-MM-dd HH:mm:ss).
const OrderDateLayout = "2006-01-02 15:04:05"

// FormatOrderDate форматирует дату заказа по фиксированному шаблону.
func FormatOrderDate(t time.Time) string {
	return t.Format(OrderDateLayout)
}

// OrderItem представляет одну позицию заказа. Позиция живёт только внутри
// своего заказа: создаётся и удаляется вместе с ним, отдельного API нет.
type OrderItem struct {
	ID      string
	OrderID string
	// ProductID ссылается на товар каталога; время жизни товара независимо.
	ProductID string
	// ProductName и UnitPrice — снимок товара на момент оформления заказа.
	ProductName string
	UnitPrice   decimal.Decimal
	// Qty — количество единиц товара. Инвариант: > 0.
	Qty       int32
	CreatedAt time.Time
}

// Equal сравнивает позиции по идентификатору.
func (i OrderItem) Equal(other OrderItem) bool {
	return i.ID == other.ID
}

// Order агрегирует состояние заказа и его позиции. Заказ — единственный
// владелец своих позиций (cascade delete).
type Order struct {
	ID         string
	CustomerID string
	// Items упорядочены и непусты после создания.
	Items []OrderItem
	// PaymentMethod отсутствует, пока оплата не подтверждена.
	PaymentMethod *PaymentType
	Status        OrderStatus
	OrderDate     time.Time
	Version       int64
	UpdatedAt     time.Time
}

// Equal сравнивает заказы по идентификатору.
func (o Order) Equal(other Order) bool {
	return o.ID == other.ID
}

// AmountDue возвращает ожидаемую сумму оплаты: цена × количество первой
// позиции, усечённая до целых денежных единиц.
func (o *Order) AmountDue() int64 {
	if len(o.Items) == 0 {
		return 0
	}
	item := o.Items[0]
	return item.UnitPrice.Mul(decimal.NewFromInt32(item.Qty)).IntPart()
}

// Complete подтверждает оплату и переводит заказ в завершённое состояние.
// Повторный вызов идемпотентен.
func (o *Order) Complete(method PaymentType) {
	o.PaymentMethod = &method
	o.Status = OrderStatusCompleted
}

// Cancel переводит заказ в отменённое состояние.
func (o *Order) Cancel() {
	o.Status = OrderStatusCancelled
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrRequestInvalid.WithMessage("customer_id is required"))
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrRequestInvalid.WithMessage("order must contain at least one item"))
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrRequestInvalid.WithMessage("order status is not supported"))
	}
	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrRequestInvalid.WithMessage("item product_id is required"))
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrRequestInvalid.WithMessage("item qty must be greater than zero"))
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrRequestInvalid.WithMessage("item price must be non-negative"))
		}
	}

	return errs
}
