package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
)

// CreateOrderRequest описывает команду создания заказа на один товар.
type CreateOrderRequest struct {
	CustomerID string
	ProductID  string
	Qty        int32
	// PaymentMethodLabel — wire-метка способа оплаты (CREDITCARD, BANKTRANSFER).
	// Пустая метка означает заказ без оплаты; неизвестная метка отклоняется.
	PaymentMethodLabel string
	// PaymentAmount — сумма платежа при создании с оплатой. Ноль означает
	// "не указана"; ненулевая сумма сверяется с суммой заказа.
	PaymentAmount int64
}

// CompleteOrderRequest описывает команду подтверждения оплаты заказа.
type CompleteOrderRequest struct {
	OrderID            string
	PaymentMethodLabel string
	// Amount — сумма платежа в целых денежных единицах. Должна совпадать
	// с суммой заказа, иначе оплата отклоняется без изменения состояния.
	Amount int64
}

// errOrderAlreadyCancelled прерывает unit of work отмены без изменений.
// Снаружи интерпретируется как идемпотентный успех.
var errOrderAlreadyCancelled = errors.New("order already cancelled")

// Engine реализует command-сторону жизненного цикла заказа: создание,
// подтверждение оплаты и отмену. Все мутации склада проходят через
// unit of work, события публикуются после фиксации.
type Engine struct {
	customers domain.CustomerRepository
	products  domain.ProductRepository
	orders    domain.OrderRepository
	uow       domain.OrderUnitOfWork
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	logger    *log.Entry
	metrics   *metrics.OrderMetrics
	producer  *kafka.Producer // опциональный Kafka producer для stock-событий
}

// NewEngine создаёт рабочий экземпляр engine с метриками по умолчанию.
func NewEngine(
	customers domain.CustomerRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	uow domain.OrderUnitOfWork,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Engine {
	if logger == nil {
		logger = log.New().WithField("component", "order-engine")
	}
	return &Engine{
		customers: customers,
		products:  products,
		orders:    orders,
		uow:       uow,
		outbox:    outbox,
		timeline:  timeline,
		logger:    logger,
		metrics:   metrics.NewOrderMetrics(),
	}
}

// NewEngineWithKafka создаёт engine, который дополнительно публикует
// stock-события напрямую в Kafka.
func NewEngineWithKafka(
	customers domain.CustomerRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	uow domain.OrderUnitOfWork,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	producer *kafka.Producer,
	logger *log.Entry,
) *Engine {
	engine := NewEngine(customers, products, orders, uow, outbox, timeline, logger)
	engine.producer = producer
	return engine
}

// NewEngineWithoutMetrics создаёт engine без метрик (для тестов).
func NewEngineWithoutMetrics(
	customers domain.CustomerRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	uow domain.OrderUnitOfWork,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Engine {
	if logger == nil {
		logger = log.New().WithField("component", "order-engine")
	}
	return &Engine{
		customers: customers,
		products:  products,
		orders:    orders,
		uow:       uow,
		outbox:    outbox,
		timeline:  timeline,
		logger:    logger,
	}
}

// CreateOrder проверяет запрос, резолвит клиента и атомарно создаёт заказ,
// списывая остаток товара внутри unit of work. Конкурентные заказы на один
// товар сериализуются на уровне хранилища; переподписки остатка не бывает.
func (e *Engine) CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordInFlightStarted()
	}
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordInFlightFinished()
			e.metrics.RecordCreateDuration(time.Since(start))
		}
	}()

	if err := validateCreateRequest(req); err != nil {
		return domain.Order{}, err
	}

	var payment *domain.PaymentType
	if req.PaymentMethodLabel != "" {
		method, ok := domain.PaymentTypeFromLabel(req.PaymentMethodLabel)
		if !ok {
			return domain.Order{}, domain.ErrRequestInvalid.WithMessage("payment method is not supported")
		}
		payment = &method
	}

	if _, err := e.customers.Get(req.CustomerID); err != nil {
		e.logger.WithError(err).WithField("customer_id", req.CustomerID).Warn("customer lookup failed")
		return domain.Order{}, err
	}

	var created domain.Order
	uowStart := time.Now()
	err := e.uow.CreateOrder(ctx, req.ProductID, func(product *domain.Product) (domain.Order, error) {
		if err := product.DecreaseStock(req.Qty); err != nil {
			return domain.Order{}, err
		}

		now := time.Now().UTC()
		orderID := uuid.NewString()
		order := domain.Order{
			ID:         orderID,
			CustomerID: req.CustomerID,
			Items: []domain.OrderItem{
				{
					ID:          uuid.NewString(),
					OrderID:     orderID,
					ProductID:   product.ID,
					ProductName: product.Name,
					UnitPrice:   product.Price,
					Qty:         req.Qty,
					CreatedAt:   now,
				},
			},
			PaymentMethod: payment,
			Status:        domain.OrderStatusCreated,
			OrderDate:     now,
			UpdatedAt:     now,
		}
		if payment != nil {
			if req.PaymentAmount != 0 && order.AmountDue() != req.PaymentAmount {
				return domain.Order{}, domain.ErrDifferentPaymentAmount
			}
			order.Complete(*payment)
		}
		created = order
		return order, nil
	})
	if e.metrics != nil {
		e.metrics.RecordStageDuration("unit_of_work", time.Since(uowStart))
	}
	if err != nil {
		e.recordFailure(err)
		e.logger.WithError(err).WithFields(log.Fields{
			"customer_id": req.CustomerID,
			"product_id":  req.ProductID,
		}).Warn("create order failed")
		return domain.Order{}, err
	}

	if e.metrics != nil {
		e.metrics.RecordOrderCreated()
		if created.Status == domain.OrderStatusCompleted {
			e.metrics.RecordOrderCompleted()
		}
	}

	e.emitOrderEvent(&created, string(kafka.EventTypeOrderCreated), map[string]interface{}{
		"status":     created.Status.Label(),
		"product_id": req.ProductID,
		"qty":        req.Qty,
	})
	e.publishStockEvent(kafka.EventTypeStockDecreased, req.ProductID, created.ID, req.Qty)

	e.logger.WithFields(log.Fields{
		"order_id":    created.ID,
		"customer_id": created.CustomerID,
		"status":      created.Status,
	}).Info("order created")
	return created, nil
}

// CompleteOrder подтверждает оплату заказа. Сумма платежа сверяется с суммой
// заказа до любых изменений; повторное подтверждение с корректной суммой
// идемпотентно.
func (e *Engine) CompleteOrder(ctx context.Context, req CompleteOrderRequest) (domain.Order, error) {
	if req.OrderID == "" {
		return domain.Order{}, domain.ErrRequestInvalid.WithMessage("order_id is required")
	}
	method, ok := domain.PaymentTypeFromLabel(req.PaymentMethodLabel)
	if !ok {
		return domain.Order{}, domain.ErrRequestInvalid.WithMessage("payment method is not supported")
	}

	order, err := e.orders.Get(req.OrderID)
	if err != nil {
		return domain.Order{}, err
	}

	if order.AmountDue() != req.Amount {
		e.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"expected": order.AmountDue(),
			"actual":   req.Amount,
		}).Warn("payment amount mismatch")
		return domain.Order{}, domain.ErrDifferentPaymentAmount
	}

	switch order.Status {
	case domain.OrderStatusCompleted:
		// Повторное подтверждение: состояние не меняем.
		return order, nil
	case domain.OrderStatusCancelled:
		return domain.Order{}, domain.ErrRequestInvalid.WithMessage("cancelled order cannot be completed")
	}

	order.Complete(method)
	if err := e.saveWithRetry(&order); err != nil {
		e.recordFailure(err)
		return domain.Order{}, err
	}

	if e.metrics != nil {
		e.metrics.RecordOrderCompleted()
	}
	e.emitOrderEvent(&order, string(kafka.EventTypeOrderCompleted), map[string]interface{}{
		"status":         order.Status.Label(),
		"payment_method": method.Label(),
		"amount":         req.Amount,
	})

	e.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"payment_method": method,
	}).Info("order completed")
	return order, nil
}

// CancelOrder отменяет созданный заказ и возвращает остаток на склад в одной
// атомарной единице работы. Отмена уже отменённого заказа идемпотентна;
// завершённый заказ отменить нельзя.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrRequestInvalid.WithMessage("order_id is required")
	}

	var cancelled domain.Order
	var restoredQty int32
	var restoredProductID string
	err := e.uow.CancelOrder(ctx, orderID, func(order *domain.Order, product *domain.Product) error {
		switch order.Status {
		case domain.OrderStatusCancelled:
			return errOrderAlreadyCancelled
		case domain.OrderStatusCompleted, domain.OrderStatusFailed:
			return domain.ErrOrderNotCancellable
		}

		for _, item := range order.Items {
			if item.ProductID == product.ID {
				product.IncreaseStock(item.Qty)
				restoredQty += item.Qty
				restoredProductID = product.ID
			}
		}
		order.Cancel()
		order.UpdatedAt = time.Now().UTC()
		cancelled = *order
		return nil
	})
	if errors.Is(err, errOrderAlreadyCancelled) {
		return e.orders.Get(orderID)
	}
	if err != nil {
		e.recordFailure(err)
		e.logger.WithError(err).WithField("order_id", orderID).Warn("cancel order failed")
		return domain.Order{}, err
	}

	if e.metrics != nil {
		e.metrics.RecordOrderCancelled()
	}
	e.emitOrderEvent(&cancelled, string(kafka.EventTypeOrderCancelled), map[string]interface{}{
		"status":       cancelled.Status.Label(),
		"restored_qty": restoredQty,
	})
	e.publishStockEvent(kafka.EventTypeStockRestored, restoredProductID, cancelled.ID, restoredQty)

	e.logger.WithField("order_id", cancelled.ID).Info("order cancelled")
	return cancelled, nil
}

func validateCreateRequest(req CreateOrderRequest) error {
	if req.CustomerID == "" {
		return domain.ErrRequestInvalid.WithMessage("customer_id is required")
	}
	if req.ProductID == "" {
		return domain.ErrRequestInvalid.WithMessage("product_id is required")
	}
	if req.Qty <= 0 {
		return domain.ErrRequestInvalid.WithMessage("qty must be greater than zero")
	}
	return nil
}

// saveWithRetry сохраняет заказ с повторами при version conflict: свежая
// версия перечитывается и изменение применяется заново.
func (e *Engine) saveWithRetry(order *domain.Order) error {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	method := order.PaymentMethod
	for attempt := 0; attempt < maxRetries; attempt++ {
		order.UpdatedAt = time.Now().UTC()
		prevVersion := order.Version

		if err := e.orders.Save(*order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				e.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := e.orders.Get(order.ID)
				if loadErr != nil {
					return loadErr
				}
				*order = fresh
				switch order.Status {
				case domain.OrderStatusCompleted:
					// Конкурент уже подтвердил оплату.
					return nil
				case domain.OrderStatusCancelled:
					// Конкурент отменил заказ, остаток уже возвращён на склад.
					return domain.ErrRequestInvalid.WithMessage("cancelled order cannot be completed")
				}
				if method != nil {
					order.Complete(*method)
				}

				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Error("failed to persist order")
			return err
		}

		order.Version = prevVersion + 1
		return nil
	}

	return domain.ErrOrderVersionConflict
}

func (e *Engine) recordFailure(err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordOrderFailed()
	if errors.Is(err, domain.ErrLockWaitTimeout) {
		e.metrics.RecordLockWaitTimeout()
	}
}

// emitOrderEvent пишет событие в outbox и timeline. Ошибки записи логируются,
// но не откатывают уже зафиксированную операцию.
func (e *Engine) emitOrderEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	payload["customer_id"] = order.CustomerID
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	if e.outbox != nil {
		msg := domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     eventType,
			Payload:       data,
		}
		if _, err := e.outbox.Enqueue(msg); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Error("enqueue event failed")
		} else if e.metrics != nil {
			e.metrics.RecordOutboxEvent()
		}
	}

	if e.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Occurred: time.Now().UTC(),
		}
		if err := e.timeline.Append(event); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		} else if e.metrics != nil {
			e.metrics.RecordTimelineEvent()
		}
	}
}

// publishStockEvent публикует изменение остатка в Kafka (если producer настроен).
func (e *Engine) publishStockEvent(eventType kafka.EventType, productID, orderID string, qty int32) {
	if e.producer == nil || productID == "" {
		return
	}

	event := kafka.NewStockEvent(eventType, productID, orderID, qty)
	if err := e.producer.PublishEvent(kafka.TopicStockEvents, productID, event); err != nil {
		// Kafka опциональна, операция уже зафиксирована.
		e.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"product_id": productID,
			"order_id":   orderID,
		}).Warn("failed to publish stock event to kafka")
	}
}
